// Copyright (c) 2017 OysterPack, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package message

// CacheRecord is the serialized snapshot of a message that is stored in the cache.
// When the wire body is available it is kept in StompBody and Body is left null.
type CacheRecord struct {
	StompHeaders map[string]string `json:"stompHeaders"`
	StompBody    *string           `json:"stompBody"`
	Body         interface{}       `json:"body"`
	Verb         *string           `json:"verb"`
	Params       interface{}       `json:"params"`
	Desc         *string           `json:"desc"`
	ReplyTo      *string           `json:"replyTo"`
	ReplyID      *string           `json:"replyId"`
	InReplyTo    *string           `json:"inReplyTo"`
	ContentType  string            `json:"contentType"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ToCacheRecord snapshots the message
func ToCacheRecord(m *Message) CacheRecord {
	record := CacheRecord{
		StompHeaders: m.stompHeaders,
		StompBody:    m.rawBody,
		ReplyTo:      optional(m.replyTo),
		ReplyID:      optional(m.replyID),
		InReplyTo:    optional(m.inReplyTo),
		ContentType:  m.contentType,
	}
	switch b := m.body.(type) {
	case Protocol:
		record.Verb = optional(b.Verb)
		record.Params = b.Parameters
		record.Desc = optional(b.Description)
	case Opaque:
		if m.rawBody == nil {
			record.Body = b.Raw
		}
	}
	return record
}

// FromCacheRecord rebuilds a message from the record. Fields stored in the record take precedence over the fields
// decoded from the stored wire body.
func FromCacheRecord(record CacheRecord) *Message {
	var m *Message
	if record.StompBody != nil {
		m = Decode(record.StompHeaders, []byte(*record.StompBody), record.ContentType)
	} else {
		contentType := record.ContentType
		if contentType == "" {
			contentType = CONTENT_TYPE_JSON
		}
		m = &Message{
			contentType:  contentType,
			stompHeaders: record.StompHeaders,
			body:         Opaque{Raw: record.Body},
		}
	}

	if record.ContentType != "" {
		m.contentType = record.ContentType
	}
	if record.ReplyTo != nil {
		m.replyTo = *record.ReplyTo
	}
	if record.ReplyID != nil {
		m.replyID = *record.ReplyID
	}
	if record.InReplyTo != nil {
		m.inReplyTo = *record.InReplyTo
	}
	if verb := value(record.Verb); verb != "" {
		m.body = Protocol{Verb: verb, Parameters: record.Params, Description: value(record.Desc)}
	}
	return m
}

// ToCache serializes the message cache record as JSON
func ToCache(m *Message) (string, error) {
	return json.MarshalToString(ToCacheRecord(m))
}

// FromCache deserializes a JSON cache record. Malformed JSON is a ProtocolError.
func FromCache(data string) (*Message, error) {
	var record CacheRecord
	if err := json.UnmarshalFromString(data, &record); err != nil {
		return nil, errMalformedCacheRecord(err)
	}
	return FromCacheRecord(record), nil
}
