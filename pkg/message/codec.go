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

import (
	"strings"
)

// wire headers
const (
	HEADER_CONTENT_TYPE = "content-type"
	HEADER_REPLY_ID     = "neb-reply-id"
	HEADER_REPLY_TO     = "neb-reply-to"
	HEADER_IN_REPLY_TO  = "neb-in-reply-to"
)

// alternative spellings of the content type header that are accepted on inbound messages
var contentTypeHeaders = []string{HEADER_CONTENT_TYPE, "content_type", "contentType"}

// IsJSON returns true if the content type's media type ends with "json", ignoring case and parameters.
func IsJSON(contentType string) bool {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(contentType)), "json")
}

// Decode builds a message from STOMP headers and a wire body.
//
// The content type is taken from the headers, then contentTypeOverride, and defaults to text/plain.
// Decoding never fails : header values and the body are repaired into valid UTF-8, a JSON body that does not parse
// is treated as an empty object, and a text body that is mostly not "key: value" lines is kept as an opaque string.
func Decode(headers map[string]string, rawBody []byte, contentTypeOverride string) *Message {
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[RepairString(k)] = RepairString(v)
	}

	contentType := ""
	for _, key := range contentTypeHeaders {
		if v := strings.TrimSpace(h[key]); v != "" {
			contentType = v
			break
		}
	}
	if contentType == "" {
		contentType = strings.TrimSpace(contentTypeOverride)
	}
	if contentType == "" {
		contentType = CONTENT_TYPE_TEXT
	}

	m := &Message{
		contentType:  contentType,
		replyTo:      h[HEADER_REPLY_TO],
		replyID:      h[HEADER_REPLY_ID],
		inReplyTo:    h[HEADER_IN_REPLY_TO],
		stompHeaders: h,
		body:         Opaque{},
	}
	if rawBody != nil {
		body := Repair(rawBody)
		m.rawBody = &body
		m.body = decodeBody(contentType, body)
	}
	return m
}

func decodeBody(contentType, body string) Body {
	if IsJSON(contentType) {
		return decodeJSONBody(body)
	}
	return decodeTextBody(body)
}

// EncodeBody renders the body for the wire according to the message content type.
// JSON content types get the protocol triple as a JSON object, with absent fields omitted. Other content types get
// "key: value" lines terminated by a blank line. Opaque string payloads are written verbatim.
func EncodeBody(m *Message) ([]byte, error) {
	if IsJSON(m.contentType) {
		return encodeJSONBody(m.body)
	}
	return encodeTextBody(m.body)
}

// EncodeHeaders returns the STOMP headers for the message. Absent values are omitted.
func EncodeHeaders(m *Message) map[string]string {
	headers := map[string]string{HEADER_CONTENT_TYPE: m.contentType}
	if m.replyID != "" {
		headers[HEADER_REPLY_ID] = m.replyID
	}
	if m.replyTo != "" {
		headers[HEADER_REPLY_TO] = m.replyTo
	}
	if m.inReplyTo != "" {
		headers[HEADER_IN_REPLY_TO] = m.inReplyTo
	}
	return headers
}
