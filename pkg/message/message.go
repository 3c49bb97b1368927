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

// Package message implements the Nebulous message : a header carrying correlation and content-type metadata,
// and a body that is either a protocol triple (verb, parameters, description) or an opaque payload.
//
// Messages are translated to and from STOMP frames by Decode, EncodeHeaders and EncodeBody, and to and from
// cache records by ToCacheRecord and FromCacheRecord.
package message

import (
	"github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// content types
const (
	CONTENT_TYPE_JSON = "application/json"
	CONTENT_TYPE_TEXT = "text/plain"
)

// Message is immutable once built, except for the reply id, which is assigned once when the message is sent.
type Message struct {
	contentType  string
	replyTo      string
	replyID      string
	inReplyTo    string
	stompHeaders map[string]string

	body    Body
	rawBody *string
}

// Option is used to set header fields when building a message
type Option func(*Message)

// WithContentType sets the content type. A blank content type is ignored.
func WithContentType(contentType string) Option {
	return func(m *Message) {
		if contentType != "" {
			m.contentType = contentType
		}
	}
}

// WithReplyTo sets the queue that replies should be sent to
func WithReplyTo(queue string) Option {
	return func(m *Message) {
		m.replyTo = queue
	}
}

// WithInReplyTo sets the correlation id of the message being answered
func WithInReplyTo(replyID string) Option {
	return func(m *Message) {
		m.inReplyTo = replyID
	}
}

// NewProtocol builds a protocol-bearing message. If verb is blank, then the message is not protocol-bearing and
// params and desc are dropped.
func NewProtocol(verb string, params interface{}, desc string, opts ...Option) *Message {
	return newMessage(Protocol{Verb: verb, Parameters: params, Description: desc}, opts)
}

// NewRaw builds a message with an opaque body
func NewRaw(body interface{}, opts ...Option) *Message {
	return newMessage(Opaque{Raw: body}, opts)
}

// FromParts builds a protocol message from its parts
func FromParts(replyTo, inReplyTo, verb string, params interface{}, desc string) *Message {
	return NewProtocol(verb, params, desc, WithReplyTo(replyTo), WithInReplyTo(inReplyTo))
}

func newMessage(body Body, opts []Option) *Message {
	m := &Message{
		contentType: CONTENT_TYPE_JSON,
		body:        normalize(body),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Copy returns a copy of the message with the options applied
func (m *Message) Copy(opts ...Option) *Message {
	c := *m
	if m.stompHeaders != nil {
		c.stompHeaders = make(map[string]string, len(m.stompHeaders))
		for k, v := range m.stompHeaders {
			c.stompHeaders[k] = v
		}
	}
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// ContentType is never blank
func (m *Message) ContentType() string { return m.contentType }

// ReplyTo is the queue that a reply to this message should be published to
func (m *Message) ReplyTo() string { return m.replyTo }

// ReplyID is this message's correlation id
func (m *Message) ReplyID() string { return m.replyID }

// InReplyTo is the correlation id of the message that this message answers
func (m *Message) InReplyTo() string { return m.inReplyTo }

// StompHeaders returns the headers the message was received with, or nil if it was built locally
func (m *Message) StompHeaders() map[string]string { return m.stompHeaders }

// Body returns either a Protocol or an Opaque body
func (m *Message) Body() Body { return m.body }

// RawBody returns the wire body the message was decoded from
func (m *Message) RawBody() (string, bool) {
	if m.rawBody == nil {
		return "", false
	}
	return *m.rawBody, true
}

// SetReplyID assigns the correlation id. It only takes effect if the reply id has not already been set.
func (m *Message) SetReplyID(replyID string) bool {
	if m.replyID != "" || replyID == "" {
		return false
	}
	m.replyID = replyID
	return true
}

// IsProtocol returns true if the message carries a verb
func (m *Message) IsProtocol() bool {
	_, ok := m.body.(Protocol)
	return ok
}

// Verb returns "" if the message is not protocol-bearing
func (m *Message) Verb() string {
	if p, ok := m.body.(Protocol); ok {
		return p.Verb
	}
	return ""
}

// Parameters returns nil if the message is not protocol-bearing
func (m *Message) Parameters() interface{} {
	if p, ok := m.body.(Protocol); ok {
		return p.Parameters
	}
	return nil
}

// Description returns "" if the message is not protocol-bearing
func (m *Message) Description() string {
	if p, ok := m.body.(Protocol); ok {
		return p.Description
	}
	return ""
}

// ProtocolJSON returns the canonical JSON of the protocol fields, which is used as the cache key.
func (m *Message) ProtocolJSON() (string, error) {
	p, ok := m.body.(Protocol)
	if !ok {
		return "", errNotProtocol()
	}
	return json.MarshalToString(p.wire())
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler
func (m *Message) MarshalZerologObject(e *zerolog.Event) {
	e.Str("content_type", m.contentType)
	if m.replyTo != "" {
		e.Str("reply_to", m.replyTo)
	}
	if m.replyID != "" {
		e.Str("reply_id", m.replyID)
	}
	if m.inReplyTo != "" {
		e.Str("in_reply_to", m.inReplyTo)
	}
	if p, ok := m.body.(Protocol); ok {
		e.Str("verb", p.Verb)
	}
}
