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

// RespondWithProtocol builds a protocol reply to the message.
// It returns the queue to publish the reply to, which is the message's reply-to queue.
// A ProtocolError is returned if the message has no reply-to queue.
func (m *Message) RespondWithProtocol(verb string, params interface{}, desc string) (string, *Message, error) {
	return m.respond(Protocol{Verb: verb, Parameters: params, Description: desc})
}

// RespondWithSuccess replies with the "success" verb
func (m *Message) RespondWithSuccess() (string, *Message, error) {
	return m.RespondWithProtocol("success", nil, "")
}

// RespondWithError replies with the "error" verb. The fields become the parameters and the error text becomes
// the description.
func (m *Message) RespondWithError(err error, fields ...string) (string, *Message, error) {
	params := make([]string, 0, len(fields))
	params = append(params, fields...)
	desc := ""
	if err != nil {
		desc = err.Error()
	}
	return m.RespondWithProtocol("error", params, desc)
}

// RespondWithRawBody replies with an opaque body
func (m *Message) RespondWithRawBody(body interface{}) (string, *Message, error) {
	return m.respond(Opaque{Raw: body})
}

func (m *Message) respond(body Body) (string, *Message, error) {
	if m.replyTo == "" {
		return "", nil, errNoReplyTo()
	}
	reply := &Message{
		contentType: m.contentType,
		inReplyTo:   m.replyID,
		body:        normalize(body),
	}
	return m.replyTo, reply, nil
}
