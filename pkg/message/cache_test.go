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

package message_test

import (
	"testing"

	"github.com/andy-twosticks/nebulous-stomp/pkg/message"
	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
)

func TestCacheRecord_Idempotence(t *testing.T) {
	received := message.Decode(map[string]string{
		message.HEADER_CONTENT_TYPE: "application/json",
		message.HEADER_REPLY_TO:     "/queue/out",
		message.HEADER_REPLY_ID:     "abc_1",
		message.HEADER_IN_REPLY_TO:  "abc_0",
	}, []byte(`{"verb":"x","parameters":["a",1],"description":"z"}`), "")

	messages := map[string]*message.Message{
		"received":       received,
		"received text":  message.Decode(map[string]string{"content-type": "text/plain"}, []byte("verb: x\nparameters: y\n\n"), ""),
		"received placeholder": message.Decode(map[string]string{"content-type": "text/plain"}, []byte("boo"), ""),
		"built protocol": message.FromParts("/queue/out", "abc_0", "x", []string{"a", "b"}, "z"),
		"built raw":      message.NewRaw(map[string]interface{}{"k": "v"}),
		"built empty":    message.NewRaw(nil),
	}
	for name, m := range messages {
		t.Run(name, func(t *testing.T) {
			// Given the cache record for a message
			first, err := message.ToCache(m)
			if err != nil {
				t.Fatal(err)
			}

			// When it is deserialized and serialized again
			restored, err := message.FromCache(first)
			if err != nil {
				t.Fatal(err)
			}
			second, err := message.ToCache(restored)
			if err != nil {
				t.Fatal(err)
			}

			// Then the records are identical
			if first != second {
				t.Errorf("cache records differ :\n%s\n%s", first, second)
			}
			if restored.Verb() != m.Verb() || restored.ContentType() != m.ContentType() || restored.ReplyTo() != m.ReplyTo() {
				t.Errorf("restored message does not match : %q %q %q", restored.Verb(), restored.ContentType(), restored.ReplyTo())
			}
		})
	}
}

func TestCacheRecord_BodyNotDuplicated(t *testing.T) {
	m := message.Decode(map[string]string{"content-type": "application/json"}, []byte(`["big","payload"]`), "")
	record := message.ToCacheRecord(m)
	if record.StompBody == nil || *record.StompBody != `["big","payload"]` {
		t.Errorf("the wire body should be preserved verbatim : %v", record.StompBody)
	}
	if record.Body != nil {
		t.Errorf("the decoded body should not be stored when the wire body is : %#v", record.Body)
	}

	restored := message.FromCacheRecord(record)
	if opaque, ok := restored.Body().(message.Opaque); !ok || len(opaque.Raw.([]interface{})) != 2 {
		t.Errorf("the body should be decoded from the wire body : %#v", restored.Body())
	}
}

func TestCacheRecord_RecordFieldsTakePrecedence(t *testing.T) {
	stompBody := `{"verb":"x"}`
	verb := "y"
	restored := message.FromCacheRecord(message.CacheRecord{
		StompHeaders: map[string]string{"content-type": "application/json"},
		StompBody:    &stompBody,
		Verb:         &verb,
		ContentType:  "application/json",
	})
	if restored.Verb() != "y" {
		t.Errorf("the record verb should win : %q", restored.Verb())
	}
}

func TestFromCache_Malformed(t *testing.T) {
	for _, data := range []string{"", "{", `{"verb": 1`, "[1,2"} {
		if _, err := message.FromCache(data); !neb.IsProtocol(err) {
			t.Errorf("malformed record %q should fail with a ProtocolError : %v", data, err)
		}
	}
}
