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

package main

import (
	"context"
	"strings"
	"testing"

	"github.com/andy-twosticks/nebulous-stomp/pkg/message"
)

func TestGimme(t *testing.T) {
	ctx := context.Background()
	request := func(verb string, params interface{}) *message.Message {
		m := message.NewProtocol(verb, params, "", message.WithReplyTo("/queue/replies"))
		m.SetReplyID("id-1")
		return m
	}

	t.Run("protocol verbs", func(t *testing.T) {
		tests := []struct {
			verb  string
			reply string
			desc  string
		}{
			{GIMME_SUCCESS, "success", ""},
			{GIMME_ERROR, "error", "the error you wanted"},
			{GIMME_PROTOCOL, "foo", "baz"},
		}
		for _, test := range tests {
			queue, reply, err := Gimme(ctx, request(test.verb, nil))
			if err != nil {
				t.Errorf("%s failed : %v", test.verb, err)
				continue
			}
			if queue != "/queue/replies" || reply.InReplyTo() != "id-1" {
				t.Errorf("%s reply is not addressed to the request : %q %q", test.verb, queue, reply.InReplyTo())
			}
			if reply.Verb() != test.reply || reply.Description() != test.desc {
				t.Errorf("%s : unexpected reply %q %q", test.verb, reply.Verb(), reply.Description())
			}
		}
	})

	t.Run("raw bodies", func(t *testing.T) {
		for _, verb := range []string{GIMME_EMPTY, GIMME_MESSAGE} {
			_, reply, err := Gimme(ctx, request(verb, nil))
			if err != nil {
				t.Fatal(err)
			}
			if reply.IsProtocol() {
				t.Errorf("%s reply should not be protocol", verb)
			}
		}
	})

	t.Run("big message", func(t *testing.T) {
		for _, size := range []interface{}{"2", float64(2), 2} {
			_, reply, err := Gimme(ctx, request(GIMME_BIG_MESSAGE, size))
			if err != nil {
				t.Fatal(err)
			}
			body, ok := reply.Body().(message.Opaque).Raw.(string)
			if !ok || len(body) != 2048+6 || !strings.HasPrefix(body, "fooQ") || !strings.HasSuffix(body, "Qbar") {
				t.Errorf("unexpected body for size %v : %d", size, len(body))
			}
		}
		if _, _, err := Gimme(ctx, request(GIMME_BIG_MESSAGE, "lots")); err != errNotASize {
			t.Errorf("expected errNotASize : %v", err)
		}
	})

	t.Run("unknown verb", func(t *testing.T) {
		if _, _, err := Gimme(ctx, request("gimmesomething", nil)); err == nil {
			t.Error("an unknown verb should fail")
		}
	})
}
