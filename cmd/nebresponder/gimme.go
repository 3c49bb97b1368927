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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/andy-twosticks/nebulous-stomp/pkg/message"
)

// gimme verbs
const (
	GIMME_SUCCESS     = "gimmesuccess"
	GIMME_ERROR       = "gimmeerror"
	GIMME_PROTOCOL    = "gimmeprotocol"
	GIMME_EMPTY       = "gimmeempty"
	GIMME_MESSAGE     = "gimmemessage"
	GIMME_BIG_MESSAGE = "gimmebigmessage"
)

var errNotASize = errors.New("not a size")

// Gimme answers each verb with the kind of reply it asks for. It exercises every reply builder.
func Gimme(ctx context.Context, msg *message.Message) (string, *message.Message, error) {
	switch msg.Verb() {
	case GIMME_SUCCESS:
		return msg.RespondWithSuccess()
	case GIMME_ERROR:
		return msg.RespondWithError(errors.New("the error you wanted"))
	case GIMME_PROTOCOL:
		return msg.RespondWithProtocol("foo", "bar", "baz")
	case GIMME_EMPTY:
		return msg.RespondWithRawBody([]interface{}{})
	case GIMME_MESSAGE:
		return msg.RespondWithRawBody([]interface{}{"weird message body", 12})
	case GIMME_BIG_MESSAGE:
		body, err := bigBody(msg.Parameters())
		if err != nil {
			return "", nil, err
		}
		return msg.RespondWithRawBody(body)
	default:
		return "", nil, fmt.Errorf("unknown verb %q", msg.Verb())
	}
}

// bigBody returns "foo", then size KiB of "Q", then "bar"
func bigBody(size interface{}) (string, error) {
	var kb float64
	switch v := size.(type) {
	case float64:
		kb = v
	case int:
		kb = float64(v)
	case string:
		kb, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	if kb <= 0 {
		return "", errNotASize
	}
	return "foo" + strings.Repeat("Q", int(1024*kb)) + "bar", nil
}
