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

package transport

import (
	"context"

	"github.com/andy-twosticks/nebulous-stomp/pkg/config"
)

// Frame is a message received from the broker
type Frame struct {
	Headers map[string]string
	Body    []byte

	// Handle is used by the Conn implementation to acknowledge the frame
	Handle interface{}
}

// Subscription delivers the frames sent to a queue. Frames must be acknowledged individually : unacknowledged frames
// remain pending on the broker.
type Subscription interface {
	C() <-chan *Frame

	Ack(frame *Frame) error

	Unsubscribe() error
}

// Conn is a STOMP broker connection
type Conn interface {
	// Session is the session id assigned by the broker. It may be blank.
	Session() string

	Send(queue string, headers map[string]string, body []byte) error

	// Subscribe subscribes to the queue using client-individual acknowledgement
	Subscribe(queue string) (Subscription, error)

	Disconnect() error
}

// Dialer connects to the broker
type Dialer func(ctx context.Context, connect config.StompConnect) (Conn, error)
