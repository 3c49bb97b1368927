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

package transport_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/andy-twosticks/nebulous-stomp/pkg/config"
	"github.com/andy-twosticks/nebulous-stomp/pkg/message"
	"github.com/andy-twosticks/nebulous-stomp/pkg/transport"
	"github.com/go-stomp/stomp/v3/server"
	"github.com/nats-io/nuid"
)

// startServer runs an in-process STOMP server and returns a config pointing at it
func startServer(t *testing.T) *config.Config {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go server.Serve(l)
	t.Cleanup(func() { l.Close() })

	cfg := config.Default()
	// the go-stomp server expects 1.1 style acknowledgements
	cfg.StompConnect = config.StompConnect{Addr: l.Addr().String(), Version: "1.1"}
	return cfg
}

func TestStomp_PublishAndListen(t *testing.T) {
	cfg := startServer(t)
	ctx := context.Background()
	queue := "/queue/" + nuid.Next()

	requester := transport.NewHandler(cfg)
	if err := requester.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	defer requester.Disconnect()
	if requester.Session() == "" {
		t.Error("a session id should always be available")
	}

	responder := transport.NewHandler(cfg)
	defer responder.Disconnect()
	reply := message.FromParts("", "abc_1", "pong", "p", "d")
	if _, err := responder.Publish(ctx, queue, reply); err != nil {
		t.Fatal(err)
	}

	var got *message.Message
	ok, err := requester.ListenWithDeadline(ctx, queue, 5*time.Second, func(m *message.Message) bool {
		if m.InReplyTo() == "abc_1" {
			got = m
			return true
		}
		return false
	})
	if err != nil || !ok {
		t.Fatalf("the reply should have been received : %v", err)
	}
	if got.Verb() != "pong" || got.Parameters() != "p" || got.Description() != "d" || got.ContentType() != message.CONTENT_TYPE_JSON {
		t.Errorf("unexpected reply : %#v %q", got.Body(), got.ContentType())
	}
}

func TestStomp_Consume(t *testing.T) {
	cfg := startServer(t)
	queue := "/queue/" + nuid.Next()

	publisher := transport.NewHandler(cfg)
	defer publisher.Disconnect()
	if _, err := publisher.Publish(context.Background(), queue, message.NewProtocol("hello", nil, "", message.WithContentType("text/plain"))); err != nil {
		t.Fatal(err)
	}

	consumer := transport.NewHandler(cfg)
	defer consumer.Disconnect()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	received := make(chan *message.Message, 1)
	go consumer.Consume(ctx, queue, func(m *message.Message) error {
		received <- m
		return nil
	})

	select {
	case m := <-received:
		if m.Verb() != "hello" || m.ContentType() != "text/plain" {
			t.Errorf("unexpected message : %#v %q", m.Body(), m.ContentType())
		}
	case <-ctx.Done():
		t.Fatal("message was not consumed")
	}
}

func TestDialStomp_UnsupportedVersion(t *testing.T) {
	cfg := startServer(t)
	connect := cfg.StompConnect
	connect.Version = "1.3"
	conn, err := transport.DialStomp(context.Background(), connect)
	if err == nil {
		conn.Disconnect()
		t.Fatal("an unsupported STOMP version should be rejected before connecting")
	}

	connect.Version = "1.2"
	conn, err = transport.DialStomp(context.Background(), connect)
	if err != nil {
		t.Fatalf("a supported version should connect : %v", err)
	}
	conn.Disconnect()
}
