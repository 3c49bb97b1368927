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
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andy-twosticks/nebulous-stomp/pkg/config"
	"github.com/andy-twosticks/nebulous-stomp/pkg/message"
	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
	"github.com/andy-twosticks/nebulous-stomp/pkg/transport"
	"github.com/andy-twosticks/nebulous-stomp/pkg/transport/transporttest"
)

func enabledConfig() *config.Config {
	cfg := config.Default()
	cfg.StompConnect = config.StompConnect{Addr: "in-memory"}
	return cfg
}

func newHandler(broker *transporttest.Broker) *transport.Handler {
	return transport.NewHandler(enabledConfig(), transport.WithDialer(broker.Dialer()))
}

func jsonHeaders(inReplyTo string) map[string]string {
	headers := map[string]string{message.HEADER_CONTENT_TYPE: message.CONTENT_TYPE_JSON}
	if inReplyTo != "" {
		headers[message.HEADER_IN_REPLY_TO] = inReplyTo
	}
	return headers
}

// replies returns the frames on the queue, ignoring placeholders
func replies(broker *transporttest.Broker, queue string) []*transport.Frame {
	var frames []*transport.Frame
	for _, frame := range broker.Messages(queue) {
		if strings.TrimSpace(string(frame.Body)) != transport.PLACEHOLDER {
			frames = append(frames, frame)
		}
	}
	return frames
}

func TestHandler_Disabled(t *testing.T) {
	broker := transporttest.NewBroker()
	h := transport.NewHandler(config.Default(), transport.WithDialer(broker.Dialer()))
	ctx := context.Background()

	if h.Enabled() {
		t.Fatal("transport should be off")
	}
	if err := h.Connect(ctx); err != nil {
		t.Errorf("Connect should be a no-op : %v", err)
	}
	if h.Connected() {
		t.Error("handler should not be connected")
	}
	msg := message.NewProtocol("x", nil, "")
	if published, err := h.Publish(ctx, "/queue/a", msg); err != nil || published != msg {
		t.Errorf("Publish should be a no-op : %v", err)
	}
	if ok, err := h.ListenWithDeadline(ctx, "/queue/a", time.Second, func(*message.Message) bool { return true }); ok || err != nil {
		t.Errorf("ListenWithDeadline should be a no-op : %v %v", ok, err)
	}
	if err := h.Consume(ctx, "/queue/a", func(*message.Message) error { return nil }); err != nil {
		t.Errorf("Consume should be a no-op : %v", err)
	}
	if broker.Dials() != 0 || broker.TotalSends() != 0 {
		t.Error("nothing should have reached the broker")
	}
}

func TestHandler_ConnectDisconnect(t *testing.T) {
	broker := transporttest.NewBroker()
	h := newHandler(broker)
	ctx := context.Background()

	if _, err := h.CalcReplyID(); !neb.IsConnection(err) {
		t.Errorf("CalcReplyID requires a connection : %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := h.Connect(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if !h.Connected() || broker.Dials() != 1 {
		t.Errorf("Connect should be idempotent : dials = %d", broker.Dials())
	}

	id1, err := h.CalcReplyID()
	if err != nil {
		t.Fatal(err)
	}
	id2, _ := h.CalcReplyID()
	if id1 == id2 {
		t.Error("reply ids should be unique")
	}
	if !strings.HasPrefix(id1, h.Session()+"_") || h.Session() != "session-1" {
		t.Errorf("reply id should be prefixed with the session : %q", id1)
	}

	for i := 0; i < 2; i++ {
		if err := h.Disconnect(); err != nil {
			t.Fatal(err)
		}
	}
	if h.Connected() {
		t.Error("handler should be disconnected")
	}
}

func TestHandler_ConnectFailure(t *testing.T) {
	broker := transporttest.NewBroker()
	broker.FailDials(errors.New("connection refused"))
	h := newHandler(broker)

	if err := h.Connect(context.Background()); !neb.IsConnection(err) {
		t.Errorf("a ConnectionError should have been returned : %v", err)
	}
	if _, err := h.Publish(context.Background(), "/queue/a", message.NewProtocol("x", nil, "")); !neb.IsConnection(err) {
		t.Errorf("a ConnectionError should have been returned : %v", err)
	}
}

func TestHandler_PublishReconnects(t *testing.T) {
	broker := transporttest.NewBroker()
	h := newHandler(broker)
	ctx := context.Background()

	if _, err := h.Publish(ctx, "/queue/a", message.NewProtocol("one", nil, "")); err != nil {
		t.Fatal(err)
	}

	// When the broker drops the connection
	broker.DropConnections()

	// Then the next publish reconnects
	if _, err := h.Publish(ctx, "/queue/a", message.NewProtocol("two", nil, "")); err != nil {
		t.Fatal(err)
	}
	if broker.Dials() != 2 {
		t.Errorf("handler should have reconnected : dials = %d", broker.Dials())
	}

	frames := broker.Messages("/queue/a")
	if len(frames) != 2 {
		t.Fatalf("both messages should be queued : %d", len(frames))
	}
	m := message.Decode(frames[1].Headers, frames[1].Body, "")
	if m.Verb() != "two" || m.ContentType() != message.CONTENT_TYPE_JSON {
		t.Errorf("unexpected message : %q %q", m.Verb(), m.ContentType())
	}
}

func TestHandler_ListenWithDeadline(t *testing.T) {
	broker := transporttest.NewBroker()
	h := newHandler(broker)
	ctx := context.Background()
	queue := "/queue/replies"

	// Given a reply for someone else followed by the reply we want
	broker.Publish(queue, jsonHeaders("other_1"), []byte(`{"verb":"other"}`))
	broker.Publish(queue, jsonHeaders("mine_1"), []byte(`{"verb":"mine"}`))

	var seen []string
	var got *message.Message
	ok, err := h.ListenWithDeadline(ctx, queue, time.Second, func(m *message.Message) bool {
		seen = append(seen, m.Verb())
		if m.InReplyTo() == "mine_1" {
			got = m
			return true
		}
		return false
	})

	// Then only our reply is consumed
	if err != nil || !ok {
		t.Fatalf("the reply should have been accepted : %v", err)
	}
	if got.Verb() != "mine" {
		t.Errorf("wrong reply : %q", got.Verb())
	}
	if len(seen) != 2 || seen[0] != "other" {
		t.Errorf("messages should be examined in delivery order and placeholders never passed on : %v", seen)
	}
	frames := replies(broker, queue)
	if len(frames) != 1 || frames[0].Headers[message.HEADER_IN_REPLY_TO] != "other_1" {
		t.Errorf("the other reply should still be on the queue : %d", len(frames))
	}
	if broker.Sends(queue) != 1 {
		t.Errorf("one placeholder should have been published : %d", broker.Sends(queue))
	}
}

func TestHandler_ListenWithDeadline_Timeout(t *testing.T) {
	broker := transporttest.NewBroker()
	h := newHandler(broker)
	queue := "/queue/replies"
	broker.Publish(queue, jsonHeaders("other_1"), []byte(`{"verb":"other"}`))

	timeout := 100 * time.Millisecond
	start := time.Now()
	ok, err := h.ListenWithDeadline(context.Background(), queue, timeout, func(m *message.Message) bool { return false })
	elapsed := time.Since(start)

	if ok || !neb.IsTimeout(err) {
		t.Errorf("a TimeoutError should have been returned : %v %v", ok, err)
	}
	if elapsed < timeout || elapsed > timeout+time.Second {
		t.Errorf("should have returned shortly after the deadline : %v", elapsed)
	}
	if broker.Depth(queue) != 1 {
		t.Errorf("the unmatched message should not have been consumed : %d", broker.Depth(queue))
	}
}

func TestHandler_ListenWithDeadline_HandlerPanic(t *testing.T) {
	broker := transporttest.NewBroker()
	h := newHandler(broker)
	queue := "/queue/replies"
	broker.Publish(queue, jsonHeaders("a"), []byte(`{"verb":"bad"}`))
	broker.Publish(queue, jsonHeaders("b"), []byte(`{"verb":"good"}`))

	ok, err := h.ListenWithDeadline(context.Background(), queue, time.Second, func(m *message.Message) bool {
		if m.Verb() == "bad" {
			panic("boom")
		}
		return true
	})
	if !ok || err != nil {
		t.Errorf("a handler panic should be treated as not accepted : %v %v", ok, err)
	}
	frames := replies(broker, queue)
	if len(frames) != 1 || frames[0].Headers[message.HEADER_IN_REPLY_TO] != "a" {
		t.Errorf("the message whose handler panicked should remain : %d", len(frames))
	}
}

// Each listen leaves its own placeholder behind when the reply was already waiting ahead of it. The next listen
// acknowledges it, so placeholders never pile up and are never passed on.
func TestHandler_ListenWithDeadline_PlaceholdersDoNotAccumulate(t *testing.T) {
	broker := transporttest.NewBroker()
	h := newHandler(broker)
	queue := "/queue/replies"

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("reply_%d", i)
		broker.Publish(queue, jsonHeaders(id), []byte(`{"verb":"answer"}`))
		ok, err := h.ListenWithDeadline(context.Background(), queue, time.Second, func(m *message.Message) bool {
			if m.Verb() != "answer" {
				t.Errorf("only replies should be passed on : %q", m.Verb())
			}
			return m.InReplyTo() == id
		})
		if !ok || err != nil {
			t.Fatalf("cycle %d : the reply should have been accepted : %v", i, err)
		}
	}

	if len(replies(broker, queue)) != 0 {
		t.Errorf("every reply should have been consumed : %d", len(replies(broker, queue)))
	}
	if broker.Depth(queue) != 1 {
		t.Errorf("only the last placeholder should remain : %d", broker.Depth(queue))
	}
	if broker.Sends(queue) != 3 {
		t.Errorf("one placeholder per listen : %d", broker.Sends(queue))
	}
}

func TestHandler_Consume(t *testing.T) {
	broker := transporttest.NewBroker()
	h := newHandler(broker)
	queue := "/queue/requests"

	broker.Publish(queue, map[string]string{"content-type": "text/plain"}, []byte(transport.PLACEHOLDER))
	broker.Publish(queue, jsonHeaders(""), []byte(`{"verb":"fail"}`))
	broker.Publish(queue, jsonHeaders(""), []byte(`{"verb":"panic"}`))
	broker.Publish(queue, jsonHeaders(""), []byte(`{"verb":"ok"}`))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var handled int32
	done := make(chan error)
	go func() {
		done <- h.Consume(ctx, queue, func(m *message.Message) error {
			atomic.AddInt32(&handled, 1)
			switch m.Verb() {
			case "fail":
				return errors.New("failed")
			case "panic":
				panic("boom")
			case "ok":
				cancel()
			default:
				t.Errorf("unexpected message : %#v", m.Body())
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Consume should return nil when its context is done : %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Consume did not return")
	}

	if atomic.LoadInt32(&handled) != 3 {
		t.Errorf("the loop should have survived handler errors and panics : handled = %d", handled)
	}
	if broker.Depth(queue) != 0 {
		t.Errorf("every message should have been acknowledged : %d", broker.Depth(queue))
	}
}

func TestHandler_Consume_ConnectionLost(t *testing.T) {
	broker := transporttest.NewBroker()
	h := newHandler(broker)

	done := make(chan error)
	go func() {
		done <- h.Consume(context.Background(), "/queue/requests", func(*message.Message) error { return nil })
	}()
	for !h.Connected() {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	broker.DropConnections()

	select {
	case err := <-done:
		if !neb.IsConnection(err) {
			t.Errorf("a ConnectionError should have been returned : %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Consume did not return")
	}
}
