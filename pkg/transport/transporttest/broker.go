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

// Package transporttest provides an in-memory broker with STOMP queue semantics for tests.
//
// Each message sent to a queue is delivered to one subscriber. Delivered messages stay in flight until they are
// acknowledged. When a subscription ends, its unacknowledged messages go back to the head of the queue and are
// redelivered to the next subscriber.
package transporttest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/andy-twosticks/nebulous-stomp/pkg/config"
	"github.com/andy-twosticks/nebulous-stomp/pkg/transport"
)

// errors
var (
	ErrConnClosed         = errors.New("connection is closed")
	ErrSubscriptionClosed = errors.New("subscription is closed")
)

const bufferSize = 1024

// Broker is an in-memory STOMP broker
type Broker struct {
	mutex    sync.Mutex
	queues   map[string]*queue
	conns    map[*conn]struct{}
	sequence uint64
	dials    int
	sends    map[string]int
	dialErr  error
}

type entry struct {
	headers map[string]string
	body    []byte
}

type queue struct {
	pending []*entry
	subs    []*subscription
	next    int
}

// NewBroker returns an empty broker
func NewBroker() *Broker {
	return &Broker{
		queues: map[string]*queue{},
		conns:  map[*conn]struct{}{},
		sends:  map[string]int{},
	}
}

// Dialer returns a transport.Dialer that connects to the broker
func (a *Broker) Dialer() transport.Dialer {
	return func(ctx context.Context, connect config.StompConnect) (transport.Conn, error) {
		return a.Connect()
	}
}

// Connect opens a connection. It fails if FailDials was set.
func (a *Broker) Connect() (transport.Conn, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.dialErr != nil {
		return nil, a.dialErr
	}
	a.dials++
	a.sequence++
	c := &conn{broker: a, session: fmt.Sprintf("session-%d", a.sequence), subs: map[*subscription]struct{}{}}
	a.conns[c] = struct{}{}
	return c, nil
}

// FailDials makes connection attempts fail with err. A nil err allows connections again.
func (a *Broker) FailDials(err error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.dialErr = err
}

// DropConnections closes every open connection, as if the broker had gone away
func (a *Broker) DropConnections() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	for c := range a.conns {
		a.close(c)
	}
}

// Dials returns the number of successful connections
func (a *Broker) Dials() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.dials
}

// Sends returns the number of messages sent to the queue by connections, placeholders included
func (a *Broker) Sends(queue string) int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.sends[queue]
}

// TotalSends returns the number of messages sent to all queues by connections
func (a *Broker) TotalSends() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	total := 0
	for _, n := range a.sends {
		total += n
	}
	return total
}

// Publish injects a message into the queue without going through a connection
func (a *Broker) Publish(queueName string, headers map[string]string, body []byte) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.enqueue(queueName, headers, body)
}

// Messages returns the bodies of the queue's unacknowledged messages : pending ones followed by in flight ones
func (a *Broker) Messages(queueName string) []*transport.Frame {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	q := a.queue(queueName)
	frames := []*transport.Frame{}
	for _, e := range q.pending {
		frames = append(frames, e.frame())
	}
	for _, s := range q.subs {
		for _, f := range s.inflight {
			frames = append(frames, f)
		}
	}
	return frames
}

// Depth returns the number of unacknowledged messages in the queue
func (a *Broker) Depth(queueName string) int {
	return len(a.Messages(queueName))
}

func (a *Broker) queue(name string) *queue {
	q, exists := a.queues[name]
	if !exists {
		q = &queue{}
		a.queues[name] = q
	}
	return q
}

func (e *entry) frame() *transport.Frame {
	headers := make(map[string]string, len(e.headers))
	for k, v := range e.headers {
		headers[k] = v
	}
	body := make([]byte, len(e.body))
	copy(body, e.body)
	return &transport.Frame{Headers: headers, Body: body, Handle: e}
}

func (a *Broker) enqueue(queueName string, headers map[string]string, body []byte) {
	h := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		h[k] = v
	}
	h["destination"] = queueName
	b := make([]byte, len(body))
	copy(b, body)
	q := a.queue(queueName)
	q.pending = append(q.pending, &entry{headers: h, body: b})
	a.dispatch(q)
}

// dispatch hands pending messages to subscribers round robin
func (a *Broker) dispatch(q *queue) {
	for len(q.pending) > 0 && len(q.subs) > 0 {
		delivered := false
		for i := 0; i < len(q.subs); i++ {
			s := q.subs[(q.next+i)%len(q.subs)]
			f := q.pending[0].frame()
			select {
			case s.c <- f:
				s.inflight = append(s.inflight, f)
				q.pending = q.pending[1:]
				q.next = (q.next + i + 1) % len(q.subs)
				delivered = true
			default:
				continue
			}
			break
		}
		if !delivered {
			return
		}
	}
}

// requeue puts the subscription's unacknowledged messages back at the head of the queue
func (a *Broker) requeue(s *subscription) {
	q := a.queue(s.queue)
	for i, sub := range q.subs {
		if sub == s {
			q.subs = append(q.subs[:i], q.subs[i+1:]...)
			break
		}
	}
	if len(q.subs) > 0 {
		q.next = q.next % len(q.subs)
	} else {
		q.next = 0
	}
	entries := make([]*entry, 0, len(s.inflight)+len(q.pending))
	for _, f := range s.inflight {
		entries = append(entries, f.Handle.(*entry))
	}
	q.pending = append(entries, q.pending...)
	s.inflight = nil
	s.closed = true
	for len(s.c) > 0 {
		<-s.c
	}
	close(s.c)
	a.dispatch(q)
}

func (a *Broker) close(c *conn) {
	if c.closed {
		return
	}
	c.closed = true
	for s := range c.subs {
		a.requeue(s)
	}
	c.subs = map[*subscription]struct{}{}
	delete(a.conns, c)
}

type conn struct {
	broker  *Broker
	session string
	subs    map[*subscription]struct{}
	closed  bool
}

func (a *conn) Session() string {
	return a.session
}

func (a *conn) Send(queueName string, headers map[string]string, body []byte) error {
	a.broker.mutex.Lock()
	defer a.broker.mutex.Unlock()
	if a.closed {
		return ErrConnClosed
	}
	a.broker.sends[queueName]++
	a.broker.enqueue(queueName, headers, body)
	return nil
}

func (a *conn) Subscribe(queueName string) (transport.Subscription, error) {
	a.broker.mutex.Lock()
	defer a.broker.mutex.Unlock()
	if a.closed {
		return nil, ErrConnClosed
	}
	s := &subscription{conn: a, queue: queueName, c: make(chan *transport.Frame, bufferSize)}
	a.subs[s] = struct{}{}
	q := a.broker.queue(queueName)
	q.subs = append(q.subs, s)
	a.broker.dispatch(q)
	return s, nil
}

func (a *conn) Disconnect() error {
	a.broker.mutex.Lock()
	defer a.broker.mutex.Unlock()
	a.broker.close(a)
	return nil
}

type subscription struct {
	conn     *conn
	queue    string
	c        chan *transport.Frame
	inflight []*transport.Frame
	closed   bool
}

func (a *subscription) C() <-chan *transport.Frame {
	return a.c
}

func (a *subscription) Ack(frame *transport.Frame) error {
	broker := a.conn.broker
	broker.mutex.Lock()
	defer broker.mutex.Unlock()
	if a.closed {
		return ErrSubscriptionClosed
	}
	for i, f := range a.inflight {
		if f == frame {
			a.inflight = append(a.inflight[:i], a.inflight[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("frame is not in flight on %q", a.queue)
}

func (a *subscription) Unsubscribe() error {
	broker := a.conn.broker
	broker.mutex.Lock()
	defer broker.mutex.Unlock()
	if a.closed {
		return nil
	}
	delete(a.conn.subs, a)
	broker.requeue(a)
	return nil
}
