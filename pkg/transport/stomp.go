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
	"net"
	"strings"
	"sync"
	"time"

	"github.com/andy-twosticks/nebulous-stomp/pkg/config"
	"github.com/andy-twosticks/nebulous-stomp/pkg/message"
	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
)

// DialStomp is the default Dialer
func DialStomp(ctx context.Context, connect config.StompConnect) (Conn, error) {
	if err := config.CheckStompVersion(connect.Version); err != nil {
		return nil, err
	}
	var dialer net.Dialer
	netConn, err := dialer.DialContext(ctx, "tcp", connect.Addr)
	if err != nil {
		return nil, err
	}

	opts := []func(*stomp.Conn) error{}
	if connect.Login != "" {
		opts = append(opts, stomp.ConnOpt.Login(connect.Login, connect.Passcode))
	}
	if connect.Host != "" {
		opts = append(opts, stomp.ConnOpt.Host(connect.Host))
	}
	if version := strings.TrimSpace(connect.Version); version != "" {
		opts = append(opts, stomp.ConnOpt.AcceptVersion(stomp.Version(version)))
	}
	if connect.HeartBeat > 0 {
		heartBeat := time.Duration(connect.HeartBeat) * time.Millisecond
		opts = append(opts, stomp.ConnOpt.HeartBeat(heartBeat, heartBeat))
	}

	conn, err := stomp.Connect(netConn, opts...)
	if err != nil {
		netConn.Close()
		return nil, err
	}
	return &stompConn{conn}, nil
}

type stompConn struct {
	conn *stomp.Conn
}

func (a *stompConn) Session() string {
	return a.conn.Session()
}

func (a *stompConn) Send(queue string, headers map[string]string, body []byte) error {
	sendOpts := make([]func(*frame.Frame) error, 0, len(headers))
	for k, v := range headers {
		if k == message.HEADER_CONTENT_TYPE {
			continue
		}
		sendOpts = append(sendOpts, stomp.SendOpt.Header(k, v))
	}
	return a.conn.Send(queue, headers[message.HEADER_CONTENT_TYPE], body, sendOpts...)
}

func (a *stompConn) Subscribe(queue string) (Subscription, error) {
	sub, err := a.conn.Subscribe(queue, stomp.AckClientIndividual)
	if err != nil {
		return nil, err
	}
	s := &stompSubscription{
		conn:   a.conn,
		sub:    sub,
		frames: make(chan *Frame),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (a *stompConn) Disconnect() error {
	return a.conn.Disconnect()
}

type stompSubscription struct {
	conn *stomp.Conn
	sub  *stomp.Subscription

	frames chan *Frame
	done   chan struct{}
	once   sync.Once
}

// run relays stomp messages as frames until the subscription is closed.
// A message carrying an error means the subscription is no longer usable.
func (a *stompSubscription) run() {
	defer close(a.frames)
	for {
		select {
		case <-a.done:
			return
		case msg, ok := <-a.sub.C:
			if !ok || msg.Err != nil {
				return
			}
			headers := make(map[string]string, msg.Header.Len())
			for i := 0; i < msg.Header.Len(); i++ {
				k, v := msg.Header.GetAt(i)
				if _, exists := headers[k]; !exists {
					headers[k] = v
				}
			}
			select {
			case a.frames <- &Frame{Headers: headers, Body: msg.Body, Handle: msg}:
			case <-a.done:
				return
			}
		}
	}
}

func (a *stompSubscription) C() <-chan *Frame {
	return a.frames
}

func (a *stompSubscription) Ack(f *Frame) error {
	return a.conn.Ack(f.Handle.(*stomp.Message))
}

func (a *stompSubscription) Unsubscribe() error {
	a.once.Do(func() { close(a.done) })
	return a.sub.Unsubscribe()
}
