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

// Package transport implements the TransportHandler : one broker connection with publish, a continuous consume loop,
// and a deadline bound listen that only acknowledges the message it is looking for.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andy-twosticks/nebulous-stomp/pkg/config"
	"github.com/andy-twosticks/nebulous-stomp/pkg/message"
	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
	"github.com/google/uuid"
	"github.com/nats-io/nuid"
	"github.com/rs/zerolog"
)

// PLACEHOLDER is published to a queue before subscribing to it. Some brokers refuse subscriptions to queues that do
// not exist yet. Placeholders are acknowledged and discarded on receipt.
const PLACEHOLDER = "boo"

var placeholder = []byte(PLACEHOLDER)

type pkgobject struct{}

var logger = neb.NewPackageLogger(pkgobject{})

// Handler owns one broker connection.
// It is a no-op when the transport is turned off in the config.
type Handler struct {
	connect config.StompConnect
	dialer  Dialer
	logger  zerolog.Logger

	mutex   sync.Mutex
	conn    Conn
	connID  string
	session string
}

// Option configures a Handler
type Option func(*Handler)

// WithDialer replaces the default STOMP dialer
func WithDialer(dialer Dialer) Option {
	return func(h *Handler) {
		h.dialer = dialer
	}
}

// WithLogger replaces the package logger
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a disconnected handler
func NewHandler(cfg *config.Config, opts ...Option) *Handler {
	h := &Handler{
		connect: cfg.StompConnect,
		dialer:  DialStomp,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Enabled returns false if the transport was turned off by configuration
func (a *Handler) Enabled() bool {
	return a.connect.Enabled()
}

// Connect is idempotent. It is a no-op if the transport is turned off.
func (a *Handler) Connect(ctx context.Context) error {
	if !a.Enabled() {
		return nil
	}
	_, err := a.connection(ctx)
	return err
}

// connection returns the current connection, connecting if needed
func (a *Handler) connection(ctx context.Context) (Conn, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.conn != nil {
		return a.conn, nil
	}

	conn, err := a.dialer(ctx, a.connect)
	if err != nil {
		connectsCounter.WithLabelValues("failed").Inc()
		a.logger.Error().Str(neb.FUNC, "Connect").Str("addr", a.connect.Addr).Err(err).Msg("")
		return nil, neb.NewConnectionError(err)
	}
	connectsCounter.WithLabelValues("ok").Inc()
	a.conn = conn
	a.connID = nuid.Next()
	a.session = conn.Session()
	if a.session == "" {
		a.session = uuid.NewString()
	}
	neb.TRANSPORT_CONNECTED.Log(a.logger.Info()).
		Str(neb.CONN_ID, a.connID).
		Str("session", a.session).
		Str("addr", a.connect.Addr).
		Msg("connected")
	return conn, nil
}

// Disconnect is idempotent
func (a *Handler) Disconnect() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.conn == nil {
		return nil
	}
	err := a.conn.Disconnect()
	neb.TRANSPORT_DISCONNECTED.Log(a.logger.Info()).Str(neb.CONN_ID, a.connID).Err(err).Msg("disconnected")
	a.conn = nil
	if err != nil {
		return neb.NewConnectionError(err)
	}
	return nil
}

// drop forgets a connection that failed, so that the next operation reconnects
func (a *Handler) drop(conn Conn, err error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.conn != conn {
		return
	}
	neb.TRANSPORT_RECONNECT.Log(a.logger.Warn()).Str(neb.CONN_ID, a.connID).Err(err).Msg("connection dropped, will reconnect on next use")
	conn.Disconnect()
	a.conn = nil
}

// Connected returns true if the handler holds a connection
func (a *Handler) Connected() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.conn != nil
}

// Session returns the current connection session id, or "" if not connected
func (a *Handler) Session() string {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.conn == nil {
		return ""
	}
	return a.session
}

// CalcReplyID returns a new correlation id : the connection session id plus a unique suffix.
// A ConnectionError is returned if the handler is not connected.
func (a *Handler) CalcReplyID() (string, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.conn == nil {
		return "", neb.NewConnectionError(neb.ErrNotConnected)
	}
	return fmt.Sprintf("%s_%s", a.session, nuid.Next()), nil
}

// Publish encodes the message and sends it to the queue. If the connection was dropped, then it reconnects and
// sends again, once.
// If the transport is turned off, then nothing is sent.
func (a *Handler) Publish(ctx context.Context, queue string, msg *message.Message) (*message.Message, error) {
	if !a.Enabled() {
		return msg, nil
	}
	body, err := message.EncodeBody(msg)
	if err != nil {
		return nil, err
	}
	if err := a.send(ctx, queue, message.EncodeHeaders(msg), body); err != nil {
		return nil, err
	}
	publishedCounter.WithLabelValues(queue).Inc()
	return msg, nil
}

// send replaces a dropped connection once
func (a *Handler) send(ctx context.Context, queue string, headers map[string]string, body []byte) error {
	for retried := false; ; retried = true {
		conn, err := a.connection(ctx)
		if err != nil {
			return err
		}
		err = conn.Send(queue, headers, body)
		if err == nil {
			return nil
		}
		neb.TRANSPORT_PUBLISH_ERR.Log(a.logger.Error()).Str(neb.QUEUE, queue).Bool("retried", retried).Err(err).Msg("")
		a.drop(conn, err)
		if retried {
			return neb.NewConnectionError(err)
		}
	}
}

func isPlaceholder(frame *Frame) bool {
	return bytes.Equal(bytes.TrimSpace(frame.Body), placeholder)
}

func (a *Handler) subscribe(ctx context.Context, queue string) (Subscription, error) {
	conn, err := a.connection(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := conn.Subscribe(queue)
	if err != nil {
		a.drop(conn, err)
		return nil, neb.NewConnectionError(err)
	}
	return sub, nil
}

func (a *Handler) unsubscribe(queue string, sub Subscription) {
	if err := sub.Unsubscribe(); err != nil {
		neb.TRANSPORT_UNSUB_ERR.Log(a.logger.Warn()).Str(neb.QUEUE, queue).Err(err).Msg("")
	}
}

func (a *Handler) ack(queue string, sub Subscription, frame *Frame) error {
	err := sub.Ack(frame)
	if err != nil {
		neb.TRANSPORT_ACK_ERR.Log(a.logger.Error()).Str(neb.QUEUE, queue).Err(err).Msg("")
	}
	return err
}

// Consume subscribes to the queue and passes each message to onMessage until ctx is done.
// Each message is acknowledged after onMessage returns, whether or not it succeeded : handler errors and panics are
// logged and the loop carries on. Placeholders are acknowledged and skipped.
//
// Consume returns nil when ctx is done, and a ConnectionError if the subscription could not be made or was lost.
// If the transport is turned off, it returns nil immediately.
func (a *Handler) Consume(ctx context.Context, queue string, onMessage func(*message.Message) error) error {
	if !a.Enabled() {
		return nil
	}
	sub, err := a.subscribe(ctx, queue)
	if err != nil {
		return err
	}
	defer a.unsubscribe(queue, sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-sub.C():
			if !ok {
				return neb.NewConnectionError(errors.New("subscription closed : " + queue))
			}
			if !isPlaceholder(frame) {
				receivedCounter.WithLabelValues(queue).Inc()
				if err := a.handle(queue, frame, onMessage); err != nil {
					handlerErrorCounter.WithLabelValues(queue).Inc()
					neb.CONSUME_HANDLER_ERR.Log(a.logger.Error()).Str(neb.QUEUE, queue).Err(err).Msg("")
				}
			}
			a.ack(queue, sub, frame)
		}
	}
}

func (a *Handler) handle(queue string, frame *Frame, onMessage func(*message.Message) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			neb.CONSUME_HANDLER_PANIC.Log(a.logger.Error()).Str(neb.QUEUE, queue).Msgf("%v", p)
			err = fmt.Errorf("handler panic : %v", p)
		}
	}()
	return onMessage(message.Decode(frame.Headers, frame.Body, ""))
}

// ListenWithDeadline waits for the message that onMessage accepts, for at most timeout.
//
// A placeholder is published to the queue before subscribing. Messages are examined in delivery order. The first
// message that onMessage accepts is acknowledged and true is returned. Messages that are not accepted are never
// acknowledged, so they stay on the broker for whoever they belong to. If the deadline passes, then a TimeoutError
// is returned.
//
// If the transport is turned off, it returns false immediately.
func (a *Handler) ListenWithDeadline(ctx context.Context, queue string, timeout time.Duration, onMessage func(*message.Message) bool) (bool, error) {
	if !a.Enabled() {
		return false, nil
	}
	if err := a.send(ctx, queue, map[string]string{message.HEADER_CONTENT_TYPE: message.CONTENT_TYPE_TEXT}, placeholder); err != nil {
		return false, err
	}
	sub, err := a.subscribe(ctx, queue)
	if err != nil {
		return false, err
	}
	defer a.unsubscribe(queue, sub)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return false, neb.NewTimeoutError(neb.ErrNoResponse)
		case frame, ok := <-sub.C():
			if !ok {
				return false, neb.NewConnectionError(errors.New("subscription closed : " + queue))
			}
			if isPlaceholder(frame) {
				a.ack(queue, sub, frame)
				continue
			}
			// a message that arrives after the deadline is left for redelivery
			if ctx.Err() != nil {
				return false, neb.NewTimeoutError(neb.ErrNoResponse)
			}
			receivedCounter.WithLabelValues(queue).Inc()
			if a.accept(queue, frame, onMessage) {
				a.ack(queue, sub, frame)
				return true, nil
			}
		}
	}
}

func (a *Handler) accept(queue string, frame *Frame, onMessage func(*message.Message) bool) (accepted bool) {
	defer func() {
		if p := recover(); p != nil {
			neb.CONSUME_HANDLER_PANIC.Log(a.logger.Error()).Str(neb.QUEUE, queue).Msgf("%v", p)
			accepted = false
		}
	}()
	return onMessage(message.Decode(frame.Headers, frame.Body, ""))
}
