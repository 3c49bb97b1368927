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

// Package listener implements the server side of the protocol : a consume loop on one queue that hands each request
// to a bounded pool of workers and publishes whatever reply the handler produces.
//
// Overload policy
//
// The pool has a fixed number of workers. When every worker is busy :
//   - Block (the default) holds the consume loop until a worker is free. The loop stops taking messages, so further
//     requests wait on the broker, unacknowledged.
//   - Shed acknowledges and drops the message. It is logged at warn level and counted.
//
// An optional rate limit falls under the same policy : Block waits for a token, Shed drops the message.
package listener

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/andy-twosticks/nebulous-stomp/pkg/config"
	"github.com/andy-twosticks/nebulous-stomp/pkg/message"
	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
	"github.com/andy-twosticks/nebulous-stomp/pkg/transport"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
	"gopkg.in/tomb.v2"
)

type pkgobject struct{}

var logger = neb.NewPackageLogger(pkgobject{})

// DEFAULT_WORKERS is the default worker pool size
const DEFAULT_WORKERS = 8

// errors
var (
	ErrQueueBlank       = errors.New("listener queue must not be blank")
	ErrAlreadyConsuming = errors.New("listener is already consuming")
	ErrQuitting         = errors.New("listener is quitting : message dropped")
)

// HandlerFunc handles one request. A non-nil reply is published to queue. If queue is blank, then the reply goes to
// the request's reply-to queue.
// If the handler fails or panics, then an error reply is sent to the request's reply-to queue, if it has one.
type HandlerFunc func(ctx context.Context, msg *message.Message) (queue string, reply *message.Message, err error)

// OverloadPolicy decides what happens to a message when the listener is saturated
type OverloadPolicy int

// overload policies
const (
	Block OverloadPolicy = iota
	Shed
)

func (a OverloadPolicy) String() string {
	switch a {
	case Block:
		return "Block"
	case Shed:
		return "Shed"
	default:
		return "UNKNOWN"
	}
}

// Listener consumes one queue
type Listener struct {
	queue     string
	transport *transport.Handler
	logger    zerolog.Logger
	workers   int64
	policy    OverloadPolicy
	limiter   *rate.Limiter
	pool      *semaphore.Weighted

	mutex sync.Mutex
	tomb  *tomb.Tomb
	quit  bool
}

// Option configures a Listener
type Option func(*Listener)

// WithTransport replaces the transport handler that is created from the config
func WithTransport(handler *transport.Handler) Option {
	return func(l *Listener) {
		l.transport = handler
	}
}

// WithLogger replaces the package logger
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Listener) {
		l.logger = logger
	}
}

// WithWorkers sets the worker pool size. Values < 1 are ignored.
func WithWorkers(n int) Option {
	return func(l *Listener) {
		if n > 0 {
			l.workers = int64(n)
		}
	}
}

// WithOverloadPolicy sets what happens to messages that arrive while every worker is busy
func WithOverloadPolicy(policy OverloadPolicy) Option {
	return func(l *Listener) {
		l.policy = policy
	}
}

// WithRateLimit limits the rate at which messages are dispatched to workers
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(l *Listener) {
		l.limiter = rate.NewLimiter(limit, burst)
	}
}

// New creates a listener on the queue
func New(cfg *config.Config, queue string, opts ...Option) (*Listener, error) {
	queue = strings.TrimSpace(queue)
	if queue == "" {
		return nil, neb.NewProtocolError(ErrQueueBlank)
	}
	l := &Listener{
		queue:   queue,
		logger:  logger,
		workers: DEFAULT_WORKERS,
		policy:  Block,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With().Str(neb.QUEUE, queue).Logger()
	if l.transport == nil {
		l.transport = transport.NewHandler(cfg, transport.WithLogger(l.logger))
	}
	l.pool = semaphore.NewWeighted(l.workers)
	return l, nil
}

// NewForTarget creates a listener on the named target's send queue, which is where requests to the target arrive.
//
// Targets are always described from the requester's side : the responder consumes SendQueue and replies to
// whatever neb-reply-to names, normally ReceiveQueue. A deployment that described its listener with the queues the
// other way round must swap them in the target definition, else the listener will consume the replies.
func NewForTarget(cfg *config.Config, name string, opts ...Option) (*Listener, error) {
	target, err := cfg.Target(name)
	if err != nil {
		return nil, err
	}
	return New(cfg, target.SendQueue, opts...)
}

// Queue is the queue being consumed
func (a *Listener) Queue() string { return a.queue }

// ConsumeMessages blocks, handing each message on the queue to fn, until Quit is called.
// It returns nil after Quit, and a ConnectionError if the subscription could not be made or was lost.
// If the transport is turned off, then it returns nil immediately.
func (a *Listener) ConsumeMessages(fn HandlerFunc) error {
	if !a.transport.Enabled() {
		return nil
	}
	a.mutex.Lock()
	if a.quit {
		a.mutex.Unlock()
		return nil
	}
	if a.tomb != nil {
		a.mutex.Unlock()
		return ErrAlreadyConsuming
	}
	t, ctx := tomb.WithContext(context.Background())
	a.tomb = t
	a.mutex.Unlock()

	t.Go(func() error {
		return a.transport.Consume(ctx, a.queue, func(msg *message.Message) error {
			return a.dispatch(ctx, t, msg, fn)
		})
	})
	neb.LISTENER_STARTED.Log(a.logger.Info()).
		Int64("workers", a.workers).
		Str("policy", a.policy.String()).
		Msg("")
	err := t.Wait()
	neb.LISTENER_STOPPED.Log(a.logger.Info()).Err(err).Msg("")
	return err
}

// dispatch runs in the consume loop. The message is acknowledged once it returns.
func (a *Listener) dispatch(ctx context.Context, t *tomb.Tomb, msg *message.Message, fn HandlerFunc) error {
	if a.limiter != nil {
		if a.policy == Shed {
			if !a.limiter.Allow() {
				a.shed(msg, "rate limited")
				return nil
			}
		} else if err := a.limiter.Wait(ctx); err != nil {
			return ErrQuitting
		}
	}

	if a.policy == Shed {
		if !a.pool.TryAcquire(1) {
			a.shed(msg, "all workers are busy")
			return nil
		}
	} else if err := a.pool.Acquire(ctx, 1); err != nil {
		return ErrQuitting
	}

	busyGauge.WithLabelValues(a.queue).Inc()
	t.Go(func() error {
		defer a.pool.Release(1)
		defer busyGauge.WithLabelValues(a.queue).Dec()
		a.handle(ctx, msg, fn)
		return nil
	})
	return nil
}

func (a *Listener) shed(msg *message.Message, reason string) {
	handledCounter.WithLabelValues(a.queue, RESULT_SHED).Inc()
	neb.LISTENER_SHED.Log(a.logger.Warn()).
		Str(neb.REPLY_ID, msg.ReplyID()).
		Str(neb.VERB, msg.Verb()).
		Msg(reason)
}

func (a *Listener) handle(ctx context.Context, msg *message.Message, fn HandlerFunc) {
	queue, reply, err := a.call(ctx, msg, fn)
	if err != nil {
		handledCounter.WithLabelValues(a.queue, RESULT_ERROR).Inc()
		neb.CONSUME_HANDLER_ERR.Log(a.logger.Error()).
			Str(neb.REPLY_ID, msg.ReplyID()).
			Str(neb.VERB, msg.Verb()).
			Err(err).
			Msg("")
		if msg.ReplyTo() == "" {
			return
		}
		queue, reply, err = msg.RespondWithError(err)
		if err != nil {
			return
		}
	} else {
		handledCounter.WithLabelValues(a.queue, RESULT_OK).Inc()
	}

	if reply == nil {
		return
	}
	if queue == "" {
		queue = msg.ReplyTo()
	}
	if queue == "" {
		neb.LISTENER_REPLY_ERR.Log(a.logger.Error()).Str(neb.REPLY_ID, msg.ReplyID()).Err(neb.ErrNoReplyTo).Msg("")
		return
	}
	if err := a.Reply(ctx, queue, reply); err != nil {
		neb.LISTENER_REPLY_ERR.Log(a.logger.Error()).Str(neb.QUEUE, queue).Err(err).Msg("")
	}
}

func (a *Listener) call(ctx context.Context, msg *message.Message, fn HandlerFunc) (queue string, reply *message.Message, err error) {
	defer func() {
		if p := recover(); p != nil {
			neb.CONSUME_HANDLER_PANIC.Log(a.logger.Error()).Msgf("%v", p)
			queue, reply, err = "", nil, fmt.Errorf("handler panic : %v", p)
		}
	}()
	return fn(ctx, msg)
}

// Reply publishes the message to the queue
func (a *Listener) Reply(ctx context.Context, queue string, msg *message.Message) error {
	_, err := a.transport.Publish(ctx, queue, msg)
	return err
}

// Quit stops the consume loop, waits for the busy workers to finish, and disconnects
func (a *Listener) Quit() error {
	a.mutex.Lock()
	a.quit = true
	t := a.tomb
	a.mutex.Unlock()
	if t != nil {
		t.Kill(nil)
		t.Wait()
	}
	return a.transport.Disconnect()
}
