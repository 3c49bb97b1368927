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

// Package request implements the client side of the protocol : one request is published to a target, and the caller
// blocks until the reply that carries the request's correlation id arrives, or the deadline passes.
//
// Replies can be cached. Two requests with the same verb, parameters and description are interchangeable, so the
// cache key is the request's protocol JSON.
package request

import (
	"context"
	"sync"
	"time"

	"github.com/andy-twosticks/nebulous-stomp/pkg/cache"
	"github.com/andy-twosticks/nebulous-stomp/pkg/config"
	"github.com/andy-twosticks/nebulous-stomp/pkg/message"
	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
	"github.com/andy-twosticks/nebulous-stomp/pkg/transport"
	"github.com/rs/zerolog"
)

type pkgobject struct{}

var logger = neb.NewPackageLogger(pkgobject{})

// State is where a request is in its life cycle
type State int

// request states
const (
	Created State = iota
	Connected
	Sent
	Answered
	TimedOut
)

func (a State) String() string {
	switch a {
	case Created:
		return "Created"
	case Connected:
		return "Connected"
	case Sent:
		return "Sent"
	case Answered:
		return "Answered"
	case TimedOut:
		return "TimedOut"
	default:
		return "UNKNOWN"
	}
}

// Request is one outbound request to a target.
// A Request owns its transport connection and its cache connection : it is not meant to be shared between goroutines.
type Request struct {
	cfg       *config.Config
	target    config.Target
	msg       *message.Message
	transport *transport.Handler
	cache     cache.Cache
	cacheSet  bool
	logger    zerolog.Logger

	mutex sync.Mutex
	state State
}

// Option configures a Request
type Option func(*Request)

// WithTransport replaces the transport handler that is created from the config
func WithTransport(handler *transport.Handler) Option {
	return func(r *Request) {
		r.transport = handler
	}
}

// WithCache replaces the cache that is created from the config. A nil cache turns caching off.
func WithCache(c cache.Cache) Option {
	return func(r *Request) {
		r.cache = c
		r.cacheSet = true
	}
}

// WithLogger replaces the package logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Request) {
		r.logger = logger
	}
}

// New creates a request for the target.
//
// The message must be protocol bearing. If it has no reply-to queue, then the target's receive queue is used.
// If the transport is turned on, then the request connects and the message is assigned its correlation id.
func New(cfg *config.Config, target config.Target, msg *message.Message, opts ...Option) (*Request, error) {
	if msg == nil || !msg.IsProtocol() {
		return nil, neb.NewProtocolError(neb.ErrNotProtocol)
	}
	target = target.TrimSpace()
	if err := target.Validate(); err != nil {
		return nil, neb.NewProtocolError(err)
	}

	r := &Request{
		cfg:    cfg,
		target: target,
		logger: logger,
		state:  Created,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str(neb.TARGET, target.Name).Logger()
	if r.transport == nil {
		r.transport = transport.NewHandler(cfg, transport.WithLogger(r.logger))
	}
	if !r.cacheSet {
		c, err := cache.New(cfg.CacheConnect)
		if err != nil {
			return nil, err
		}
		r.cache = c
	}

	if msg.ReplyTo() == "" {
		msg = msg.Copy(message.WithReplyTo(target.ReceiveQueue))
	} else {
		msg = msg.Copy()
	}
	r.msg = msg

	if r.transport.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), r.MessageTimeout())
		defer cancel()
		if err := r.transport.Connect(ctx); err != nil {
			return nil, err
		}
		replyID, err := r.transport.CalcReplyID()
		if err != nil {
			return nil, err
		}
		r.msg.SetReplyID(replyID)
		r.setState(Connected)
	}
	return r, nil
}

// NewForTarget looks up the target by name. An unknown name is a ProtocolError.
func NewForTarget(cfg *config.Config, name string, msg *message.Message, opts ...Option) (*Request, error) {
	target, err := cfg.Target(name)
	if err != nil {
		return nil, err
	}
	return New(cfg, target, msg, opts...)
}

// Message is the outbound message, with its reply-to and correlation id
func (a *Request) Message() *message.Message { return a.msg }

// Target is the target the request is sent to
func (a *Request) Target() config.Target { return a.target }

// State returns the current state
func (a *Request) State() State {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.state
}

func (a *Request) setState(state State) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.state = state
}

// MessageTimeout is the target's timeout, else the configured message timeout, else 10 seconds
func (a *Request) MessageTimeout() time.Duration {
	if timeout := a.target.Timeout(); timeout > 0 {
		return timeout
	}
	return a.cfg.MessageTimeoutDuration()
}

// CacheTimeout is the configured cache timeout, else 120 seconds
func (a *Request) CacheTimeout() time.Duration {
	return a.cfg.CacheTimeoutDuration()
}

// SendNoCache publishes the request to the target's send queue and waits for the reply on the target's receive queue.
// Only the reply whose in-reply-to matches the request's correlation id is accepted : other replies on the queue are
// left for the requests they belong to.
//
// A timeout <= 0 means MessageTimeout(). The connection is closed on return, whatever the outcome.
// A TimeoutError is returned if no reply arrives in time. If the transport is turned off, then nil is returned.
func (a *Request) SendNoCache(ctx context.Context, timeout time.Duration) (*message.Message, error) {
	const FUNC = "SendNoCache"
	if !a.transport.Enabled() {
		return nil, nil
	}
	if timeout <= 0 {
		timeout = a.MessageTimeout()
	}
	defer a.disconnect(FUNC)

	// the correlation id assigned at construction is kept across reconnects
	if err := a.transport.Connect(ctx); err != nil {
		requestsCounter.WithLabelValues(a.target.Name, OUTCOME_FAILED).Inc()
		return nil, err
	}
	if a.msg.ReplyID() == "" {
		replyID, err := a.transport.CalcReplyID()
		if err != nil {
			return nil, err
		}
		a.msg.SetReplyID(replyID)
	}
	a.setState(Connected)

	start := time.Now()
	if _, err := a.transport.Publish(ctx, a.target.SendQueue, a.msg); err != nil {
		requestsCounter.WithLabelValues(a.target.Name, OUTCOME_FAILED).Inc()
		return nil, err
	}
	a.setState(Sent)
	replyID := a.msg.ReplyID()
	neb.REQUEST_SENT.Log(a.logger.Debug()).
		Str(neb.QUEUE, a.target.SendQueue).
		Str(neb.REPLY_ID, replyID).
		Str(neb.VERB, a.msg.Verb()).
		Msg("")

	var reply *message.Message
	_, err := a.transport.ListenWithDeadline(ctx, a.target.ReceiveQueue, timeout, func(m *message.Message) bool {
		if m.InReplyTo() != replyID {
			return false
		}
		reply = m
		return true
	})
	latencyHistogram.WithLabelValues(a.target.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		if neb.IsTimeout(err) {
			a.setState(TimedOut)
			requestsCounter.WithLabelValues(a.target.Name, OUTCOME_TIMEOUT).Inc()
			neb.REQUEST_TIMED_OUT.Log(a.logger.Warn()).
				Str(neb.QUEUE, a.target.ReceiveQueue).
				Str(neb.REPLY_ID, replyID).
				Dur("timeout", timeout).
				Msg("")
		} else {
			requestsCounter.WithLabelValues(a.target.Name, OUTCOME_FAILED).Inc()
		}
		return nil, err
	}
	a.setState(Answered)
	requestsCounter.WithLabelValues(a.target.Name, OUTCOME_ANSWERED).Inc()
	neb.REQUEST_ANSWERED.Log(a.logger.Debug()).
		Str(neb.REPLY_ID, replyID).
		Object("reply", reply).
		Msg("")
	return reply, nil
}

// Send answers the request from the cache if it can, else calls SendNoCache and caches the reply for cacheTimeout.
// A cacheTimeout <= 0 means CacheTimeout(). If caching is turned off, then Send is SendNoCache.
//
// The cache is connected when needed and closed on return, as is the transport. A malformed cache entry is a
// ProtocolError. If the reply cannot be cached, then the error is logged and the reply is still returned.
func (a *Request) Send(ctx context.Context, timeout, cacheTimeout time.Duration) (*message.Message, error) {
	const FUNC = "Send"
	if a.cache == nil {
		return a.SendNoCache(ctx, timeout)
	}
	if cacheTimeout <= 0 {
		cacheTimeout = a.CacheTimeout()
	}
	key, err := a.msg.ProtocolJSON()
	if err != nil {
		a.disconnect(FUNC)
		return nil, err
	}
	if err := a.connectCache(ctx); err != nil {
		a.disconnect(FUNC)
		return nil, err
	}
	defer a.quitCache()

	cached, hit, err := a.cache.Get(ctx, key)
	if err != nil {
		a.disconnect(FUNC)
		return nil, err
	}
	if hit {
		a.disconnect(FUNC)
		reply, err := message.FromCache(cached)
		if err != nil {
			return nil, err
		}
		a.setState(Answered)
		requestsCounter.WithLabelValues(a.target.Name, OUTCOME_CACHED).Inc()
		neb.REQUEST_CACHE_HIT.Log(a.logger.Debug()).Str(neb.VERB, a.msg.Verb()).Msg("")
		return reply, nil
	}

	reply, err := a.SendNoCache(ctx, timeout)
	if err != nil || reply == nil {
		return reply, err
	}
	// a reply that could not be cached is still a reply
	record, err := message.ToCache(reply)
	if err == nil {
		err = a.cache.Set(ctx, key, record, cacheTimeout)
	}
	if err != nil {
		a.logger.Error().Str(neb.FUNC, FUNC).Err(err).Msg("reply could not be cached")
	}
	return reply, nil
}

// ClearCache deletes the cached reply to this request. It is a no-op if caching is turned off.
func (a *Request) ClearCache(ctx context.Context) error {
	if a.cache == nil {
		return nil
	}
	key, err := a.msg.ProtocolJSON()
	if err != nil {
		return err
	}
	if !a.cache.Connected() {
		if err := a.connectCache(ctx); err != nil {
			return err
		}
		defer a.quitCache()
	}
	_, err = a.cache.Del(ctx, key)
	return err
}

func (a *Request) disconnect(fn string) {
	if err := a.transport.Disconnect(); err != nil {
		a.logger.Warn().Str(neb.FUNC, fn).Err(err).Msg("")
	}
}

func (a *Request) connectCache(ctx context.Context) error {
	if a.cache.Connected() {
		return nil
	}
	return a.cache.Connect(ctx)
}

func (a *Request) quitCache() {
	if err := a.cache.Quit(); err != nil {
		neb.CACHE_QUIT_ERR.Log(a.logger.Warn()).Err(err).Msg("")
	}
}
