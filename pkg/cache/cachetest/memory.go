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

// Package cachetest provides an in-memory Cache for tests
package cachetest

import (
	"context"
	"sync"
	"time"

	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
)

type entry struct {
	value   string
	expires time.Time
}

// Memory is an in-memory Cache that counts the calls made to it
type Memory struct {
	mutex      sync.Mutex
	entries    map[string]entry
	connected  bool
	connectErr error
	getErr     error
	setErr     error

	Connects int
	Quits    int
	Gets     int
	Sets     int
	Dels     int
	// LastTTL is the ttl passed to the last Set
	LastTTL time.Duration
}

// NewMemory returns an empty, disconnected cache
func NewMemory() *Memory {
	return &Memory{entries: map[string]entry{}}
}

// FailConnect makes Connect fail with err. A nil err allows connections again.
func (a *Memory) FailConnect(err error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.connectErr = err
}

// FailGet makes Get fail with err. A nil err allows reads again.
func (a *Memory) FailGet(err error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.getErr = err
}

// FailSet makes Set fail with err. A nil err allows writes again.
func (a *Memory) FailSet(err error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.setErr = err
}

// Keys returns the number of unexpired entries
func (a *Memory) Keys() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	n := 0
	now := time.Now()
	for _, e := range a.entries {
		if e.expires.IsZero() || now.Before(e.expires) {
			n++
		}
	}
	return n
}

func (a *Memory) Connect(ctx context.Context) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.connectErr != nil {
		return neb.NewConnectionError(a.connectErr)
	}
	a.Connects++
	a.connected = true
	return nil
}

func (a *Memory) Connected() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.connected
}

func (a *Memory) Quit() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.connected {
		a.Quits++
	}
	a.connected = false
	return nil
}

func (a *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if !a.connected {
		return "", false, neb.NewConnectionError(neb.ErrNotConnected)
	}
	a.Gets++
	if a.getErr != nil {
		return "", false, neb.NewConnectionError(a.getErr)
	}
	e, exists := a.entries[key]
	if !exists {
		return "", false, nil
	}
	if !e.expires.IsZero() && !time.Now().Before(e.expires) {
		delete(a.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (a *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if !a.connected {
		return neb.NewConnectionError(neb.ErrNotConnected)
	}
	a.Sets++
	if a.setErr != nil {
		return neb.NewConnectionError(a.setErr)
	}
	a.LastTTL = ttl
	e := entry{value: value}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	a.entries[key] = e
	return nil
}

func (a *Memory) Del(ctx context.Context, key string) (int64, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if !a.connected {
		return 0, neb.NewConnectionError(neb.ErrNotConnected)
	}
	a.Dels++
	if _, exists := a.entries[key]; !exists {
		return 0, nil
	}
	delete(a.entries, key)
	return 1, nil
}
