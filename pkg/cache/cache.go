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

// Package cache provides the read-through key/value store used to answer repeat requests.
// Keys and values are opaque strings : the protocol fingerprint and the serialized cache record.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/andy-twosticks/nebulous-stomp/pkg/config"
	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
)

// Cache is a key/value store with expiry.
// Every operation fails with a ConnectionError unless the cache is connected.
// A Cache is not safe for concurrent use : it is owned by one request at a time.
type Cache interface {
	Connect(ctx context.Context) error

	Connected() bool

	// Quit closes the connection. It is a no-op if not connected.
	Quit() error

	// Get returns false if the key does not exist or has expired
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores the value. A ttl of 0 means the value does not expire.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Del returns the number of keys that were deleted
	Del(ctx context.Context, key string) (int64, error)
}

// New returns the cache for the connect parameters, or nil if the cache is turned off
func New(connect config.CacheConnect) (Cache, error) {
	if !connect.Enabled() {
		return nil, nil
	}
	switch connect.DriverName() {
	case config.REDIS:
		return NewRedis(connect), nil
	case config.BOLT:
		return NewBolt(connect)
	default:
		return nil, fmt.Errorf("unknown cache driver : %q", connect.Driver)
	}
}

func errNotConnected() error {
	return neb.NewConnectionError(neb.ErrNotConnected)
}
