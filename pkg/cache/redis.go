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

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/andy-twosticks/nebulous-stomp/pkg/config"
	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
	"github.com/redis/go-redis/v9"
)

// Redis is a Redis backed Cache
type Redis struct {
	opts   *redis.Options
	client *redis.Client
}

// NewRedis returns a disconnected Redis cache
func NewRedis(connect config.CacheConnect) *Redis {
	return &Redis{
		opts: &redis.Options{
			Addr:     connect.Addr,
			Password: connect.Password,
			DB:       connect.DB,
		},
	}
}

// Connect pings the server. It is a no-op if already connected.
func (a *Redis) Connect(ctx context.Context) error {
	if a.client != nil {
		return nil
	}
	client := redis.NewClient(a.opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return neb.NewConnectionError(err)
	}
	a.client = client
	return nil
}

func (a *Redis) Connected() bool {
	return a.client != nil
}

func (a *Redis) Quit() error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}

func (a *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	if a.client == nil {
		return "", false, errNotConnected()
	}
	value, err := a.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, neb.NewConnectionError(err)
	}
	return value, true, nil
}

func (a *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if a.client == nil {
		return errNotConnected()
	}
	if err := a.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return neb.NewConnectionError(err)
	}
	return nil
}

func (a *Redis) Del(ctx context.Context, key string) (int64, error) {
	if a.client == nil {
		return 0, errNotConnected()
	}
	n, err := a.client.Del(ctx, key).Result()
	if err != nil {
		return 0, neb.NewConnectionError(err)
	}
	return n, nil
}
