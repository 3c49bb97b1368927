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

package cache_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/andy-twosticks/nebulous-stomp/pkg/cache"
	"github.com/andy-twosticks/nebulous-stomp/pkg/cache/cachetest"
	"github.com/andy-twosticks/nebulous-stomp/pkg/config"
	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
	"github.com/stretchr/testify/require"
)

var _ cache.Cache = cachetest.NewMemory()

// checkCache exercises the behaviour every implementation shares
func checkCache(t *testing.T, c cache.Cache) {
	ctx := context.Background()

	// operations fail while disconnected
	require.False(t, c.Connected())
	_, _, err := c.Get(ctx, "k")
	require.True(t, neb.IsConnection(err), "Get : %v", err)
	require.True(t, neb.IsConnection(c.Set(ctx, "k", "v", 0)), "Set")
	_, err = c.Del(ctx, "k")
	require.True(t, neb.IsConnection(err), "Del : %v", err)
	require.NoError(t, c.Quit(), "Quit is a no-op when not connected")

	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Connect(ctx), "Connect is idempotent")
	require.True(t, c.Connected())

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.Set(ctx, "k", `{"verb":"x"}`, time.Minute))
	value, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `{"verb":"x"}`, value)

	require.NoError(t, c.Set(ctx, "k", "v2", 0))
	value, _, _ = c.Get(ctx, "k")
	require.Equal(t, "v2", value, "Set overwrites")

	n, err := c.Del(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = c.Del(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	require.NoError(t, c.Quit())
	require.False(t, c.Connected())
}

func TestRedis(t *testing.T) {
	server := miniredis.RunT(t)
	c, err := cache.New(config.CacheConnect{Addr: server.Addr()})
	require.NoError(t, err)
	require.IsType(t, &cache.Redis{}, c)
	checkCache(t, c)
}

func TestRedis_Expiry(t *testing.T) {
	server := miniredis.RunT(t)
	ctx := context.Background()
	c := cache.NewRedis(config.CacheConnect{Addr: server.Addr()})
	require.NoError(t, c.Connect(ctx))
	defer c.Quit()

	require.NoError(t, c.Set(ctx, "k", "v", 2*time.Second))
	require.Equal(t, 2*time.Second, server.TTL("k"))
	server.FastForward(3 * time.Second)
	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedis_ConnectFailure(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	c := cache.NewRedis(config.CacheConnect{Addr: addr})
	err := c.Connect(context.Background())
	require.True(t, neb.IsConnection(err), "%v", err)
	require.False(t, c.Connected())
}

func TestBolt(t *testing.T) {
	c, err := cache.New(config.CacheConnect{Driver: config.BOLT, Path: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	require.IsType(t, &cache.Bolt{}, c)
	checkCache(t, c)
}

func TestBolt_Expiry(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := cache.NewBolt(config.CacheConnect{Driver: config.BOLT, Path: path, Bucket: "replies"})
	require.NoError(t, err)
	require.NoError(t, c.Connect(ctx))

	require.NoError(t, c.Set(ctx, "short", "v", 50*time.Millisecond))
	require.NoError(t, c.Set(ctx, "forever", "v", 0))
	time.Sleep(100 * time.Millisecond)

	_, found, err := c.Get(ctx, "short")
	require.NoError(t, err)
	require.False(t, found, "expired entries read as missing")
	n, err := c.Del(ctx, "short")
	require.NoError(t, err)
	require.Equal(t, int64(0), n, "expired entries are deleted when read")

	// entries survive reopening the file
	require.NoError(t, c.Quit())
	require.NoError(t, c.Connect(ctx))
	value, found, err := c.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v", value)
	require.NoError(t, c.Quit())
}

func TestBolt_BlankPath(t *testing.T) {
	_, err := cache.NewBolt(config.CacheConnect{Driver: config.BOLT, Path: " "})
	require.Equal(t, cache.ErrFilePathIsBlank, err)
}

func TestMemory(t *testing.T) {
	checkCache(t, cachetest.NewMemory())
}

func TestNew(t *testing.T) {
	c, err := cache.New(config.CacheConnect{})
	require.NoError(t, err)
	require.Nil(t, c, "the cache is off without connect parameters")

	_, err = cache.New(config.CacheConnect{Driver: "memcached", Addr: "localhost:11211"})
	require.Error(t, err)
}
