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

package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/andy-twosticks/nebulous-stomp/pkg/config"
	"github.com/nats-io/nuid"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/client/v3"
)

// requires an etcd server listening on localhost:2379
func TestEtcdTargets(t *testing.T) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Status(ctx, "localhost:2379"); err != nil {
		t.Skipf("etcd is not available : %v", err)
	}

	store := config.NewEtcdTargets(client, "/nebulous-test/"+nuid.Next())
	target := config.Target{Name: "accounts", SendQueue: "/queue/a.in", ReceiveQueue: "/queue/a.out", MessageTimeout: 3}
	require.NoError(t, store.Put(ctx, target))
	defer store.Delete(context.Background(), target.Name)

	require.Error(t, store.Put(ctx, config.Target{Name: "bad"}), "invalid targets must not be stored")

	targets, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []config.Target{target}, targets)

	cfg := config.Default()
	require.NoError(t, store.LoadInto(ctx, cfg))
	loaded, err := cfg.Target("accounts")
	require.NoError(t, err)
	require.Equal(t, target, loaded)
}
