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

package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/json-iterator/go"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DEFAULT_ETCD_PREFIX is the key prefix that targets are stored under
const DEFAULT_ETCD_PREFIX = "/nebulous/targets/"

// ETCD_DIAL_TIMEOUT bounds the initial connection to etcd
const ETCD_DIAL_TIMEOUT = 5 * time.Second

// EtcdTargets stores targets in etcd as JSON values keyed by {prefix}{name}.
// It lets a fleet of requesters and responders share one target registry.
type EtcdTargets struct {
	client *clientv3.Client
	prefix string
}

// NewEtcdTargets returns an etcd backed target store. A blank prefix defaults to DEFAULT_ETCD_PREFIX.
func NewEtcdTargets(client *clientv3.Client, prefix string) *EtcdTargets {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DEFAULT_ETCD_PREFIX
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &EtcdTargets{client: client, prefix: prefix}
}

// Put validates and stores the target
func (a *EtcdTargets) Put(ctx context.Context, target Target) error {
	target = target.TrimSpace()
	if err := target.Validate(); err != nil {
		return err
	}
	value, err := json.Marshal(target)
	if err != nil {
		return err
	}
	_, err = a.client.Put(ctx, a.prefix+target.Name, string(value))
	return err
}

// Delete removes the target
func (a *EtcdTargets) Delete(ctx context.Context, name string) error {
	_, err := a.client.Delete(ctx, a.prefix+strings.TrimSpace(name))
	return err
}

// Load returns all targets stored under the prefix
func (a *EtcdTargets) Load(ctx context.Context) ([]Target, error) {
	resp, err := a.client.Get(ctx, a.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	targets := make([]Target, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var target Target
		if err := json.Unmarshal(kv.Value, &target); err != nil {
			return nil, fmt.Errorf("invalid target at %q : %v", string(kv.Key), err)
		}
		targets = append(targets, target)
	}
	return targets, nil
}

// LoadInto registers every stored target with the config
func (a *EtcdTargets) LoadInto(ctx context.Context, cfg *Config) error {
	targets, err := a.Load(ctx)
	if err != nil {
		return err
	}
	for _, target := range targets {
		if err := cfg.AddTarget(target); err != nil {
			return err
		}
	}
	return nil
}

// LoadFromEtcd connects to etcd and registers every target stored under the prefix with the config
func LoadFromEtcd(ctx context.Context, cfg *Config, endpoints []string, prefix string) error {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: ETCD_DIAL_TIMEOUT,
		Context:     ctx,
	})
	if err != nil {
		return err
	}
	defer client.Close()
	return NewEtcdTargets(client, prefix).LoadInto(ctx, cfg)
}
