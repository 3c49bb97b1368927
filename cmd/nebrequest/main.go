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

// nebrequest sends one request to a target and prints the reply as JSON.
//
//	./nebrequest -config nebulous.yaml -target featuretest -verb gimmeprotocol -params 12 -timeout 5s
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/andy-twosticks/nebulous-stomp/pkg/config"
	"github.com/andy-twosticks/nebulous-stomp/pkg/message"
	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
	"github.com/andy-twosticks/nebulous-stomp/pkg/request"
	"github.com/json-iterator/go"
)

type pkgobject struct{}

var logger = neb.NewPackageLogger(pkgobject{})

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	configPath   string
	targetName   string
	verb         string
	params       string
	desc         string
	timeout      time.Duration
	cacheTimeout time.Duration
	noCache      bool
	clearCache   bool
	etcd         string
	etcdPrefix   string
)

func init() {
	flag.StringVar(&configPath, "config", "nebulous.yaml", "YAML config file")
	flag.StringVar(&targetName, "target", "", "target to send the request to")
	flag.StringVar(&verb, "verb", "", "request verb")
	flag.StringVar(&params, "params", "", "request parameters : JSON, or else a plain string")
	flag.StringVar(&desc, "desc", "", "request description")
	flag.DurationVar(&timeout, "timeout", 0, "how long to wait for the reply, 0 = the target's timeout")
	flag.DurationVar(&cacheTimeout, "cache-timeout", 0, "how long to cache the reply, 0 = the configured cache timeout")
	flag.BoolVar(&noCache, "no-cache", false, "always go to the target, even if a cached reply exists")
	flag.BoolVar(&clearCache, "clear-cache", false, "delete the cached reply before sending")
	flag.StringVar(&etcd, "etcd", "", "comma separated etcd endpoints to load targets from")
	flag.StringVar(&etcdPrefix, "etcd-prefix", config.DEFAULT_ETCD_PREFIX, "etcd key prefix for targets")
}

// parseParams returns the JSON value, or the trimmed string if it is not JSON
func parseParams(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var v interface{}
	if err := json.UnmarshalFromString(s, &v); err != nil {
		return s
	}
	return v
}

type output struct {
	ContentType string      `json:"contentType"`
	InReplyTo   string      `json:"inReplyTo,omitempty"`
	Verb        string      `json:"verb,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
	Description string      `json:"description,omitempty"`
	Body        interface{} `json:"body,omitempty"`
}

func toOutput(reply *message.Message) output {
	out := output{
		ContentType: reply.ContentType(),
		InReplyTo:   reply.InReplyTo(),
	}
	switch body := reply.Body().(type) {
	case message.Protocol:
		out.Verb = body.Verb
		out.Parameters = body.Parameters
		out.Description = body.Description
	case message.Opaque:
		out.Body = body.Raw
	}
	return out
}

func main() {
	flag.Parse()
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("config", configPath).Msg("failed to load config")
	}
	if etcd != "" {
		if err := config.LoadFromEtcd(ctx, cfg, strings.Split(etcd, ","), etcdPrefix); err != nil {
			logger.Fatal().Err(err).Str("etcd", etcd).Msg("failed to load targets")
		}
	}

	r, err := request.NewForTarget(cfg, targetName, message.NewProtocol(verb, parseParams(params), desc))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create request")
	}
	if clearCache {
		if err := r.ClearCache(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to clear the cache")
		}
	}

	var reply *message.Message
	if noCache {
		reply, err = r.SendNoCache(ctx, timeout)
	} else {
		reply, err = r.Send(ctx, timeout, cacheTimeout)
	}
	switch {
	case neb.IsTimeout(err):
		fmt.Fprintf(os.Stderr, "no reply from %s within %v\n", targetName, r.MessageTimeout())
		os.Exit(2)
	case err != nil:
		logger.Fatal().Err(err).Msg("request failed")
	case reply == nil:
		fmt.Fprintln(os.Stderr, "the transport is turned off")
		return
	}

	text, err := json.MarshalIndent(toOutput(reply), "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("")
	}
	fmt.Println(string(text))
}
