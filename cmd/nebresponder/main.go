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

// nebresponder is a demo responder. It answers the gimme verbs on a target's send queue.
//
//	./nebresponder -config nebulous.yaml -target featuretest -workers 4 -metrics-addr :9090
//
// Targets can also be loaded from etcd :
//
//	./nebresponder -config nebulous.yaml -target featuretest -etcd localhost:2379
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/andy-twosticks/nebulous-stomp/pkg/config"
	"github.com/andy-twosticks/nebulous-stomp/pkg/listener"
	metricshttp "github.com/andy-twosticks/nebulous-stomp/pkg/metrics/http"
	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
	"golang.org/x/time/rate"
)

type pkgobject struct{}

var logger = neb.NewPackageLogger(pkgobject{})

var (
	configPath  string
	targetName  string
	queue       string
	workers     int
	shed        bool
	rateLimit   float64
	metricsAddr string
	etcd        string
	etcdPrefix  string
)

func init() {
	flag.StringVar(&configPath, "config", "nebulous.yaml", "YAML config file")
	flag.StringVar(&targetName, "target", "", "target to answer requests for")
	flag.StringVar(&queue, "queue", "", "queue to consume, instead of a target's send queue")
	flag.IntVar(&workers, "workers", listener.DEFAULT_WORKERS, "worker pool size")
	flag.BoolVar(&shed, "shed", false, "drop requests when all workers are busy, instead of holding them on the broker")
	flag.Float64Var(&rateLimit, "rate", 0, "max requests per second, 0 = unlimited")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")
	flag.StringVar(&etcd, "etcd", "", "comma separated etcd endpoints to load targets from")
	flag.StringVar(&etcdPrefix, "etcd-prefix", config.DEFAULT_ETCD_PREFIX, "etcd key prefix for targets")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("config", configPath).Msg("failed to load config")
	}
	if etcd != "" {
		if err := config.LoadFromEtcd(context.Background(), cfg, strings.Split(etcd, ","), etcdPrefix); err != nil {
			logger.Fatal().Err(err).Str("etcd", etcd).Msg("failed to load targets")
		}
	}

	opts := []listener.Option{listener.WithWorkers(workers)}
	if shed {
		opts = append(opts, listener.WithOverloadPolicy(listener.Shed))
	}
	if rateLimit > 0 {
		opts = append(opts, listener.WithRateLimit(rate.Limit(rateLimit), workers))
	}
	var l *listener.Listener
	if queue != "" {
		l, err = listener.New(cfg, queue, opts...)
	} else {
		l, err = listener.NewForTarget(cfg, targetName, opts...)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create listener")
	}

	if metricsAddr != "" {
		reporter := &metricshttp.Reporter{Addr: metricsAddr}
		if err := reporter.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start metrics reporter")
		}
		defer reporter.Shutdown()
	}

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
		<-sigs
		l.Quit()
	}()

	if err := l.ConsumeMessages(Gimme); err != nil {
		logger.Error().Err(err).Msg("listener stopped")
		l.Quit()
		os.Exit(1)
	}
}
