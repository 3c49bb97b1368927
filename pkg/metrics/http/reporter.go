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

// Package http exposes the metrics registry over HTTP for prometheus to scrape.
package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/andy-twosticks/nebulous-stomp/pkg/metrics"
	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type pkgobject struct{}

var logger = neb.NewPackageLogger(pkgobject{})

// METRICS_PATH is the endpoint the metrics are served on
const METRICS_PATH = "/metrics"

// Reporter reports prometheus metrics via HTTP
type Reporter struct {
	// Addr is the listen address, e.g. ":9090"
	Addr string

	mutex      sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// Start starts serving the metrics. It returns once the listener is bound.
func (a *Reporter) Start() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.httpServer != nil {
		return nil
	}
	l, err := net.Listen("tcp", a.Addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle(METRICS_PATH, promhttp.HandlerFor(
		metrics.Registry,
		promhttp.HandlerOpts{
			ErrorLog:      a,
			ErrorHandling: promhttp.ContinueOnError,
		},
	))
	a.listener = l
	a.httpServer = &http.Server{Handler: mux}
	go func(server *http.Server) {
		if err := server.Serve(l); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics reporter stopped")
		}
	}(a.httpServer)
	logger.Info().Str("addr", l.Addr().String()).Msg("metrics reporter started")
	return nil
}

// ListenAddr returns the bound address, or "" if the reporter is not running
func (a *Reporter) ListenAddr() string {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Shutdown stops the HTTP server, waiting up to 30 seconds for in-flight scrapes
func (a *Reporter) Shutdown() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.httpServer == nil {
		return
	}
	shutdownContext, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownContext); err != nil {
		logger.Error().Err(err).Msg("")
	}
	a.httpServer = nil
	a.listener = nil
}

// Println implements promhttp.Logger interface.
// It is used to log any errors reported by the prometheus http handler
func (a *Reporter) Println(v ...interface{}) {
	logger.Error().Msg(fmt.Sprint(v...))
}
