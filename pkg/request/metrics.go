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

package request

import (
	"github.com/andy-twosticks/nebulous-stomp/pkg/metrics"
	"github.com/andy-twosticks/nebulous-stomp/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSubSystem is used as the metric subsystem for request related metrics
const MetricsSubSystem = "request"

// request outcomes
const (
	OUTCOME_ANSWERED = "answered"
	OUTCOME_CACHED   = "cached"
	OUTCOME_TIMEOUT  = "timeout"
	OUTCOME_FAILED   = "failed"
)

var (
	// RequestsCounterOpts counts requests by target and outcome
	RequestsCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: transport.MetricsNamespace,
			Subsystem: MetricsSubSystem,
			Name:      "total",
			Help:      "The number of requests by outcome",
		},
		Labels: []string{"target", "outcome"},
	}
	requestsCounter = metrics.GetOrMustRegisterCounterVec(RequestsCounterOpts)

	// LatencyHistogramOpts tracks the time from publish to reply or timeout
	LatencyHistogramOpts = &metrics.HistogramVecOpts{
		HistogramOpts: &prometheus.HistogramOpts{
			Namespace: transport.MetricsNamespace,
			Subsystem: MetricsSubSystem,
			Name:      "latency_seconds",
			Help:      "The time between publishing a request and receiving its reply",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		Labels: []string{"target"},
	}
	latencyHistogram = metrics.GetOrMustRegisterHistogramVec(LatencyHistogramOpts)
)
