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

package listener

import (
	"github.com/andy-twosticks/nebulous-stomp/pkg/metrics"
	"github.com/andy-twosticks/nebulous-stomp/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSubSystem is used as the metric subsystem for listener related metrics
const MetricsSubSystem = "listener"

// handled message results
const (
	RESULT_OK    = "ok"
	RESULT_ERROR = "error"
	RESULT_SHED  = "shed"
)

var (
	// HandledCounterOpts counts messages by result
	HandledCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: transport.MetricsNamespace,
			Subsystem: MetricsSubSystem,
			Name:      "handled",
			Help:      "The number of messages handled, by result",
		},
		Labels: []string{"queue", "result"},
	}
	handledCounter = metrics.GetOrMustRegisterCounterVec(HandledCounterOpts)

	// BusyGaugeOpts tracks the number of busy workers
	BusyGaugeOpts = &metrics.GaugeVecOpts{
		GaugeOpts: &prometheus.GaugeOpts{
			Namespace: transport.MetricsNamespace,
			Subsystem: MetricsSubSystem,
			Name:      "busy_workers",
			Help:      "The number of workers handling a message",
		},
		Labels: []string{"queue"},
	}
	busyGauge = metrics.GetOrMustRegisterGaugeVec(BusyGaugeOpts)
)
