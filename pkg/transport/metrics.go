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

package transport

import (
	"github.com/andy-twosticks/nebulous-stomp/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsNamespace is used as the metric namespace for all nebulous metrics
	MetricsNamespace = "nebulous"
	// MetricsSubSystem is used as the metric subsystem for transport related metrics
	MetricsSubSystem = "transport"
)

var (
	// QueueLabels are the variable metric labels for queue related metrics
	QueueLabels = []string{"queue"}

	// ConnectsCounterOpts tracks connection attempts
	ConnectsCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubSystem,
			Name:      "connects",
			Help:      "The number of broker connection attempts",
		},
		Labels: []string{"result"},
	}
	connectsCounter = metrics.GetOrMustRegisterCounterVec(ConnectsCounterOpts)

	// PublishedCounterOpts tracks messages published, excluding placeholders
	PublishedCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubSystem,
			Name:      "published",
			Help:      "The number of messages published",
		},
		Labels: QueueLabels,
	}
	publishedCounter = metrics.GetOrMustRegisterCounterVec(PublishedCounterOpts)

	// ReceivedCounterOpts tracks messages received, excluding placeholders
	ReceivedCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubSystem,
			Name:      "received",
			Help:      "The number of messages received",
		},
		Labels: QueueLabels,
	}
	receivedCounter = metrics.GetOrMustRegisterCounterVec(ReceivedCounterOpts)

	// HandlerErrorCounterOpts tracks consume handler errors and panics
	HandlerErrorCounterOpts = &metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubSystem,
			Name:      "handler_errors",
			Help:      "The number of messages whose handler failed or panicked",
		},
		Labels: QueueLabels,
	}
	handlerErrorCounter = metrics.GetOrMustRegisterCounterVec(HandlerErrorCounterOpts)
)
