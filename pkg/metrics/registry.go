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

package metrics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// ErrMetricAlreadyRegisteredWithDifferentOpts indicates a metric opts collision
	ErrMetricAlreadyRegisteredWithDifferentOpts = errors.New("metric already registered with different opts")
	// ErrMetricNameUsedByDifferentMetricType indicates the metric name collision between different metric types
	ErrMetricNameUsedByDifferentMetricType = errors.New("metric name is used by a different metric type")
)

var (
	mutex sync.Mutex

	// Registry is what the metrics reporter serves. It includes the go runtime and process collectors.
	Registry = newRegistry()

	collectorsByName = map[string]registration{}
)

// description identifies a metric : two registrations under the same name must have equal descriptions
type description struct {
	name        string
	kind        string
	help        string
	constLabels string
	labels      string
	buckets     string
}

func (a description) String() string {
	return fmt.Sprintf("%s %s help=%q const=[%s] labels=[%s] buckets=[%s]", a.kind, a.name, a.help, a.constLabels, a.labels, a.buckets)
}

type registration struct {
	description
	collector prometheus.Collector
}

func describe(kind string, opts prometheus.Opts, labels []string, buckets []float64) description {
	constLabels := make([]string, 0, len(opts.ConstLabels))
	for k, v := range opts.ConstLabels {
		constLabels = append(constLabels, k+"="+v)
	}
	sort.Strings(constLabels)
	labelNames := append([]string(nil), labels...)
	sort.Strings(labelNames)
	desc := description{
		name:        prometheus.BuildFQName(opts.Namespace, opts.Subsystem, opts.Name),
		kind:        kind,
		help:        opts.Help,
		constLabels: strings.Join(constLabels, ","),
		labels:      strings.Join(labelNames, ","),
	}
	if buckets != nil {
		desc.buckets = fmt.Sprint(buckets)
	}
	return desc
}

func getOrRegister(desc description, newCollector func() prometheus.Collector) prometheus.Collector {
	mutex.Lock()
	defer mutex.Unlock()
	if registered, exists := collectorsByName[desc.name]; exists {
		if registered.description == desc {
			return registered.collector
		}
		err := ErrMetricNameUsedByDifferentMetricType
		if registered.kind == desc.kind {
			err = ErrMetricAlreadyRegisteredWithDifferentOpts
		}
		logger.Panic().Str(neb.FUNC, "getOrRegister").
			Str("registered", registered.String()).
			Str("dup", desc.String()).
			Err(err).
			Msg("")
	}
	collector := newCollector()
	Registry.MustRegister(collector)
	collectorsByName[desc.name] = registration{desc, collector}
	return collector
}

func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// ResetRegistry drops every registered collector. It is meant for tests.
func ResetRegistry() {
	mutex.Lock()
	defer mutex.Unlock()
	Registry = newRegistry()
	collectorsByName = map[string]registration{}
}
