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

// Package metrics keeps the prometheus collectors used by the nebulous packages in one registry.
//
// Collectors are registered once, by fully qualified name. Asking again with the same opts returns the collector that
// is already registered, so packages can declare their collectors as package variables without caring about init order.
package metrics

import (
	"github.com/andy-twosticks/nebulous-stomp/pkg/neb"
	"github.com/prometheus/client_golang/prometheus"
)

type pkgobject struct{}

var logger = neb.NewPackageLogger(pkgobject{})

// NAMESPACE is applied to metrics whose opts leave the namespace blank
const NAMESPACE = "nebulous"

// CounterVecOpts are the opts for a CounterVec
type CounterVecOpts struct {
	*prometheus.CounterOpts
	Labels []string
}

// GaugeVecOpts are the opts for a GaugeVec
type GaugeVecOpts struct {
	*prometheus.GaugeOpts
	Labels []string
}

// HistogramVecOpts are the opts for a HistogramVec
type HistogramVecOpts struct {
	*prometheus.HistogramOpts
	Labels []string
}

// GetOrMustRegisterCounterVec returns the CounterVec registered under the opts' name, registering it if needed.
// It panics if the name is taken by different opts or by another kind of metric.
func GetOrMustRegisterCounterVec(opts *CounterVecOpts) *prometheus.CounterVec {
	counterOpts := *opts.CounterOpts
	counterOpts.Namespace = namespace(counterOpts.Namespace)
	desc := describe("counter", prometheus.Opts(counterOpts), opts.Labels, nil)
	return getOrRegister(desc, func() prometheus.Collector {
		return prometheus.NewCounterVec(counterOpts, opts.Labels)
	}).(*prometheus.CounterVec)
}

// GetOrMustRegisterGaugeVec returns the GaugeVec registered under the opts' name, registering it if needed.
// It panics if the name is taken by different opts or by another kind of metric.
func GetOrMustRegisterGaugeVec(opts *GaugeVecOpts) *prometheus.GaugeVec {
	gaugeOpts := *opts.GaugeOpts
	gaugeOpts.Namespace = namespace(gaugeOpts.Namespace)
	desc := describe("gauge", prometheus.Opts(gaugeOpts), opts.Labels, nil)
	return getOrRegister(desc, func() prometheus.Collector {
		return prometheus.NewGaugeVec(gaugeOpts, opts.Labels)
	}).(*prometheus.GaugeVec)
}

// GetOrMustRegisterHistogramVec returns the HistogramVec registered under the opts' name, registering it if needed.
// It panics if the name is taken by different opts or by another kind of metric.
func GetOrMustRegisterHistogramVec(opts *HistogramVecOpts) *prometheus.HistogramVec {
	histogramOpts := *opts.HistogramOpts
	histogramOpts.Namespace = namespace(histogramOpts.Namespace)
	common := prometheus.Opts{
		Namespace:   histogramOpts.Namespace,
		Subsystem:   histogramOpts.Subsystem,
		Name:        histogramOpts.Name,
		Help:        histogramOpts.Help,
		ConstLabels: histogramOpts.ConstLabels,
	}
	buckets := histogramOpts.Buckets
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	desc := describe("histogram", common, opts.Labels, buckets)
	return getOrRegister(desc, func() prometheus.Collector {
		return prometheus.NewHistogramVec(histogramOpts, opts.Labels)
	}).(*prometheus.HistogramVec)
}

func namespace(ns string) string {
	if ns == "" {
		return NAMESPACE
	}
	return ns
}
