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
	dto "github.com/prometheus/client_model/go"
)

// CounterValue gathers the registry and returns the counter's current value, or 0 if there is no such counter.
// Label values are given in label name order, which is how prometheus sorts them.
func CounterValue(name string, labelValues ...string) float64 {
	mutex.Lock()
	registry := Registry
	mutex.Unlock()
	families, err := registry.Gather()
	if err != nil {
		return 0
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if hasLabelValues(metric, labelValues) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabelValues(metric *dto.Metric, values []string) bool {
	pairs := metric.GetLabel()
	if len(pairs) != len(values) {
		return false
	}
	for i, pair := range pairs {
		if pair.GetValue() != values[i] {
			return false
		}
	}
	return true
}
