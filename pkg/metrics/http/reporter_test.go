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

package http_test

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/andy-twosticks/nebulous-stomp/pkg/metrics"
	metricshttp "github.com/andy-twosticks/nebulous-stomp/pkg/metrics/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestReporter(t *testing.T) {
	defer metrics.ResetRegistry()
	metrics.GetOrMustRegisterCounterVec(&metrics.CounterVecOpts{
		CounterOpts: &prometheus.CounterOpts{
			Namespace: "nebulous",
			Name:      "reporter_test",
			Help:      "reporter test",
		},
		Labels: []string{"x"},
	}).WithLabelValues("y").Inc()

	reporter := &metricshttp.Reporter{Addr: "127.0.0.1:0"}
	require.NoError(t, reporter.Start())
	defer reporter.Shutdown()

	resp, err := http.Get("http://" + reporter.ListenAddr() + metricshttp.METRICS_PATH)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `nebulous_reporter_test{x="y"} 1`), string(body))

	reporter.Shutdown()
	require.Equal(t, "", reporter.ListenAddr())
}
