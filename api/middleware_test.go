// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/metavault/api/utils"
	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/log"
	"github.com/vechain/metavault/metrics"
)

func init() {
	metrics.InitializePrometheusMetrics()
}

func get(t *testing.T, url string) ([]byte, int) {
	res, err := http.Get(url) //#nosec G107
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return body, res.StatusCode
}

func TestMetricsHandler(t *testing.T) {
	router := mux.NewRouter()
	router.Path("/ok").Name("test_ok").HandlerFunc(utils.WrapHandlerFunc(func(w http.ResponseWriter, _ *http.Request) error {
		return utils.WriteJSON(w, utils.M{"ok": true})
	}))
	router.Path("/revert").Name("test_revert").HandlerFunc(utils.WrapHandlerFunc(func(http.ResponseWriter, *http.Request) error {
		return reverts.New("no")
	}))
	router.PathPrefix("/metrics").Handler(metrics.HTTPHandler())
	router.Use(metricsHandler)
	ts := httptest.NewServer(router)
	defer ts.Close()

	_, code := get(t, ts.URL+"/ok")
	assert.Equal(t, http.StatusOK, code)
	get(t, ts.URL+"/ok")
	_, code = get(t, ts.URL+"/revert")
	assert.Equal(t, http.StatusBadRequest, code)

	body, _ := get(t, ts.URL+"/metrics")
	parser := expfmt.TextParser{}
	families, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	require.NoError(t, err)

	counts := make(map[string]float64)
	for _, m := range families["metavault_api_request_count"].GetMetric() {
		labels := make(map[string]string)
		for _, l := range m.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		assert.Equal(t, "GET", labels["method"])
		counts[labels["name"]+"/"+labels["code"]] = m.GetCounter().GetValue()
	}
	assert.Equal(t, float64(2), counts["test_ok/200"])
	assert.Equal(t, float64(1), counts["test_revert/400"])
	assert.NotNil(t, families["metavault_api_duration_ms"])
}

func TestRequestLoggerHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogger(log.NewHandler(&buf, log.FormatJSON, slog.LevelInfo))
	handler := RequestLoggerHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}), logger)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/vaults/0x01", nil))

	assert.Equal(t, http.StatusAccepted, recorder.Code)
	assert.Contains(t, buf.String(), `"URI":"/vaults/0x01"`)
	assert.Contains(t, buf.String(), `"Method":"GET"`)
}
