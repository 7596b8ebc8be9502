// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package httpserver

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/metavault/metrics"
	"github.com/vechain/metavault/test"
)

func TestStartMetricsServer(t *testing.T) {
	metrics.InitializePrometheusMetrics()
	metrics.Counter("httpserver_test_count").Add(3)

	url, stop, err := StartMetricsServer("localhost:0")
	require.NoError(t, err)
	defer stop()

	var body []byte
	err = test.Retry(func() error {
		res, err := http.Get(url) //#nosec G107
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return errors.Errorf("status %d", res.StatusCode)
		}
		body, err = io.ReadAll(res.Body)
		return err
	}, 10*time.Millisecond, 2*time.Second)
	require.NoError(t, err)
	assert.Contains(t, string(body), "metavault_httpserver_test_count 3")
}

func TestListenBadAddr(t *testing.T) {
	_, _, err := Listen("256.0.0.1:http", http.NotFoundHandler())
	assert.Error(t, err)
}
