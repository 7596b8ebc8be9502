// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	var backend Metrics = noop{}
	labels := map[string]string{"market": "honey"}

	backend.GetOrCreateCountMeter("count").Add(1)
	backend.GetOrCreateCountVecMeter("countVec", []string{"market"}).AddWithLabel(1, labels)
	backend.GetOrCreateGaugeMeter("gauge").Set(-3)
	backend.GetOrCreateGaugeVecMeter("gaugeVec", []string{"market"}).SetWithLabel(2, labels)
	backend.GetOrCreateHistogramMeter("hist", nil).Observe(5)
	backend.GetOrCreateHistogramVecMeter("histVec", []string{"market"}, BucketHTTPReqs).ObserveWithLabels(5, labels)

	rec := httptest.NewRecorder()
	backend.GetOrCreateHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
