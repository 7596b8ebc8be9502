// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import (
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/metavault/metrics"
)

func TestMain(m *testing.M) {
	metrics.InitializePrometheusMetrics()
	os.Exit(m.Run())
}

func TestCacheStats(t *testing.T) {
	cs := NewStats("test")
	assert.Equal(t, int32(0), cs.HitRate())
	cs.Hit()
	cs.Miss()
	_, hit, miss := cs.Stats()

	assert.Equal(t, int64(1), hit)
	assert.Equal(t, int64(1), miss)
	assert.Equal(t, int32(500), cs.HitRate())

	changed, _, _ := cs.Stats()
	assert.False(t, changed)

	cs.Hit()
	cs.Miss()
	assert.Equal(t, int64(3), cs.Hit())

	changed, hit, miss = cs.Stats()
	assert.Equal(t, int64(3), hit)
	assert.Equal(t, int64(2), miss)
	assert.Equal(t, int32(600), cs.HitRate())
	assert.True(t, changed)
}

func TestCacheStatsMetrics(t *testing.T) {
	cs := NewStats("metrics-test")
	cs.Hit()
	cs.Hit()
	cs.Miss()

	count, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "metavault_cache_lookup_count")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 2)
}
