// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// #nosec G404
package metrics

import (
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	dto "github.com/prometheus/client_model/go"
)

func TestPromMetrics(t *testing.T) {
	InitializePrometheusMetrics()

	// 2 ways of accessing it - useful to avoid lookups
	count1 := Counter("count1")
	Counter("count2")
	countVect := CounterVec("countVec1", []string{"zeroOrOne"})

	hist := Histogram("hist1", nil)
	gauge1 := Gauge("gauge1")
	gaugeVec := GaugeVec("gaugeVec1", []string{"zeroOrOne"})

	count1.Add(1)
	randCount2 := rand.N(100) + 1
	for range randCount2 {
		Counter("count2").Add(1)
	}

	histTotal := 0
	for i := range rand.N(100) + 2 {
		hist.Observe(int64(i))
		HistogramVec("hist2", []string{"zeroOrOne"}, nil).
			ObserveWithLabels(int64(i), map[string]string{"zeroOrOne": strconv.Itoa(i % 2)})
		histTotal += i
	}

	totalCountVec := 0
	for i := range rand.N(100) + 2 {
		countVect.AddWithLabel(int64(i), map[string]string{"zeroOrOne": strconv.Itoa(i % 2)})
		totalCountVec += i
	}

	gaugeVec.SetWithLabel(7, map[string]string{"zeroOrOne": "0"})
	gaugeVec.AddWithLabel(3, map[string]string{"zeroOrOne": "0"})
	gauge1.Set(5)
	gauge1.Add(2)

	metrics := make(map[string]*dto.MetricFamily)
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		metrics[mf.GetName()] = mf
	}

	require.Equal(t, float64(1), metrics["metavault_count1"].Metric[0].GetCounter().GetValue())
	require.Equal(t, float64(randCount2), metrics["metavault_count2"].Metric[0].GetCounter().GetValue())
	require.Equal(t, float64(histTotal), metrics["metavault_hist1"].Metric[0].GetHistogram().GetSampleSum())

	sumHistVect := metrics["metavault_hist2"].Metric[0].GetHistogram().GetSampleSum() +
		metrics["metavault_hist2"].Metric[1].GetHistogram().GetSampleSum()
	require.Equal(t, float64(histTotal), sumHistVect)

	sumCountVec := metrics["metavault_countVec1"].Metric[0].GetCounter().GetValue() +
		metrics["metavault_countVec1"].Metric[1].GetCounter().GetValue()
	require.Equal(t, float64(totalCountVec), sumCountVec)

	require.Equal(t, float64(7), metrics["metavault_gauge1"].Metric[0].GetGauge().GetValue())
	require.Equal(t, float64(10), metrics["metavault_gaugeVec1"].Metric[0].GetGauge().GetValue())

	count, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "metavault_countVec1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestLazyLoading(t *testing.T) {
	InitializePrometheusMetrics()

	lazy := LazyLoadCounterVec("lazy_counter", []string{"kind"})
	lazy().AddWithLabel(2, map[string]string{"kind": "a"})
	lazy().AddWithLabel(3, map[string]string{"kind": "a"})

	// the same name resolves to the same meter
	CounterVec("lazy_counter", []string{"kind"}).AddWithLabel(1, map[string]string{"kind": "a"})

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "metavault_lazy_counter" {
			require.Equal(t, float64(6), mf.Metric[0].GetCounter().GetValue())
			return
		}
	}
	t.Fatal("lazy counter not registered")
}
