// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import (
	"sync/atomic"

	"github.com/vechain/metavault/metrics"
)

var metricCacheLookups = metrics.LazyLoadCounterVec("cache_lookup_count", []string{"cache", "result"})

// Stats counts the lookups of one named cache and exports them as metrics.
type Stats struct {
	name      string
	hit, miss atomic.Int64
	permille  atomic.Int32
}

// NewStats returns stats reported under name.
func NewStats(name string) *Stats {
	return &Stats{name: name}
}

func (cs *Stats) Hit() int64 {
	metricCacheLookups().AddWithLabel(1, map[string]string{"cache": cs.name, "result": "hit"})
	return cs.hit.Add(1)
}

func (cs *Stats) Miss() int64 {
	metricCacheLookups().AddWithLabel(1, map[string]string{"cache": cs.name, "result": "miss"})
	return cs.miss.Add(1)
}

// HitRate is hits per thousand lookups, zero before the first lookup.
func (cs *Stats) HitRate() int32 {
	hit, miss := cs.hit.Load(), cs.miss.Load()
	if hit+miss == 0 {
		return 0
	}
	return int32(hit * 1000 / (hit + miss))
}

// Stats returns the hit and miss counts, and whether the hit rate moved since the previous call.
func (cs *Stats) Stats() (bool, int64, int64) {
	rate := cs.HitRate()
	return cs.permille.Swap(rate) != rate, cs.hit.Load(), cs.miss.Load()
}
