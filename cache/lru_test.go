// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU(t *testing.T) {
	_, err := NewLRU[string, int]("test", 0)
	assert.Error(t, err)

	c, err := NewLRU[string, int]("test", 2)
	require.NoError(t, err)

	loads := 0
	loader := func(k string) (int, error) {
		loads++
		return len(k), nil
	}
	v, err := c.GetOrLoad("abc", loader)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	v, err = c.GetOrLoad("abc", loader)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, 1, loads)

	c.Add("a", 1)
	c.Add("b", 2)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("abc")
	assert.False(t, ok, "evicted")

	_, err = c.GetOrLoad("x", func(string) (int, error) { return 0, errors.New("fail") })
	assert.Error(t, err)
	_, ok = c.Get("x")
	assert.False(t, ok)

	_, hit, miss := c.Stats()
	assert.Equal(t, int64(1), hit)
	assert.Equal(t, int64(4), miss)
}
