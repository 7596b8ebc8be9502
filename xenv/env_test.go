// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package xenv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/state"
)

func TestAtomic(t *testing.T) {
	owner := Account{meta.Address{1}}
	env := New(state.New(nil), &BlockContext{Number: 10}, owner)
	addr := meta.Address{2}
	key := meta.Bytes32{3}

	require.NoError(t, env.Atomic(func() error {
		env.State().SetStorage(addr, key, meta.Bytes32{1})
		env.Log(addr, "Kept")
		return nil
	}))

	failure := errors.New("failed")
	err := env.Atomic(func() error {
		env.State().SetStorage(addr, key, meta.Bytes32{2})
		env.Log(addr, "Dropped", "amount", 1)
		nested := env.As(Contract{addr})
		nested.Log(addr, "NestedDropped")
		return failure
	})
	assert.Equal(t, failure, err)

	v, err := env.State().GetStorage(addr, key)
	require.NoError(t, err)
	assert.Equal(t, meta.Bytes32{1}, v)

	require.Len(t, env.Events(), 1)
	assert.Equal(t, "Kept", env.Events()[0].Name)
}

func TestCallerSwitch(t *testing.T) {
	owner := meta.Address{1}
	callers := []Caller{
		Account{owner},
		ChildVault{Addr: meta.Address{2}, Owner: owner},
		Admin{owner},
		MarginLedger{meta.Address{3}},
		Trader{meta.Address{4}},
		Contract{meta.Address{5}},
	}
	env := New(state.New(nil), nil, callers[0])
	assert.Equal(t, uint32(0), env.BlockContext().Number)

	for _, c := range callers {
		nested := env.As(c)
		assert.Equal(t, c, nested.Caller())
		assert.Contains(t, c.String(), c.Address().String())
	}

	_, isVault := env.As(callers[1]).Caller().(ChildVault)
	assert.True(t, isVault)
	_, isVault = env.Caller().(ChildVault)
	assert.False(t, isVault)
}
