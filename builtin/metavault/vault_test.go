// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metavault_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/metavault/builtin"
	"github.com/vechain/metavault/builtin/backend"
	"github.com/vechain/metavault/builtin/metavault"
	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/test/datagen"
	"github.com/vechain/metavault/xenv"
)

func TestSingleBackendPerAsset(t *testing.T) {
	f := newFixture(t, nil)
	f.stake(t, metavault.ClassBera, backend.Native, big.NewInt(600))
	f.deposit(t, metavault.ClassBera, big.NewInt(400))

	tag, err := f.vault().DefaultBackend(f.owned(), builtin.LP)
	require.NoError(t, err)
	assert.Equal(t, backend.Native, tag)

	child := f.child(t, metavault.ClassBera)
	err = f.vault().Stake(child, builtin.LP, backend.WrappedAggregator, big.NewInt(1))
	assert.Equal(t, reverts.Invariant, kindOf(t, err))
	err = f.vault().SetDefaultBackend(f.owned(), builtin.LP, backend.WrappedAggregator)
	assert.Equal(t, reverts.Invariant, kindOf(t, err))

	// unstaking never rebinds
	require.NoError(t, f.vault().Unstake(f.child(t, metavault.ClassBera), builtin.LP, backend.Native, big.NewInt(600)))
	tag, err = f.vault().DefaultBackend(f.owned(), builtin.LP)
	require.NoError(t, err)
	assert.Equal(t, backend.Native, tag)

	child = f.child(t, metavault.ClassBera)
	require.NoError(t, f.vault().Stake(child, builtin.LP, backend.WrappedAggregator, big.NewInt(1000)))
	assert.Contains(t, eventNames(child), "DefaultBackendSet")
	tag, err = f.vault().DefaultBackend(f.owned(), builtin.LP)
	require.NoError(t, err)
	assert.Equal(t, backend.WrappedAggregator, tag)
	assert.Equal(t, 0, f.staked(t, builtin.LP).Cmp(big.NewInt(1000)))

	native, err := f.d.NativeBackend.BalanceOf(f.owned(), builtin.LP, f.vault().Address())
	require.NoError(t, err)
	assert.Equal(t, 0, native.Sign())
}

func TestRepointedBackendKeepsStake(t *testing.T) {
	f := newFixture(t, nil)
	f.stake(t, metavault.ClassBera, backend.Native, big.NewInt(600))
	f.deposit(t, metavault.ClassBera, big.NewInt(10))

	fresh := backend.NewNative(datagen.RandAddress(), builtin.BGT)
	f.d.Registry.BindBackend(fresh)
	require.NoError(t, f.d.Registry.SetBackendOverride(f.AsAdmin(), builtin.LP, backend.Native, fresh.Address()))

	// the stake stays visible through the backend it was bound to
	assert.Equal(t, 0, f.staked(t, builtin.LP).Cmp(big.NewInt(600)))
	underlying, err := f.factory(metavault.ClassBera).UnderlyingBalance(f.owned(), f.owner)
	require.NoError(t, err)
	assert.Equal(t, 0, underlying.Cmp(big.NewInt(610)))

	err = f.vault().Stake(f.child(t, metavault.ClassBera), builtin.LP, backend.WrappedAggregator, big.NewInt(10))
	assert.Equal(t, reverts.Invariant, kindOf(t, err))
	err = f.vault().Stake(f.child(t, metavault.ClassBera), builtin.LP, backend.Native, big.NewInt(10))
	assert.Equal(t, reverts.Invariant, kindOf(t, err))
	aggregated, err := f.d.WrappedAggregator.BalanceOf(f.owned(), builtin.LP, f.vault().Address())
	require.NoError(t, err)
	assert.Equal(t, 0, aggregated.Sign())

	// unstaking drains the old pool, then the vault rebinds to the fresh one
	require.NoError(t, f.vault().Unstake(f.child(t, metavault.ClassBera), builtin.LP, backend.Native, big.NewInt(600)))
	old, err := f.d.NativeBackend.BalanceOf(f.owned(), builtin.LP, f.vault().Address())
	require.NoError(t, err)
	assert.Equal(t, 0, old.Sign())

	require.NoError(t, f.vault().Stake(f.child(t, metavault.ClassBera), builtin.LP, backend.Native, big.NewInt(100)))
	bal, err := fresh.BalanceOf(f.owned(), builtin.LP, f.vault().Address())
	require.NoError(t, err)
	assert.Equal(t, 0, bal.Cmp(big.NewInt(100)))
	assert.Equal(t, 0, f.staked(t, builtin.LP).Cmp(big.NewInt(100)))
}

func TestStakeAuthorization(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(t, metavault.ClassBera, big.NewInt(10))
	child := f.child(t, metavault.ClassBera).Caller().(xenv.ChildVault)

	tests := []struct {
		name   string
		caller xenv.Caller
	}{
		{"owner", xenv.Account{Addr: f.owner}},
		{"forged child", xenv.ChildVault{Addr: datagen.RandAddress(), Owner: f.owner, Asset: builtin.LP}},
		{"wrong asset", xenv.ChildVault{Addr: child.Addr, Owner: f.owner, Asset: builtin.IBGT}},
		{"other owner", xenv.ChildVault{Addr: child.Addr, Owner: datagen.RandAddress(), Asset: builtin.LP}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.vault().Stake(f.Env(tt.caller), builtin.LP, backend.Native, big.NewInt(1))
			assert.Equal(t, reverts.Authorization, kindOf(t, err))
		})
	}

	err := f.vault().Stake(f.Env(child), builtin.LP, backend.Native, big.NewInt(0))
	assert.Equal(t, reverts.Amount, kindOf(t, err))
}

func TestExitWithoutRewards(t *testing.T) {
	f := newFixture(t, nil)
	f.stake(t, metavault.ClassBera, backend.Native, big.NewInt(500))
	childAddr := f.child(t, metavault.ClassBera).Caller().Address()
	vault := f.vault().Address()

	rewards, err := f.factory(metavault.ClassBera).Exit(f.owned(), f.owner)
	require.NoError(t, err)
	for _, rw := range rewards {
		assert.Equal(t, 0, rw.Amount.Sign())
	}
	assert.Equal(t, 0, f.BalanceOf(builtin.BGT, vault).Sign())
	assert.Equal(t, 0, f.BalanceOf(builtin.LP, childAddr).Cmp(big.NewInt(500)))
	assert.Equal(t, 0, f.staked(t, builtin.LP).Sign())

	// nothing staked at all
	_, err = f.factory(metavault.ClassBera).Exit(f.owned(), f.owner)
	assert.NoError(t, err)
}

func TestGetRewardAfterTenDays(t *testing.T) {
	f := newFixture(t, nil)
	half := datagen.Units(1, 2)
	f.stake(t, metavault.ClassBera, backend.Native, half)

	f.MineDays(10)
	rewards, err := f.vault().GetReward(f.owned(), builtin.LP)
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	harvested := rewards[0].Amount
	assert.Equal(t, builtin.BGT, rewards[0].Token)
	assert.Equal(t, 1, harvested.Sign())

	bgt := f.factory(metavault.ClassBGT)
	position, err := bgt.Position(f.owned(), f.owner)
	require.NoError(t, err)
	assert.Equal(t, 0, position.Cmp(harvested))
	assert.Equal(t, 0, f.BalanceOf(builtin.BGT, f.vault().Address()).Cmp(harvested))

	underlying, err := f.factory(metavault.ClassBera).UnderlyingBalance(f.owned(), f.owner)
	require.NoError(t, err)
	assert.Equal(t, 0, underlying.Cmp(half))
}

func TestGetRewardPolicy(t *testing.T) {
	f := newFixture(t, nil)
	f.stake(t, metavault.ClassBera, backend.Native, big.NewInt(10))
	f.stake(t, metavault.ClassPOL, backend.Aggregator, big.NewInt(10))
	_, err := f.factory(metavault.ClassBGT).GetOrCreate(f.owned(), f.owner)
	require.NoError(t, err)

	_, err = f.vault().GetReward(f.child(t, metavault.ClassBera), builtin.LP)
	assert.Equal(t, reverts.Authorization, kindOf(t, err))
	_, err = f.vault().GetReward(f.owned(), builtin.POL)
	assert.Equal(t, reverts.Authorization, kindOf(t, err))
	_, err = f.vault().GetReward(f.owned(), builtin.BGT)
	assert.Equal(t, reverts.Invariant, kindOf(t, err))

	_, err = f.factory(metavault.ClassPOL).GetReward(f.owned(), f.owner)
	assert.NoError(t, err)
	_, err = f.vault().GetReward(f.owned(), builtin.LP)
	assert.NoError(t, err)
}

func TestRewardRouting(t *testing.T) {
	t.Run("child vault", func(t *testing.T) {
		f := newFixture(t, genesis())
		f.stake(t, metavault.ClassPOL, backend.Aggregator, big.NewInt(100))
		f.Mine(10)

		rewards, err := f.factory(metavault.ClassPOL).GetReward(f.owned(), f.owner)
		require.NoError(t, err)
		var ibgt *big.Int
		for _, rw := range rewards {
			if rw.Token == builtin.IBGT {
				ibgt = rw.Amount
			}
		}
		require.NotNil(t, ibgt)
		assert.Equal(t, 0, ibgt.Cmp(datagen.Units(10, 1)))

		position, err := f.factory(metavault.ClassIBGT).Position(f.owned(), f.owner)
		require.NoError(t, err)
		assert.Equal(t, 0, position.Cmp(ibgt))
		underlying, err := f.factory(metavault.ClassIBGT).UnderlyingBalance(f.owned(), f.owner)
		require.NoError(t, err)
		assert.Equal(t, 0, underlying.Cmp(ibgt))
	})

	t.Run("ledger", func(t *testing.T) {
		f := newFixture(t, genesis())
		f.stake(t, metavault.ClassIBGT, backend.Aggregator, big.NewInt(100))
		f.Mine(5)

		_, err := f.vault().GetReward(f.owned(), builtin.IBGT)
		require.NoError(t, err)
		bal, err := f.d.Ledger.BalanceOf(f.owned(), ledgerAccount(f.owner), builtin.MarketHoney)
		require.NoError(t, err)
		assert.Equal(t, 0, bal.Cmp(datagen.Units(5, 1)))
		assert.Equal(t, 0, f.BalanceOf(builtin.Honey, f.owner).Sign())
	})

	t.Run("wallet over supply cap", func(t *testing.T) {
		g := genesis()
		g.HoneyCap = big.NewInt(1)
		f := newFixture(t, g)
		f.stake(t, metavault.ClassIBGT, backend.Aggregator, big.NewInt(100))
		f.Mine(5)

		env := f.owned()
		_, err := f.vault().GetReward(env, builtin.IBGT)
		require.NoError(t, err)
		assert.Equal(t, 0, f.BalanceOf(builtin.Honey, f.owner).Cmp(datagen.Units(5, 1)))
		assert.Contains(t, eventNames(env), "RewardRouted")
	})
}

func TestChargeFee(t *testing.T) {
	agent := datagen.RandAddress()
	tests := []struct {
		name     string
		fraction *big.Int
		agent    meta.Address
		amount   int64
		fee      int64
	}{
		{"one percent", datagen.Units(1, 100), agent, 1000, 10},
		{"floor", datagen.Units(1, 100), agent, 999, 9},
		{"below one unit", datagen.Units(1, 100), agent, 99, 0},
		{"no percentage", new(big.Int), agent, 1000, 0},
		{"no agent", datagen.Units(1, 100), meta.Address{}, 1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			require.NoError(t, f.d.Registry.SetFeeAgent(f.AsAdmin(), tt.agent))
			require.NoError(t, f.d.Registry.SetFeePercentage(f.AsAdmin(), tt.fraction))
			f.stake(t, metavault.ClassPOL, backend.Aggregator, big.NewInt(2000))

			fee, err := f.factory(metavault.ClassPOL).ChargeFee(f.owned(), f.owner, big.NewInt(tt.amount))
			require.NoError(t, err)
			assert.Equal(t, 0, fee.Cmp(big.NewInt(tt.fee)))
			assert.Equal(t, 0, f.staked(t, builtin.POL).Cmp(big.NewInt(2000-tt.fee)))

			if tt.agent.IsZero() {
				return
			}
			collected, err := f.d.Ledger.BalanceOf(f.owned(), ledgerAccount(tt.agent), builtin.MarketPOL)
			require.NoError(t, err)
			assert.Equal(t, 0, collected.Cmp(big.NewInt(tt.fee)))
		})
	}

	f := newFixture(t, nil)
	assert.Equal(t, reverts.Amount, kindOf(t, f.d.Registry.SetFeePercentage(f.AsAdmin(), datagen.Units(1, 1))))
}

func TestFeeOf(t *testing.T) {
	fee, err := metavault.FeeOf(big.NewInt(12345), datagen.Units(1, 3))
	require.NoError(t, err)
	assert.Equal(t, 0, fee.Cmp(big.NewInt(4114)))

	_, err = metavault.FeeOf(new(big.Int).Lsh(big.NewInt(1), 300), datagen.Units(1, 3))
	assert.Equal(t, reverts.Amount, kindOf(t, err))
}

// reentrantBackend calls back into the vault while staking.
type reentrantBackend struct {
	backend.Backend
	addr  meta.Address
	vault *metavault.MetaVault
}

func (b *reentrantBackend) Address() meta.Address { return b.addr }

func (b *reentrantBackend) Stake(env *xenv.Environment, asset meta.Address, amount *big.Int) error {
	_, err := b.vault.GetReward(env.As(xenv.Account{Addr: b.vault.Address()}), asset)
	return err
}

func TestReentrancy(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(t, metavault.ClassBera, big.NewInt(100))
	evil := &reentrantBackend{Backend: f.d.NativeBackend, addr: datagen.RandAddress(), vault: f.vault()}
	f.d.Registry.BindBackend(evil)
	require.NoError(t, f.d.Registry.SetBackendOverride(f.AsAdmin(), builtin.LP, backend.Native, evil.addr))

	child := f.child(t, metavault.ClassBera)
	err := f.vault().Stake(child, builtin.LP, backend.Native, big.NewInt(100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reentrant call")
	assert.Empty(t, child.Events())

	require.NoError(t, f.d.Registry.SetBackendOverride(f.AsAdmin(), builtin.LP, backend.Native, meta.Address{}))
	require.NoError(t, f.vault().Stake(f.child(t, metavault.ClassBera), builtin.LP, backend.Native, big.NewInt(100)))
}

// pausedImplementation rejects every stake.
type pausedImplementation struct {
	metavault.Standard
}

func (pausedImplementation) Stake(*metavault.Call, meta.Address, backend.Tag, *big.Int) error {
	return reverts.New("paused")
}

func TestImplementationSwap(t *testing.T) {
	f := newFixture(t, nil)
	r := f.d.Registry
	paused := datagen.RandAddress()

	err := r.SetImplementation(f.AsAdmin(), paused)
	assert.Equal(t, reverts.Invariant, kindOf(t, err))

	r.RegisterImplementation(paused, pausedImplementation{})
	err = r.SetImplementation(f.owned(), paused)
	assert.Equal(t, reverts.Authorization, kindOf(t, err))

	before, err := r.Config(f.owned())
	require.NoError(t, err)
	require.NoError(t, r.SetImplementation(f.AsAdmin(), paused))
	after, err := r.Config(f.owned())
	require.NoError(t, err)
	assert.Equal(t, before.Version+1, after.Version)
	assert.Equal(t, paused, after.Implementation)

	f.deposit(t, metavault.ClassBera, big.NewInt(10))
	err = f.factory(metavault.ClassBera).Stake(f.owned(), f.owner, backend.Native, big.NewInt(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paused")

	require.NoError(t, r.SetImplementation(f.AsAdmin(), metavault.StandardImplementation))
	require.NoError(t, f.factory(metavault.ClassBera).Stake(f.owned(), f.owner, backend.Native, big.NewInt(10)))
}
