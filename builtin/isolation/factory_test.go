// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package isolation_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/metavault/builtin"
	"github.com/vechain/metavault/builtin/backend"
	"github.com/vechain/metavault/builtin/isolation"
	"github.com/vechain/metavault/builtin/metavault"
	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/test/datagen"
	"github.com/vechain/metavault/test/testchain"
	"github.com/vechain/metavault/xenv"
)

func newChain(t *testing.T) *testchain.Chain {
	chain, err := testchain.New(nil)
	require.NoError(t, err)
	return chain
}

func kindOf(t *testing.T, err error) reverts.Kind {
	kind, ok := reverts.KindOf(err)
	require.True(t, ok, "expected revert, got %v", err)
	return kind
}

func lpFactory(chain *testchain.Chain) *isolation.Factory {
	return chain.Deployment().Factories[metavault.ClassBera]
}

func TestGetOrCreate(t *testing.T) {
	chain := newChain(t)
	fac := lpFactory(chain)
	owner := datagen.RandAddress()

	env := chain.As(owner)
	child, err := fac.GetOrCreate(env, owner)
	require.NoError(t, err)
	assert.Equal(t, fac.CalculateAddress(owner), child)

	again, err := fac.GetOrCreate(env, owner)
	require.NoError(t, err)
	assert.Equal(t, child, again)

	var names []string
	for _, ev := range env.Events() {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"MetaVaultCreated", "VaultCreated"}, names)

	rec, err := fac.Vault(env, child)
	require.NoError(t, err)
	assert.Equal(t, &isolation.Vault{Owner: owner, Asset: builtin.LP, Class: metavault.ClassBera}, rec)

	// the MetaVault exists alongside
	vault, err := chain.Deployment().Registry.VaultOf(env, owner)
	require.NoError(t, err)
	assert.Equal(t, chain.Deployment().Registry.CalculateAddress(owner), vault)

	missing, err := fac.Vault(env, datagen.RandAddress())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDepositStakeWithdraw(t *testing.T) {
	chain := newChain(t)
	fac := lpFactory(chain)
	owner := datagen.RandAddress()
	mv := chain.Deployment().Registry.Vault(chain.Deployment().Registry.CalculateAddress(owner))

	require.NoError(t, chain.Fund(builtin.LP, owner, big.NewInt(100)))
	require.NoError(t, fac.Deposit(chain.As(owner), owner, big.NewInt(100)))
	require.NoError(t, fac.Stake(chain.As(owner), owner, backend.Native, big.NewInt(60)))

	position, err := fac.Position(chain.As(owner), owner)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), position)
	underlying, err := fac.UnderlyingBalance(chain.As(owner), owner)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), underlying)

	// 40 in custody, 40 more come out of the stake
	require.NoError(t, fac.Withdraw(chain.As(owner), owner, big.NewInt(80), owner))
	assert.Equal(t, big.NewInt(80), chain.BalanceOf(builtin.LP, owner))
	staked, err := mv.StakedBalance(chain.As(owner), builtin.LP)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20), staked)
	position, err = fac.Position(chain.As(owner), owner)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20), position)

	assert.Equal(t, reverts.Amount, kindOf(t, fac.Withdraw(chain.As(owner), owner, big.NewInt(21), owner)))

	require.NoError(t, fac.Unstake(chain.As(owner), owner, backend.Native, big.NewInt(20)))
	underlying, err = fac.UnderlyingBalance(chain.As(owner), owner)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20), underlying)
}

func TestAuthorization(t *testing.T) {
	chain := newChain(t)
	fac := lpFactory(chain)
	owner := datagen.RandAddress()
	trader := datagen.RandAddress()

	require.NoError(t, chain.Fund(builtin.LP, owner, big.NewInt(10)))
	require.NoError(t, fac.Deposit(chain.As(owner), owner, big.NewInt(10)))

	stranger := chain.As(datagen.RandAddress())
	assert.Equal(t, reverts.Authorization, kindOf(t, fac.Stake(stranger, owner, backend.Native, big.NewInt(1))))
	assert.Equal(t, reverts.Authorization, kindOf(t, fac.Withdraw(stranger, owner, big.NewInt(1), stranger.Caller().Address())))

	asTrader := chain.Env(xenv.Trader{Addr: trader})
	assert.Equal(t, reverts.Authorization, kindOf(t, fac.Stake(asTrader, owner, backend.Native, big.NewInt(1))))
	assert.Equal(t, reverts.Authorization, kindOf(t, fac.SetTrader(chain.As(chain.Admin()), trader, true)))

	require.NoError(t, fac.SetTrader(chain.AsAdmin(), trader, true))
	require.NoError(t, fac.Stake(asTrader, owner, backend.Native, big.NewInt(4)))

	// a trader deposits its own funds for the owner
	require.NoError(t, chain.Fund(builtin.LP, trader, big.NewInt(5)))
	require.NoError(t, fac.Deposit(asTrader, owner, big.NewInt(5)))
	position, err := fac.Position(asTrader, owner)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(15), position)

	require.NoError(t, fac.SetTrader(chain.AsAdmin(), trader, false))
	assert.Equal(t, reverts.Authorization, kindOf(t, fac.Transfer(asTrader, owner, big.NewInt(1), trader)))

	err = fac.CreditReward(chain.As(owner), owner, big.NewInt(1))
	assert.Equal(t, reverts.Authorization, kindOf(t, err))
}

func TestCustodialClass(t *testing.T) {
	chain := newChain(t)
	fac := chain.Deployment().Factories[metavault.ClassBGT]
	owner := datagen.RandAddress()

	require.NoError(t, chain.Fund(builtin.BGT, owner, big.NewInt(10)))
	assert.Equal(t, reverts.Invariant, kindOf(t, fac.Deposit(chain.As(owner), owner, big.NewInt(10))))

	underlying, err := fac.UnderlyingBalance(chain.As(owner), owner)
	require.NoError(t, err)
	assert.Equal(t, 0, underlying.Sign())

	// custody is held by the MetaVault
	_, err = fac.GetOrCreate(chain.As(owner), owner)
	require.NoError(t, err)
	vault := chain.Deployment().Registry.CalculateAddress(owner)
	require.NoError(t, chain.Fund(builtin.BGT, vault, big.NewInt(7)))
	underlying, err = fac.UnderlyingBalance(chain.As(owner), owner)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), underlying)

	none, err := fac.VaultOf(chain.As(owner), datagen.RandAddress())
	require.NoError(t, err)
	assert.Equal(t, meta.Address{}, none)
}
