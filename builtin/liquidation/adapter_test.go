// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package liquidation_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/metavault/builtin"
	"github.com/vechain/metavault/builtin/backend"
	"github.com/vechain/metavault/builtin/isolation"
	"github.com/vechain/metavault/builtin/ledger"
	"github.com/vechain/metavault/builtin/liquidation"
	"github.com/vechain/metavault/builtin/metavault"
	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/test/datagen"
	"github.com/vechain/metavault/test/testchain"
	"github.com/vechain/metavault/xenv"
)

type fixture struct {
	*testchain.Chain
	pol    *isolation.Factory
	owner  meta.Address
	solid  ledger.Account
	liquid ledger.Account
}

// newFixture wraps 100 shares for owner, lets the child vault borrow 50 HONEY and funds a
// solid account with 100 HONEY.
func newFixture(t *testing.T) *fixture {
	chain, err := testchain.New(nil)
	require.NoError(t, err)
	d := chain.Deployment()
	f := &fixture{
		Chain: chain,
		pol:   d.Factories[metavault.ClassPOL],
		owner: datagen.RandAddress(),
		solid: ledger.Account{Owner: datagen.RandAddress(), Number: meta.DefaultAccountNumber},
	}

	account := ledger.Account{Owner: f.owner, Number: meta.DefaultAccountNumber}
	require.NoError(t, f.Fund(builtin.POL, f.owner, big.NewInt(100)))
	require.NoError(t, d.Ledger.Deposit(f.As(f.owner), account, builtin.MarketPOL, f.owner, big.NewInt(100)))
	require.NoError(t, d.Pol.Wrap(f.As(f.owner), f.owner, meta.DefaultAccountNumber, big.NewInt(100)))
	child, err := f.pol.VaultOf(f.As(f.owner), f.owner)
	require.NoError(t, err)
	f.liquid = ledger.Account{Owner: child, Number: meta.DefaultAccountNumber}

	lender := ledger.Account{Owner: datagen.RandAddress()}
	require.NoError(t, f.Fund(builtin.Honey, lender.Owner, big.NewInt(1000)))
	require.NoError(t, d.Ledger.Deposit(f.As(lender.Owner), lender, builtin.MarketHoney, lender.Owner, big.NewInt(1000)))
	require.NoError(t, d.Ledger.Withdraw(f.As(child), f.liquid, builtin.MarketHoney, child, big.NewInt(50)))

	require.NoError(t, f.Fund(builtin.Honey, f.solid.Owner, big.NewInt(100)))
	require.NoError(t, d.Ledger.Deposit(f.As(f.solid.Owner), f.solid, builtin.MarketHoney, f.solid.Owner, big.NewInt(100)))
	return f
}

func (f *fixture) balance(t *testing.T, account ledger.Account, market uint64) *big.Int {
	bal, err := f.Deployment().Ledger.BalanceOf(f.As(f.owner), account, market)
	require.NoError(t, err)
	return bal
}

func (f *fixture) staked(t *testing.T) *big.Int {
	r := f.Deployment().Registry
	bal, err := r.Vault(r.CalculateAddress(f.owner)).StakedBalance(f.As(f.owner), builtin.POL)
	require.NoError(t, err)
	return bal
}

func kindOf(t *testing.T, err error) reverts.Kind {
	kind, ok := reverts.KindOf(err)
	require.True(t, ok, "expected revert, got %v", err)
	return kind
}

func TestLiquidateStakedCollateral(t *testing.T) {
	f := newFixture(t)
	adapter := f.Deployment().Adapter

	env := f.As(f.solid.Owner)
	seized, err := adapter.Liquidate(env, f.solid, f.liquid, builtin.MarketHoney, builtin.MarketIsolatedPOL, big.NewInt(40))
	require.NoError(t, err)
	// 5% bonus at equal prices
	assert.Equal(t, big.NewInt(42), seized)

	assert.Equal(t, big.NewInt(42), f.balance(t, f.solid, builtin.MarketPOL))
	assert.Equal(t, 0, f.balance(t, f.solid, builtin.MarketIsolatedPOL).Sign())
	assert.Equal(t, big.NewInt(60), f.balance(t, f.solid, builtin.MarketHoney))
	assert.Equal(t, big.NewInt(-10), f.balance(t, f.liquid, builtin.MarketHoney))
	assert.Equal(t, big.NewInt(58), f.balance(t, f.liquid, builtin.MarketIsolatedPOL))
	assert.Equal(t, big.NewInt(58), f.staked(t))
	assert.Equal(t, 0, f.BalanceOf(builtin.POL, f.liquid.Owner).Sign())
	assert.Equal(t, 0, f.BalanceOf(builtin.POL, adapter.Address()).Sign())

	var names []string
	for _, ev := range env.Events() {
		if ev.Address == adapter.Address() {
			names = append(names, ev.Name)
		}
	}
	assert.Equal(t, []string{"Liquidated"}, names)
}

func TestLiquidateRestakesCustody(t *testing.T) {
	f := newFixture(t)
	// 30 shares left unstaked in the child vault custody
	require.NoError(t, f.pol.Unstake(f.As(f.owner), f.owner, backend.Aggregator, big.NewInt(30)))
	require.Equal(t, big.NewInt(70), f.staked(t))

	_, err := f.Deployment().Adapter.Liquidate(f.As(f.solid.Owner), f.solid, f.liquid, builtin.MarketHoney, builtin.MarketIsolatedPOL, big.NewInt(20))
	require.NoError(t, err)
	// 21 seized from custody, the other 9 staked back
	assert.Equal(t, big.NewInt(79), f.staked(t))
	assert.Equal(t, 0, f.BalanceOf(builtin.POL, f.liquid.Owner).Sign())
}

func TestLiquidateChecks(t *testing.T) {
	f := newFixture(t)
	adapter := f.Deployment().Adapter

	_, err := adapter.Liquidate(f.As(datagen.RandAddress()), f.solid, f.liquid, builtin.MarketHoney, builtin.MarketIsolatedPOL, big.NewInt(1))
	assert.Equal(t, reverts.Authorization, kindOf(t, err))
	_, err = adapter.Liquidate(f.As(f.solid.Owner), f.solid, f.liquid, builtin.MarketHoney, builtin.MarketIsolatedLP, big.NewInt(1))
	assert.Equal(t, reverts.Invariant, kindOf(t, err))
	_, err = adapter.Liquidate(f.As(f.solid.Owner), f.solid, f.solid, builtin.MarketHoney, builtin.MarketIsolatedPOL, big.NewInt(1))
	assert.Equal(t, reverts.Invariant, kindOf(t, err))
	_, err = adapter.Liquidate(f.As(f.solid.Owner), f.solid, f.liquid, builtin.MarketHoney, builtin.MarketIsolatedPOL, big.NewInt(51))
	assert.Equal(t, reverts.Amount, kindOf(t, err))
	assert.Equal(t, big.NewInt(100), f.staked(t))

	// only the adapter may liquidate the isolated market
	_, err = f.Deployment().Liquidator.Liquidate(f.As(f.solid.Owner), f.solid, f.liquid, builtin.MarketHoney, builtin.MarketIsolatedPOL, big.NewInt(1))
	assert.Equal(t, reverts.Authorization, kindOf(t, err))
}

// reentrantEngine calls back into the adapter while liquidating.
type reentrantEngine struct {
	adapter *liquidation.Adapter
	solid   ledger.Account
}

func (e *reentrantEngine) PreviewSeize(*xenv.Environment, uint64, uint64, *big.Int) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (e *reentrantEngine) Liquidate(env *xenv.Environment, solid, liquid ledger.Account, owedMarket, heldMarket uint64, owedAmount *big.Int) (*big.Int, error) {
	return e.adapter.Liquidate(env.As(xenv.Account{Addr: solid.Owner}), solid, liquid, owedMarket, heldMarket, owedAmount)
}

func TestLiquidateReentrancy(t *testing.T) {
	f := newFixture(t)
	d := f.Deployment()
	engine := &reentrantEngine{solid: f.solid}
	adapter := liquidation.New(datagen.RandAddress(), engine, f.pol, d.Registry)
	engine.adapter = adapter
	require.NoError(t, f.pol.SetTrader(f.AsAdmin(), adapter.Address(), true))

	_, err := adapter.Liquidate(f.As(f.solid.Owner), f.solid, f.liquid, builtin.MarketHoney, builtin.MarketIsolatedPOL, big.NewInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reentrant liquidation")
	assert.Equal(t, big.NewInt(100), f.staked(t))
}
