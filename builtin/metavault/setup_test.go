// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metavault_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vechain/metavault/builtin"
	"github.com/vechain/metavault/builtin/backend"
	"github.com/vechain/metavault/builtin/isolation"
	"github.com/vechain/metavault/builtin/ledger"
	"github.com/vechain/metavault/builtin/metavault"
	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/test/datagen"
	"github.com/vechain/metavault/test/testchain"
	"github.com/vechain/metavault/xenv"
)

type fixture struct {
	*testchain.Chain
	d     *builtin.Deployment
	owner meta.Address
}

func newFixture(t *testing.T, g *builtin.Genesis) *fixture {
	chain, err := testchain.New(g)
	require.NoError(t, err)
	return &fixture{Chain: chain, d: chain.Deployment(), owner: datagen.RandAddress()}
}

// genesis returns the default genesis with one unit of emission per block for every pool.
func genesis() *builtin.Genesis {
	g := builtin.DefaultGenesis(datagen.RandAddress())
	g.Rates = builtin.Rates{
		LP:        datagen.Units(1, 1),
		LPWrapped: datagen.Units(1, 1),
		POL:       datagen.Units(1, 1),
		IBGT:      datagen.Units(1, 1),
	}
	return g
}

func (f *fixture) factory(class metavault.Class) *isolation.Factory {
	return f.d.Factories[class]
}

func (f *fixture) vault() *metavault.MetaVault {
	return f.d.Registry.Vault(f.d.Registry.CalculateAddress(f.owner))
}

func (f *fixture) owned() *xenv.Environment {
	return f.As(f.owner)
}

// child returns an environment acting as the owner's child vault of class.
func (f *fixture) child(t *testing.T, class metavault.Class) *xenv.Environment {
	fac := f.factory(class)
	addr, err := fac.VaultOf(f.owned(), f.owner)
	require.NoError(t, err)
	require.False(t, addr.IsZero())
	return f.Env(xenv.ChildVault{Addr: addr, Owner: f.owner, Asset: fac.Asset()})
}

// deposit funds the owner with amount of the class asset and deposits it into the child vault.
func (f *fixture) deposit(t *testing.T, class metavault.Class, amount *big.Int) {
	fac := f.factory(class)
	require.NoError(t, f.Fund(fac.Asset(), f.owner, amount))
	require.NoError(t, fac.Deposit(f.owned(), f.owner, amount))
}

// stake deposits amount of the class asset and stakes it into tag.
func (f *fixture) stake(t *testing.T, class metavault.Class, tag backend.Tag, amount *big.Int) {
	f.deposit(t, class, amount)
	require.NoError(t, f.factory(class).Stake(f.owned(), f.owner, tag, amount))
}

func (f *fixture) staked(t *testing.T, asset meta.Address) *big.Int {
	bal, err := f.vault().StakedBalance(f.owned(), asset)
	require.NoError(t, err)
	return bal
}

func kindOf(t *testing.T, err error) reverts.Kind {
	kind, ok := reverts.KindOf(err)
	require.True(t, ok, "expected revert, got %v", err)
	return kind
}

func eventNames(env *xenv.Environment) []string {
	var names []string
	for _, ev := range env.Events() {
		names = append(names, ev.Name)
	}
	return names
}

func ledgerAccount(owner meta.Address) ledger.Account {
	return ledger.Account{Owner: owner, Number: meta.DefaultAccountNumber}
}
