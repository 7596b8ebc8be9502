// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin

import (
	"github.com/vechain/metavault/builtin/backend"
	"github.com/vechain/metavault/builtin/isolation"
	"github.com/vechain/metavault/builtin/ledger"
	"github.com/vechain/metavault/builtin/liquidation"
	"github.com/vechain/metavault/builtin/metavault"
	"github.com/vechain/metavault/builtin/polwrap"
	"github.com/vechain/metavault/meta"
)

// Built-in tokens.
var (
	Native = meta.BytesToAddress([]byte("BERA"))
	BGT    = meta.BytesToAddress([]byte("BGT"))
	BGTM   = meta.BytesToAddress([]byte("BGTM"))
	IBGT   = meta.BytesToAddress([]byte("iBGT"))
	Honey  = meta.BytesToAddress([]byte("HONEY"))
	// LP is the staked liquidity asset of the base vaults.
	LP = meta.BytesToAddress([]byte("HONEY-BERA-LP"))
	// POL is the pooled-lending share token.
	POL = meta.BytesToAddress([]byte("polHONEY"))
)

// Built-in contract addresses.
var (
	NativeBackendAddress     = meta.BytesToAddress([]byte("NativeBackend"))
	AggregatorAddress        = meta.BytesToAddress([]byte("AggregatorBackend"))
	WrappedAggregatorAddress = meta.BytesToAddress([]byte("WrappedAggregator"))
	AdapterAddress           = meta.BytesToAddress([]byte("LiquidationAdapter"))
)

// Market ids, in listing order.
const (
	MarketHoney uint64 = iota
	MarketPOL
	MarketIsolatedLP
	MarketIsolatedBGT
	MarketIsolatedBGTM
	MarketIsolatedIBGT
	MarketIsolatedPOL
)

// Class describes one child vault class.
type Class struct {
	Class  metavault.Class
	Asset  meta.Address
	Market uint64
}

// Classes are the child vault classes, in listing order of their isolation markets.
var Classes = []Class{
	{metavault.ClassBera, LP, MarketIsolatedLP},
	{metavault.ClassBGT, BGT, MarketIsolatedBGT},
	{metavault.ClassBGTM, BGTM, MarketIsolatedBGTM},
	{metavault.ClassIBGT, IBGT, MarketIsolatedIBGT},
	{metavault.ClassPOL, POL, MarketIsolatedPOL},
}

// FactoryAddress returns the address of the child vault factory of class.
func FactoryAddress(class metavault.Class) meta.Address {
	return meta.BytesToAddress([]byte("factory-" + string(class)))
}

// IsolationToken is the token listed for the isolation market of class.
func IsolationToken(class metavault.Class) meta.Address {
	return meta.BytesToAddress([]byte("isolated-" + string(class)))
}

// Deployment binds every built-in contract. It holds no state.
type Deployment struct {
	Ledger     *ledger.Margin
	Liquidator *ledger.Liquidator

	NativeBackend     *backend.Pool
	Aggregator        *backend.Pool
	WrappedAggregator *backend.Pool

	Registry  *metavault.Registry
	Factories map[metavault.Class]*isolation.Factory
	Pol       *polwrap.Pair
	Adapter   *liquidation.Adapter
}

// New binds the built-in contracts.
func New() *Deployment {
	margin := ledger.New(meta.LedgerAddress)
	d := &Deployment{
		Ledger:            margin,
		Liquidator:        ledger.NewLiquidator(meta.LiquidatorAddress, margin),
		NativeBackend:     backend.NewNative(NativeBackendAddress, BGT),
		Aggregator:        backend.NewAggregator(AggregatorAddress, IBGT, Honey),
		WrappedAggregator: backend.NewWrappedAggregator(WrappedAggregatorAddress, BGTM),
		Factories:         make(map[metavault.Class]*isolation.Factory),
	}
	d.Registry = metavault.NewRegistry(meta.RegistryAddress, metavault.Options{
		Ledger:   margin,
		InitHash: meta.Keccak256([]byte("MetaVault")),
		BGT:      BGT,
		BGTM:     BGTM,
		Native:   Native,
	})
	for _, b := range d.Backends() {
		d.Registry.BindBackend(b)
	}
	for _, c := range Classes {
		f := isolation.NewFactory(FactoryAddress(c.Class), c.Class, c.Asset, c.Market, d.Registry)
		d.Factories[c.Class] = f
		d.Registry.BindFactory(f)
	}
	pol := d.Factories[metavault.ClassPOL]
	d.Pol = polwrap.New(meta.PolWrapperAddress, meta.PolUnwrapperAddress, pol, d.Registry, MarketPOL)
	d.Adapter = liquidation.New(AdapterAddress, d.Liquidator, pol, d.Registry)
	return d
}

func (d *Deployment) Backends() []*backend.Pool {
	return []*backend.Pool{d.NativeBackend, d.Aggregator, d.WrappedAggregator}
}

// Operators are the contracts that move ledger balances on behalf of accounts.
func (d *Deployment) Operators() []meta.Address {
	ops := []meta.Address{
		d.Registry.Address(),
		d.Liquidator.Address(),
		d.Pol.Wrapper(),
		d.Pol.Unwrapper(),
		d.Adapter.Address(),
	}
	for _, c := range Classes {
		ops = append(ops, d.Factories[c.Class].Address())
	}
	return ops
}
