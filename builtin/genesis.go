// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/metavault/builtin/backend"
	"github.com/vechain/metavault/builtin/metavault"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/xenv"
)

// Rates are reward emissions per block.
type Rates struct {
	// LP earns BGT on the native backend and BGTM on the wrapped aggregator.
	LP        *big.Int
	LPWrapped *big.Int
	// POL earns iBGT on the aggregator.
	POL *big.Int
	// IBGT earns HONEY on the aggregator.
	IBGT *big.Int
}

// Genesis is the initial configuration of a deployment.
type Genesis struct {
	Admin    meta.Address
	HoneyCap *big.Int
	Rates    Rates
}

func unit(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), meta.FeePrecision)
}

// DefaultGenesis returns a genesis owned by admin with moderate emissions.
func DefaultGenesis(admin meta.Address) *Genesis {
	return &Genesis{
		Admin:    admin,
		HoneyCap: unit(1_000_000),
		Rates: Rates{
			LP:        new(big.Int).Div(unit(1), big.NewInt(1000)),
			LPWrapped: new(big.Int).Div(unit(1), big.NewInt(2000)),
			POL:       new(big.Int).Div(unit(1), big.NewInt(1000)),
			IBGT:      new(big.Int).Div(unit(1), big.NewInt(500)),
		},
	}
}

// Setup lists the markets, wires the contracts together and sets the emissions.
func (d *Deployment) Setup(env *xenv.Environment, g *Genesis) error {
	admin := env.As(xenv.Admin{Addr: g.Admin})
	return env.Atomic(func() error {
		type listing struct {
			id        uint64
			token     meta.Address
			supplyCap *big.Int
			isolation bool
		}
		listings := []listing{
			{MarketHoney, Honey, g.HoneyCap, false},
			{MarketPOL, POL, nil, false},
		}
		for _, c := range Classes {
			listings = append(listings, listing{c.Market, IsolationToken(c.Class), nil, true})
		}
		for _, l := range listings {
			id, err := d.Ledger.AddMarket(admin, l.token, meta.FeePrecision, l.supplyCap, l.isolation)
			if err != nil {
				return errors.Wrapf(err, "list %v", l.token)
			}
			if id != l.id {
				return errors.Errorf("market of %v listed as %d, want %d", l.token, id, l.id)
			}
		}
		for _, op := range d.Operators() {
			if err := d.Ledger.SetGlobalOperator(admin, op, true); err != nil {
				return err
			}
		}

		r := d.Registry
		if err := r.Bootstrap(admin, g.Admin); err != nil {
			return err
		}
		for _, b := range d.Backends() {
			if err := r.SetBackend(admin, b.Tag(), b.Address()); err != nil {
				return err
			}
		}
		for _, c := range Classes {
			if err := r.SetVaultFactory(admin, c.Asset, d.Factories[c.Class].Address()); err != nil {
				return err
			}
		}
		for _, tok := range []meta.Address{BGT, BGTM, IBGT} {
			if err := r.SetRewardClass(admin, tok, tok); err != nil {
				return err
			}
		}

		pol := d.Factories[metavault.ClassPOL]
		for _, trader := range []meta.Address{d.Pol.Wrapper(), d.Pol.Unwrapper(), d.Adapter.Address()} {
			if err := pol.SetTrader(admin, trader, true); err != nil {
				return err
			}
		}
		if err := d.Liquidator.RestrictMarket(admin, MarketIsolatedPOL, d.Adapter.Address()); err != nil {
			return err
		}

		rates := []struct {
			pool               *backend.Pool
			asset, rewardToken meta.Address
			rate               *big.Int
		}{
			{d.NativeBackend, LP, BGT, g.Rates.LP},
			{d.WrappedAggregator, LP, BGTM, g.Rates.LPWrapped},
			{d.Aggregator, POL, IBGT, g.Rates.POL},
			{d.Aggregator, IBGT, Honey, g.Rates.IBGT},
		}
		for _, rt := range rates {
			if rt.rate == nil || rt.rate.Sign() == 0 {
				continue
			}
			if err := rt.pool.SetRewardRate(admin, rt.asset, rt.rewardToken, rt.rate); err != nil {
				return err
			}
		}
		logger.Info("genesis applied", "admin", g.Admin, "markets", len(listings))
		return nil
	})
}
