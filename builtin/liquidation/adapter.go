// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package liquidation liquidates isolated collateral whose backing tokens are staked.
package liquidation

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/metavault/builtin/backend"
	"github.com/vechain/metavault/builtin/isolation"
	"github.com/vechain/metavault/builtin/ledger"
	"github.com/vechain/metavault/builtin/metavault"
	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/builtin/solidity"
	"github.com/vechain/metavault/builtin/token"
	"github.com/vechain/metavault/log"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/metrics"
	"github.com/vechain/metavault/xenv"
)

var (
	logger = log.WithContext("pkg", "liquidation")

	metricLiquidations = metrics.LazyLoadCounter("liquidation_count")
)

var slotEntered = meta.BytesToBytes32([]byte("entered"))

// Adapter unstakes just enough collateral before handing over to the liquidation engine.
// It must be a ledger global operator, an approved trader of its factory, and the restricted
// liquidator of the factory's isolation market.
type Adapter struct {
	addr     meta.Address
	engine   ledger.LiquidationEngine
	factory  *isolation.Factory
	registry *metavault.Registry
	ledger   ledger.Ledger
}

func New(addr meta.Address, engine ledger.LiquidationEngine, factory *isolation.Factory, registry *metavault.Registry) *Adapter {
	return &Adapter{
		addr:     addr,
		engine:   engine,
		factory:  factory,
		registry: registry,
		ledger:   registry.Options().Ledger,
	}
}

func (a *Adapter) Address() meta.Address { return a.addr }

func (a *Adapter) entered(env *xenv.Environment) *solidity.Raw[bool] {
	return solidity.NewRaw[bool](solidity.NewContext(a.addr, env.State()), slotEntered)
}

// Liquidate repays owedAmount of liquid's debt from solid and seizes isolated collateral of heldMarket.
// The seized collateral is settled into solid's share market position, or sent to solid's owner when
// the asset is not listed. It returns the seized amount.
func (a *Adapter) Liquidate(env *xenv.Environment, solid, liquid ledger.Account, owedMarket, heldMarket uint64, owedAmount *big.Int) (*big.Int, error) {
	if acc, ok := env.Caller().(xenv.Account); !ok || acc.Addr != solid.Owner {
		return nil, reverts.Unauthorized("not solid account owner", env.Caller().Address())
	}
	if heldMarket != a.factory.Market() {
		return nil, reverts.Newf(reverts.Invariant, "market %d is not held by %v vaults", heldMarket, a.factory.Class())
	}

	var seized *big.Int
	err := env.Atomic(func() error {
		guard := a.entered(env)
		entered, err := guard.Get()
		if err != nil {
			return errors.Wrap(err, "entered")
		}
		if entered {
			return reverts.New("reentrant liquidation")
		}
		if err := guard.Set(true); err != nil {
			return err
		}

		vault, err := a.factory.Vault(env, liquid.Owner)
		if err != nil {
			return err
		}
		if vault == nil {
			return reverts.Newf(reverts.Invariant, "%v is not a %v vault", liquid.Owner, a.factory.Class())
		}
		seize, err := a.engine.PreviewSeize(env, owedMarket, heldMarket, owedAmount)
		if err != nil {
			return err
		}
		trader := env.As(xenv.Trader{Addr: a.addr})
		if err := a.factory.Release(trader, vault.Owner, seize); err != nil {
			return err
		}
		self := env.As(xenv.Contract{Addr: a.addr})
		if seized, err = a.engine.Liquidate(self, solid, liquid, owedMarket, heldMarket, owedAmount); err != nil {
			return err
		}
		if err := a.settle(env, solid, vault.Owner, seized); err != nil {
			return err
		}
		if err := a.reconcile(env, vault.Owner); err != nil {
			return err
		}
		logger.Debug("liquidated", "solid", solid.Owner, "liquid", liquid.Owner, "owed", owedAmount, "seized", seized)
		env.Log(a.addr, "Liquidated", "solid", solid.Owner, "liquid", liquid.Owner, "owed", owedAmount, "seized", seized)
		metricLiquidations().Add(1)
		return guard.Set(false)
	})
	if err != nil {
		return nil, err
	}
	return seized, nil
}

// settle turns the seized isolation par held by solid into tokens.
func (a *Adapter) settle(env *xenv.Environment, solid ledger.Account, owner meta.Address, seized *big.Int) error {
	if seized.Sign() == 0 {
		return nil
	}
	self := env.As(xenv.Contract{Addr: a.addr})
	if err := a.ledger.Debit(self, solid, a.factory.Market(), seized); err != nil {
		return err
	}
	if err := a.factory.Transfer(env.As(xenv.Trader{Addr: a.addr}), owner, seized, a.addr); err != nil {
		return err
	}
	asset := a.factory.Asset()
	market, err := a.ledger.MarketByToken(env, asset)
	if err != nil {
		return err
	}
	if market != nil && !market.Isolation {
		return a.ledger.Deposit(self, solid, market.ID, a.addr, seized)
	}
	return token.New(meta.TokenAddress, env.State()).Transfer(asset, a.addr, solid.Owner, seized)
}

// reconcile stakes back what is left in the child vault custody.
func (a *Adapter) reconcile(env *xenv.Environment, owner meta.Address) error {
	child, err := a.factory.VaultOf(env, owner)
	if err != nil {
		return err
	}
	custody, err := token.New(meta.TokenAddress, env.State()).BalanceOf(a.factory.Asset(), child)
	if err != nil || custody.Sign() == 0 {
		return err
	}
	vault, err := a.registry.VaultOf(env, owner)
	if err != nil {
		return err
	}
	tag, err := a.registry.Vault(vault).DefaultBackend(env, a.factory.Asset())
	if err != nil || tag == backend.None {
		return err
	}
	return a.factory.Stake(env.As(xenv.Trader{Addr: a.addr}), owner, tag, custody)
}
