// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"math/big"

	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/builtin/solidity"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/xenv"
)

var slotRestricted = meta.BytesToBytes32([]byte("restricted-liquidators"))

// DefaultLiquidationBonus is the spread paid to the liquidator: 5%.
var DefaultLiquidationBonus = new(big.Int).Div(meta.FeePrecision, big.NewInt(20))

// Liquidator is a liquidation engine with a fixed bonus.
// It must be a global operator of the ledger.
type Liquidator struct {
	addr   meta.Address
	ledger Ledger
	bonus  *big.Int
}

var _ LiquidationEngine = (*Liquidator)(nil)

func NewLiquidator(addr meta.Address, ledger Ledger) *Liquidator {
	return &Liquidator{addr: addr, ledger: ledger, bonus: DefaultLiquidationBonus}
}

func (l *Liquidator) Address() meta.Address { return l.addr }

func (l *Liquidator) restricted(env *xenv.Environment) *solidity.Mapping[marketKey, meta.Address] {
	return solidity.NewMapping[marketKey, meta.Address](solidity.NewContext(l.addr, env.State()), slotRestricted)
}

// RestrictMarket only lets liquidator liquidate collateral held in market.
func (l *Liquidator) RestrictMarket(env *xenv.Environment, market uint64, liquidator meta.Address) error {
	if err := requireAdmin(env); err != nil {
		return err
	}
	return l.restricted(env).Set(marketKey(market), liquidator)
}

func (l *Liquidator) PreviewSeize(env *xenv.Environment, owedMarket, heldMarket uint64, owedAmount *big.Int) (*big.Int, error) {
	owed, err := l.ledger.Market(env, owedMarket)
	if err != nil {
		return nil, err
	}
	held, err := l.ledger.Market(env, heldMarket)
	if err != nil {
		return nil, err
	}
	if held.Price.Sign() == 0 {
		return nil, reverts.New("held market has no price")
	}
	seize := new(big.Int).Mul(owedAmount, owed.Price)
	seize.Mul(seize, new(big.Int).Add(meta.FeePrecision, l.bonus))
	seize.Div(seize, meta.FeePrecision)
	return seize.Div(seize, held.Price), nil
}

func (l *Liquidator) Liquidate(env *xenv.Environment, solid, liquid Account, owedMarket, heldMarket uint64, owedAmount *big.Int) (*big.Int, error) {
	if err := requirePositive(owedAmount); err != nil {
		return nil, err
	}
	only, err := l.restricted(env).Get(marketKey(heldMarket))
	if err != nil {
		return nil, err
	}
	if !only.IsZero() && env.Caller().Address() != only {
		return nil, reverts.Unauthorized("restricted liquidator", env.Caller().Address())
	}

	var seize *big.Int
	err = env.Atomic(func() error {
		debt, err := l.ledger.BalanceOf(env, liquid, owedMarket)
		if err != nil {
			return err
		}
		if debt.Sign() >= 0 || new(big.Int).Neg(debt).Cmp(owedAmount) < 0 {
			return reverts.InvalidAmount("owed amount exceeds debt")
		}
		if seize, err = l.PreviewSeize(env, owedMarket, heldMarket, owedAmount); err != nil {
			return err
		}
		collateral, err := l.ledger.BalanceOf(env, liquid, heldMarket)
		if err != nil {
			return err
		}
		if collateral.Cmp(seize) < 0 {
			return reverts.InvalidAmount("insufficient collateral")
		}

		self := env.As(xenv.Contract{Addr: l.addr})
		if err := l.ledger.Move(self, solid, liquid, owedMarket, owedAmount); err != nil {
			return err
		}
		if err := l.ledger.Move(self, liquid, solid, heldMarket, seize); err != nil {
			return err
		}
		env.Log(l.addr, "Liquidate", "solid", solid.Owner, "liquid", liquid.Owner, "owed", owedAmount, "seized", seize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seize, nil
}
