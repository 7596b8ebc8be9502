// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"encoding/binary"
	"math/big"

	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/xenv"
)

// Account is a margin account: an owner may hold many numbered accounts.
type Account struct {
	Owner  meta.Address
	Number uint64
}

func (a Account) Bytes() []byte {
	return binary.BigEndian.AppendUint64(append(make([]byte, 0, meta.AddressLength+8), a.Owner[:]...), a.Number)
}

// Market is a listed asset.
type Market struct {
	ID    uint64
	Token meta.Address
	Price *big.Int
	// SupplyCap bounds the total supplied par. Zero means unlimited.
	SupplyCap *big.Int
	// Isolation markets are backed by tokens held in isolation vaults, not by the ledger.
	Isolation bool
}

// Ledger is the margin ledger as consumed by vaults and traders.
// Balances are par units, signed: a negative balance is a debt.
type Ledger interface {
	Address() meta.Address
	MarketByToken(env *xenv.Environment, token meta.Address) (*Market, error)
	Market(env *xenv.Environment, id uint64) (*Market, error)
	// CanSupply reports whether token is listed and amount more fits under its supply cap.
	CanSupply(env *xenv.Environment, token meta.Address, amount *big.Int) (bool, error)
	BalanceOf(env *xenv.Environment, account Account, market uint64) (*big.Int, error)
	// Deposit pulls amount of the market token from from into account.
	Deposit(env *xenv.Environment, account Account, market uint64, from meta.Address, amount *big.Int) error
	// Withdraw sends amount of the market token from account to to.
	Withdraw(env *xenv.Environment, account Account, market uint64, to meta.Address, amount *big.Int) error
	// Credit and Debit change an isolation market balance; the backing tokens never enter the ledger.
	Credit(env *xenv.Environment, account Account, market uint64, amount *big.Int) error
	Debit(env *xenv.Environment, account Account, market uint64, amount *big.Int) error
	// Move transfers par between two accounts in one market.
	Move(env *xenv.Environment, from, to Account, market uint64, amount *big.Int) error
	IsGlobalOperator(env *xenv.Environment, operator meta.Address) (bool, error)
}

// LiquidationEngine is the generic liquidation entry point.
type LiquidationEngine interface {
	// PreviewSeize returns the amount of heldMarket par taken from liquid when owedAmount is repaid.
	PreviewSeize(env *xenv.Environment, owedMarket, heldMarket uint64, owedAmount *big.Int) (*big.Int, error)
	// Liquidate repays owedAmount of liquid's debt from solid and moves the seized collateral to solid.
	Liquidate(env *xenv.Environment, solid, liquid Account, owedMarket, heldMarket uint64, owedAmount *big.Int) (*big.Int, error)
}
