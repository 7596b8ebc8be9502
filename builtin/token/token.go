// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package token keeps the balances of every fungible token known to the system:
// the pooled-lending share token, reward tokens and the native token.
package token

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/builtin/solidity"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/state"
)

var (
	slotBalances = meta.BytesToBytes32([]byte("balances"))
	slotSupply   = meta.BytesToBytes32([]byte("supply"))
)

type holderKey struct {
	token  meta.Address
	holder meta.Address
}

func (k holderKey) Bytes() []byte {
	return append(append(make([]byte, 0, 2*meta.AddressLength), k.token[:]...), k.holder[:]...)
}

// Token is the balance book of all tokens.
type Token struct {
	addr     meta.Address
	balances *solidity.Mapping[holderKey, *big.Int]
	supply   *solidity.Mapping[meta.Address, *big.Int]
}

func New(addr meta.Address, state *state.State) *Token {
	ctx := solidity.NewContext(addr, state)
	return &Token{
		addr:     addr,
		balances: solidity.NewMapping[holderKey, *big.Int](ctx, slotBalances),
		supply:   solidity.NewMapping[meta.Address, *big.Int](ctx, slotSupply),
	}
}

func (t *Token) Address() meta.Address {
	return t.addr
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func orNil(v *big.Int) *big.Int {
	if v.Sign() == 0 {
		return nil
	}
	return v
}

func (t *Token) BalanceOf(token, holder meta.Address) (*big.Int, error) {
	bal, err := t.balances.Get(holderKey{token, holder})
	if err != nil {
		return nil, errors.Wrap(err, "balance")
	}
	return orZero(bal), nil
}

func (t *Token) TotalSupply(token meta.Address) (*big.Int, error) {
	supply, err := t.supply.Get(token)
	if err != nil {
		return nil, errors.Wrap(err, "supply")
	}
	return orZero(supply), nil
}

func (t *Token) add(token, holder meta.Address, amount *big.Int) error {
	bal, err := t.BalanceOf(token, holder)
	if err != nil {
		return err
	}
	return t.balances.Set(holderKey{token, holder}, orNil(bal.Add(bal, amount)))
}

func (t *Token) sub(token, holder meta.Address, amount *big.Int) error {
	bal, err := t.BalanceOf(token, holder)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return reverts.InvalidAmount("insufficient balance")
	}
	return t.balances.Set(holderKey{token, holder}, orNil(bal.Sub(bal, amount)))
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return reverts.InvalidAmount("negative amount")
	}
	return nil
}

// Mint creates amount of token for holder.
func (t *Token) Mint(token, to meta.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := t.add(token, to, amount); err != nil {
		return err
	}
	supply, err := t.TotalSupply(token)
	if err != nil {
		return err
	}
	return t.supply.Set(token, orNil(supply.Add(supply, amount)))
}

// Burn destroys amount of token held by from.
func (t *Token) Burn(token, from meta.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := t.sub(token, from, amount); err != nil {
		return err
	}
	supply, err := t.TotalSupply(token)
	if err != nil {
		return err
	}
	return t.supply.Set(token, orNil(supply.Sub(supply, amount)))
}

// Transfer moves amount of token between holders.
func (t *Token) Transfer(token, from, to meta.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	if err := t.sub(token, from, amount); err != nil {
		return err
	}
	return t.add(token, to, amount)
}
