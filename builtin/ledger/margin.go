// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/builtin/solidity"
	"github.com/vechain/metavault/builtin/token"
	"github.com/vechain/metavault/log"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/xenv"
)

var logger = log.WithContext("pkg", "ledger")

var (
	slotMarketCount = meta.BytesToBytes32([]byte("market-count"))
	slotMarkets     = meta.BytesToBytes32([]byte("markets"))
	slotTokenMarket = meta.BytesToBytes32([]byte("token-market"))
	slotTotalPar    = meta.BytesToBytes32([]byte("total-par"))
	slotBalances    = meta.BytesToBytes32([]byte("balances"))
	slotOperators   = meta.BytesToBytes32([]byte("operators"))
)

type marketKey uint64

func (k marketKey) Bytes() []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(k))
}

type balanceKey struct {
	account Account
	market  uint64
}

func (k balanceKey) Bytes() []byte {
	return binary.BigEndian.AppendUint64(k.account.Bytes(), k.market)
}

// par is a signed balance. rlp has no signed integers.
type par struct {
	Negative bool
	Value    *big.Int
}

func (p *par) toBig() *big.Int {
	if p == nil {
		return new(big.Int)
	}
	if p.Negative {
		return new(big.Int).Neg(p.Value)
	}
	return new(big.Int).Set(p.Value)
}

func fromBig(v *big.Int) *par {
	if v.Sign() == 0 {
		return nil
	}
	return &par{Negative: v.Sign() < 0, Value: new(big.Int).Abs(v)}
}

// Margin is a minimal margin ledger: markets, par balances and an operator allow-list.
// It has no interest, no oracle and no collateralization checks.
type Margin struct {
	addr meta.Address
}

var _ Ledger = (*Margin)(nil)

func New(addr meta.Address) *Margin {
	return &Margin{addr: addr}
}

func (m *Margin) Address() meta.Address { return m.addr }

type storage struct {
	marketCount *solidity.Raw[uint64]
	markets     *solidity.Mapping[marketKey, *Market]
	tokenMarket *solidity.Mapping[meta.Address, uint64]
	totalPar    *solidity.Mapping[marketKey, *big.Int]
	balances    *solidity.Mapping[balanceKey, *par]
	operators   *solidity.Mapping[meta.Address, bool]
	tokens      *token.Token
}

func (m *Margin) storage(env *xenv.Environment) *storage {
	ctx := solidity.NewContext(m.addr, env.State())
	return &storage{
		marketCount: solidity.NewRaw[uint64](ctx, slotMarketCount),
		markets:     solidity.NewMapping[marketKey, *Market](ctx, slotMarkets),
		tokenMarket: solidity.NewMapping[meta.Address, uint64](ctx, slotTokenMarket),
		totalPar:    solidity.NewMapping[marketKey, *big.Int](ctx, slotTotalPar),
		balances:    solidity.NewMapping[balanceKey, *par](ctx, slotBalances),
		operators:   solidity.NewMapping[meta.Address, bool](ctx, slotOperators),
		tokens:      token.New(meta.TokenAddress, env.State()),
	}
}

func requireAdmin(env *xenv.Environment) error {
	if _, ok := env.Caller().(xenv.Admin); !ok {
		return reverts.Unauthorized("not admin", env.Caller().Address())
	}
	return nil
}

// AddMarket lists token and returns the new market id.
func (m *Margin) AddMarket(env *xenv.Environment, tok meta.Address, price, supplyCap *big.Int, isolation bool) (id uint64, err error) {
	if err := requireAdmin(env); err != nil {
		return 0, err
	}
	err = env.Atomic(func() error {
		s := m.storage(env)
		existing, err := s.tokenMarket.Get(tok)
		if err != nil {
			return err
		}
		if existing != 0 {
			return reverts.New("market exists")
		}
		if id, err = s.marketCount.Get(); err != nil {
			return err
		}
		if supplyCap == nil {
			supplyCap = new(big.Int)
		}
		if price == nil {
			price = new(big.Int)
		}
		market := &Market{ID: id, Token: tok, Price: price, SupplyCap: supplyCap, Isolation: isolation}
		if err := s.markets.Set(marketKey(id), market); err != nil {
			return err
		}
		if err := s.tokenMarket.Set(tok, id+1); err != nil {
			return err
		}
		env.Log(m.addr, "MarketAdded", "id", id, "token", tok, "isolation", isolation)
		return s.marketCount.Set(id + 1)
	})
	return
}

// SetSupplyCap changes the supply cap of a market. Zero removes it.
func (m *Margin) SetSupplyCap(env *xenv.Environment, id uint64, supplyCap *big.Int) error {
	if err := requireAdmin(env); err != nil {
		return err
	}
	return env.Atomic(func() error {
		s := m.storage(env)
		market, err := s.market(id)
		if err != nil {
			return err
		}
		if supplyCap == nil {
			supplyCap = new(big.Int)
		}
		market.SupplyCap = supplyCap
		return s.markets.Set(marketKey(id), market)
	})
}

// SetGlobalOperator grants or revokes operator rights over every account.
func (m *Margin) SetGlobalOperator(env *xenv.Environment, operator meta.Address, approved bool) error {
	if err := requireAdmin(env); err != nil {
		return err
	}
	env.Log(m.addr, "GlobalOperatorSet", "operator", operator, "approved", approved)
	return m.storage(env).operators.Set(operator, approved)
}

func (m *Margin) IsGlobalOperator(env *xenv.Environment, operator meta.Address) (bool, error) {
	return m.storage(env).operators.Get(operator)
}

func (s *storage) market(id uint64) (*Market, error) {
	market, err := s.markets.Get(marketKey(id))
	if err != nil {
		return nil, errors.Wrap(err, "market")
	}
	if market == nil {
		return nil, reverts.Newf(reverts.Invariant, "invalid market %d", id)
	}
	return market, nil
}

func (m *Margin) Market(env *xenv.Environment, id uint64) (*Market, error) {
	return m.storage(env).market(id)
}

// MarketByToken returns nil when token is not listed.
func (m *Margin) MarketByToken(env *xenv.Environment, tok meta.Address) (*Market, error) {
	s := m.storage(env)
	id, err := s.tokenMarket.Get(tok)
	if err != nil {
		return nil, errors.Wrap(err, "token market")
	}
	if id == 0 {
		return nil, nil
	}
	return s.market(id - 1)
}

func (m *Margin) CanSupply(env *xenv.Environment, tok meta.Address, amount *big.Int) (bool, error) {
	market, err := m.MarketByToken(env, tok)
	if err != nil || market == nil {
		return false, err
	}
	if market.SupplyCap.Sign() == 0 {
		return true, nil
	}
	total, err := m.storage(env).totalPar.Get(marketKey(market.ID))
	if err != nil {
		return false, errors.Wrap(err, "total par")
	}
	if total == nil {
		total = new(big.Int)
	}
	return new(big.Int).Add(total, amount).Cmp(market.SupplyCap) <= 0, nil
}

func (m *Margin) BalanceOf(env *xenv.Environment, account Account, market uint64) (*big.Int, error) {
	p, err := m.storage(env).balances.Get(balanceKey{account, market})
	if err != nil {
		return nil, errors.Wrap(err, "balance")
	}
	return p.toBig(), nil
}

// authorize checks the caller may act on account: the owner itself or a global operator.
func (m *Margin) authorize(env *xenv.Environment, account Account) error {
	caller := env.Caller()
	if acc, ok := caller.(xenv.Account); ok && acc.Addr == account.Owner {
		return nil
	}
	ok, err := m.IsGlobalOperator(env, caller.Address())
	if err != nil {
		return err
	}
	if !ok {
		return reverts.Unauthorized("not operator", caller.Address())
	}
	return nil
}

func (m *Margin) requireOperator(env *xenv.Environment) error {
	ok, err := m.IsGlobalOperator(env, env.Caller().Address())
	if err != nil {
		return err
	}
	if !ok {
		return reverts.Unauthorized("not operator", env.Caller().Address())
	}
	return nil
}

// change adds delta to the balance of account and the total supplied par of the market.
func (s *storage) change(market *Market, account Account, delta *big.Int) error {
	key := balanceKey{account, market.ID}
	p, err := s.balances.Get(key)
	if err != nil {
		return errors.Wrap(err, "balance")
	}
	before := p.toBig()
	after := new(big.Int).Add(before, delta)

	total, err := s.totalPar.Get(marketKey(market.ID))
	if err != nil {
		return errors.Wrap(err, "total par")
	}
	if total == nil {
		total = new(big.Int)
	}
	// total par tracks positive balances only
	total.Sub(total, positive(before))
	total.Add(total, positive(after))
	if market.SupplyCap.Sign() > 0 && delta.Sign() > 0 && total.Cmp(market.SupplyCap) > 0 {
		return reverts.InvalidAmount("supply cap exceeded")
	}
	if total.Sign() == 0 {
		total = nil
	}
	if err := s.totalPar.Set(marketKey(market.ID), total); err != nil {
		return err
	}
	return s.balances.Set(key, fromBig(after))
}

func positive(v *big.Int) *big.Int {
	if v.Sign() > 0 {
		return v
	}
	return new(big.Int)
}

func requirePositive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return reverts.InvalidAmount("amount must be positive")
	}
	return nil
}

func (m *Margin) Deposit(env *xenv.Environment, account Account, id uint64, from meta.Address, amount *big.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if err := m.authorize(env, account); err != nil {
		return err
	}
	if from != env.Caller().Address() && from != account.Owner {
		return reverts.Unauthorized("cannot pull tokens of", from)
	}
	return env.Atomic(func() error {
		s := m.storage(env)
		market, err := s.market(id)
		if err != nil {
			return err
		}
		if market.Isolation {
			return reverts.New("isolation market takes no deposits")
		}
		if err := s.tokens.Transfer(market.Token, from, m.addr, amount); err != nil {
			return err
		}
		if err := s.change(market, account, amount); err != nil {
			return err
		}
		logger.Debug("deposit", "owner", account.Owner, "number", account.Number, "market", id, "amount", amount)
		env.Log(m.addr, "Deposit", "owner", account.Owner, "number", account.Number, "market", id, "amount", amount)
		return nil
	})
}

// Withdraw may leave account with a debt. Collateralization is not checked.
func (m *Margin) Withdraw(env *xenv.Environment, account Account, id uint64, to meta.Address, amount *big.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if err := m.authorize(env, account); err != nil {
		return err
	}
	return env.Atomic(func() error {
		s := m.storage(env)
		market, err := s.market(id)
		if err != nil {
			return err
		}
		if market.Isolation {
			return reverts.New("isolation market has no tokens")
		}
		if err := s.change(market, account, new(big.Int).Neg(amount)); err != nil {
			return err
		}
		env.Log(m.addr, "Withdraw", "owner", account.Owner, "number", account.Number, "market", id, "amount", amount)
		return s.tokens.Transfer(market.Token, m.addr, to, amount)
	})
}

func (m *Margin) Credit(env *xenv.Environment, account Account, id uint64, amount *big.Int) error {
	return m.isolationChange(env, account, id, amount, "Credit")
}

func (m *Margin) Debit(env *xenv.Environment, account Account, id uint64, amount *big.Int) error {
	return m.isolationChange(env, account, id, new(big.Int).Neg(amount), "Debit")
}

func (m *Margin) isolationChange(env *xenv.Environment, account Account, id uint64, delta *big.Int, name string) error {
	if err := requirePositive(new(big.Int).Abs(delta)); err != nil {
		return err
	}
	if err := m.requireOperator(env); err != nil {
		return err
	}
	return env.Atomic(func() error {
		s := m.storage(env)
		market, err := s.market(id)
		if err != nil {
			return err
		}
		if !market.Isolation {
			return reverts.New("not an isolation market")
		}
		bal, err := m.BalanceOf(env, account, id)
		if err != nil {
			return err
		}
		if new(big.Int).Add(bal, delta).Sign() < 0 {
			return reverts.InvalidAmount("insufficient isolation balance")
		}
		env.Log(m.addr, name, "owner", account.Owner, "number", account.Number, "market", id, "amount", new(big.Int).Abs(delta))
		return s.change(market, account, delta)
	})
}

func (m *Margin) Move(env *xenv.Environment, from, to Account, id uint64, amount *big.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if err := m.requireOperator(env); err != nil {
		return err
	}
	return env.Atomic(func() error {
		s := m.storage(env)
		market, err := s.market(id)
		if err != nil {
			return err
		}
		if err := s.change(market, from, new(big.Int).Neg(amount)); err != nil {
			return err
		}
		env.Log(m.addr, "Move", "from", from.Owner, "to", to.Owner, "market", id, "amount", amount)
		return s.change(market, to, amount)
	})
}
