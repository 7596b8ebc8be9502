// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package polwrap converts the pooled-lending share token into its isolated collateral form and back.
//
// Wrapping is immediate. Unwrapping takes two ledger callbacks: CallFunction queues a transfer under
// a new cursor, and Exchange settles the oldest unsettled cursor. Cursors are settled exactly once
// and in order.
package polwrap

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/metavault/builtin/backend"
	"github.com/vechain/metavault/builtin/isolation"
	"github.com/vechain/metavault/builtin/ledger"
	"github.com/vechain/metavault/builtin/metavault"
	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/builtin/solidity"
	"github.com/vechain/metavault/log"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/metrics"
	"github.com/vechain/metavault/xenv"
)

var (
	logger = log.WithContext("pkg", "polwrap")

	metricConversions = metrics.LazyLoadCounterVec("polwrap_conversions_count", []string{"op"})
	metricQueued      = metrics.LazyLoadGauge("polwrap_queued_transfers")
)

var (
	slotTransferCursor = meta.BytesToBytes32([]byte("transferCursor"))
	slotConsumedCursor = meta.BytesToBytes32([]byte("consumedCursor"))
	slotTransfers      = meta.BytesToBytes32([]byte("transfers"))
)

// QueuedTransfer is an unwrap waiting for settlement.
type QueuedTransfer struct {
	Cursor uint64
	From   meta.Address
	To     meta.Address
	Amount *big.Int
	// Vault is the child vault being unwrapped; Owner owns it.
	Vault meta.Address
	Owner meta.Address
	Fee   *big.Int
}

// Settled is the amount paid out on settlement.
func (t *QueuedTransfer) Settled() *big.Int {
	return new(big.Int).Sub(t.Amount, t.Fee)
}

type cursorKey uint64

func (k cursorKey) Bytes() []byte {
	return new(big.Int).SetUint64(uint64(k)).Bytes()
}

// Pair is the wrapper and unwrapper trader of one POL asset.
type Pair struct {
	wrapper     meta.Address
	unwrapper   meta.Address
	factory     *isolation.Factory
	registry    *metavault.Registry
	ledger      ledger.Ledger
	shareMarket uint64
}

// New returns the pair converting between shareMarket and the isolation market of factory.
// Both trader addresses must be ledger global operators and approved traders of factory.
func New(wrapper, unwrapper meta.Address, factory *isolation.Factory, registry *metavault.Registry, shareMarket uint64) *Pair {
	return &Pair{
		wrapper:     wrapper,
		unwrapper:   unwrapper,
		factory:     factory,
		registry:    registry,
		ledger:      registry.Options().Ledger,
		shareMarket: shareMarket,
	}
}

func (p *Pair) Wrapper() meta.Address   { return p.wrapper }
func (p *Pair) Unwrapper() meta.Address { return p.unwrapper }
func (p *Pair) ShareMarket() uint64     { return p.shareMarket }

type storage struct {
	transferCursor *solidity.Raw[uint64]
	consumedCursor *solidity.Raw[uint64]
	transfers      *solidity.Mapping[cursorKey, *QueuedTransfer]
}

func (p *Pair) storage(env *xenv.Environment) *storage {
	ctx := solidity.NewContext(p.unwrapper, env.State())
	return &storage{
		transferCursor: solidity.NewRaw[uint64](ctx, slotTransferCursor),
		consumedCursor: solidity.NewRaw[uint64](ctx, slotConsumedCursor),
		transfers:      solidity.NewMapping[cursorKey, *QueuedTransfer](ctx, slotTransfers),
	}
}

// Cursors returns the last assigned and the last settled cursor.
func (p *Pair) Cursors(env *xenv.Environment) (transfer, consumed uint64, err error) {
	s := p.storage(env)
	if transfer, err = s.transferCursor.Get(); err != nil {
		return 0, 0, errors.Wrap(err, "transfer cursor")
	}
	if consumed, err = s.consumedCursor.Get(); err != nil {
		return 0, 0, errors.Wrap(err, "consumed cursor")
	}
	return
}

// Transfer returns the queued transfer of cursor, or nil.
func (p *Pair) Transfer(env *xenv.Environment, cursor uint64) (*QueuedTransfer, error) {
	t, err := p.storage(env).transfers.Get(cursorKey(cursor))
	if err != nil {
		return nil, errors.Wrap(err, "queued transfer")
	}
	return t, nil
}

func (p *Pair) isolationToken(env *xenv.Environment) (meta.Address, error) {
	m, err := p.ledger.Market(env, p.factory.Market())
	if err != nil {
		return meta.Address{}, err
	}
	return m.Token, nil
}

// GetExchangeCost converts 1:1 between the share token and its isolated form.
func (p *Pair) GetExchangeCost(env *xenv.Environment, inputToken, outputToken meta.Address, amount *big.Int) (*big.Int, error) {
	iso, err := p.isolationToken(env)
	if err != nil {
		return nil, err
	}
	share := p.factory.Asset()
	if !(inputToken == share && outputToken == iso) && !(inputToken == iso && outputToken == share) {
		return nil, reverts.New("invalid token pair")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, reverts.InvalidAmount("invalid input amount")
	}
	return new(big.Int).Set(amount), nil
}

func (p *Pair) requireLedger(env *xenv.Environment) error {
	if c, ok := env.Caller().(xenv.MarginLedger); !ok || c.Addr != p.ledger.Address() {
		return reverts.Unauthorized("not margin ledger", env.Caller().Address())
	}
	return nil
}

// Wrap moves amount from the share market of account into the owner's POL vault and stakes it.
func (p *Pair) Wrap(env *xenv.Environment, owner meta.Address, number uint64, amount *big.Int) error {
	if acc, ok := env.Caller().(xenv.Account); !ok || acc.Addr != owner {
		return reverts.Unauthorized("not account owner", env.Caller().Address())
	}
	if amount == nil || amount.Sign() <= 0 {
		return reverts.InvalidAmount("invalid input amount")
	}
	return env.Atomic(func() error {
		if _, err := p.factory.GetOrCreate(env, owner); err != nil {
			return err
		}
		account := ledger.Account{Owner: owner, Number: number}
		if err := p.ledger.Withdraw(env.As(xenv.Contract{Addr: p.wrapper}), account, p.shareMarket, p.wrapper, amount); err != nil {
			return err
		}
		trader := env.As(xenv.Trader{Addr: p.wrapper})
		if err := p.factory.Deposit(trader, owner, amount); err != nil {
			return err
		}
		tag, err := p.stakeTag(env, owner)
		if err != nil {
			return err
		}
		if err := p.factory.Stake(trader, owner, tag, amount); err != nil {
			return err
		}
		logger.Debug("wrapped", "owner", owner, "number", number, "amount", amount, "backend", tag)
		env.Log(p.wrapper, "Wrapped", "owner", owner, "number", number, "amount", amount)
		metricConversions().AddWithLabel(1, map[string]string{"op": "wrap"})
		return nil
	})
}

// stakeTag is the bound backend of the POL asset, the aggregator when unbound.
func (p *Pair) stakeTag(env *xenv.Environment, owner meta.Address) (backend.Tag, error) {
	vault, err := p.registry.VaultOf(env, owner)
	if err != nil {
		return backend.None, err
	}
	tag, err := p.registry.Vault(vault).DefaultBackend(env, p.factory.Asset())
	if err != nil {
		return backend.None, err
	}
	if tag == backend.None {
		tag = backend.Aggregator
	}
	return tag, nil
}

// CallFunction queues the unwrap of amount from the child vault owning account.
// The exit fee is charged and the rest unstaked into the child vault custody.
func (p *Pair) CallFunction(env *xenv.Environment, sender meta.Address, account ledger.Account, amount *big.Int) (*QueuedTransfer, error) {
	if err := p.requireLedger(env); err != nil {
		return nil, err
	}
	var queued *QueuedTransfer
	err := env.Atomic(func() error {
		vault, err := p.factory.Vault(env, account.Owner)
		if err != nil {
			return err
		}
		if vault == nil {
			return reverts.Newf(reverts.Invariant, "%v is not a %v vault", account.Owner, p.factory.Class())
		}
		if sender != vault.Owner && sender != account.Owner {
			return reverts.Unauthorized("invalid sender", sender)
		}
		underlying, err := p.factory.UnderlyingBalance(env, vault.Owner)
		if err != nil {
			return err
		}
		if meta.IsMaxAmount(amount) {
			amount = underlying
		}
		if amount == nil || amount.Sign() <= 0 {
			return reverts.InvalidAmount("invalid transfer amount")
		}
		if amount.Cmp(underlying) > 0 {
			return reverts.InvalidAmount("transfer exceeds vault balance")
		}

		trader := env.As(xenv.Trader{Addr: p.unwrapper})
		fee, err := p.factory.ChargeFee(trader, vault.Owner, amount)
		if err != nil {
			return err
		}
		settled := new(big.Int).Sub(amount, fee)
		if settled.Sign() > 0 {
			if err := p.factory.Release(trader, vault.Owner, settled); err != nil {
				return err
			}
		}

		s := p.storage(env)
		cursor, err := s.transferCursor.Get()
		if err != nil {
			return errors.Wrap(err, "transfer cursor")
		}
		cursor++
		queued = &QueuedTransfer{
			Cursor: cursor,
			From:   account.Owner,
			To:     p.unwrapper,
			Amount: new(big.Int).Set(amount),
			Vault:  account.Owner,
			Owner:  vault.Owner,
			Fee:    fee,
		}
		if err := s.transferCursor.Set(cursor); err != nil {
			return err
		}
		if err := s.transfers.Set(cursorKey(cursor), queued); err != nil {
			return err
		}
		logger.Debug("transfer queued", "cursor", cursor, "vault", account.Owner, "amount", amount, "fee", fee)
		env.Log(p.unwrapper, "TransferQueued", "cursor", cursor, "vault", account.Owner, "amount", amount, "fee", fee)
		metricQueued().Add(1)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return queued, nil
}

// next returns the oldest unsettled transfer and checks it matches inputAmount.
func (p *Pair) next(env *xenv.Environment, inputAmount *big.Int) (*QueuedTransfer, error) {
	_, consumed, err := p.Cursors(env)
	if err != nil {
		return nil, err
	}
	t, err := p.Transfer(env, consumed+1)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, reverts.New("no queued transfer")
	}
	if inputAmount == nil || t.Amount.Cmp(inputAmount) != 0 {
		return nil, reverts.Newf(reverts.Invariant, "queued transfer %d mismatch", t.Cursor)
	}
	return t, nil
}

// GetTradeCost previews the settlement of the next queued transfer.
func (p *Pair) GetTradeCost(env *xenv.Environment, inputMarket, outputMarket uint64, inputAmount *big.Int) (*big.Int, error) {
	if inputMarket != p.factory.Market() || outputMarket != p.shareMarket {
		return nil, reverts.New("invalid market pair")
	}
	t, err := p.next(env, inputAmount)
	if err != nil {
		return nil, err
	}
	return t.Settled(), nil
}

// Exchange settles the next queued transfer into the share market of receiver.
func (p *Pair) Exchange(env *xenv.Environment, receiver ledger.Account, inputAmount *big.Int) (*big.Int, error) {
	if err := p.requireLedger(env); err != nil {
		return nil, err
	}
	var settled *big.Int
	err := env.Atomic(func() error {
		t, err := p.next(env, inputAmount)
		if err != nil {
			return err
		}
		if err := p.storage(env).consumedCursor.Set(t.Cursor); err != nil {
			return err
		}
		trader := env.As(xenv.Trader{Addr: p.unwrapper})
		if err := p.factory.Debit(trader, t.Owner, t.Amount); err != nil {
			return err
		}
		settled = t.Settled()
		if settled.Sign() > 0 {
			// earlier settlements may have drawn on the custody released for this cursor
			if err := p.factory.Release(trader, t.Owner, settled); err != nil {
				return err
			}
			if err := p.factory.Transfer(trader, t.Owner, settled, p.unwrapper); err != nil {
				return err
			}
			operator := env.As(xenv.Contract{Addr: p.unwrapper})
			if err := p.ledger.Deposit(operator, receiver, p.shareMarket, p.unwrapper, settled); err != nil {
				return err
			}
		}
		logger.Debug("transfer settled", "cursor", t.Cursor, "receiver", receiver.Owner, "amount", settled)
		env.Log(p.unwrapper, "TransferSettled", "cursor", t.Cursor, "receiver", receiver.Owner, "amount", settled)
		metricQueued().Add(-1)
		metricConversions().AddWithLabel(1, map[string]string{"op": "unwrap"})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

// Unwrap runs both unwrap phases for account of owner.
func (p *Pair) Unwrap(env *xenv.Environment, owner meta.Address, number uint64, amount *big.Int) (settled *big.Int, err error) {
	if acc, ok := env.Caller().(xenv.Account); !ok || acc.Addr != owner {
		return nil, reverts.Unauthorized("not account owner", env.Caller().Address())
	}
	err = env.Atomic(func() error {
		child, err := p.factory.VaultOf(env, owner)
		if err != nil {
			return err
		}
		if child.IsZero() {
			return reverts.Newf(reverts.Invariant, "no %v vault for %v", p.factory.Class(), owner)
		}
		asLedger := env.As(xenv.MarginLedger{Addr: p.ledger.Address()})
		t, err := p.CallFunction(asLedger, owner, ledger.Account{Owner: child, Number: meta.DefaultAccountNumber}, amount)
		if err != nil {
			return err
		}
		settled, err = p.Exchange(asLedger, ledger.Account{Owner: owner, Number: number}, t.Amount)
		return err
	})
	return
}
