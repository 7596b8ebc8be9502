// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package delegation implements the cooldown gated delegation of the wrapped delegation token.
//
// A delegate call lands in Queued for a fresh position or in Pending when it compounds onto a
// confirmed one. Calls to the same validator are spaced by a cooldown, and the unconfirmed part
// becomes Confirmed once the activation window has elapsed since the last call.
package delegation

import (
	"math/big"

	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/meta"
)

type Record struct {
	Validator         meta.Address
	Pending           *big.Int
	Queued            *big.Int
	Confirmed         *big.Int
	LastDelegateBlock uint32
	QueuedAtBlock     uint32
}

func NewRecord() *Record {
	return &Record{Pending: new(big.Int), Queued: new(big.Int), Confirmed: new(big.Int)}
}

func (r *Record) IsEmpty() bool {
	return r.Validator.IsZero()
}

// Unconfirmed is pending plus queued.
func (r *Record) Unconfirmed() *big.Int {
	return new(big.Int).Add(r.Pending, r.Queued)
}

func (r *Record) Total() *big.Int {
	return new(big.Int).Add(r.Unconfirmed(), r.Confirmed)
}

func (r *Record) clone() *Record {
	return &Record{
		Validator:         r.Validator,
		Pending:           new(big.Int).Set(r.Pending),
		Queued:            new(big.Int).Set(r.Queued),
		Confirmed:         new(big.Int).Set(r.Confirmed),
		LastDelegateBlock: r.LastDelegateBlock,
		QueuedAtBlock:     r.QueuedAtBlock,
	}
}

func (r *Record) settle() {
	if r.Unconfirmed().Sign() == 0 {
		r.QueuedAtBlock = 0
	}
	if r.Total().Sign() == 0 {
		*r = *NewRecord()
	}
}

func (r *Record) checkValidator(validator meta.Address) error {
	if r.Validator != validator {
		return reverts.Newf(reverts.Invariant, "validator mismatch: delegating to %v", r.Validator)
	}
	return nil
}

func positive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return reverts.InvalidAmount("amount must be positive")
	}
	return nil
}

// Delegate adds amount to validator.
func (r *Record) Delegate(validator meta.Address, amount *big.Int, current, cooldown uint32) (*Record, error) {
	if validator.IsZero() {
		return nil, reverts.New("invalid validator")
	}
	if err := positive(amount); err != nil {
		return nil, err
	}
	if !r.IsEmpty() {
		if err := r.checkValidator(validator); err != nil {
			return nil, err
		}
		if current < r.LastDelegateBlock || current-r.LastDelegateBlock < cooldown {
			return nil, reverts.TooEarly("delegation cooldown not elapsed")
		}
	}
	next := r.clone()
	next.Validator = validator
	if next.Confirmed.Sign() > 0 {
		next.Pending.Add(next.Pending, amount)
	} else {
		next.Queued.Add(next.Queued, amount)
	}
	next.LastDelegateBlock = current
	next.QueuedAtBlock = current
	return next, nil
}

// Activate confirms the unconfirmed amount once window blocks passed since the last delegate call.
func (r *Record) Activate(validator meta.Address, current, window uint32) (*Record, error) {
	if err := r.checkValidator(validator); err != nil {
		return nil, err
	}
	if r.IsEmpty() || r.Unconfirmed().Sign() == 0 {
		return nil, reverts.InvalidAmount("nothing to activate")
	}
	if current < r.QueuedAtBlock || current-r.QueuedAtBlock < window {
		return nil, reverts.TooEarly("delegation activation window not elapsed")
	}
	next := r.clone()
	next.Confirmed.Add(next.Confirmed, next.Unconfirmed())
	next.Pending.SetInt64(0)
	next.Queued.SetInt64(0)
	next.QueuedAtBlock = 0
	return next, nil
}

// Unbond releases amount of the confirmed delegation.
func (r *Record) Unbond(validator meta.Address, amount *big.Int) (*Record, error) {
	if err := r.checkValidator(validator); err != nil {
		return nil, err
	}
	if err := positive(amount); err != nil {
		return nil, err
	}
	if amount.Cmp(r.Confirmed) > 0 {
		return nil, reverts.InvalidAmount("unbond exceeds confirmed delegation")
	}
	next := r.clone()
	next.Confirmed.Sub(next.Confirmed, amount)
	next.settle()
	return next, nil
}

// Cancel removes amount from the unconfirmed delegation, pending first.
// Cancelling nothing from an empty record is a no-op.
func (r *Record) Cancel(validator meta.Address, amount *big.Int) (*Record, error) {
	if amount == nil {
		return nil, reverts.InvalidAmount("amount required")
	}
	if r.IsEmpty() && amount.Sign() == 0 {
		return r.clone(), nil
	}
	if err := r.checkValidator(validator); err != nil {
		return nil, err
	}
	if err := positive(amount); err != nil {
		return nil, err
	}
	if amount.Cmp(r.Unconfirmed()) > 0 {
		return nil, reverts.InvalidAmount("cancel exceeds unconfirmed delegation")
	}
	next := r.clone()
	fromPending := minBig(amount, next.Pending)
	next.Pending.Sub(next.Pending, fromPending)
	next.Queued.Sub(next.Queued, new(big.Int).Sub(amount, fromPending))
	next.settle()
	return next, nil
}

// Unwind releases amount of the delegation: pending, then queued, then confirmed.
// It returns the amount cancelled and the amount unbonded.
func (r *Record) Unwind(amount *big.Int) (next *Record, cancelled, unbonded *big.Int, err error) {
	if amount.Sign() < 0 || amount.Cmp(r.Total()) > 0 {
		return nil, nil, nil, reverts.InvalidAmount("unwind exceeds delegation")
	}
	next = r.clone()
	fromPending := minBig(amount, next.Pending)
	next.Pending.Sub(next.Pending, fromPending)
	rest := new(big.Int).Sub(amount, fromPending)
	fromQueued := minBig(rest, next.Queued)
	next.Queued.Sub(next.Queued, fromQueued)
	unbonded = rest.Sub(rest, fromQueued)
	next.Confirmed.Sub(next.Confirmed, unbonded)
	next.settle()
	return next, fromPending.Add(fromPending, fromQueued), unbonded, nil
}

// BlocksToActivate returns the blocks left before the unconfirmed amount can be activated.
func (r *Record) BlocksToActivate(current, window uint32) uint32 {
	if r.IsEmpty() || r.Unconfirmed().Sign() == 0 {
		return 0
	}
	if current < r.QueuedAtBlock {
		return window
	}
	if elapsed := current - r.QueuedAtBlock; elapsed < window {
		return window - elapsed
	}
	return 0
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
