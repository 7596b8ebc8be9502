// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package boost implements the validator boost lifecycle of a vault's boost reward token:
// queue, activate after a block delay, cancel queued and drop confirmed.
package boost

import (
	"math/big"

	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/meta"
)

// Record is the boost position of one vault. A zero Validator means no position.
type Record struct {
	Validator     meta.Address
	Queued        *big.Int
	Confirmed     *big.Int
	QueuedAtBlock uint32
}

func NewRecord() *Record {
	return &Record{Queued: new(big.Int), Confirmed: new(big.Int)}
}

func (r *Record) IsEmpty() bool {
	return r.Validator.IsZero()
}

// Total is the amount of boost token locked in the position.
func (r *Record) Total() *big.Int {
	return new(big.Int).Add(r.Queued, r.Confirmed)
}

func (r *Record) clone() *Record {
	return &Record{
		Validator:     r.Validator,
		Queued:        new(big.Int).Set(r.Queued),
		Confirmed:     new(big.Int).Set(r.Confirmed),
		QueuedAtBlock: r.QueuedAtBlock,
	}
}

func (r *Record) resetIfEmpty() {
	if r.Queued.Sign() == 0 && r.Confirmed.Sign() == 0 {
		r.Validator = meta.Address{}
		r.QueuedAtBlock = 0
	}
}

func (r *Record) checkValidator(validator meta.Address) error {
	if r.Validator != validator {
		return reverts.Newf(reverts.Invariant, "validator mismatch: boosting %v", r.Validator)
	}
	return nil
}

func positive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return reverts.InvalidAmount("amount must be positive")
	}
	return nil
}

// Queue adds amount to the queued boost of validator and restarts the activation delay.
func (r *Record) Queue(validator meta.Address, amount *big.Int, current uint32) (*Record, error) {
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
	}
	next := r.clone()
	next.Validator = validator
	next.Queued.Add(next.Queued, amount)
	next.QueuedAtBlock = current
	return next, nil
}

// Activate confirms the whole queued amount once delay blocks passed since queueing.
func (r *Record) Activate(validator meta.Address, current, delay uint32) (*Record, error) {
	if err := r.checkValidator(validator); err != nil {
		return nil, err
	}
	if r.IsEmpty() || r.Queued.Sign() == 0 {
		return nil, reverts.InvalidAmount("nothing queued")
	}
	if current < r.QueuedAtBlock || current-r.QueuedAtBlock < delay {
		return nil, reverts.TooEarly("boost activation delay not elapsed")
	}
	next := r.clone()
	next.Confirmed.Add(next.Confirmed, next.Queued)
	next.Queued.SetInt64(0)
	next.QueuedAtBlock = 0
	return next, nil
}

// Cancel removes amount from the queued boost.
func (r *Record) Cancel(validator meta.Address, amount *big.Int) (*Record, error) {
	if err := r.checkValidator(validator); err != nil {
		return nil, err
	}
	if err := positive(amount); err != nil {
		return nil, err
	}
	if amount.Cmp(r.Queued) > 0 {
		return nil, reverts.InvalidAmount("cancel exceeds queued boost")
	}
	next := r.clone()
	next.Queued.Sub(next.Queued, amount)
	if next.Queued.Sign() == 0 {
		next.QueuedAtBlock = 0
	}
	next.resetIfEmpty()
	return next, nil
}

// Drop removes amount from the confirmed boost, then from the queued boost.
func (r *Record) Drop(validator meta.Address, amount *big.Int) (*Record, error) {
	if err := r.checkValidator(validator); err != nil {
		return nil, err
	}
	if err := positive(amount); err != nil {
		return nil, err
	}
	if amount.Cmp(r.Total()) > 0 {
		return nil, reverts.InvalidAmount("drop exceeds boost")
	}
	next := r.clone()
	fromConfirmed := minBig(amount, next.Confirmed)
	next.Confirmed.Sub(next.Confirmed, fromConfirmed)
	next.Queued.Sub(next.Queued, new(big.Int).Sub(amount, fromConfirmed))
	if next.Queued.Sign() == 0 {
		next.QueuedAtBlock = 0
	}
	next.resetIfEmpty()
	return next, nil
}

// Unwind releases amount of locked boost: queued first, then confirmed.
// It returns the amounts taken from each phase.
func (r *Record) Unwind(amount *big.Int) (next *Record, cancelled, dropped *big.Int, err error) {
	if amount.Sign() < 0 || amount.Cmp(r.Total()) > 0 {
		return nil, nil, nil, reverts.InvalidAmount("unwind exceeds boost")
	}
	next = r.clone()
	cancelled = minBig(amount, next.Queued)
	dropped = new(big.Int).Sub(amount, cancelled)
	next.Queued.Sub(next.Queued, cancelled)
	next.Confirmed.Sub(next.Confirmed, dropped)
	if next.Queued.Sign() == 0 {
		next.QueuedAtBlock = 0
	}
	next.resetIfEmpty()
	return next, cancelled, dropped, nil
}

// BlocksToActivate returns the blocks left before the queued boost can be activated.
func (r *Record) BlocksToActivate(current, delay uint32) uint32 {
	if r.IsEmpty() || r.Queued.Sign() == 0 {
		return 0
	}
	if current < r.QueuedAtBlock {
		return delay
	}
	if elapsed := current - r.QueuedAtBlock; elapsed < delay {
		return delay - elapsed
	}
	return 0
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
