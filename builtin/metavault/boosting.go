// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metavault

import (
	"math/big"

	"github.com/vechain/metavault/builtin/metavault/boost"
	"github.com/vechain/metavault/builtin/metavault/delegation"
	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/metrics"
)

var metricTransitions = metrics.LazyLoadCounterVec("vault_transitions_count", []string{"machine", "op"})

func (c *Call) block() uint32 {
	return c.Env.BlockContext().Number
}

// free returns the custody of tok not committed to locked.
func (c *Call) free(tok meta.Address, locked *big.Int) (*big.Int, error) {
	custody, err := c.Tokens().BalanceOf(tok, c.Vault)
	if err != nil {
		return nil, err
	}
	return custody.Sub(custody, locked), nil
}

func (c *Call) saveBoost(op string, next *boost.Record, fields ...any) error {
	if err := c.Storage().Boost.Set(next); err != nil {
		return err
	}
	c.Env.Log(c.Vault, "Boost"+op, fields...)
	metricTransitions().AddWithLabel(1, map[string]string{"machine": "boost", "op": op})
	return nil
}

func (c *Call) saveDelegation(op string, next *delegation.Record, fields ...any) error {
	if err := c.Storage().Delegation.Set(next); err != nil {
		return err
	}
	c.Env.Log(c.Vault, "Delegation"+op, fields...)
	metricTransitions().AddWithLabel(1, map[string]string{"machine": "delegation", "op": op})
	return nil
}

func (Standard) QueueBoost(c *Call, validator meta.Address, amount *big.Int) error {
	if err := c.RequireOwner(); err != nil {
		return err
	}
	rec, err := c.Storage().Boost.Get()
	if err != nil {
		return err
	}
	free, err := c.free(c.Registry.opts.BGT, rec.Total())
	if err != nil {
		return err
	}
	if amount != nil && amount.Cmp(free) > 0 {
		return reverts.InvalidAmount("insufficient unboosted balance")
	}
	next, err := rec.Queue(validator, amount, c.block())
	if err != nil {
		return err
	}
	return c.saveBoost("Queued", next, "validator", validator, "amount", amount)
}

func (Standard) ActivateBoost(c *Call, validator meta.Address) error {
	if err := c.RequireOwner(); err != nil {
		return err
	}
	s := c.Storage()
	rec, err := s.Boost.Get()
	if err != nil {
		return err
	}
	next, err := rec.Activate(validator, c.block(), s.Boost.Delay())
	if err != nil {
		return err
	}
	return c.saveBoost("Activated", next, "validator", validator, "amount", rec.Queued)
}

func (Standard) CancelBoost(c *Call, validator meta.Address, amount *big.Int) error {
	if err := c.RequireOwner(); err != nil {
		return err
	}
	rec, err := c.Storage().Boost.Get()
	if err != nil {
		return err
	}
	next, err := rec.Cancel(validator, amount)
	if err != nil {
		return err
	}
	return c.saveBoost("Cancelled", next, "validator", validator, "amount", amount)
}

func (Standard) DropBoost(c *Call, validator meta.Address, amount *big.Int) error {
	if err := c.RequireOwner(); err != nil {
		return err
	}
	rec, err := c.Storage().Boost.Get()
	if err != nil {
		return err
	}
	next, err := rec.Drop(validator, amount)
	if err != nil {
		return err
	}
	return c.saveBoost("Dropped", next, "validator", validator, "amount", amount)
}

// unwindBoost releases boost so that amount of custody is free.
func unwindBoost(c *Call, custody, amount *big.Int) error {
	rec, err := c.Storage().Boost.Get()
	if err != nil {
		return err
	}
	free := new(big.Int).Sub(custody, rec.Total())
	if amount.Cmp(free) <= 0 {
		return nil
	}
	next, cancelled, dropped, err := rec.Unwind(new(big.Int).Sub(amount, free))
	if err != nil {
		return err
	}
	return c.saveBoost("Unwound", next, "validator", rec.Validator, "cancelled", cancelled, "dropped", dropped)
}

func (Standard) Delegate(c *Call, validator meta.Address, amount *big.Int) error {
	if err := c.RequireOwner(); err != nil {
		return err
	}
	s := c.Storage()
	rec, err := s.Delegation.Get()
	if err != nil {
		return err
	}
	free, err := c.free(c.Registry.opts.BGTM, rec.Total())
	if err != nil {
		return err
	}
	if amount != nil && amount.Cmp(free) > 0 {
		return reverts.InvalidAmount("insufficient undelegated balance")
	}
	next, err := rec.Delegate(validator, amount, c.block(), s.Delegation.Cooldown())
	if err != nil {
		return err
	}
	// compounding onto a confirmed delegation lands in pending
	op := "Queued"
	if rec.Confirmed.Sign() > 0 {
		op = "Pending"
	}
	return c.saveDelegation(op, next, "validator", validator, "amount", amount)
}

func (Standard) ActivateDelegation(c *Call, validator meta.Address) error {
	if err := c.RequireOwner(); err != nil {
		return err
	}
	s := c.Storage()
	rec, err := s.Delegation.Get()
	if err != nil {
		return err
	}
	next, err := rec.Activate(validator, c.block(), s.Delegation.ActivationWindow())
	if err != nil {
		return err
	}
	return c.saveDelegation("Activated", next, "validator", validator, "amount", rec.Unconfirmed())
}

func (Standard) Unbond(c *Call, validator meta.Address, amount *big.Int) error {
	if err := c.RequireOwner(); err != nil {
		return err
	}
	rec, err := c.Storage().Delegation.Get()
	if err != nil {
		return err
	}
	next, err := rec.Unbond(validator, amount)
	if err != nil {
		return err
	}
	return c.saveDelegation("Unbonded", next, "validator", validator, "amount", amount)
}

func (Standard) CancelDelegation(c *Call, validator meta.Address, amount *big.Int) error {
	if err := c.RequireOwner(); err != nil {
		return err
	}
	rec, err := c.Storage().Delegation.Get()
	if err != nil {
		return err
	}
	next, err := rec.Cancel(validator, amount)
	if err != nil {
		return err
	}
	return c.saveDelegation("Cancelled", next, "validator", validator, "amount", amount)
}

func unwindDelegation(c *Call, custody, amount *big.Int) error {
	rec, err := c.Storage().Delegation.Get()
	if err != nil {
		return err
	}
	free := new(big.Int).Sub(custody, rec.Total())
	if amount.Cmp(free) <= 0 {
		return nil
	}
	next, cancelled, unbonded, err := rec.Unwind(new(big.Int).Sub(amount, free))
	if err != nil {
		return err
	}
	return c.saveDelegation("Unwound", next, "validator", rec.Validator, "cancelled", cancelled, "unbonded", unbonded)
}
