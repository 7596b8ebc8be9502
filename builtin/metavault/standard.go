// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metavault

import (
	"math/big"

	"github.com/vechain/metavault/builtin/backend"
	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/metrics"
	"github.com/vechain/metavault/xenv"
)

var (
	metricStakes   = metrics.LazyLoadCounterVec("vault_stakes_count", []string{"backend", "op"})
	metricDefaults = metrics.LazyLoadCounterVec("vault_default_backend_count", []string{"backend"})
)

// Standard is the built-in MetaVault implementation.
type Standard struct{}

var _ Implementation = Standard{}

func requirePositive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return reverts.InvalidAmount("amount must be positive")
	}
	return nil
}

// RequireOwner checks the caller is the vault owner.
func (c *Call) RequireOwner() error {
	if acc, ok := c.Env.Caller().(xenv.Account); ok && acc.Addr == c.Owner {
		return nil
	}
	return reverts.Unauthorized("not vault owner", c.Env.Caller().Address())
}

// RequireChild checks the caller is the owner's child vault for asset and returns its address.
func (c *Call) RequireChild(asset meta.Address) (meta.Address, error) {
	caller := c.Env.Caller()
	cv, ok := caller.(xenv.ChildVault)
	if !ok || cv.Owner != c.Owner || cv.Asset != asset {
		return meta.Address{}, reverts.Unauthorized("not child vault", caller.Address())
	}
	f, err := c.Factory(asset)
	if err != nil {
		return meta.Address{}, err
	}
	child, err := f.VaultOf(c.Env, c.Owner)
	if err != nil {
		return meta.Address{}, err
	}
	if child.IsZero() || child != cv.Addr {
		return meta.Address{}, reverts.Unauthorized("not child vault", caller.Address())
	}
	return child, nil
}

// bindDefault makes b the default backend of asset. Switching requires the bound backend to be empty.
func bindDefault(c *Call, asset meta.Address, b backend.Backend) error {
	old, err := defaultBackend(c, asset)
	if err != nil {
		return err
	}
	if old != nil {
		if old.Address() == b.Address() {
			return nil
		}
		bal, err := old.BalanceOf(c.Env, asset, c.Vault)
		if err != nil {
			return err
		}
		if bal.Sign() > 0 {
			return reverts.Newf(reverts.Invariant, "default backend %v at %v still holds %v", old.Tag(), old.Address(), bal)
		}
	}
	if err := c.Storage().SetDefaultBackend(asset, b); err != nil {
		return err
	}
	c.Env.Log(c.Vault, "DefaultBackendSet", "asset", asset, "backend", b.Tag(), "address", b.Address())
	metricDefaults().AddWithLabel(1, map[string]string{"backend": b.Tag().String()})
	return nil
}

func (Standard) Stake(c *Call, asset meta.Address, tag backend.Tag, amount *big.Int) error {
	child, err := c.RequireChild(asset)
	if err != nil {
		return err
	}
	if err := requirePositive(amount); err != nil {
		return err
	}
	if !tag.Valid() || tag == backend.None {
		return reverts.Newf(reverts.Invariant, "invalid backend %v", tag)
	}
	b, err := c.Backend(asset, tag)
	if err != nil {
		return err
	}
	if err := bindDefault(c, asset, b); err != nil {
		return err
	}
	if err := c.Tokens().Transfer(asset, child, c.Vault, amount); err != nil {
		return err
	}
	if err := b.Stake(c.Self(), asset, amount); err != nil {
		return err
	}
	logger.Debug("staked", "vault", c.Vault, "asset", asset, "backend", tag, "amount", amount)
	c.Env.Log(c.Vault, "Staked", "asset", asset, "backend", tag, "amount", amount)
	metricStakes().AddWithLabel(1, map[string]string{"backend": tag.String(), "op": "stake"})
	return nil
}

func (Standard) Unstake(c *Call, asset meta.Address, tag backend.Tag, amount *big.Int) error {
	child, err := c.RequireChild(asset)
	if err != nil {
		return err
	}
	if err := requirePositive(amount); err != nil {
		return err
	}
	return unstake(c, child, asset, tag, amount)
}

// unstake returns amount of asset from the backend to the child vault custody.
// The default tag unstakes from the bound backend.
func unstake(c *Call, child, asset meta.Address, tag backend.Tag, amount *big.Int) error {
	b, err := defaultBackend(c, asset)
	if err != nil {
		return err
	}
	if b == nil || b.Tag() != tag {
		if b, err = c.Backend(asset, tag); err != nil {
			return err
		}
	}
	if err := b.Unstake(c.Self(), asset, amount); err != nil {
		return err
	}
	if err := c.Tokens().Transfer(asset, c.Vault, child, amount); err != nil {
		return err
	}
	logger.Debug("unstaked", "vault", c.Vault, "asset", asset, "backend", tag, "amount", amount)
	c.Env.Log(c.Vault, "Unstaked", "asset", asset, "backend", tag, "amount", amount)
	metricStakes().AddWithLabel(1, map[string]string{"backend": tag.String(), "op": "unstake"})
	return nil
}

func (Standard) SetDefaultBackend(c *Call, asset meta.Address, tag backend.Tag) error {
	if err := c.RequireOwner(); err != nil {
		return err
	}
	if !tag.Valid() || tag == backend.None {
		return reverts.Newf(reverts.Invariant, "invalid backend %v", tag)
	}
	b, err := c.Backend(asset, tag)
	if err != nil {
		return err
	}
	return bindDefault(c, asset, b)
}

// defaultBackend returns the backend asset is bound to, or nil when none is bound.
func defaultBackend(c *Call, asset meta.Address) (backend.Backend, error) {
	return stakedBackend(c.Registry, c.Config, c.Storage(), asset)
}

func (Standard) Exit(c *Call, asset meta.Address) ([]backend.Reward, error) {
	child, err := c.RequireChild(asset)
	if err != nil {
		return nil, err
	}
	b, err := defaultBackend(c, asset)
	if err != nil || b == nil {
		return nil, err
	}
	bal, err := b.BalanceOf(c.Env, asset, c.Vault)
	if err != nil {
		return nil, err
	}
	if bal.Sign() > 0 {
		if err := unstake(c, child, asset, b.Tag(), bal); err != nil {
			return nil, err
		}
	}
	return harvest(c, asset, b)
}
