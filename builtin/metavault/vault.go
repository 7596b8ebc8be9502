// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metavault

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/metavault/builtin/backend"
	"github.com/vechain/metavault/builtin/metavault/boost"
	"github.com/vechain/metavault/builtin/metavault/delegation"
	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/builtin/solidity"
	"github.com/vechain/metavault/builtin/token"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/xenv"
)

var (
	slotDefaultBackend = meta.BytesToBytes32([]byte("defaultBackend"))
	slotBoundBackend   = meta.BytesToBytes32([]byte("boundBackend"))
	slotEntered        = meta.BytesToBytes32([]byte("entered"))
)

// Implementation is the behavior shared by every MetaVault.
type Implementation interface {
	Stake(c *Call, asset meta.Address, tag backend.Tag, amount *big.Int) error
	Unstake(c *Call, asset meta.Address, tag backend.Tag, amount *big.Int) error
	GetReward(c *Call, asset meta.Address) ([]backend.Reward, error)
	Exit(c *Call, asset meta.Address) ([]backend.Reward, error)
	SetDefaultBackend(c *Call, asset meta.Address, tag backend.Tag) error
	// ChargeFee returns the fee taken.
	ChargeFee(c *Call, asset meta.Address, amount *big.Int) (*big.Int, error)
	WithdrawRewardToken(c *Call, token meta.Address, amount *big.Int, recipient meta.Address) error

	QueueBoost(c *Call, validator meta.Address, amount *big.Int) error
	ActivateBoost(c *Call, validator meta.Address) error
	CancelBoost(c *Call, validator meta.Address, amount *big.Int) error
	DropBoost(c *Call, validator meta.Address, amount *big.Int) error

	Delegate(c *Call, validator meta.Address, amount *big.Int) error
	ActivateDelegation(c *Call, validator meta.Address) error
	Unbond(c *Call, validator meta.Address, amount *big.Int) error
	CancelDelegation(c *Call, validator meta.Address, amount *big.Int) error
}

// Call is the context of one MetaVault operation.
type Call struct {
	Env      *xenv.Environment
	Registry *Registry
	Vault    meta.Address
	Owner    meta.Address
	Config   *Config
}

// Self returns an environment acting as the vault.
func (c *Call) Self() *xenv.Environment {
	return c.Env.As(xenv.Contract{Addr: c.Vault})
}

func (c *Call) Tokens() *token.Token {
	return token.New(meta.TokenAddress, c.Env.State())
}

func (c *Call) Backend(asset meta.Address, tag backend.Tag) (backend.Backend, error) {
	return c.Registry.backendOf(c.Config, asset, tag)
}

func (c *Call) Factory(asset meta.Address) (ChildFactory, error) {
	return c.Registry.factoryOf(c.Config, asset)
}

func (c *Call) Storage() *Storage {
	return newStorage(c.Vault, c.Registry.addr, c.Env)
}

// Storage is the per vault state.
type Storage struct {
	defaults   *solidity.Mapping[meta.Address, backend.Tag]
	bound      *solidity.Mapping[meta.Address, meta.Address]
	entered    *solidity.Raw[bool]
	Boost      *boost.Storage
	Delegation *delegation.Storage
}

func newStorage(vault, registry meta.Address, env *xenv.Environment) *Storage {
	ctx := solidity.NewContext(vault, env.State())
	params := solidity.NewContext(registry, env.State())
	return &Storage{
		defaults:   solidity.NewMapping[meta.Address, backend.Tag](ctx, slotDefaultBackend),
		bound:      solidity.NewMapping[meta.Address, meta.Address](ctx, slotBoundBackend),
		entered:    solidity.NewRaw[bool](ctx, slotEntered),
		Boost:      boost.NewStorage(ctx, params),
		Delegation: delegation.NewStorage(ctx, params),
	}
}

func (s *Storage) DefaultBackend(asset meta.Address) (backend.Tag, error) {
	tag, err := s.defaults.Get(asset)
	if err != nil {
		return backend.None, errors.Wrap(err, "default backend")
	}
	return tag, nil
}

// BoundBackend returns the address of the backend asset was bound to.
func (s *Storage) BoundBackend(asset meta.Address) (meta.Address, error) {
	addr, err := s.bound.Get(asset)
	if err != nil {
		return meta.Address{}, errors.Wrap(err, "bound backend")
	}
	return addr, nil
}

// SetDefaultBackend binds asset to the backend b.
func (s *Storage) SetDefaultBackend(asset meta.Address, b backend.Backend) error {
	if err := s.defaults.Set(asset, b.Tag()); err != nil {
		return err
	}
	return s.bound.Set(asset, b.Address())
}

// stakedBackend returns the backend holding the vault's stake of asset, or nil when none is bound.
// It resolves the bound address rather than the current configuration of the tag.
func stakedBackend(r *Registry, cfg *Config, s *Storage, asset meta.Address) (backend.Backend, error) {
	tag, err := s.DefaultBackend(asset)
	if err != nil || tag == backend.None {
		return nil, err
	}
	addr, err := s.BoundBackend(asset)
	if err != nil {
		return nil, err
	}
	if addr.IsZero() {
		return r.backendOf(cfg, asset, tag)
	}
	b, ok := r.boundBackend(addr)
	if !ok {
		return nil, reverts.Newf(reverts.Invariant, "unknown backend %v", addr)
	}
	return b, nil
}

// MetaVault is a handle on one vault. Every operation is forwarded to the registry's current implementation.
type MetaVault struct {
	registry *Registry
	addr     meta.Address
}

func (v *MetaVault) Address() meta.Address { return v.addr }

func (v *MetaVault) Owner(env *xenv.Environment) (meta.Address, error) {
	return v.registry.OwnerOf(env, v.addr)
}

// call runs fn atomically against the current implementation, holding the re-entrancy guard.
func (v *MetaVault) call(env *xenv.Environment, fn func(c *Call, impl Implementation) error) error {
	return env.Atomic(func() error {
		owner, err := v.registry.OwnerOf(env, v.addr)
		if err != nil {
			return err
		}
		if owner.IsZero() {
			return reverts.Newf(reverts.Invariant, "no metavault at %v", v.addr)
		}
		cfg, err := v.registry.Config(env)
		if err != nil {
			return err
		}
		impl, ok := v.registry.implementation(cfg.Implementation)
		if !ok {
			return reverts.Newf(reverts.Invariant, "unknown implementation %v", cfg.Implementation)
		}
		c := &Call{Env: env, Registry: v.registry, Vault: v.addr, Owner: owner, Config: cfg}
		s := c.Storage()
		entered, err := s.entered.Get()
		if err != nil {
			return errors.Wrap(err, "entered")
		}
		if entered {
			return reverts.New("reentrant call")
		}
		if err := s.entered.Set(true); err != nil {
			return err
		}
		if err := fn(c, impl); err != nil {
			return err
		}
		return s.entered.Set(false)
	})
}

func (v *MetaVault) Stake(env *xenv.Environment, asset meta.Address, tag backend.Tag, amount *big.Int) error {
	return v.call(env, func(c *Call, impl Implementation) error {
		return impl.Stake(c, asset, tag, amount)
	})
}

func (v *MetaVault) Unstake(env *xenv.Environment, asset meta.Address, tag backend.Tag, amount *big.Int) error {
	return v.call(env, func(c *Call, impl Implementation) error {
		return impl.Unstake(c, asset, tag, amount)
	})
}

func (v *MetaVault) GetReward(env *xenv.Environment, asset meta.Address) (rewards []backend.Reward, err error) {
	err = v.call(env, func(c *Call, impl Implementation) error {
		rewards, err = impl.GetReward(c, asset)
		return err
	})
	return
}

func (v *MetaVault) Exit(env *xenv.Environment, asset meta.Address) (rewards []backend.Reward, err error) {
	err = v.call(env, func(c *Call, impl Implementation) error {
		rewards, err = impl.Exit(c, asset)
		return err
	})
	return
}

func (v *MetaVault) SetDefaultBackend(env *xenv.Environment, asset meta.Address, tag backend.Tag) error {
	return v.call(env, func(c *Call, impl Implementation) error {
		return impl.SetDefaultBackend(c, asset, tag)
	})
}

func (v *MetaVault) ChargeFee(env *xenv.Environment, asset meta.Address, amount *big.Int) (fee *big.Int, err error) {
	err = v.call(env, func(c *Call, impl Implementation) error {
		fee, err = impl.ChargeFee(c, asset, amount)
		return err
	})
	return
}

func (v *MetaVault) WithdrawRewardToken(env *xenv.Environment, token meta.Address, amount *big.Int, recipient meta.Address) error {
	return v.call(env, func(c *Call, impl Implementation) error {
		return impl.WithdrawRewardToken(c, token, amount, recipient)
	})
}

func (v *MetaVault) QueueBoost(env *xenv.Environment, validator meta.Address, amount *big.Int) error {
	return v.call(env, func(c *Call, impl Implementation) error {
		return impl.QueueBoost(c, validator, amount)
	})
}

func (v *MetaVault) ActivateBoost(env *xenv.Environment, validator meta.Address) error {
	return v.call(env, func(c *Call, impl Implementation) error {
		return impl.ActivateBoost(c, validator)
	})
}

func (v *MetaVault) CancelBoost(env *xenv.Environment, validator meta.Address, amount *big.Int) error {
	return v.call(env, func(c *Call, impl Implementation) error {
		return impl.CancelBoost(c, validator, amount)
	})
}

func (v *MetaVault) DropBoost(env *xenv.Environment, validator meta.Address, amount *big.Int) error {
	return v.call(env, func(c *Call, impl Implementation) error {
		return impl.DropBoost(c, validator, amount)
	})
}

func (v *MetaVault) Delegate(env *xenv.Environment, validator meta.Address, amount *big.Int) error {
	return v.call(env, func(c *Call, impl Implementation) error {
		return impl.Delegate(c, validator, amount)
	})
}

func (v *MetaVault) ActivateDelegation(env *xenv.Environment, validator meta.Address) error {
	return v.call(env, func(c *Call, impl Implementation) error {
		return impl.ActivateDelegation(c, validator)
	})
}

func (v *MetaVault) Unbond(env *xenv.Environment, validator meta.Address, amount *big.Int) error {
	return v.call(env, func(c *Call, impl Implementation) error {
		return impl.Unbond(c, validator, amount)
	})
}

func (v *MetaVault) CancelDelegation(env *xenv.Environment, validator meta.Address, amount *big.Int) error {
	return v.call(env, func(c *Call, impl Implementation) error {
		return impl.CancelDelegation(c, validator, amount)
	})
}

// DefaultBackend returns the backend bound to asset.
func (v *MetaVault) DefaultBackend(env *xenv.Environment, asset meta.Address) (backend.Tag, error) {
	return newStorage(v.addr, v.registry.addr, env).DefaultBackend(asset)
}

// StakedBalance returns the balance of asset in the backend the default is bound to.
func (v *MetaVault) StakedBalance(env *xenv.Environment, asset meta.Address) (*big.Int, error) {
	cfg, err := v.registry.Config(env)
	if err != nil {
		return nil, err
	}
	b, err := stakedBackend(v.registry, cfg, newStorage(v.addr, v.registry.addr, env), asset)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return new(big.Int), nil
	}
	return b.BalanceOf(env, asset, v.addr)
}

func (v *MetaVault) BoostRecord(env *xenv.Environment) (*boost.Record, error) {
	return newStorage(v.addr, v.registry.addr, env).Boost.Get()
}

func (v *MetaVault) DelegationRecord(env *xenv.Environment) (*delegation.Record, error) {
	return newStorage(v.addr, v.registry.addr, env).Delegation.Get()
}

// BlocksToActivate returns the blocks left before the queued boost can be activated.
func (v *MetaVault) BlocksToActivate(env *xenv.Environment) (uint32, error) {
	s := newStorage(v.addr, v.registry.addr, env)
	r, err := s.Boost.Get()
	if err != nil {
		return 0, err
	}
	return r.BlocksToActivate(env.BlockContext().Number, s.Boost.Delay()), nil
}
