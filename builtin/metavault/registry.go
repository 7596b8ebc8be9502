// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package metavault implements the per-account reward routing vaults and their registry.
//
// Every account owns at most one MetaVault, derived deterministically from the account and
// created on first use. All vaults share one behavior object selected by the registry's
// implementation pointer, so swapping the implementation upgrades every vault at once.
package metavault

import (
	"math/big"
	"sync"

	"github.com/pkg/errors"

	"github.com/vechain/metavault/builtin/backend"
	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/builtin/solidity"
	"github.com/vechain/metavault/cache"
	"github.com/vechain/metavault/log"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/metrics"
	"github.com/vechain/metavault/xenv"
)

var (
	logger = log.WithContext("pkg", "metavault")

	metricVaultsCreated = metrics.LazyLoadCounter("vaults_created_count")
	metricAdminUpdates  = metrics.LazyLoadCounterVec("registry_updates_count", []string{"op"})
)

// StandardImplementation is the address the built-in implementation is registered under.
var StandardImplementation = meta.BytesToAddress([]byte("MetaVaultV1"))

var (
	slotConfig  = meta.BytesToBytes32([]byte("config"))
	slotVaults  = meta.BytesToBytes32([]byte("vaults"))
	slotVaultOf = meta.BytesToBytes32([]byte("vaultOf"))
)

const addressCacheSize = 4096

// Registry maps accounts to their MetaVault and holds the shared configuration.
type Registry struct {
	addr meta.Address
	opts Options

	addresses *cache.LRU[meta.Address, meta.Address]

	lock            sync.RWMutex
	implementations map[meta.Address]Implementation
	backends        map[meta.Address]backend.Backend
	factories       map[meta.Address]ChildFactory
}

func NewRegistry(addr meta.Address, opts Options) *Registry {
	addresses, err := cache.NewLRU[meta.Address, meta.Address]("vault_address", addressCacheSize)
	if err != nil {
		panic(err) // size is a positive constant
	}
	r := &Registry{
		addr:            addr,
		opts:            opts,
		addresses:       addresses,
		implementations: make(map[meta.Address]Implementation),
		backends:        make(map[meta.Address]backend.Backend),
		factories:       make(map[meta.Address]ChildFactory),
	}
	r.RegisterImplementation(StandardImplementation, Standard{})
	return r
}

func (r *Registry) Address() meta.Address { return r.addr }
func (r *Registry) Options() Options      { return r.opts }

// RegisterImplementation makes impl selectable by SetImplementation.
func (r *Registry) RegisterImplementation(addr meta.Address, impl Implementation) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.implementations[addr] = impl
}

// BindBackend makes b reachable by its address.
func (r *Registry) BindBackend(b backend.Backend) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.backends[b.Address()] = b
}

// BindFactory makes f reachable by its address.
func (r *Registry) BindFactory(f ChildFactory) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.factories[f.Address()] = f
}

func (r *Registry) implementation(addr meta.Address) (Implementation, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	impl, ok := r.implementations[addr]
	return impl, ok
}

func (r *Registry) boundBackend(addr meta.Address) (backend.Backend, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	b, ok := r.backends[addr]
	return b, ok
}

func (r *Registry) boundFactory(addr meta.Address) (ChildFactory, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	f, ok := r.factories[addr]
	return f, ok
}

type registryStorage struct {
	context *solidity.Context
	config  *solidity.Raw[*Config]
	vaults  *solidity.Mapping[meta.Address, *vaultRecord]
	vaultOf *solidity.Mapping[meta.Address, meta.Address]
}

func (r *Registry) storage(env *xenv.Environment) *registryStorage {
	ctx := solidity.NewContext(r.addr, env.State())
	return &registryStorage{
		context: ctx,
		config:  solidity.NewRaw[*Config](ctx, slotConfig),
		vaults:  solidity.NewMapping[meta.Address, *vaultRecord](ctx, slotVaults),
		vaultOf: solidity.NewMapping[meta.Address, meta.Address](ctx, slotVaultOf),
	}
}

// Config returns a snapshot of the registry configuration.
func (r *Registry) Config(env *xenv.Environment) (*Config, error) {
	cfg, err := r.storage(env).config.Get()
	if err != nil {
		return nil, errors.Wrap(err, "registry config")
	}
	if cfg == nil {
		return newConfig(), nil
	}
	if cfg.FeePercentage == nil {
		cfg.FeePercentage = new(big.Int)
	}
	return cfg, nil
}

// Bootstrap sets the registry owner and selects the standard implementation. It works once.
func (r *Registry) Bootstrap(env *xenv.Environment, owner meta.Address) error {
	if owner.IsZero() {
		return reverts.New("invalid owner")
	}
	return env.Atomic(func() error {
		cfg, err := r.Config(env)
		if err != nil {
			return err
		}
		if !cfg.Owner.IsZero() {
			return reverts.New("registry already bootstrapped")
		}
		cfg.Owner = owner
		cfg.Implementation = StandardImplementation
		cfg.Version++
		env.Log(r.addr, "OwnerSet", "owner", owner)
		return r.storage(env).config.Set(cfg)
	})
}

// update applies an owner only change to the configuration.
func (r *Registry) update(env *xenv.Environment, op string, fn func(cfg *Config) error) error {
	return env.Atomic(func() error {
		cfg, err := r.Config(env)
		if err != nil {
			return err
		}
		admin, ok := env.Caller().(xenv.Admin)
		if !ok || cfg.Owner.IsZero() || admin.Addr != cfg.Owner {
			return reverts.Unauthorized("not registry owner", env.Caller().Address())
		}
		if err := fn(cfg); err != nil {
			return err
		}
		cfg.Version++
		if err := r.storage(env).config.Set(cfg); err != nil {
			return err
		}
		logger.Debug("config updated", "op", op, "version", cfg.Version)
		metricAdminUpdates().AddWithLabel(1, map[string]string{"op": op})
		return nil
	})
}

// SetImplementation swaps the behavior of every vault.
func (r *Registry) SetImplementation(env *xenv.Environment, addr meta.Address) error {
	return r.update(env, "implementation", func(cfg *Config) error {
		if _, ok := r.implementation(addr); !ok {
			return reverts.Newf(reverts.Invariant, "unknown implementation %v", addr)
		}
		cfg.Implementation = addr
		env.Log(r.addr, "ImplementationSet", "implementation", addr)
		return nil
	})
}

// SetBackend sets the default address of a backend variant.
func (r *Registry) SetBackend(env *xenv.Environment, tag backend.Tag, addr meta.Address) error {
	return r.update(env, "backend", func(cfg *Config) error {
		if !tag.Valid() || tag == backend.None {
			return reverts.Newf(reverts.Invariant, "invalid backend tag %v", tag)
		}
		if err := r.requireBackend(addr, tag); err != nil {
			return err
		}
		cfg.setBackend(tag, addr)
		env.Log(r.addr, "BackendSet", "tag", tag, "backend", addr)
		return nil
	})
}

// SetBackendOverride sets the backend of tag used for asset. A zero address removes the override.
func (r *Registry) SetBackendOverride(env *xenv.Environment, asset meta.Address, tag backend.Tag, addr meta.Address) error {
	return r.update(env, "backend-override", func(cfg *Config) error {
		if !tag.Valid() || tag == backend.None {
			return reverts.Newf(reverts.Invariant, "invalid backend tag %v", tag)
		}
		if !addr.IsZero() {
			if err := r.requireBackend(addr, tag); err != nil {
				return err
			}
		}
		cfg.setOverride(asset, tag, addr)
		env.Log(r.addr, "BackendOverrideSet", "asset", asset, "tag", tag, "backend", addr)
		return nil
	})
}

func (r *Registry) requireBackend(addr meta.Address, tag backend.Tag) error {
	b, ok := r.boundBackend(addr)
	if !ok {
		return reverts.Newf(reverts.Invariant, "unknown backend %v", addr)
	}
	if b.Tag() != tag {
		return reverts.Newf(reverts.Invariant, "backend %v is %v, not %v", addr, b.Tag(), tag)
	}
	return nil
}

func (r *Registry) SetFeeAgent(env *xenv.Environment, agent meta.Address) error {
	return r.update(env, "fee-agent", func(cfg *Config) error {
		cfg.FeeAgent = agent
		env.Log(r.addr, "FeeAgentSet", "agent", agent)
		return nil
	})
}

// SetFeePercentage sets the exit fee, scaled by meta.FeePrecision. It must be below 100%.
func (r *Registry) SetFeePercentage(env *xenv.Environment, fraction *big.Int) error {
	return r.update(env, "fee-percentage", func(cfg *Config) error {
		if fraction == nil || fraction.Sign() < 0 || fraction.Cmp(meta.FeePrecision) >= 0 {
			return reverts.InvalidAmount("fee percentage out of range")
		}
		cfg.FeePercentage = new(big.Int).Set(fraction)
		env.Log(r.addr, "FeePercentageSet", "fraction", fraction)
		return nil
	})
}

// SetVaultFactory sets the child vault factory of an asset class.
func (r *Registry) SetVaultFactory(env *xenv.Environment, asset, factory meta.Address) error {
	return r.update(env, "factory", func(cfg *Config) error {
		f, ok := r.boundFactory(factory)
		if !ok {
			return reverts.Newf(reverts.Invariant, "unknown factory %v", factory)
		}
		if f.Asset() != asset {
			return reverts.Newf(reverts.Invariant, "factory %v serves %v", factory, f.Asset())
		}
		cfg.setFactory(asset, factory)
		env.Log(r.addr, "VaultFactorySet", "asset", asset, "factory", factory)
		return nil
	})
}

// SetRewardClass routes the reward token into the child vaults of asset.
func (r *Registry) SetRewardClass(env *xenv.Environment, token, asset meta.Address) error {
	return r.update(env, "reward-class", func(cfg *Config) error {
		if _, ok := cfg.Factory(asset); !ok {
			return reverts.Newf(reverts.Invariant, "no factory for %v", asset)
		}
		cfg.setRewardClass(token, asset)
		env.Log(r.addr, "RewardClassSet", "token", token, "asset", asset)
		return nil
	})
}

func (r *Registry) SetOwner(env *xenv.Environment, owner meta.Address) error {
	return r.update(env, "owner", func(cfg *Config) error {
		if owner.IsZero() {
			return reverts.New("invalid owner")
		}
		cfg.Owner = owner
		env.Log(r.addr, "OwnerSet", "owner", owner)
		return nil
	})
}

// CalculateAddress returns the MetaVault address of account, whether or not it exists.
func (r *Registry) CalculateAddress(account meta.Address) meta.Address {
	if addr, ok := r.addresses.Get(account); ok {
		return addr
	}
	addr := meta.CreateVaultAddress(r.addr, account, r.opts.InitHash)
	r.addresses.Add(account, addr)
	if changed, hit, miss := r.addresses.Stats(); changed {
		logger.Debug("vault address cache", "hit", hit, "miss", miss)
	}
	return addr
}

// GetOrCreate returns the MetaVault of account, creating it on first use.
func (r *Registry) GetOrCreate(env *xenv.Environment, account meta.Address) (meta.Address, error) {
	if account.IsZero() {
		return meta.Address{}, reverts.New("Invalid account")
	}
	addr := r.CalculateAddress(account)
	err := env.Atomic(func() error {
		s := r.storage(env)
		rec, err := s.vaults.Get(addr)
		if err != nil {
			return errors.Wrap(err, "vault record")
		}
		if rec != nil && rec.Initialized {
			if rec.Owner != account {
				return reverts.New("Invalid account")
			}
			return nil
		}
		if err := s.vaults.Set(addr, &vaultRecord{Owner: account, Initialized: true}); err != nil {
			return err
		}
		if err := s.vaultOf.Set(account, addr); err != nil {
			return err
		}
		logger.Debug("metavault created", "account", account, "vault", addr)
		env.Log(r.addr, "MetaVaultCreated", "account", account, "vault", addr)
		metricVaultsCreated().Add(1)
		return nil
	})
	if err != nil {
		return meta.Address{}, err
	}
	return addr, nil
}

// VaultOf returns the MetaVault of account, or the zero address.
func (r *Registry) VaultOf(env *xenv.Environment, account meta.Address) (meta.Address, error) {
	addr, err := r.storage(env).vaultOf.Get(account)
	if err != nil {
		return meta.Address{}, errors.Wrap(err, "vault of")
	}
	return addr, nil
}

// OwnerOf returns the owner of vault, or the zero address.
func (r *Registry) OwnerOf(env *xenv.Environment, vault meta.Address) (meta.Address, error) {
	rec, err := r.storage(env).vaults.Get(vault)
	if err != nil {
		return meta.Address{}, errors.Wrap(err, "vault record")
	}
	if rec == nil || !rec.Initialized {
		return meta.Address{}, nil
	}
	return rec.Owner, nil
}

// Backend resolves the backend of tag for asset.
func (r *Registry) Backend(env *xenv.Environment, asset meta.Address, tag backend.Tag) (backend.Backend, error) {
	cfg, err := r.Config(env)
	if err != nil {
		return nil, err
	}
	return r.backendOf(cfg, asset, tag)
}

func (r *Registry) backendOf(cfg *Config, asset meta.Address, tag backend.Tag) (backend.Backend, error) {
	addr, ok := cfg.BackendAddress(asset, tag)
	if !ok {
		return nil, reverts.Newf(reverts.Invariant, "no %v backend for %v", tag, asset)
	}
	b, ok := r.boundBackend(addr)
	if !ok {
		return nil, reverts.Newf(reverts.Invariant, "unknown backend %v", addr)
	}
	return b, nil
}

// Factory resolves the child vault factory of asset.
func (r *Registry) Factory(env *xenv.Environment, asset meta.Address) (ChildFactory, error) {
	cfg, err := r.Config(env)
	if err != nil {
		return nil, err
	}
	return r.factoryOf(cfg, asset)
}

func (r *Registry) factoryOf(cfg *Config, asset meta.Address) (ChildFactory, error) {
	addr, ok := cfg.Factory(asset)
	if !ok {
		return nil, reverts.Newf(reverts.Invariant, "no vault factory for %v", asset)
	}
	f, ok := r.boundFactory(addr)
	if !ok {
		return nil, reverts.Newf(reverts.Invariant, "unknown factory %v", addr)
	}
	return f, nil
}

// Vault returns a handle on the MetaVault at addr.
func (r *Registry) Vault(addr meta.Address) *MetaVault {
	return &MetaVault{registry: r, addr: addr}
}
