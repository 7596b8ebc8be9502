// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package isolation implements the child isolation vaults. A child vault wraps one asset of one
// owner into an isolation market of the margin ledger and leaves staking to the owner's MetaVault.
package isolation

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/metavault/builtin/backend"
	"github.com/vechain/metavault/builtin/ledger"
	"github.com/vechain/metavault/builtin/metavault"
	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/builtin/solidity"
	"github.com/vechain/metavault/builtin/token"
	"github.com/vechain/metavault/log"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/metrics"
	"github.com/vechain/metavault/xenv"
)

var (
	logger = log.WithContext("pkg", "isolation")

	metricVaultsCreated = metrics.LazyLoadCounterVec("isolation_vaults_created_count", []string{"class"})
)

var (
	slotVaults  = meta.BytesToBytes32([]byte("vaults"))
	slotRecords = meta.BytesToBytes32([]byte("records"))
	slotTraders = meta.BytesToBytes32([]byte("traders"))
)

// Vault is a child isolation vault.
type Vault struct {
	Owner meta.Address
	Asset meta.Address
	Class metavault.Class
}

// Factory creates and operates the child vaults of one asset class.
type Factory struct {
	addr     meta.Address
	class    metavault.Class
	asset    meta.Address
	market   uint64
	registry *metavault.Registry
	ledger   ledger.Ledger
}

var _ metavault.ChildFactory = (*Factory)(nil)

// NewFactory returns the factory of class for asset. Positions are kept in the isolation market.
// The factory must be a global operator of the ledger.
func NewFactory(addr meta.Address, class metavault.Class, asset meta.Address, market uint64, registry *metavault.Registry) *Factory {
	return &Factory{
		addr:     addr,
		class:    class,
		asset:    asset,
		market:   market,
		registry: registry,
		ledger:   registry.Options().Ledger,
	}
}

func (f *Factory) Address() meta.Address  { return f.addr }
func (f *Factory) Class() metavault.Class { return f.class }
func (f *Factory) Asset() meta.Address    { return f.asset }
func (f *Factory) Market() uint64         { return f.market }

type storage struct {
	vaults  *solidity.Mapping[meta.Address, meta.Address]
	records *solidity.Mapping[meta.Address, *Vault]
	traders *solidity.Mapping[meta.Address, bool]
	tokens  *token.Token
}

func (f *Factory) storage(env *xenv.Environment) *storage {
	ctx := solidity.NewContext(f.addr, env.State())
	return &storage{
		vaults:  solidity.NewMapping[meta.Address, meta.Address](ctx, slotVaults),
		records: solidity.NewMapping[meta.Address, *Vault](ctx, slotRecords),
		traders: solidity.NewMapping[meta.Address, bool](ctx, slotTraders),
		tokens:  token.New(meta.TokenAddress, env.State()),
	}
}

// custodial classes keep their tokens in the MetaVault.
func (f *Factory) custodial() bool {
	return f.class == metavault.ClassBGT || f.class == metavault.ClassBGTM
}

// CalculateAddress returns the child vault address of owner.
func (f *Factory) CalculateAddress(owner meta.Address) meta.Address {
	return meta.CreateVaultAddress(f.addr, owner, meta.Keccak256([]byte(f.class)))
}

func (f *Factory) VaultOf(env *xenv.Environment, owner meta.Address) (meta.Address, error) {
	addr, err := f.storage(env).vaults.Get(owner)
	if err != nil {
		return meta.Address{}, errors.Wrap(err, "vault of")
	}
	return addr, nil
}

// Vault returns the record of the child vault at addr, or nil.
func (f *Factory) Vault(env *xenv.Environment, addr meta.Address) (*Vault, error) {
	v, err := f.storage(env).records.Get(addr)
	if err != nil {
		return nil, errors.Wrap(err, "vault record")
	}
	return v, nil
}

func (f *Factory) GetOrCreate(env *xenv.Environment, owner meta.Address) (addr meta.Address, err error) {
	err = env.Atomic(func() error {
		if _, err := f.registry.GetOrCreate(env, owner); err != nil {
			return err
		}
		s := f.storage(env)
		if addr, err = s.vaults.Get(owner); err != nil {
			return errors.Wrap(err, "vault of")
		}
		if !addr.IsZero() {
			return nil
		}
		addr = f.CalculateAddress(owner)
		if err := s.vaults.Set(owner, addr); err != nil {
			return err
		}
		if err := s.records.Set(addr, &Vault{Owner: owner, Asset: f.asset, Class: f.class}); err != nil {
			return err
		}
		logger.Debug("vault created", "class", f.class, "owner", owner, "vault", addr)
		env.Log(f.addr, "VaultCreated", "class", f.class, "owner", owner, "vault", addr)
		metricVaultsCreated().AddWithLabel(1, map[string]string{"class": string(f.class)})
		return nil
	})
	return
}

func (f *Factory) account(child meta.Address) ledger.Account {
	return ledger.Account{Owner: child, Number: meta.DefaultAccountNumber}
}

func (f *Factory) operator(env *xenv.Environment) *xenv.Environment {
	return env.As(xenv.Contract{Addr: f.addr})
}

// metaVault returns the MetaVault handle of owner and an environment acting as the owner's child vault.
func (f *Factory) metaVault(env *xenv.Environment, owner, child meta.Address) (*metavault.MetaVault, *xenv.Environment, error) {
	vault, err := f.registry.VaultOf(env, owner)
	if err != nil {
		return nil, nil, err
	}
	if vault.IsZero() {
		return nil, nil, reverts.Newf(reverts.Invariant, "no metavault for %v", owner)
	}
	return f.registry.Vault(vault), env.As(xenv.ChildVault{Addr: child, Owner: owner, Asset: f.asset}), nil
}

func (f *Factory) CreditReward(env *xenv.Environment, owner meta.Address, amount *big.Int) error {
	vault, err := f.registry.VaultOf(env, owner)
	if err != nil {
		return err
	}
	if c, ok := env.Caller().(xenv.Contract); !ok || vault.IsZero() || c.Addr != vault {
		return reverts.Unauthorized("not metavault of owner", env.Caller().Address())
	}
	child, err := f.VaultOf(env, owner)
	if err != nil {
		return err
	}
	if child.IsZero() {
		return reverts.Newf(reverts.Invariant, "no %v vault for %v", f.class, owner)
	}
	logger.Debug("reward credited", "class", f.class, "owner", owner, "amount", amount)
	return f.ledger.Credit(f.operator(env), f.account(child), f.market, amount)
}

// SetTrader allows trader to act on behalf of vault owners.
func (f *Factory) SetTrader(env *xenv.Environment, trader meta.Address, approved bool) error {
	cfg, err := f.registry.Config(env)
	if err != nil {
		return err
	}
	if admin, ok := env.Caller().(xenv.Admin); !ok || admin.Addr != cfg.Owner {
		return reverts.Unauthorized("not registry owner", env.Caller().Address())
	}
	env.Log(f.addr, "TraderSet", "trader", trader, "approved", approved)
	return f.storage(env).traders.Set(trader, approved)
}

// authorize checks the caller is owner or an approved trader and returns the owner's child vault.
func (f *Factory) authorize(env *xenv.Environment, owner meta.Address) (meta.Address, error) {
	caller := env.Caller()
	switch c := caller.(type) {
	case xenv.Account:
		if c.Addr != owner {
			return meta.Address{}, reverts.Unauthorized("not vault owner", c.Addr)
		}
	case xenv.Trader:
		ok, err := f.storage(env).traders.Get(c.Addr)
		if err != nil {
			return meta.Address{}, errors.Wrap(err, "trader")
		}
		if !ok {
			return meta.Address{}, reverts.Unauthorized("not approved trader", c.Addr)
		}
	default:
		return meta.Address{}, reverts.Unauthorized("not vault owner", caller.Address())
	}
	child, err := f.VaultOf(env, owner)
	if err != nil {
		return meta.Address{}, err
	}
	if child.IsZero() {
		return meta.Address{}, reverts.Newf(reverts.Invariant, "no %v vault for %v", f.class, owner)
	}
	return child, nil
}

// UnderlyingBalance is the custody of the child vault plus what the MetaVault stakes for it.
// For custodial classes it is the MetaVault custody of the asset.
func (f *Factory) UnderlyingBalance(env *xenv.Environment, owner meta.Address) (*big.Int, error) {
	child, err := f.VaultOf(env, owner)
	if err != nil || child.IsZero() {
		return new(big.Int), err
	}
	tokens := f.storage(env).tokens
	vault, err := f.registry.VaultOf(env, owner)
	if err != nil {
		return nil, err
	}
	if f.custodial() {
		return tokens.BalanceOf(f.asset, vault)
	}
	custody, err := tokens.BalanceOf(f.asset, child)
	if err != nil {
		return nil, err
	}
	staked, err := f.registry.Vault(vault).StakedBalance(env, f.asset)
	if err != nil {
		return nil, err
	}
	return custody.Add(custody, staked), nil
}

// Deposit moves amount of the asset from the caller into the child vault of owner and credits
// the isolation market.
func (f *Factory) Deposit(env *xenv.Environment, owner meta.Address, amount *big.Int) error {
	if f.custodial() {
		return reverts.Newf(reverts.Invariant, "%v vaults take no deposits", f.class)
	}
	return env.Atomic(func() error {
		if _, err := f.GetOrCreate(env, owner); err != nil {
			return err
		}
		child, err := f.authorize(env, owner)
		if err != nil {
			return err
		}
		if err := f.storage(env).tokens.Transfer(f.asset, env.Caller().Address(), child, amount); err != nil {
			return err
		}
		if err := f.ledger.Credit(f.operator(env), f.account(child), f.market, amount); err != nil {
			return err
		}
		env.Log(f.addr, "Deposit", "owner", owner, "vault", child, "amount", amount)
		return nil
	})
}

// Withdraw debits the isolation market and sends amount of the asset to to, unstaking
// from the MetaVault what the child vault custody lacks.
func (f *Factory) Withdraw(env *xenv.Environment, owner meta.Address, amount *big.Int, to meta.Address) error {
	return env.Atomic(func() error {
		child, err := f.authorize(env, owner)
		if err != nil {
			return err
		}
		if err := f.ledger.Debit(f.operator(env), f.account(child), f.market, amount); err != nil {
			return err
		}
		mv, asChild, err := f.metaVault(env, owner, child)
		if err != nil {
			return err
		}
		if f.custodial() {
			if err := mv.WithdrawRewardToken(asChild, f.asset, amount, to); err != nil {
				return err
			}
		} else {
			if err := f.release(env, mv, asChild, child, amount); err != nil {
				return err
			}
			if err := f.storage(env).tokens.Transfer(f.asset, child, to, amount); err != nil {
				return err
			}
		}
		env.Log(f.addr, "Withdraw", "owner", owner, "vault", child, "amount", amount, "to", to)
		return nil
	})
}

// release unstakes what the custody of child lacks to cover amount.
func (f *Factory) release(env *xenv.Environment, mv *metavault.MetaVault, asChild *xenv.Environment, child meta.Address, amount *big.Int) error {
	custody, err := f.storage(env).tokens.BalanceOf(f.asset, child)
	if err != nil {
		return err
	}
	if custody.Cmp(amount) >= 0 {
		return nil
	}
	tag, err := mv.DefaultBackend(env, f.asset)
	if err != nil {
		return err
	}
	if tag == backend.None {
		return reverts.InvalidAmount("insufficient vault balance")
	}
	return mv.Unstake(asChild, f.asset, tag, new(big.Int).Sub(amount, custody))
}

// Release makes amount of the asset available in the child vault custody.
func (f *Factory) Release(env *xenv.Environment, owner meta.Address, amount *big.Int) error {
	child, err := f.authorize(env, owner)
	if err != nil {
		return err
	}
	mv, asChild, err := f.metaVault(env, owner, child)
	if err != nil {
		return err
	}
	return f.release(env, mv, asChild, child, amount)
}

// Stake stakes amount of the child vault custody through the owner's MetaVault.
func (f *Factory) Stake(env *xenv.Environment, owner meta.Address, tag backend.Tag, amount *big.Int) error {
	child, err := f.authorize(env, owner)
	if err != nil {
		return err
	}
	mv, asChild, err := f.metaVault(env, owner, child)
	if err != nil {
		return err
	}
	return mv.Stake(asChild, f.asset, tag, amount)
}

func (f *Factory) Unstake(env *xenv.Environment, owner meta.Address, tag backend.Tag, amount *big.Int) error {
	child, err := f.authorize(env, owner)
	if err != nil {
		return err
	}
	mv, asChild, err := f.metaVault(env, owner, child)
	if err != nil {
		return err
	}
	return mv.Unstake(asChild, f.asset, tag, amount)
}

// GetReward harvests through the child vault. Only classes whose rewards are child initiated accept it.
func (f *Factory) GetReward(env *xenv.Environment, owner meta.Address) ([]backend.Reward, error) {
	child, err := f.authorize(env, owner)
	if err != nil {
		return nil, err
	}
	mv, asChild, err := f.metaVault(env, owner, child)
	if err != nil {
		return nil, err
	}
	return mv.GetReward(asChild, f.asset)
}

func (f *Factory) Exit(env *xenv.Environment, owner meta.Address) ([]backend.Reward, error) {
	child, err := f.authorize(env, owner)
	if err != nil {
		return nil, err
	}
	mv, asChild, err := f.metaVault(env, owner, child)
	if err != nil {
		return nil, err
	}
	return mv.Exit(asChild, f.asset)
}

// ChargeFee applies the exit fee to amount of the staked position.
func (f *Factory) ChargeFee(env *xenv.Environment, owner meta.Address, amount *big.Int) (*big.Int, error) {
	child, err := f.authorize(env, owner)
	if err != nil {
		return nil, err
	}
	mv, asChild, err := f.metaVault(env, owner, child)
	if err != nil {
		return nil, err
	}
	return mv.ChargeFee(asChild, f.asset, amount)
}

// Transfer sends amount from the custody of the owner's child vault to to.
func (f *Factory) Transfer(env *xenv.Environment, owner meta.Address, amount *big.Int, to meta.Address) error {
	child, err := f.authorize(env, owner)
	if err != nil {
		return err
	}
	return f.storage(env).tokens.Transfer(f.asset, child, to, amount)
}

// Credit and Debit change the isolation position of the owner's child vault.
func (f *Factory) Credit(env *xenv.Environment, owner meta.Address, amount *big.Int) error {
	child, err := f.authorize(env, owner)
	if err != nil {
		return err
	}
	return f.ledger.Credit(f.operator(env), f.account(child), f.market, amount)
}

func (f *Factory) Debit(env *xenv.Environment, owner meta.Address, amount *big.Int) error {
	child, err := f.authorize(env, owner)
	if err != nil {
		return err
	}
	return f.ledger.Debit(f.operator(env), f.account(child), f.market, amount)
}

// Position returns the isolation market balance of the owner's child vault.
func (f *Factory) Position(env *xenv.Environment, owner meta.Address) (*big.Int, error) {
	child, err := f.VaultOf(env, owner)
	if err != nil || child.IsZero() {
		return new(big.Int), err
	}
	return f.ledger.BalanceOf(env, f.account(child), f.market)
}
