// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metavault

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/vechain/metavault/builtin/backend"
	"github.com/vechain/metavault/builtin/ledger"
	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/metrics"
	"github.com/vechain/metavault/xenv"
)

var (
	metricRewardRoutes = metrics.LazyLoadCounterVec("vault_reward_routes_count", []string{"destination"})
	metricFees         = metrics.LazyLoadCounter("vault_fees_charged_count")
)

// Reward destinations.
const (
	DestinationChildVault = "child-vault"
	DestinationLedger     = "ledger"
	DestinationWallet     = "wallet"
)

type rewardCaller uint8

const (
	rewardByOwner rewardCaller = iota + 1
	rewardByChild
)

// rewardPolicy is who may harvest the rewards of each vault class.
// Classes without an entry have no reward backend.
var rewardPolicy = map[Class]rewardCaller{
	ClassBera: rewardByOwner,
	ClassIBGT: rewardByOwner,
	ClassPOL:  rewardByChild,
}

func (Standard) GetReward(c *Call, asset meta.Address) ([]backend.Reward, error) {
	f, err := c.Factory(asset)
	if err != nil {
		return nil, err
	}
	switch rewardPolicy[f.Class()] {
	case rewardByOwner:
		if err := c.RequireOwner(); err != nil {
			return nil, err
		}
	case rewardByChild:
		if _, err := c.RequireChild(asset); err != nil {
			return nil, err
		}
	default:
		return nil, reverts.Newf(reverts.Invariant, "%v vaults have no reward backend", f.Class())
	}
	b, err := defaultBackend(c, asset)
	if err != nil || b == nil {
		return nil, err
	}
	return harvest(c, asset, b)
}

// harvest collects every pending reward of asset from b and routes it.
func harvest(c *Call, asset meta.Address, b backend.Backend) ([]backend.Reward, error) {
	rewards, err := b.GetReward(c.Self(), asset)
	if err != nil {
		return nil, err
	}
	for _, rw := range rewards {
		if err := route(c, rw); err != nil {
			return nil, err
		}
	}
	return rewards, nil
}

func (c *Call) custodial(tok meta.Address) bool {
	opts := c.Registry.opts
	return tok == opts.BGT || tok == opts.BGTM
}

// route delivers one harvested reward held by the vault.
func route(c *Call, rw backend.Reward) error {
	if rw.Amount == nil || rw.Amount.Sign() == 0 {
		return nil
	}
	var destination string
	if asset, ok := c.Config.RewardClass(rw.Token); ok {
		if err := routeToChild(c, asset, rw); err != nil {
			return err
		}
		destination = DestinationChildVault
	} else {
		ok, err := c.Registry.opts.Ledger.CanSupply(c.Env, rw.Token, rw.Amount)
		if err != nil {
			return err
		}
		if ok {
			if err := depositToLedger(c, c.Owner, rw.Token, rw.Amount); err != nil {
				return err
			}
			destination = DestinationLedger
		} else {
			if err := c.Tokens().Transfer(rw.Token, c.Vault, c.Owner, rw.Amount); err != nil {
				return err
			}
			destination = DestinationWallet
		}
	}
	logger.Debug("reward routed", "vault", c.Vault, "token", rw.Token, "amount", rw.Amount, "to", destination)
	c.Env.Log(c.Vault, "RewardRouted", "token", rw.Token, "amount", rw.Amount, "destination", destination)
	metricRewardRoutes().AddWithLabel(1, map[string]string{"destination": destination})
	return nil
}

// routeToChild turns a reward into a collateral position of the owner's child vault of asset.
// Custodial reward tokens stay with the vault; others go to the child vault, or are staked
// right away when the asset already has a default backend.
func routeToChild(c *Call, asset meta.Address, rw backend.Reward) error {
	f, err := c.Factory(asset)
	if err != nil {
		return err
	}
	self := c.Self()
	child, err := f.GetOrCreate(self, c.Owner)
	if err != nil {
		return err
	}
	if !c.custodial(rw.Token) {
		b, err := defaultBackend(c, asset)
		if err != nil {
			return err
		}
		if b != nil && rw.Token == asset {
			if err := b.Stake(self, asset, rw.Amount); err != nil {
				return err
			}
			c.Env.Log(c.Vault, "Staked", "asset", asset, "backend", b.Tag(), "amount", rw.Amount)
		} else if err := c.Tokens().Transfer(rw.Token, c.Vault, child, rw.Amount); err != nil {
			return err
		}
	}
	return f.CreditReward(self, c.Owner, rw.Amount)
}

// depositToLedger deposits amount of tok held by the vault into the default account of owner.
// The registry acts as the ledger operator.
func depositToLedger(c *Call, owner, tok meta.Address, amount *big.Int) error {
	l := c.Registry.opts.Ledger
	market, err := l.MarketByToken(c.Env, tok)
	if err != nil {
		return err
	}
	if market == nil {
		return reverts.Newf(reverts.Invariant, "token %v not listed", tok)
	}
	operator := c.Registry.addr
	if err := c.Tokens().Transfer(tok, c.Vault, operator, amount); err != nil {
		return err
	}
	account := ledger.Account{Owner: owner, Number: meta.DefaultAccountNumber}
	return l.Deposit(c.Env.As(xenv.Contract{Addr: operator}), account, market.ID, operator, amount)
}

// FeeOf returns floor(amount * fraction / 1e18).
func FeeOf(amount, fraction *big.Int) (*big.Int, error) {
	a, overflow := uint256.FromBig(amount)
	if overflow || amount.Sign() < 0 {
		return nil, reverts.InvalidAmount("amount out of range")
	}
	p, overflow := uint256.FromBig(fraction)
	if overflow || fraction.Sign() < 0 {
		return nil, reverts.InvalidAmount("fee percentage out of range")
	}
	d, _ := uint256.FromBig(meta.FeePrecision)
	fee, overflow := new(uint256.Int).MulDivOverflow(a, p, d)
	if overflow {
		return nil, reverts.InvalidAmount("fee overflow")
	}
	return fee.ToBig(), nil
}

func (Standard) ChargeFee(c *Call, asset meta.Address, amount *big.Int) (*big.Int, error) {
	if _, err := c.RequireChild(asset); err != nil {
		return nil, err
	}
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	if !c.Config.HasFee() {
		return new(big.Int), nil
	}
	fee, err := FeeOf(amount, c.Config.FeePercentage)
	if err != nil || fee.Sign() == 0 {
		return fee, err
	}
	b, err := defaultBackend(c, asset)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, reverts.Newf(reverts.Invariant, "no default backend for %v", asset)
	}
	if err := b.Unstake(c.Self(), asset, fee); err != nil {
		return nil, err
	}
	c.Env.Log(c.Vault, "Unstaked", "asset", asset, "backend", b.Tag(), "amount", fee)
	agent := c.Config.FeeAgent
	listed, err := c.Registry.opts.Ledger.CanSupply(c.Env, asset, fee)
	if err != nil {
		return nil, err
	}
	if listed {
		err = depositToLedger(c, agent, asset, fee)
	} else {
		err = c.Tokens().Transfer(asset, c.Vault, agent, fee)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("fee charged", "vault", c.Vault, "asset", asset, "amount", amount, "fee", fee, "agent", agent)
	c.Env.Log(c.Vault, "FeeCharged", "asset", asset, "amount", amount, "fee", fee, "agent", agent)
	metricFees().Add(1)
	return fee, nil
}

// WithdrawRewardToken releases amount of a custodial reward token to recipient, unwinding boost
// (BGT) or delegation (BGTM) as needed. BGT is redeemed 1:1 into the native token.
func (Standard) WithdrawRewardToken(c *Call, tok meta.Address, amount *big.Int, recipient meta.Address) error {
	if !c.custodial(tok) {
		return reverts.Newf(reverts.Invariant, "%v is not a custodial reward token", tok)
	}
	if _, err := c.RequireChild(tok); err != nil {
		return err
	}
	if err := requirePositive(amount); err != nil {
		return err
	}
	custody, err := c.Tokens().BalanceOf(tok, c.Vault)
	if err != nil {
		return err
	}
	if amount.Cmp(custody) > 0 {
		return reverts.InvalidAmount("withdraw exceeds balance")
	}
	opts := c.Registry.opts
	if tok == opts.BGT {
		if err := unwindBoost(c, custody, amount); err != nil {
			return err
		}
		if err := c.Tokens().Burn(opts.BGT, c.Vault, amount); err != nil {
			return err
		}
		if err := c.Tokens().Mint(opts.Native, recipient, amount); err != nil {
			return err
		}
	} else {
		if err := unwindDelegation(c, custody, amount); err != nil {
			return err
		}
		if err := c.Tokens().Transfer(opts.BGTM, c.Vault, recipient, amount); err != nil {
			return err
		}
	}
	c.Env.Log(c.Vault, "RewardTokenWithdrawn", "token", tok, "amount", amount, "recipient", recipient)
	return nil
}
