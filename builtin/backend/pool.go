// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package backend

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/builtin/solidity"
	"github.com/vechain/metavault/builtin/token"
	"github.com/vechain/metavault/log"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/xenv"
)

var logger = log.WithContext("pkg", "backend")

var (
	slotPools    = meta.BytesToBytes32([]byte("pools"))
	slotAccruals = meta.BytesToBytes32([]byte("accruals"))
	slotStakes   = meta.BytesToBytes32([]byte("stakes"))
	slotEarnings = meta.BytesToBytes32([]byte("earnings"))
)

type pool struct {
	TotalSupply *big.Int
	LastUpdate  uint32
}

type accrual struct {
	RatePerBlock   *big.Int
	PerTokenStored *big.Int
}

type earning struct {
	PerTokenPaid *big.Int
	Earned       *big.Int
}

type assetKey meta.Address

func (k assetKey) Bytes() []byte { return k[:] }

type pairKey struct {
	a meta.Address
	b meta.Address
}

func (k pairKey) Bytes() []byte {
	return append(append(make([]byte, 0, 2*meta.AddressLength), k.a[:]...), k.b[:]...)
}

type tripleKey struct {
	asset  meta.Address
	token  meta.Address
	staker meta.Address
}

func (k tripleKey) Bytes() []byte {
	b := make([]byte, 0, 3*meta.AddressLength)
	return append(append(append(b, k.asset[:]...), k.token[:]...), k.staker[:]...)
}

// Pool is a reward vault: stakers deposit an asset and earn reward tokens emitted at a fixed
// rate per block, shared pro rata.
// The three backend flavors differ only by the reward tokens they emit.
type Pool struct {
	tag          Tag
	addr         meta.Address
	rewardTokens []meta.Address
}

var _ Backend = (*Pool)(nil)

// NewNative returns the native reward vault paying the boost reward token.
func NewNative(addr meta.Address, bgt meta.Address) *Pool {
	return &Pool{tag: Native, addr: addr, rewardTokens: []meta.Address{bgt}}
}

// NewAggregator returns an aggregator vault paying its liquid boost token plus extra incentives.
func NewAggregator(addr meta.Address, ibgt meta.Address, extras ...meta.Address) *Pool {
	return &Pool{tag: Aggregator, addr: addr, rewardTokens: append([]meta.Address{ibgt}, extras...)}
}

// NewWrappedAggregator returns the aggregator vault paying the wrapped delegation token.
func NewWrappedAggregator(addr meta.Address, bgtm meta.Address) *Pool {
	return &Pool{tag: WrappedAggregator, addr: addr, rewardTokens: []meta.Address{bgtm}}
}

func (p *Pool) Tag() Tag                     { return p.tag }
func (p *Pool) Address() meta.Address        { return p.addr }
func (p *Pool) RewardTokens() []meta.Address { return p.rewardTokens }

type storage struct {
	pools    *solidity.Mapping[assetKey, *pool]
	accruals *solidity.Mapping[pairKey, *accrual]
	stakes   *solidity.Mapping[pairKey, *big.Int]
	earnings *solidity.Mapping[tripleKey, *earning]
	tokens   *token.Token
}

func (p *Pool) storage(env *xenv.Environment) *storage {
	ctx := solidity.NewContext(p.addr, env.State())
	return &storage{
		pools:    solidity.NewMapping[assetKey, *pool](ctx, slotPools),
		accruals: solidity.NewMapping[pairKey, *accrual](ctx, slotAccruals),
		stakes:   solidity.NewMapping[pairKey, *big.Int](ctx, slotStakes),
		earnings: solidity.NewMapping[tripleKey, *earning](ctx, slotEarnings),
		tokens:   token.New(meta.TokenAddress, env.State()),
	}
}

func (s *storage) pool(asset meta.Address) (*pool, error) {
	pl, err := s.pools.Get(assetKey(asset))
	if err != nil {
		return nil, errors.Wrap(err, "pool")
	}
	if pl == nil {
		pl = &pool{TotalSupply: new(big.Int)}
	}
	return pl, nil
}

func (s *storage) accrual(asset, rewardToken meta.Address) (*accrual, error) {
	acc, err := s.accruals.Get(pairKey{asset, rewardToken})
	if err != nil {
		return nil, errors.Wrap(err, "accrual")
	}
	if acc == nil {
		acc = &accrual{RatePerBlock: new(big.Int), PerTokenStored: new(big.Int)}
	}
	return acc, nil
}

func (s *storage) stake(asset, staker meta.Address) (*big.Int, error) {
	bal, err := s.stakes.Get(pairKey{asset, staker})
	if err != nil {
		return nil, errors.Wrap(err, "stake")
	}
	if bal == nil {
		return new(big.Int), nil
	}
	return bal, nil
}

// perToken returns the reward per staked unit (scaled by 1e18) at block number.
func (a *accrual) perToken(pl *pool, number uint32) *big.Int {
	stored := new(big.Int).Set(a.PerTokenStored)
	if pl.TotalSupply.Sign() == 0 || number <= pl.LastUpdate {
		return stored
	}
	grown := new(big.Int).Mul(a.RatePerBlock, big.NewInt(int64(number-pl.LastUpdate)))
	grown.Mul(grown, meta.FeePrecision)
	grown.Div(grown, pl.TotalSupply)
	return stored.Add(stored, grown)
}

func earned(bal *big.Int, e *earning, perToken *big.Int) *big.Int {
	delta := new(big.Int).Sub(perToken, e.PerTokenPaid)
	delta.Mul(delta, bal)
	delta.Div(delta, meta.FeePrecision)
	return delta.Add(delta, e.Earned)
}

// checkpoint settles accrued rewards of the pool and of staker up to the current block.
func (p *Pool) checkpoint(env *xenv.Environment, s *storage, asset, staker meta.Address) (*pool, error) {
	number := env.BlockContext().Number
	pl, err := s.pool(asset)
	if err != nil {
		return nil, err
	}
	bal, err := s.stake(asset, staker)
	if err != nil {
		return nil, err
	}
	for _, rt := range p.rewardTokens {
		acc, err := s.accrual(asset, rt)
		if err != nil {
			return nil, err
		}
		acc.PerTokenStored = acc.perToken(pl, number)
		if err := s.accruals.Set(pairKey{asset, rt}, acc); err != nil {
			return nil, err
		}

		key := tripleKey{asset, rt, staker}
		e, err := s.earnings.Get(key)
		if err != nil {
			return nil, errors.Wrap(err, "earning")
		}
		if e == nil {
			e = &earning{PerTokenPaid: new(big.Int), Earned: new(big.Int)}
		}
		e.Earned = earned(bal, e, acc.PerTokenStored)
		e.PerTokenPaid = new(big.Int).Set(acc.PerTokenStored)
		if err := s.earnings.Set(key, e); err != nil {
			return nil, err
		}
	}
	if number > pl.LastUpdate {
		pl.LastUpdate = number
	}
	return pl, nil
}

func (p *Pool) Stake(env *xenv.Environment, asset meta.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return reverts.InvalidAmount("cannot stake 0")
	}
	staker := env.Caller().Address()
	s := p.storage(env)
	pl, err := p.checkpoint(env, s, asset, staker)
	if err != nil {
		return err
	}
	if err := s.tokens.Transfer(asset, staker, p.addr, amount); err != nil {
		return err
	}
	bal, err := s.stake(asset, staker)
	if err != nil {
		return err
	}
	pl.TotalSupply.Add(pl.TotalSupply, amount)
	if err := s.pools.Set(assetKey(asset), pl); err != nil {
		return err
	}
	logger.Debug("staked", "backend", p.tag, "staker", staker, "asset", asset, "amount", amount)
	return s.stakes.Set(pairKey{asset, staker}, bal.Add(bal, amount))
}

func (p *Pool) Unstake(env *xenv.Environment, asset meta.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return reverts.InvalidAmount("cannot withdraw 0")
	}
	staker := env.Caller().Address()
	s := p.storage(env)
	pl, err := p.checkpoint(env, s, asset, staker)
	if err != nil {
		return err
	}
	bal, err := s.stake(asset, staker)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return reverts.InvalidAmount("insufficient staked balance")
	}
	pl.TotalSupply.Sub(pl.TotalSupply, amount)
	if err := s.pools.Set(assetKey(asset), pl); err != nil {
		return err
	}
	bal.Sub(bal, amount)
	if bal.Sign() == 0 {
		s.stakes.Delete(pairKey{asset, staker})
	} else if err := s.stakes.Set(pairKey{asset, staker}, bal); err != nil {
		return err
	}
	logger.Debug("unstaked", "backend", p.tag, "staker", staker, "asset", asset, "amount", amount)
	return s.tokens.Transfer(asset, p.addr, staker, amount)
}

func (p *Pool) GetReward(env *xenv.Environment, asset meta.Address) ([]Reward, error) {
	staker := env.Caller().Address()
	s := p.storage(env)
	pl, err := p.checkpoint(env, s, asset, staker)
	if err != nil {
		return nil, err
	}
	if err := s.pools.Set(assetKey(asset), pl); err != nil {
		return nil, err
	}
	rewards := make([]Reward, 0, len(p.rewardTokens))
	for _, rt := range p.rewardTokens {
		key := tripleKey{asset, rt, staker}
		e, err := s.earnings.Get(key)
		if err != nil {
			return nil, errors.Wrap(err, "earning")
		}
		amount := new(big.Int)
		if e != nil && e.Earned.Sign() > 0 {
			amount.Set(e.Earned)
			e.Earned = new(big.Int)
			if err := s.earnings.Set(key, e); err != nil {
				return nil, err
			}
			if err := s.tokens.Mint(rt, staker, amount); err != nil {
				return nil, err
			}
		}
		rewards = append(rewards, Reward{Token: rt, Amount: amount})
	}
	return rewards, nil
}

func (p *Pool) BalanceOf(env *xenv.Environment, asset, account meta.Address) (*big.Int, error) {
	return p.storage(env).stake(asset, account)
}

// Earned previews the pending reward of account in rewardToken.
func (p *Pool) Earned(env *xenv.Environment, asset, rewardToken, account meta.Address) (*big.Int, error) {
	s := p.storage(env)
	pl, err := s.pool(asset)
	if err != nil {
		return nil, err
	}
	acc, err := s.accrual(asset, rewardToken)
	if err != nil {
		return nil, err
	}
	bal, err := s.stake(asset, account)
	if err != nil {
		return nil, err
	}
	e, err := s.earnings.Get(tripleKey{asset, rewardToken, account})
	if err != nil {
		return nil, errors.Wrap(err, "earning")
	}
	if e == nil {
		e = &earning{PerTokenPaid: new(big.Int), Earned: new(big.Int)}
	}
	return earned(bal, e, acc.perToken(pl, env.BlockContext().Number)), nil
}

// SetRewardRate sets the emission of rewardToken per block for asset stakers.
// Rewards accrued so far are settled at the old rate.
func (p *Pool) SetRewardRate(env *xenv.Environment, asset, rewardToken meta.Address, ratePerBlock *big.Int) error {
	if _, ok := env.Caller().(xenv.Admin); !ok {
		return reverts.Unauthorized("not admin", env.Caller().Address())
	}
	found := false
	for _, rt := range p.rewardTokens {
		found = found || rt == rewardToken
	}
	if !found {
		return reverts.New("unknown reward token")
	}
	if ratePerBlock.Sign() < 0 {
		return reverts.InvalidAmount("negative reward rate")
	}
	return env.Atomic(func() error {
		s := p.storage(env)
		pl, err := s.pool(asset)
		if err != nil {
			return err
		}
		number := env.BlockContext().Number
		for _, rt := range p.rewardTokens {
			acc, err := s.accrual(asset, rt)
			if err != nil {
				return err
			}
			acc.PerTokenStored = acc.perToken(pl, number)
			if rt == rewardToken {
				acc.RatePerBlock = new(big.Int).Set(ratePerBlock)
			}
			if err := s.accruals.Set(pairKey{asset, rt}, acc); err != nil {
				return err
			}
		}
		if number > pl.LastUpdate {
			pl.LastUpdate = number
		}
		return s.pools.Set(assetKey(asset), pl)
	})
}
