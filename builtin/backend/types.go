// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package backend

import (
	"math/big"

	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/xenv"
)

// Tag identifies a staking backend flavor.
type Tag uint8

const (
	None Tag = iota
	Native
	Aggregator
	WrappedAggregator
)

func (t Tag) String() string {
	switch t {
	case Native:
		return "native"
	case Aggregator:
		return "aggregator"
	case WrappedAggregator:
		return "wrapped-aggregator"
	default:
		return "none"
	}
}

// Valid reports whether t names a real backend.
func (t Tag) Valid() bool {
	return t >= Native && t <= WrappedAggregator
}

// ParseTag is the inverse of Tag.String.
func ParseTag(s string) (Tag, bool) {
	for _, t := range []Tag{None, Native, Aggregator, WrappedAggregator} {
		if t.String() == s {
			return t, true
		}
	}
	return None, false
}

// Reward is a harvested amount of one reward token.
type Reward struct {
	Token  meta.Address
	Amount *big.Int
}

// Backend is the capability every staking backend offers.
// The staker is always the address of env's caller.
type Backend interface {
	Tag() Tag
	Address() meta.Address
	Stake(env *xenv.Environment, asset meta.Address, amount *big.Int) error
	Unstake(env *xenv.Environment, asset meta.Address, amount *big.Int) error
	// GetReward pays out every pending reward token to the staker.
	GetReward(env *xenv.Environment, asset meta.Address) ([]Reward, error)
	BalanceOf(env *xenv.Environment, asset, account meta.Address) (*big.Int, error)
}
