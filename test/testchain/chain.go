// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package testchain

import (
	"math/big"

	"github.com/vechain/metavault/builtin"
	"github.com/vechain/metavault/builtin/token"
	"github.com/vechain/metavault/kv"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/state"
	"github.com/vechain/metavault/test/datagen"
	"github.com/vechain/metavault/xenv"
)

// BlockInterval is the number of seconds between two blocks.
const BlockInterval = 2

// BlocksPerDay at BlockInterval.
const BlocksPerDay = 24 * 60 * 60 / BlockInterval

// Chain is an in-memory world with every built-in contract deployed.
// Block numbers only move when Mine is called.
type Chain struct {
	state      *state.State
	deployment *builtin.Deployment
	admin      meta.Address
	number     uint32
	time       uint64
}

// New deploys the built-ins with genesis g. A nil g uses the default genesis with a random admin.
func New(g *builtin.Genesis) (*Chain, error) {
	if g == nil {
		g = builtin.DefaultGenesis(datagen.RandAddress())
	}
	c := &Chain{
		state:      state.New(nil),
		deployment: builtin.New(),
		admin:      g.Admin,
		number:     1,
		time:       1_700_000_000,
	}
	if err := c.deployment.Setup(c.AsAdmin(), g); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Chain) State() *state.State             { return c.state }
func (c *Chain) Deployment() *builtin.Deployment { return c.deployment }
func (c *Chain) Admin() meta.Address             { return c.admin }
func (c *Chain) Number() uint32                  { return c.number }
func (c *Chain) Tokens() *token.Token            { return token.New(meta.TokenAddress, c.state) }

func (c *Chain) BlockContext() *xenv.BlockContext {
	return &xenv.BlockContext{Number: c.number, Time: c.time}
}

func (c *Chain) Env(caller xenv.Caller) *xenv.Environment {
	return xenv.New(c.state, c.BlockContext(), caller)
}

// As returns an environment acting as the external account addr.
func (c *Chain) As(addr meta.Address) *xenv.Environment {
	return c.Env(xenv.Account{Addr: addr})
}

func (c *Chain) AsAdmin() *xenv.Environment {
	return c.Env(xenv.Admin{Addr: c.admin})
}

// Mine advances the chain by n blocks.
func (c *Chain) Mine(n uint32) {
	c.number += n
	c.time += uint64(n) * BlockInterval
}

// MineDays advances the chain by whole days.
func (c *Chain) MineDays(days uint32) {
	c.Mine(days * BlocksPerDay)
}

// Fund mints amount of tok to addr.
func (c *Chain) Fund(tok, addr meta.Address, amount *big.Int) error {
	return c.Tokens().Mint(tok, addr, amount)
}

// BalanceOf returns the token balance of holder.
func (c *Chain) BalanceOf(tok, holder meta.Address) *big.Int {
	bal, err := c.Tokens().BalanceOf(tok, holder)
	if err != nil {
		panic(err)
	}
	return bal
}

// Commit writes every slot changed so far into store, with the current block as head.
func (c *Chain) Commit(store kv.Store) error {
	if err := c.state.Stage().Commit(store); err != nil {
		return err
	}
	return state.SaveHead(store, state.Head{Number: c.number, Time: c.time})
}
