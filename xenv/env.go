// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package xenv

import (
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/state"
)

// BlockContext block context.
// Number is an opaque monotonic counter supplied by the caller.
type BlockContext struct {
	Number uint32
	Time   uint64
}

// Event is a log entry emitted by a built-in contract.
// Fields are alternating key/value pairs.
type Event struct {
	Address meta.Address
	Name    string
	Fields  []any
}

// Environment an env to execute built-in operations.
type Environment struct {
	state    *state.State
	blockCtx *BlockContext
	caller   Caller
	events   *[]Event
}

// New create a new env.
func New(state *state.State, blockCtx *BlockContext, caller Caller) *Environment {
	if blockCtx == nil {
		blockCtx = &BlockContext{}
	}
	return &Environment{
		state:    state,
		blockCtx: blockCtx,
		caller:   caller,
		events:   new([]Event),
	}
}

func (env *Environment) State() *state.State         { return env.state }
func (env *Environment) BlockContext() *BlockContext { return env.blockCtx }
func (env *Environment) Caller() Caller              { return env.caller }

// As returns an env for a nested call made with the given caller capability.
// The nested env shares state, block context and event log.
func (env *Environment) As(caller Caller) *Environment {
	return &Environment{
		state:    env.state,
		blockCtx: env.blockCtx,
		caller:   caller,
		events:   env.events,
	}
}

// Log appends an event.
func (env *Environment) Log(address meta.Address, name string, fields ...any) {
	*env.events = append(*env.events, Event{Address: address, Name: name, Fields: fields})
}

// Events returns events logged so far.
func (env *Environment) Events() []Event {
	return *env.events
}

// Atomic runs fn. If fn fails, every state write and event made by fn is discarded.
func (env *Environment) Atomic(fn func() error) error {
	checkpoint := env.state.NewCheckpoint()
	n := len(*env.events)
	if err := fn(); err != nil {
		env.state.RevertTo(checkpoint)
		*env.events = (*env.events)[:n]
		return err
	}
	return nil
}
