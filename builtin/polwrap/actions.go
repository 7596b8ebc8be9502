// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package polwrap

import (
	"math/big"

	"github.com/vechain/metavault/builtin/reverts"
	"github.com/vechain/metavault/meta"
)

type ActionKind string

const (
	// ActionCall invokes CallFunction of the trader.
	ActionCall ActionKind = "call"
	// ActionSell trades InputMarket into OutputMarket through the trader.
	ActionSell ActionKind = "sell"
)

// Action is one step of a ledger operation built by the trade router.
type Action struct {
	Kind         ActionKind
	Owner        meta.Address
	Number       uint64
	Trader       meta.Address
	InputMarket  uint64
	OutputMarket uint64
	Amount       *big.Int
}

// ActionParams describe a conversion requested by the trade router.
type ActionParams struct {
	Owner        meta.Address
	Number       uint64
	InputMarket  uint64
	OutputMarket uint64
	InputAmount  *big.Int
}

// CreateActionsForWrapping converts the share market into the isolation market with one sell.
func (p *Pair) CreateActionsForWrapping(params ActionParams) ([]Action, error) {
	if params.InputMarket != p.shareMarket || params.OutputMarket != p.factory.Market() {
		return nil, reverts.New("invalid market pair")
	}
	if params.InputAmount == nil || params.InputAmount.Sign() <= 0 {
		return nil, reverts.InvalidAmount("invalid input amount")
	}
	return []Action{{
		Kind:         ActionSell,
		Owner:        params.Owner,
		Number:       params.Number,
		Trader:       p.wrapper,
		InputMarket:  params.InputMarket,
		OutputMarket: params.OutputMarket,
		Amount:       new(big.Int).Set(params.InputAmount),
	}}, nil
}

// CreateActionsForUnwrapping queues the transfer with a call, then settles it with a sell.
func (p *Pair) CreateActionsForUnwrapping(params ActionParams) ([]Action, error) {
	if params.InputMarket != p.factory.Market() || params.OutputMarket != p.shareMarket {
		return nil, reverts.New("invalid market pair")
	}
	if params.InputAmount == nil || params.InputAmount.Sign() <= 0 {
		return nil, reverts.InvalidAmount("invalid input amount")
	}
	return []Action{
		{
			Kind:   ActionCall,
			Owner:  params.Owner,
			Number: params.Number,
			Trader: p.unwrapper,
			Amount: new(big.Int).Set(params.InputAmount),
		},
		{
			Kind:         ActionSell,
			Owner:        params.Owner,
			Number:       params.Number,
			Trader:       p.unwrapper,
			InputMarket:  params.InputMarket,
			OutputMarket: params.OutputMarket,
			Amount:       new(big.Int).Set(params.InputAmount),
		},
	}, nil
}
