// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vaults

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"

	"github.com/vechain/metavault/builtin/metavault/boost"
	"github.com/vechain/metavault/builtin/metavault/delegation"
	"github.com/vechain/metavault/meta"
)

// Child is the child isolation vault of one class.
type Child struct {
	Class      string                `json:"class"`
	Asset      meta.Address          `json:"asset"`
	Address    meta.Address          `json:"address"`
	Position   *math.HexOrDecimal256 `json:"position"`
	Underlying *math.HexOrDecimal256 `json:"underlying"`
}

// Vault summarizes the MetaVault of an account.
type Vault struct {
	Account  meta.Address `json:"account"`
	Address  meta.Address `json:"address"`
	Children []Child      `json:"children"`
}

// Asset is the position of a MetaVault in one asset.
type Asset struct {
	Asset          meta.Address          `json:"asset"`
	DefaultBackend string                `json:"defaultBackend"`
	Staked         *math.HexOrDecimal256 `json:"staked"`
	Custody        *math.HexOrDecimal256 `json:"custody"`
}

type Boost struct {
	Validator        meta.Address          `json:"validator"`
	Queued           *math.HexOrDecimal256 `json:"queued"`
	Confirmed        *math.HexOrDecimal256 `json:"confirmed"`
	QueuedAtBlock    uint32                `json:"queuedAtBlock"`
	BlocksToActivate uint32                `json:"blocksToActivate"`
}

type Delegation struct {
	Validator         meta.Address          `json:"validator"`
	Pending           *math.HexOrDecimal256 `json:"pending"`
	Queued            *math.HexOrDecimal256 `json:"queued"`
	Confirmed         *math.HexOrDecimal256 `json:"confirmed"`
	LastDelegateBlock uint32                `json:"lastDelegateBlock"`
	QueuedAtBlock     uint32                `json:"queuedAtBlock"`
}

func hex(v *big.Int) *math.HexOrDecimal256 {
	if v == nil {
		v = new(big.Int)
	}
	return (*math.HexOrDecimal256)(v)
}

func convertBoost(r *boost.Record, blocksToActivate uint32) *Boost {
	return &Boost{
		Validator:        r.Validator,
		Queued:           hex(r.Queued),
		Confirmed:        hex(r.Confirmed),
		QueuedAtBlock:    r.QueuedAtBlock,
		BlocksToActivate: blocksToActivate,
	}
}

func convertDelegation(r *delegation.Record) *Delegation {
	return &Delegation{
		Validator:         r.Validator,
		Pending:           hex(r.Pending),
		Queued:            hex(r.Queued),
		Confirmed:         hex(r.Confirmed),
		LastDelegateBlock: r.LastDelegateBlock,
		QueuedAtBlock:     r.QueuedAtBlock,
	}
}
