// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metavault

import (
	"math/big"

	"github.com/vechain/metavault/builtin/ledger"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/xenv"
)

// Class is the kind of a child isolation vault.
type Class string

const (
	ClassBera Class = "bera"
	ClassBGT  Class = "bgt"
	ClassBGTM Class = "bgtm"
	ClassIBGT Class = "ibgt"
	ClassPOL  Class = "pol"
)

// ChildFactory creates the child isolation vaults of one asset class.
type ChildFactory interface {
	Address() meta.Address
	Class() Class
	Asset() meta.Address
	// VaultOf returns the child vault of owner, or the zero address.
	VaultOf(env *xenv.Environment, owner meta.Address) (meta.Address, error)
	// GetOrCreate returns the child vault of owner, creating it and the owner's MetaVault when missing.
	GetOrCreate(env *xenv.Environment, owner meta.Address) (meta.Address, error)
	// CreditReward records amount, already in custody of the child vault or of the MetaVault,
	// as a new collateral position of the child vault. The caller must be the owner's MetaVault.
	CreditReward(env *xenv.Environment, owner meta.Address, amount *big.Int) error
}

// Options are the fixed collaborators of a registry.
type Options struct {
	Ledger ledger.Ledger
	// InitHash is the code hash used in vault address derivation.
	InitHash meta.Bytes32
	// BGT is held by the MetaVault and redeemed 1:1 into Native on withdrawal.
	BGT meta.Address
	// BGTM is held by the MetaVault and transferable.
	BGTM   meta.Address
	Native meta.Address
}

type vaultRecord struct {
	Owner       meta.Address
	Initialized bool
}
