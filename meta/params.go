// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package meta

import "math/big"

// Constants of the protocol. Block-delay values are defaults which may be overridden through
// config variables stored in state.
const (
	BoostActivationDelay      uint32 = 8191 // blocks between queueing and activating a boost
	DelegationCooldown        uint32 = 256  // blocks between two delegate calls to the same validator
	DelegationActivationDelay uint32 = 8191 // blocks between the last delegate call and activation

	DefaultAccountNumber uint64 = 0 // margin ledger account number rewards are deposited into
)

var (
	// FeePrecision is the denominator of fee fractions: 1e18 is 100%.
	FeePrecision = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// MaxAmount is the "whole balance" sentinel accepted by transfer and unwrap operations.
	MaxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// IsMaxAmount reports whether amount is the whole-balance sentinel.
func IsMaxAmount(amount *big.Int) bool {
	return amount != nil && amount.Cmp(MaxAmount) == 0
}

// Addresses of the built-in contracts.
var (
	TokenAddress        = BytesToAddress([]byte("Token"))
	RegistryAddress     = BytesToAddress([]byte("MetaVaultRegistry"))
	LedgerAddress       = BytesToAddress([]byte("MarginLedger"))
	LiquidatorAddress   = BytesToAddress([]byte("Liquidator"))
	PolWrapperAddress   = BytesToAddress([]byte("PolWrapper"))
	PolUnwrapperAddress = BytesToAddress([]byte("PolUnwrapper"))
)
