// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package datagen

import "math/big"

// Units returns n * 1e18 scaled by num/den, e.g. Units(1, 2) is half a token.
func Units(num, den int64) *big.Int {
	v := new(big.Int).Mul(big.NewInt(num), big.NewInt(1e18))
	return v.Div(v, big.NewInt(den))
}
