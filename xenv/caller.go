// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package xenv

import (
	"fmt"

	"github.com/vechain/metavault/meta"
)

// Caller is the capability an operation is invoked with.
// Operations check it by type switch, never by bare address comparison.
type Caller interface {
	Address() meta.Address
	fmt.Stringer
	isCaller()
}

// Account is an external owner.
type Account struct {
	Addr meta.Address
}

// ChildVault is an isolation vault acting for Owner on Asset.
type ChildVault struct {
	Addr  meta.Address
	Owner meta.Address
	Asset meta.Address
}

// Admin is the registry owner.
type Admin struct {
	Addr meta.Address
}

// MarginLedger is the margin ledger calling back into a trader.
type MarginLedger struct {
	Addr meta.Address
}

// Trader is a trade router or wrapper contract.
type Trader struct {
	Addr meta.Address
}

// Contract is a built-in contract calling another one on its own behalf.
type Contract struct {
	Addr meta.Address
}

func (c Account) Address() meta.Address      { return c.Addr }
func (c ChildVault) Address() meta.Address   { return c.Addr }
func (c Admin) Address() meta.Address        { return c.Addr }
func (c MarginLedger) Address() meta.Address { return c.Addr }
func (c Trader) Address() meta.Address       { return c.Addr }
func (c Contract) Address() meta.Address     { return c.Addr }

func (c Account) String() string      { return "account " + c.Addr.String() }
func (c ChildVault) String() string   { return "child vault " + c.Addr.String() }
func (c Admin) String() string        { return "admin " + c.Addr.String() }
func (c MarginLedger) String() string { return "margin ledger " + c.Addr.String() }
func (c Trader) String() string       { return "trader " + c.Addr.String() }
func (c Contract) String() string     { return "contract " + c.Addr.String() }

func (Account) isCaller()      {}
func (ChildVault) isCaller()   {}
func (Admin) isCaller()        {}
func (MarginLedger) isCaller() {}
func (Trader) isCaller()       {}
func (Contract) isCaller()     {}
