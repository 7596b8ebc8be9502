// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"math/big"

	"github.com/vechain/metavault/log"
	"github.com/vechain/metavault/meta"
)

// ConfigVariable is a protocol parameter with a compiled in default that can be overridden by a storage slot.
type ConfigVariable struct {
	slot  meta.Bytes32
	name  string
	value uint32
}

func NewConfigVariable(name string, defaultValue uint32) *ConfigVariable {
	return &ConfigVariable{
		slot:  meta.BytesToBytes32([]byte(name)),
		name:  name,
		value: defaultValue,
	}
}

func (c *ConfigVariable) Name() string {
	return c.name
}

func (c *ConfigVariable) Slot() meta.Bytes32 {
	return c.slot
}

func (c *ConfigVariable) Default() uint32 {
	return c.value
}

// Get returns the overridden value stored in ctx, or the default when no override is present.
func (c *ConfigVariable) Get(ctx *Context) uint32 {
	storage, err := ctx.state.GetStorage(ctx.address, c.slot)
	if err != nil {
		log.Warn("failed to read config value", "slot", c.Name(), "error", err)
		return c.value
	}
	num := new(big.Int).SetBytes(storage.Bytes())
	if num.Sign() != 0 && num.IsUint64() {
		return uint32(num.Uint64())
	}
	return c.value
}

// Override stores value in ctx. Zero restores the default.
func (c *ConfigVariable) Override(ctx *Context, value uint32) {
	ctx.state.SetStorage(ctx.address, c.slot, meta.BytesToBytes32(new(big.Int).SetUint64(uint64(value)).Bytes()))
}
