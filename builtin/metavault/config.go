// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metavault

import (
	"math/big"

	"github.com/vechain/metavault/builtin/backend"
	"github.com/vechain/metavault/meta"
)

// BackendEntry is the default address of a backend variant.
type BackendEntry struct {
	Tag     backend.Tag
	Address meta.Address
}

// BackendOverride replaces the default backend address of Tag for one asset.
type BackendOverride struct {
	Asset   meta.Address
	Tag     backend.Tag
	Address meta.Address
}

// FactoryEntry is the child vault factory of an asset class.
type FactoryEntry struct {
	Asset   meta.Address
	Factory meta.Address
}

// RewardClass routes a reward token into the child vaults of Asset.
type RewardClass struct {
	Token meta.Address
	Asset meta.Address
}

// Config is the registry configuration shared by every vault. Each admin write bumps Version.
type Config struct {
	Version        uint64
	Owner          meta.Address
	Implementation meta.Address
	FeeAgent       meta.Address
	// FeePercentage is scaled by meta.FeePrecision.
	FeePercentage *big.Int
	Backends      []BackendEntry
	Overrides     []BackendOverride
	Factories     []FactoryEntry
	RewardClasses []RewardClass
}

func newConfig() *Config {
	return &Config{FeePercentage: new(big.Int)}
}

// BackendAddress resolves the backend of tag for asset, the override first.
func (c *Config) BackendAddress(asset meta.Address, tag backend.Tag) (meta.Address, bool) {
	for _, o := range c.Overrides {
		if o.Asset == asset && o.Tag == tag {
			return o.Address, true
		}
	}
	for _, b := range c.Backends {
		if b.Tag == tag {
			return b.Address, true
		}
	}
	return meta.Address{}, false
}

func (c *Config) Factory(asset meta.Address) (meta.Address, bool) {
	for _, f := range c.Factories {
		if f.Asset == asset {
			return f.Factory, true
		}
	}
	return meta.Address{}, false
}

func (c *Config) RewardClass(token meta.Address) (meta.Address, bool) {
	for _, rc := range c.RewardClasses {
		if rc.Token == token {
			return rc.Asset, true
		}
	}
	return meta.Address{}, false
}

// HasFee reports whether the fee hook is active.
func (c *Config) HasFee() bool {
	return !c.FeeAgent.IsZero() && c.FeePercentage != nil && c.FeePercentage.Sign() > 0
}

func (c *Config) setBackend(tag backend.Tag, addr meta.Address) {
	for i := range c.Backends {
		if c.Backends[i].Tag == tag {
			c.Backends[i].Address = addr
			return
		}
	}
	c.Backends = append(c.Backends, BackendEntry{tag, addr})
}

// setOverride with a zero address removes the override.
func (c *Config) setOverride(asset meta.Address, tag backend.Tag, addr meta.Address) {
	for i := range c.Overrides {
		if c.Overrides[i].Asset == asset && c.Overrides[i].Tag == tag {
			if addr.IsZero() {
				c.Overrides = append(c.Overrides[:i], c.Overrides[i+1:]...)
			} else {
				c.Overrides[i].Address = addr
			}
			return
		}
	}
	if !addr.IsZero() {
		c.Overrides = append(c.Overrides, BackendOverride{asset, tag, addr})
	}
}

func (c *Config) setFactory(asset, factory meta.Address) {
	for i := range c.Factories {
		if c.Factories[i].Asset == asset {
			c.Factories[i].Factory = factory
			return
		}
	}
	c.Factories = append(c.Factories, FactoryEntry{asset, factory})
}

func (c *Config) setRewardClass(token, asset meta.Address) {
	for i := range c.RewardClasses {
		if c.RewardClasses[i].Token == token {
			c.RewardClasses[i].Asset = asset
			return
		}
	}
	c.RewardClasses = append(c.RewardClasses, RewardClass{token, asset})
}
