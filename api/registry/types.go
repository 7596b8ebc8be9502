// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/vechain/metavault/builtin/metavault"
	"github.com/vechain/metavault/meta"
)

type Backend struct {
	Tag     string       `json:"tag"`
	Address meta.Address `json:"address"`
}

type Override struct {
	Asset   meta.Address `json:"asset"`
	Tag     string       `json:"tag"`
	Address meta.Address `json:"address"`
}

type Factory struct {
	Asset   meta.Address `json:"asset"`
	Factory meta.Address `json:"factory"`
}

type RewardClass struct {
	Token meta.Address `json:"token"`
	Asset meta.Address `json:"asset"`
}

// Registry is the registry configuration at the head block.
type Registry struct {
	Address        meta.Address          `json:"address"`
	Head           uint32                `json:"head"`
	Version        uint64                `json:"version"`
	Owner          meta.Address          `json:"owner"`
	Implementation meta.Address          `json:"implementation"`
	FeeAgent       meta.Address          `json:"feeAgent"`
	FeePercentage  *math.HexOrDecimal256 `json:"feePercentage"`
	Backends       []Backend             `json:"backends"`
	Overrides      []Override            `json:"overrides"`
	Factories      []Factory             `json:"factories"`
	RewardClasses  []RewardClass         `json:"rewardClasses"`
}

func convertRegistry(addr meta.Address, head uint32, cfg *metavault.Config) *Registry {
	r := &Registry{
		Address:        addr,
		Head:           head,
		Version:        cfg.Version,
		Owner:          cfg.Owner,
		Implementation: cfg.Implementation,
		FeeAgent:       cfg.FeeAgent,
		FeePercentage:  (*math.HexOrDecimal256)(cfg.FeePercentage),
		Backends:       make([]Backend, 0, len(cfg.Backends)),
		Overrides:      make([]Override, 0, len(cfg.Overrides)),
		Factories:      make([]Factory, 0, len(cfg.Factories)),
		RewardClasses:  make([]RewardClass, 0, len(cfg.RewardClasses)),
	}
	for _, b := range cfg.Backends {
		r.Backends = append(r.Backends, Backend{b.Tag.String(), b.Address})
	}
	for _, o := range cfg.Overrides {
		r.Overrides = append(r.Overrides, Override{o.Asset, o.Tag.String(), o.Address})
	}
	for _, f := range cfg.Factories {
		r.Factories = append(r.Factories, Factory{f.Asset, f.Factory})
	}
	for _, c := range cfg.RewardClasses {
		r.RewardClasses = append(r.RewardClasses, RewardClass{c.Token, c.Asset})
	}
	return r
}
