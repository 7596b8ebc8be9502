// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package delegation

import (
	"github.com/pkg/errors"

	"github.com/vechain/metavault/builtin/solidity"
	"github.com/vechain/metavault/meta"
)

var (
	// Cooldown is the minimum number of blocks between two delegate calls to the same validator.
	Cooldown = solidity.NewConfigVariable("delegation-cooldown", meta.DelegationCooldown)
	// ActivationWindow is the number of blocks after the last delegate call before activation.
	ActivationWindow = solidity.NewConfigVariable("delegation-activation-window", meta.DelegationActivationDelay)
)

var slotRecord = meta.BytesToBytes32([]byte("delegation"))

type Storage struct {
	record *solidity.Raw[*Record]
	params *solidity.Context
}

func NewStorage(vault, params *solidity.Context) *Storage {
	return &Storage{
		record: solidity.NewRaw[*Record](vault, slotRecord),
		params: params,
	}
}

func (s *Storage) Get() (*Record, error) {
	r, err := s.record.Get()
	if err != nil {
		return nil, errors.Wrap(err, "delegation record")
	}
	if r == nil {
		return NewRecord(), nil
	}
	return r, nil
}

func (s *Storage) Set(r *Record) error {
	if r.IsEmpty() {
		return s.record.Set(nil)
	}
	return s.record.Set(r)
}

func (s *Storage) Cooldown() uint32 {
	return Cooldown.Get(s.params)
}

func (s *Storage) ActivationWindow() uint32 {
	return ActivationWindow.Get(s.params)
}
