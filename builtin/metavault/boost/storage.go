// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package boost

import (
	"github.com/pkg/errors"

	"github.com/vechain/metavault/builtin/solidity"
	"github.com/vechain/metavault/meta"
)

// ActivationDelay is the minimum number of blocks between queueing and activating.
var ActivationDelay = solidity.NewConfigVariable("boost-activation-delay", meta.BoostActivationDelay)

var slotRecord = meta.BytesToBytes32([]byte("boost"))

// Storage persists the boost record of one vault.
type Storage struct {
	record *solidity.Raw[*Record]
	params *solidity.Context
}

// NewStorage binds the record slot of vault. Protocol parameters are read from params.
func NewStorage(vault, params *solidity.Context) *Storage {
	return &Storage{
		record: solidity.NewRaw[*Record](vault, slotRecord),
		params: params,
	}
}

// Get returns the stored record, or an empty one.
func (s *Storage) Get() (*Record, error) {
	r, err := s.record.Get()
	if err != nil {
		return nil, errors.Wrap(err, "boost record")
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

func (s *Storage) Delay() uint32 {
	return ActivationDelay.Get(s.params)
}
