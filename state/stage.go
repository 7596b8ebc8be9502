// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"io"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/vechain/metavault/kv"
	"github.com/vechain/metavault/meta"
)

type change struct {
	key   []byte
	value []byte
}

// Stage abstracts changes on the storage slots.
type Stage struct {
	changes []change
}

func newStage(changes map[storageKey]rlp.RawValue) *Stage {
	stage := &Stage{changes: make([]change, 0, len(changes))}
	for k, v := range changes {
		stage.changes = append(stage.changes, change{k.dbKey(), v})
	}
	sort.Slice(stage.changes, func(i, j int) bool {
		return bytes.Compare(stage.changes[i].key, stage.changes[j].key) < 0
	})
	return stage
}

// Len returns the count of changed slots.
func (s *Stage) Len() int {
	return len(s.changes)
}

// Hash computes a digest over the ordered changes.
func (s *Stage) Hash() meta.Bytes32 {
	return meta.Blake2bFn(func(w io.Writer) {
		for _, c := range s.changes {
			w.Write(c.key)
			w.Write(c.value)
		}
	})
}

// Commit writes all changes into the given store in a single batch.
func (s *Stage) Commit(store kv.Store) error {
	batch := store.NewBatch()
	putter := StorageBucket.NewPutter(batch)
	for _, c := range s.changes {
		if len(c.value) == 0 {
			if err := putter.Delete(c.key); err != nil {
				return errors.Wrap(err, "delete storage")
			}
			continue
		}
		if err := putter.Put(c.key, snappy.Encode(nil, c.value)); err != nil {
			return errors.Wrap(err, "put storage")
		}
	}
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "write batch")
	}
	return nil
}
