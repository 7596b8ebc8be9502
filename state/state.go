// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"

	"github.com/vechain/metavault/kv"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/stackedmap"
)

// StorageBucket is the kv bucket holding committed storage slots.
const StorageBucket = kv.Bucket("s")

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

type storageKey struct {
	addr meta.Address
	key  meta.Bytes32
}

func (k storageKey) dbKey() []byte {
	return append(append(make([]byte, 0, meta.AddressLength+32), k.addr[:]...), k.key[:]...)
}

// State manages the storage slots of every built-in contract: vaults, registry, tokens, ledger.
// All writes are journaled, so a failed operation can be reverted to a checkpoint.
type State struct {
	src kv.Getter
	sm  *stackedmap.StackedMap[storageKey, rlp.RawValue]
}

// New create state object reading through src. A nil src gives an empty state.
func New(src kv.Getter) *State {
	state := &State{}
	if src != nil {
		state.src = StorageBucket.NewGetter(src)
	}
	state.sm = stackedmap.New(state.load)
	state.sm.Push()
	return state
}

// load implements stackedmap.MapGetter.
func (s *State) load(key storageKey) (rlp.RawValue, bool, error) {
	if s.src == nil {
		return nil, true, nil
	}
	data, err := s.src.Get(key.dbKey())
	if err != nil {
		if s.src.IsNotFound(err) {
			return nil, true, nil
		}
		return nil, false, err
	}
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// GetRawStorage returns storage value in rlp raw for given address and key.
func (s *State) GetRawStorage(addr meta.Address, key meta.Bytes32) (rlp.RawValue, error) {
	data, _, err := s.sm.Get(storageKey{addr, key})
	if err != nil {
		return nil, &Error{err}
	}
	return data, nil
}

// SetRawStorage set storage value in rlp raw.
func (s *State) SetRawStorage(addr meta.Address, key meta.Bytes32, raw rlp.RawValue) {
	s.sm.Put(storageKey{addr, key}, raw)
}

// GetStorage returns the storage word for the given address and key.
func (s *State) GetStorage(addr meta.Address, key meta.Bytes32) (meta.Bytes32, error) {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return meta.Bytes32{}, err
	}
	if len(raw) == 0 {
		return meta.Bytes32{}, nil
	}
	kind, content, _, err := rlp.Split(raw)
	if err != nil {
		return meta.Bytes32{}, &Error{err}
	}
	if kind == rlp.List {
		// customized storage value, return hash of raw data
		return meta.Blake2b(raw), nil
	}
	return meta.BytesToBytes32(content), nil
}

// SetStorage set storage word for the given address and key.
func (s *State) SetStorage(addr meta.Address, key, value meta.Bytes32) {
	if value.IsZero() {
		s.SetRawStorage(addr, key, nil)
		return
	}
	v, _ := rlp.EncodeToBytes(bytes.TrimLeft(value[:], "\x00"))
	s.SetRawStorage(addr, key, v)
}

// EncodeStorage set storage value encoded by given enc method.
// Error returned by enc will be absorbed by State instance.
func (s *State) EncodeStorage(addr meta.Address, key meta.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return &Error{err}
	}
	s.SetRawStorage(addr, key, raw)
	return nil
}

// DecodeStorage get and decode storage value.
// Error returned by dec will be absorbed by State instance.
func (s *State) DecodeStorage(addr meta.Address, key meta.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return err
	}
	if err := dec(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo revert to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
	if s.sm.Depth() == 0 {
		s.sm.Push()
	}
}

// Stage collects the latest value of every slot written since the state was created.
func (s *State) Stage() *Stage {
	changes := make(map[storageKey]rlp.RawValue)
	s.sm.Journal(func(key storageKey, value rlp.RawValue) bool {
		changes[key] = value
		return true
	})
	return newStage(changes)
}
