// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package solidity

import (
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vechain/metavault/meta"
)

type Key interface {
	Bytes() []byte
}

// Mapping is a key/value storage abstraction for built-in contracts, similar to the mapping in Solidity.
// Zero values and nil pointers are not stored, so writing one clears the slot.
type Mapping[K Key, V any] struct {
	context *Context
	basePos meta.Bytes32
}

func NewMapping[K Key, V any](context *Context, pos meta.Bytes32) *Mapping[K, V] {
	return &Mapping[K, V]{context: context, basePos: pos}
}

func (m *Mapping[K, V]) position(key K) meta.Bytes32 {
	return meta.Blake2b(key.Bytes(), m.basePos.Bytes())
}

func (m *Mapping[K, V]) Get(key K) (value V, err error) {
	err = m.context.state.DecodeStorage(m.context.address, m.position(key), func(raw []byte) error {
		return decodeValue(raw, &value)
	})
	return
}

func (m *Mapping[K, V]) Set(key K, value V) error {
	return m.context.state.EncodeStorage(m.context.address, m.position(key), func() ([]byte, error) {
		return encodeValue(value)
	})
}

// Delete clears the slot of key.
func (m *Mapping[K, V]) Delete(key K) {
	m.context.state.SetRawStorage(m.context.address, m.position(key), nil)
}

func decodeValue[V any](raw []byte, value *V) error {
	if len(raw) == 0 {
		return nil
	}
	if reflect.ValueOf(*value).Kind() == reflect.Ptr {
		*value = reflect.New(reflect.TypeOf(*value).Elem()).Interface().(V)
	}
	return rlp.DecodeBytes(raw, value)
}

func encodeValue[V any](value V) ([]byte, error) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.IsZero() {
		return nil, nil
	}
	return rlp.EncodeToBytes(value)
}
