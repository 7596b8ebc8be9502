// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/vechain/metavault/kv"
)

// HeadBucket holds the block the committed state was produced at.
const HeadBucket = kv.Bucket("h")

var headKey = []byte("head")

// Head is the block context of the last commit.
type Head struct {
	Number uint32
	Time   uint64
}

// SaveHead records h as the head of the committed state.
func SaveHead(w kv.Putter, h Head) error {
	data, err := rlp.EncodeToBytes(&h)
	if err != nil {
		return errors.Wrap(err, "encode head")
	}
	return HeadBucket.NewPutter(w).Put(headKey, data)
}

// LoadHead returns the head of the committed state. A store never committed to has a zero head.
func LoadHead(r kv.Getter) (Head, error) {
	var h Head
	data, err := HeadBucket.NewGetter(r).Get(headKey)
	if err != nil {
		if r.IsNotFound(err) {
			return h, nil
		}
		return h, errors.Wrap(err, "get head")
	}
	if err := rlp.DecodeBytes(data, &h); err != nil {
		return h, errors.Wrap(err, "decode head")
	}
	return h, nil
}

// HasHead reports whether anything was ever committed to r.
func HasHead(r kv.Getter) (bool, error) {
	return HeadBucket.NewGetter(r).Has(headKey)
}
