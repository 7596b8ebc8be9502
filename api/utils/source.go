// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package utils

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/vechain/metavault/kv"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/state"
	"github.com/vechain/metavault/xenv"
)

// Source provides read-only snapshots of the committed state.
type Source interface {
	// Snapshot returns a fresh state over the committed slots and the head it was committed at.
	Snapshot() (*state.State, state.Head, error)
}

type storeSource struct {
	store kv.Getter
}

// NewStoreSource reads snapshots from store.
func NewStoreSource(store kv.Getter) Source {
	return &storeSource{store}
}

func (s *storeSource) Snapshot() (*state.State, state.Head, error) {
	head, err := state.LoadHead(s.store)
	if err != nil {
		return nil, head, err
	}
	return state.New(s.store), head, nil
}

// Env opens a read-only environment over a fresh snapshot of src.
func Env(src Source) (*xenv.Environment, error) {
	st, head, err := src.Snapshot()
	if err != nil {
		return nil, errors.Wrap(err, "snapshot")
	}
	return xenv.New(st, &xenv.BlockContext{Number: head.Number, Time: head.Time}, xenv.Account{}), nil
}

// AddressVar parses the address path variable name.
func AddressVar(req *http.Request, name string) (meta.Address, error) {
	addr, err := meta.ParseAddress(mux.Vars(req)[name])
	if err != nil {
		return meta.Address{}, BadRequest(errors.WithMessage(err, name))
	}
	return *addr, nil
}

// Uint64Var parses the unsigned integer path variable name.
func Uint64Var(req *http.Request, name string) (uint64, error) {
	n, err := strconv.ParseUint(mux.Vars(req)[name], 0, 64)
	if err != nil {
		return 0, BadRequest(errors.WithMessage(err, name))
	}
	return n, nil
}
