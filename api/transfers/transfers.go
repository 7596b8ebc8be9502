// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package transfers

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gorilla/mux"

	"github.com/vechain/metavault/api/utils"
	"github.com/vechain/metavault/builtin/polwrap"
	"github.com/vechain/metavault/meta"
)

// Cursors are the last assigned and the last settled unwrap cursor.
type Cursors struct {
	Transfer uint64 `json:"transfer"`
	Consumed uint64 `json:"consumed"`
}

// Transfer is a queued unwrap.
type Transfer struct {
	Cursor  uint64                `json:"cursor"`
	From    meta.Address          `json:"from"`
	To      meta.Address          `json:"to"`
	Amount  *math.HexOrDecimal256 `json:"amount"`
	Fee     *math.HexOrDecimal256 `json:"fee"`
	Owner   meta.Address          `json:"owner"`
	Settled bool                  `json:"settled"`
}

type Transfers struct {
	src  utils.Source
	pair *polwrap.Pair
}

func New(src utils.Source, pair *polwrap.Pair) *Transfers {
	return &Transfers{src, pair}
}

func (t *Transfers) handleGetCursors(w http.ResponseWriter, _ *http.Request) error {
	env, err := utils.Env(t.src)
	if err != nil {
		return err
	}
	transfer, consumed, err := t.pair.Cursors(env)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &Cursors{transfer, consumed})
}

func (t *Transfers) handleGetTransfer(w http.ResponseWriter, req *http.Request) error {
	cursor, err := utils.Uint64Var(req, "cursor")
	if err != nil {
		return err
	}
	env, err := utils.Env(t.src)
	if err != nil {
		return err
	}
	queued, err := t.pair.Transfer(env, cursor)
	if err != nil {
		return err
	}
	if queued == nil {
		return utils.NotFound(fmt.Errorf("no transfer at cursor %d", cursor))
	}
	_, consumed, err := t.pair.Cursors(env)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &Transfer{
		Cursor:  queued.Cursor,
		From:    queued.From,
		To:      queued.To,
		Amount:  (*math.HexOrDecimal256)(queued.Amount),
		Fee:     (*math.HexOrDecimal256)(queued.Fee),
		Owner:   queued.Owner,
		Settled: queued.Cursor <= consumed,
	})
}

func (t *Transfers) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("transfers_get_cursors").
		HandlerFunc(utils.WrapHandlerFunc(t.handleGetCursors))
	sub.Path("/{cursor}").
		Methods(http.MethodGet).
		Name("transfers_get_transfer").
		HandlerFunc(utils.WrapHandlerFunc(t.handleGetTransfer))
}
