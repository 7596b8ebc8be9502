// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vechain/metavault/api/utils"
)

type Status struct {
	Healthy  bool   `json:"healthy"`
	Head     uint32 `json:"head"`
	HeadTime uint64 `json:"headTime"`
}

type Node struct {
	src utils.Source
}

func New(src utils.Source) *Node {
	return &Node{src}
}

// handleGetHealth reports whether a committed state is being served.
// An uninitialized store answers 503.
func (n *Node) handleGetHealth(w http.ResponseWriter, _ *http.Request) error {
	_, head, err := n.src.Snapshot()
	if err != nil {
		return err
	}
	status := &Status{Healthy: head.Time != 0, Head: head.Number, HeadTime: head.Time}
	if !status.Healthy {
		w.Header().Set("Content-Type", utils.JSONContentType)
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	return utils.WriteJSON(w, status)
}

func (n *Node) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/health").
		Methods(http.MethodGet).
		Name("node_get_health").
		HandlerFunc(utils.WrapHandlerFunc(n.handleGetHealth))
}
