// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vechain/metavault/api/utils"
	"github.com/vechain/metavault/builtin/metavault"
)

type Router struct {
	src      utils.Source
	registry *metavault.Registry
}

func New(src utils.Source, registry *metavault.Registry) *Router {
	return &Router{src, registry}
}

func (r *Router) handleGetRegistry(w http.ResponseWriter, _ *http.Request) error {
	env, err := utils.Env(r.src)
	if err != nil {
		return err
	}
	cfg, err := r.registry.Config(env)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, convertRegistry(r.registry.Address(), env.BlockContext().Number, cfg))
}

func (r *Router) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("registry_get").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetRegistry))
}
