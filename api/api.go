// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/vechain/metavault/api/node"
	"github.com/vechain/metavault/api/registry"
	"github.com/vechain/metavault/api/transfers"
	"github.com/vechain/metavault/api/utils"
	"github.com/vechain/metavault/api/vaults"
	"github.com/vechain/metavault/builtin"
	"github.com/vechain/metavault/log"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins  string
	EnableReqLogger bool
	EnableMetrics   bool
}

// New return api router
func New(src utils.Source, d *builtin.Deployment, opts Options) http.HandlerFunc {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	registry.New(src, d.Registry).
		Mount(router, "/registry")
	vaults.New(src, d).
		Mount(router, "/vaults")
	transfers.New(src, d.Pol).
		Mount(router, "/transfers")
	node.New(src).
		Mount(router, "/node")

	if opts.EnableMetrics {
		router.Use(metricsHandler)
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)

	if opts.EnableReqLogger {
		handler = RequestLoggerHandler(handler, logger)
	}
	return handler.ServeHTTP
}
