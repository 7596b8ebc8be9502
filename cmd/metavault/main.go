// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/metavault/api"
	"github.com/vechain/metavault/api/utils"
	"github.com/vechain/metavault/builtin"
	"github.com/vechain/metavault/cmd/metavault/httpserver"
	"github.com/vechain/metavault/log"
	"github.com/vechain/metavault/metrics"
	"github.com/vechain/metavault/state"
	"github.com/vechain/metavault/xenv"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "main")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func newApp() *cli.App {
	common := []cli.Flag{configFlag, dataDirFlag, verbosityFlag, jsonLogsFlag}
	with := func(flags ...cli.Flag) []cli.Flag {
		return append(append([]cli.Flag{}, common...), flags...)
	}
	return &cli.App{
		Version:   fullVersion(),
		Name:      "MetaVault",
		Usage:     "Per-account staking vaults over lending markets",
		Copyright: "2025 VeChain Foundation <https://vechain.org/>",
		Commands: []cli.Command{
			{
				Name:   "init",
				Usage:  "apply the genesis deployment to a new data dir",
				Flags:  with(adminFlag),
				Action: initAction,
			},
			{
				Name:   "serve",
				Usage:  "serve the read API over an initialized data dir",
				Flags:  with(apiAddrFlag, apiCorsFlag, enableAPILogsFlag, enableMetricsFlag, metricsAddrFlag),
				Action: serveAction,
			},
			{
				Name:   "inspect",
				Usage:  "print the registry, or the metavault of an account",
				Flags:  with(accountFlag),
				Action: inspectAction,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config and installs the root logger.
func setup(ctx *cli.Context) (*Config, error) {
	cfg, err := loadConfig(ctx.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	cfg.applyFlags(ctx)
	lvl, err := readIntFromUInt64Flag(cfg.Log.Verbosity)
	if err != nil {
		return nil, errors.Wrap(err, "parse verbosity")
	}
	initLogger(lvl, cfg.Log.JSON)
	return cfg, nil
}

func initAction(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	gene, err := cfg.Genesis.build()
	if err != nil {
		return err
	}
	db, err := openMainDB(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing main database..."); db.Close() }()

	if ok, err := state.HasHead(db); err != nil {
		return err
	} else if ok {
		return errors.Errorf("data dir %v already initialized", cfg.DataDir)
	}

	st := state.New(db)
	d := builtin.New()
	head := state.Head{Number: 0, Time: uint64(time.Now().Unix())}
	env := xenv.New(st, &xenv.BlockContext{Number: head.Number, Time: head.Time}, xenv.Account{})
	if err := d.Setup(env, gene); err != nil {
		return errors.Wrap(err, "apply genesis")
	}
	stage := st.Stage()
	if err := stage.Commit(db); err != nil {
		return err
	}
	if err := state.SaveHead(db, head); err != nil {
		return err
	}
	logger.Info("genesis committed", "admin", gene.Admin, "slots", stage.Len(), "hash", stage.Hash())
	return nil
}

func serveAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	db, err := openMainDB(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing main database..."); db.Close() }()

	src := utils.NewStoreSource(db)
	head, err := requireHead(src)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics.InitializePrometheusMetrics()
		url, stop, err := httpserver.StartMetricsServer(cfg.Metrics.Addr)
		if err != nil {
			return err
		}
		defer func() { logger.Info("stopping metrics server..."); stop() }()
		logger.Info("metrics server started", "url", url)
	}

	handler := api.New(src, builtin.New(), api.Options{
		AllowedOrigins:  cfg.API.Cors,
		EnableReqLogger: cfg.API.Logs,
		EnableMetrics:   cfg.Metrics.Enabled,
	})
	srv, listener, err := httpserver.Listen(cfg.API.Addr, handler)
	if err != nil {
		return err
	}
	logger.Info("API server started", "url", "http://"+listener.Addr().String()+"/", "head", head.Number)

	exit := handleExitSignal()
	g, gctx := errgroup.WithContext(exit)
	g.Go(func() error {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "serve API")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("stopping API server...")
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	})
	return g.Wait()
}

func inspectAction(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	db, err := openMainDB(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	src := utils.NewStoreSource(db)
	if _, err := requireHead(src); err != nil {
		return err
	}
	path := "/registry"
	if account := ctx.String(accountFlag.Name); account != "" {
		path = "/vaults/" + account
	}
	body, err := inspect(api.New(src, builtin.New(), api.Options{}), path)
	if err != nil {
		return err
	}
	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
