// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"

	"github.com/vechain/metavault/api/utils"
	"github.com/vechain/metavault/log"
	"github.com/vechain/metavault/lvldb"
	"github.com/vechain/metavault/state"
)

func readIntFromUInt64Flag(val uint64) (int, error) {
	if val > math.MaxInt {
		return 0, fmt.Errorf("invalid value %d, must be <= %d", val, math.MaxInt)
	}
	return int(val), nil
}

func initLogger(verbosity int, jsonLogs bool) {
	format := log.FormatTerminal
	if jsonLogs {
		format = log.FormatJSON
	}
	log.SetDefault(log.NewLogger(log.NewHandler(os.Stderr, format, log.FromLegacyLevel(verbosity))))
}

func openMainDB(dataDir string) (*lvldb.LevelDB, error) {
	if dataDir == "" {
		return nil, errors.Errorf("unable to infer default data dir, use -%s to specify", dataDirFlag.Name)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, errors.Wrapf(err, "create data dir [%v]", dataDir)
	}
	dir := filepath.Join(dataDir, "main.db")
	db, err := lvldb.New(dir, lvldb.Options{CacheSize: 64, OpenFilesCacheCapacity: 64})
	if err != nil {
		return nil, errors.Wrapf(err, "open main database [%v]", dir)
	}
	return db, nil
}

// requireHead fails on a data dir nothing was committed to.
func requireHead(src utils.Source) (state.Head, error) {
	_, head, err := src.Snapshot()
	if err != nil {
		return head, err
	}
	if head.Time == 0 {
		return head, errors.New("data dir not initialized, run init first")
	}
	return head, nil
}

// handleExitSignal returns a context cancelled on SIGINT or SIGTERM.
func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}

// bufferedResponse collects a response served in process.
type bufferedResponse struct {
	header http.Header
	code   int
	body   bytes.Buffer
}

func (r *bufferedResponse) Header() http.Header         { return r.header }
func (r *bufferedResponse) Write(b []byte) (int, error) { return r.body.Write(b) }
func (r *bufferedResponse) WriteHeader(code int)        { r.code = code }

// inspect serves a GET of path through handler without a listener.
func inspect(handler http.Handler, path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	res := &bufferedResponse{header: make(http.Header), code: http.StatusOK}
	handler.ServeHTTP(res, req)
	if res.code != http.StatusOK {
		return nil, errors.Errorf("%v: %d %s", path, res.code, bytes.TrimSpace(res.body.Bytes()))
	}
	return res.body.Bytes(), nil
}

func defaultDataDir() string {
	if home := homeDir(); home != "" {
		return filepath.Join(home, ".org.vechain.metavault")
	}
	return ""
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}
