// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"flag"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/metavault/builtin"
	"github.com/vechain/metavault/meta"
	"github.com/vechain/metavault/test/datagen"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "metavault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Equal(t, "localhost:8679", cfg.API.Addr)
	assert.Equal(t, uint64(3), cfg.Log.Verbosity)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadConfigFile(t *testing.T) {
	admin := datagen.RandAddress()
	path := writeConfig(t, `
data-dir: /tmp/metavault
api:
  addr: 0.0.0.0:9000
  logs: true
metrics:
  enabled: true
log:
  verbosity: 4
genesis:
  admin: "`+admin.String()+`"
  honey-cap: "0x3e8"
  rates:
    lp: "1000"
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/metavault", cfg.DataDir)
	assert.Equal(t, "0.0.0.0:9000", cfg.API.Addr)
	assert.True(t, cfg.API.Logs)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, metricsAddrFlag.Value, cfg.Metrics.Addr)
	assert.Equal(t, uint64(4), cfg.Log.Verbosity)

	gene, err := cfg.Genesis.build()
	require.NoError(t, err)
	def := builtin.DefaultGenesis(admin)
	assert.Equal(t, admin, gene.Admin)
	assert.Equal(t, "1000", gene.HoneyCap.String())
	assert.Equal(t, "1000", gene.Rates.LP.String())
	assert.Equal(t, def.Rates.POL, gene.Rates.POL)
	assert.Equal(t, def.Rates.IBGT, gene.Rates.IBGT)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, "api:\n  address: localhost:1\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = loadConfig(writeConfig(t, "genesis:\n  rates:\n    lp: twelve\n"))
	assert.Error(t, err)
}

func TestGenesisBuildErrors(t *testing.T) {
	for _, admin := range []string{"", "0x1234", meta.Address{}.String()} {
		g := GenesisConfig{Admin: admin}
		_, err := g.build()
		assert.Error(t, err, admin)
	}
	g := GenesisConfig{Admin: datagen.RandAddress().String()}
	gene, err := g.build()
	require.NoError(t, err)
	assert.Equal(t, 0, gene.HoneyCap.Cmp(new(big.Int).Mul(big.NewInt(1_000_000), meta.FeePrecision)))
}

func TestApplyFlags(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range []cli.Flag{dataDirFlag, apiAddrFlag, enableMetricsFlag, verbosityFlag, adminFlag} {
		f.Apply(set)
	}
	require.NoError(t, set.Parse([]string{"--api-addr", "localhost:1", "--enable-metrics", "--verbosity", "5"}))
	ctx := cli.NewContext(nil, set, nil)

	cfg := defaultConfig()
	cfg.DataDir = "/from/file"
	cfg.applyFlags(ctx)
	assert.Equal(t, "/from/file", cfg.DataDir, "unset flags keep the file value")
	assert.Equal(t, "localhost:1", cfg.API.Addr)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, uint64(5), cfg.Log.Verbosity)
	assert.Empty(t, cfg.Genesis.Admin)
}
