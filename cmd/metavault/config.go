// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"

	"github.com/vechain/metavault/builtin"
	"github.com/vechain/metavault/meta"
)

type APIConfig struct {
	Addr string `yaml:"addr"`
	Cors string `yaml:"cors"`
	Logs bool   `yaml:"logs"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type LogConfig struct {
	Verbosity uint64 `yaml:"verbosity"`
	JSON      bool   `yaml:"json"`
}

// RatesConfig are reward emissions per block. Unset rates keep the default.
type RatesConfig struct {
	LP        *math.HexOrDecimal256 `yaml:"lp"`
	LPWrapped *math.HexOrDecimal256 `yaml:"lp-wrapped"`
	POL       *math.HexOrDecimal256 `yaml:"pol"`
	IBGT      *math.HexOrDecimal256 `yaml:"ibgt"`
}

type GenesisConfig struct {
	Admin    string                `yaml:"admin"`
	HoneyCap *math.HexOrDecimal256 `yaml:"honey-cap"`
	Rates    RatesConfig           `yaml:"rates"`
}

// Config is the node configuration. Flags set on the command line take precedence.
type Config struct {
	DataDir string        `yaml:"data-dir"`
	API     APIConfig     `yaml:"api"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
	Genesis GenesisConfig `yaml:"genesis"`
}

func defaultConfig() *Config {
	return &Config{
		DataDir: dataDirFlag.Value,
		API:     APIConfig{Addr: apiAddrFlag.Value},
		Metrics: MetricsConfig{Addr: metricsAddrFlag.Value},
		Log:     LogConfig{Verbosity: verbosityFlag.Value},
	}
}

// loadConfig reads the YAML file at path over the defaults. Unknown keys are rejected.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "decode config %v", path)
	}
	return cfg, nil
}

// applyFlags overrides cfg with the flags set explicitly on ctx.
func (c *Config) applyFlags(ctx *cli.Context) {
	if ctx.IsSet(dataDirFlag.Name) {
		c.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(apiAddrFlag.Name) {
		c.API.Addr = ctx.String(apiAddrFlag.Name)
	}
	if ctx.IsSet(apiCorsFlag.Name) {
		c.API.Cors = ctx.String(apiCorsFlag.Name)
	}
	if ctx.IsSet(enableAPILogsFlag.Name) {
		c.API.Logs = ctx.Bool(enableAPILogsFlag.Name)
	}
	if ctx.IsSet(enableMetricsFlag.Name) {
		c.Metrics.Enabled = ctx.Bool(enableMetricsFlag.Name)
	}
	if ctx.IsSet(metricsAddrFlag.Name) {
		c.Metrics.Addr = ctx.String(metricsAddrFlag.Name)
	}
	if ctx.IsSet(verbosityFlag.Name) {
		c.Log.Verbosity = ctx.Uint64(verbosityFlag.Name)
	}
	if ctx.IsSet(jsonLogsFlag.Name) {
		c.Log.JSON = ctx.Bool(jsonLogsFlag.Name)
	}
	if ctx.IsSet(adminFlag.Name) {
		c.Genesis.Admin = ctx.String(adminFlag.Name)
	}
}

func override(dst **big.Int, v *math.HexOrDecimal256) {
	if v != nil {
		*dst = new(big.Int).Set((*big.Int)(v))
	}
}

// build returns the default genesis with the configured values applied.
func (g *GenesisConfig) build() (*builtin.Genesis, error) {
	if g.Admin == "" {
		return nil, errors.New("genesis admin not specified")
	}
	admin, err := meta.ParseAddress(g.Admin)
	if err != nil {
		return nil, errors.Wrap(err, "genesis admin")
	}
	if admin.IsZero() {
		return nil, errors.New("genesis admin is zero")
	}
	gene := builtin.DefaultGenesis(*admin)
	override(&gene.HoneyCap, g.HoneyCap)
	override(&gene.Rates.LP, g.Rates.LP)
	override(&gene.Rates.LPWrapped, g.Rates.LPWrapped)
	override(&gene.Rates.POL, g.Rates.POL)
	override(&gene.Rates.IBGT, g.Rates.IBGT)
	return gene, nil
}
