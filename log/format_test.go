// Copyright 2017 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package log

import (
	"bytes"
	"errors"
	"log/slog"
	"math/big"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

var sink []byte

func BenchmarkPrettyInt64Logfmt(b *testing.B) {
	buf := make([]byte, 100)
	b.ReportAllocs()
	for b.Loop() {
		sink = appendInt64(buf, rand.Int64()) //#nosec G404
	}
}

func BenchmarkPrettyUint64Logfmt(b *testing.B) {
	buf := make([]byte, 100)
	b.ReportAllocs()
	for b.Loop() {
		sink = appendUint64(buf, rand.Uint64(), false) //#nosec G404
	}
}

func TestAppendUint64(t *testing.T) {
	tests := []struct {
		n    uint64
		neg  bool
		want string
	}{
		{0, false, "0"},
		{99999, false, "99999"},
		{100000, false, "100,000"},
		{1234567, true, "-1,234,567"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(appendUint64(nil, tt.n, tt.neg)))
	}
	assert.Equal(t, "-100,000", string(appendInt64(nil, -100000)))
}

func TestFormatSlogValue(t *testing.T) {
	big1e18 := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	tests := []struct {
		v    slog.Value
		want string
	}{
		{slog.StringValue("plain"), "plain"},
		{slog.StringValue("with space"), `"with space"`},
		{slog.AnyValue(big1e18), "1,000,000,000,000,000,000"},
		{slog.AnyValue(uint256.NewInt(42)), "42"},
		{slog.AnyValue((*big.Int)(nil)), "<nil>"},
		{slog.AnyValue(errors.New("boom")), "boom"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(FormatSlogValue(tt.v, nil)))
	}
}

func TestTerminalHandler(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(NewTerminalHandlerWithLevel(&buf, new(slog.LevelVar), false))
	l.With("pkg", "vault").Info("staked", "amount", 5)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "INFO ["))
	assert.Contains(t, out, "staked")
	assert.Contains(t, out, "pkg=vault amount=5")

	buf.Reset()
	l.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestWithContextFollowsRoot(t *testing.T) {
	pkgLogger := WithContext("pkg", "test")

	var buf bytes.Buffer
	prev := Root()
	SetDefault(NewLogger(NewHandler(&buf, FormatLogfmt, LevelDebug)))
	defer SetDefault(prev)

	pkgLogger.Debug("hello", "n", 1)
	assert.Contains(t, buf.String(), "pkg=test")
	assert.Contains(t, buf.String(), "lvl=debug")

	buf.Reset()
	pkgLogger.Trace("too verbose")
	assert.Empty(t, buf.String())
}

func TestLevels(t *testing.T) {
	assert.Equal(t, "crit", LevelString(FromLegacyLevel(0)))
	assert.Equal(t, "info", LevelString(FromLegacyLevel(3)))
	assert.Equal(t, "trace", LevelString(FromLegacyLevel(9)))
	assert.Equal(t, "WARN ", LevelAlignedString(LevelWarn))
}

func TestJSONHandlerRendersAmounts(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(NewHandler(&buf, FormatJSON, LevelInfo))
	var nilAmount *big.Int
	l.Info("reward routed", "amount", big.NewInt(1_000_000), "fee", nilAmount, "raw", []byte{0xbe, 0xef})

	out := buf.String()
	assert.Contains(t, out, `"lvl":"info"`)
	assert.Contains(t, out, `"amount":"1000000"`)
	assert.Contains(t, out, `"fee":"<nil>"`)
	assert.Contains(t, out, `"raw":"0xbeef"`)
}
