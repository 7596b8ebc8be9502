// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package test holds helpers shared by tests that run servers.
package test

import (
	"time"

	"github.com/pkg/errors"
)

// Retry calls fn every period until it succeeds or maxWait elapses, returning the last error.
func Retry(fn func() error, period, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	for {
		err := fn()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.WithMessage(err, "retry timeout")
		}
		time.Sleep(period)
	}
}
