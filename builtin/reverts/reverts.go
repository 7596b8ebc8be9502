// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reverts

import (
	"errors"
	"fmt"

	"github.com/vechain/metavault/meta"
)

// Kind classifies a revert.
type Kind uint8

const (
	Invariant Kind = iota
	Authorization
	Timing
	Amount
)

func (k Kind) String() string {
	switch k {
	case Authorization:
		return "authorization"
	case Timing:
		return "timing"
	case Amount:
		return "amount"
	default:
		return "invariant"
	}
}

// ErrRevert is a user facing failure. The operation that returned it left no effect on state.
type ErrRevert struct {
	kind    Kind
	message string
}

// New returns a state invariant violation.
func New(message string) *ErrRevert {
	return &ErrRevert{kind: Invariant, message: message}
}

func Newf(kind Kind, format string, args ...any) *ErrRevert {
	return &ErrRevert{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Unauthorized reports a caller outside of the permitted class.
func Unauthorized(message string, caller meta.Address) *ErrRevert {
	return &ErrRevert{kind: Authorization, message: fmt.Sprintf("%s: %v", message, caller)}
}

func TooEarly(message string) *ErrRevert {
	return &ErrRevert{kind: Timing, message: message}
}

func InvalidAmount(message string) *ErrRevert {
	return &ErrRevert{kind: Amount, message: message}
}

func (e *ErrRevert) Error() string {
	return e.message
}

func (e *ErrRevert) Kind() Kind {
	return e.kind
}

func IsRevertErr(err any) bool {
	if err == nil {
		return false
	}
	e, ok := err.(error)
	if !ok {
		return false
	}
	var ve *ErrRevert
	return errors.As(e, &ve)
}

// KindOf returns the kind of a wrapped revert. ok is false when err is not a revert.
func KindOf(err error) (kind Kind, ok bool) {
	var ve *ErrRevert
	if errors.As(err, &ve) {
		return ve.kind, true
	}
	return 0, false
}
