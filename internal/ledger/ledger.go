// ledger.go - Ledger query surface used by account updates.
//
// A ledger output is addressed by an OutputRef and resolves either to a public
// amount or to a pair of limb commitments (C_low, C_high) for a confidential one.
// Only the Querier interface is needed by the solvency package; Store is a
// local append-only implementation used by the CLI and tests.

package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"solvency/internal/commitment"
)

var ErrUnknownOutput = errors.New("unknown ledger output")

// OutputRef identifies an output on the ledger.
type OutputRef uint64

func (r OutputRef) String() string {
	return strconv.FormatUint(uint64(r), 10)
}

// ParseOutputRef parses the decimal form produced by String.
func ParseOutputRef(s string) (OutputRef, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse output ref %q: %w", s, err)
	}
	return OutputRef(v), nil
}

// Amount is what the ledger knows about an output's value: the plaintext when
// public, or the two limb commitments when confidential.
type Amount struct {
	Confidential bool             `json:"confidential"`
	Value        uint64           `json:"value,omitempty"`
	Low          commitment.Point `json:"low"`
	High         commitment.Point `json:"high"`
}

// PublicAmount returns the ledger view of a public output.
func PublicAmount(v uint64) Amount {
	return Amount{Value: v}
}

// ConfidentialAmount returns the ledger view of a confidential output.
func ConfidentialAmount(low, high commitment.Point) Amount {
	return Amount{Confidential: true, Low: low, High: high}
}

// Blinds are the opening randomness of a confidential output as handed to
// its recipient: one blind per amount limb plus the code blind.
type Blinds struct {
	AmountLow  commitment.Scalar `json:"amount_low"`
	AmountHigh commitment.Scalar `json:"amount_high"`
	Code       commitment.Scalar `json:"code"`
}

// RandomBlinds samples a fresh set of blinds.
func RandomBlinds() (Blinds, error) {
	var b Blinds
	var err error
	if b.AmountLow, err = commitment.RandomScalar(); err != nil {
		return b, err
	}
	if b.AmountHigh, err = commitment.RandomScalar(); err != nil {
		return b, err
	}
	if b.Code, err = commitment.RandomScalar(); err != nil {
		return b, err
	}
	return b, nil
}

// Querier resolves ledger outputs. Implementations must honour ctx.
type Querier interface {
	Resolve(ctx context.Context, ref OutputRef) (Amount, error)
}

// QuerierFunc adapts a function to the Querier interface.
type QuerierFunc func(ctx context.Context, ref OutputRef) (Amount, error)

// Resolve calls f(ctx, ref).
func (f QuerierFunc) Resolve(ctx context.Context, ref OutputRef) (Amount, error) {
	return f(ctx, ref)
}
