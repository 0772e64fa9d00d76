// types.go - Account entries, blinds and commitments.

package solvency

import (
	"fmt"

	"solvency/internal/commitment"
	"solvency/internal/ledger"
)

// AmountType selects the asset or liability side of an account.
type AmountType int

const (
	Asset AmountType = iota
	Liability
)

func (t AmountType) String() string {
	switch t {
	case Asset:
		return "asset"
	case Liability:
		return "liability"
	default:
		return fmt.Sprintf("AmountType(%d)", int(t))
	}
}

// ParseAmountType parses "asset" or "liability".
func ParseAmountType(s string) (AmountType, error) {
	switch s {
	case "asset":
		return Asset, nil
	case "liability":
		return Liability, nil
	}
	return 0, fmt.Errorf("unknown amount type %q", s)
}

// AmountAndCode is a value with its encoded asset code.
type AmountAndCode struct {
	Amount commitment.Scalar `json:"amount" cbor:"amount"`
	Code   commitment.Scalar `json:"code" cbor:"code"`
}

// AmountAndCodeBlinds opens an AmountAndCodeCommitment.
type AmountAndCodeBlinds struct {
	Amount commitment.Scalar `json:"amount" cbor:"amount"`
	Code   commitment.Scalar `json:"code" cbor:"code"`
}

// AmountAndCodeCommitment is the publishable form of a hidden entry.
type AmountAndCodeCommitment struct {
	Amount commitment.Point `json:"amount" cbor:"amount"`
	Code   commitment.Point `json:"code" cbor:"code"`
}

// HiddenEntry keeps a hidden value together with its opening and commitment.
type HiddenEntry struct {
	Value      AmountAndCode
	Blinds     AmountAndCodeBlinds
	Commitment AmountAndCodeCommitment
}

// CodeAndRate is one row of a conversion table.
type CodeAndRate struct {
	Code commitment.Scalar `json:"code" cbor:"code"`
	Rate commitment.Scalar `json:"rate" cbor:"rate"`
}

// CombineBlinds folds the limb blinds of each output into the blind of the
// combined amount commitment: low + 2^32·high.
func CombineBlinds(raw []ledger.Blinds) []AmountAndCodeBlinds {
	out := make([]AmountAndCodeBlinds, len(raw))
	for i, b := range raw {
		out[i] = AmountAndCodeBlinds{
			Amount: commitment.CombineLimbs(b.AmountLow, b.AmountHigh),
			Code:   b.Code,
		}
	}
	return out
}
