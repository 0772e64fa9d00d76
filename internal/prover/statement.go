// statement.go - Go-side statement and witness, and their circuit assignment.

package prover

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"

	"solvency/internal/commitment"
)

var (
	ErrCapacity        = errors.New("statement exceeds circuit capacity")
	ErrOpeningMismatch = errors.New("openings do not match statement")
)

// Committed is the public face of one hidden entry.
type Committed struct {
	Amount commitment.Point
	Code   commitment.Point
}

// Opening is the private face of one hidden entry.
type Opening struct {
	Amount      commitment.Scalar
	AmountBlind commitment.Scalar
	Code        commitment.Scalar
	CodeBlind   commitment.Scalar
}

// RateEntry is one row of a deduplicated conversion table.
type RateEntry struct {
	Code commitment.Scalar
	Rate commitment.Scalar
}

// Statement is everything the verifier knows.
type Statement struct {
	HiddenAssets       []Committed
	HiddenLiabilities  []Committed
	Rates              []RateEntry
	PublicAssetSum     *big.Int
	PublicLiabilitySum *big.Int
}

// Witness extends a statement with the openings of its hidden entries,
// index-aligned with HiddenAssets and HiddenLiabilities.
type Witness struct {
	Statement
	AssetOpenings     []Opening
	LiabilityOpenings []Opening
}

func (s *Statement) check(shape Shape) error {
	if len(s.HiddenAssets) > shape.HiddenAssets {
		return fmt.Errorf("%w: %d hidden assets, capacity %d", ErrCapacity, len(s.HiddenAssets), shape.HiddenAssets)
	}
	if len(s.HiddenLiabilities) > shape.HiddenLiabilities {
		return fmt.Errorf("%w: %d hidden liabilities, capacity %d", ErrCapacity, len(s.HiddenLiabilities), shape.HiddenLiabilities)
	}
	if len(s.Rates) > shape.Rates {
		return fmt.Errorf("%w: %d rates, capacity %d", ErrCapacity, len(s.Rates), shape.Rates)
	}
	for i, r := range s.Rates {
		if r.Rate.BigInt().BitLen() > RateBits {
			return fmt.Errorf("%w: rate %d exceeds %d bits", ErrCapacity, i, RateBits)
		}
	}
	for _, sum := range []*big.Int{s.PublicAssetSum, s.PublicLiabilitySum} {
		if sum == nil || sum.Sign() < 0 || sum.BitLen() > PublicSumBits {
			return fmt.Errorf("%w: public sum out of range", ErrCapacity)
		}
	}
	return nil
}

// assign builds a circuit assignment. Openings may be nil when only the
// public part is needed; private fields are then zero.
func (s *Statement) assign(shape Shape, assets, liabilities []Opening) (*SolvencyCircuit, error) {
	if err := s.check(shape); err != nil {
		return nil, err
	}
	if assets != nil && len(assets) != len(s.HiddenAssets) {
		return nil, fmt.Errorf("%w: %d asset openings for %d commitments", ErrOpeningMismatch, len(assets), len(s.HiddenAssets))
	}
	if liabilities != nil && len(liabilities) != len(s.HiddenLiabilities) {
		return nil, fmt.Errorf("%w: %d liability openings for %d commitments", ErrOpeningMismatch, len(liabilities), len(s.HiddenLiabilities))
	}

	c := NewCircuit(shape)
	c.PublicAssetSum = s.PublicAssetSum
	c.PublicLiabilitySum = s.PublicLiabilitySum

	if err := fillSlots(c.Assets, s.HiddenAssets, assets); err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	if err := fillSlots(c.Liabilities, s.HiddenLiabilities, liabilities); err != nil {
		return nil, fmt.Errorf("liabilities: %w", err)
	}

	for i := range c.Rates {
		if i < len(s.Rates) {
			c.Rates[i] = RateRow{Enabled: 1, Code: s.Rates[i].Code.BigInt(), Rate: s.Rates[i].Rate.BigInt()}
		} else {
			c.Rates[i] = RateRow{Enabled: 0, Code: 0, Rate: 0}
		}
	}
	return c, nil
}

func fillSlots(slots []Slot, committed []Committed, openings []Opening) error {
	identity := twistededwards.Point{X: 0, Y: 1}
	for i := range slots {
		if i >= len(committed) {
			slots[i] = Slot{
				Enabled:          0,
				AmountCommitment: identity,
				CodeCommitment:   identity,
				Amount:           0,
				AmountBlind:      0,
				Code:             0,
				CodeBlind:        0,
			}
			continue
		}

		amountC, err := circuitPoint(committed[i].Amount)
		if err != nil {
			return fmt.Errorf("slot %d amount: %w", i, err)
		}
		codeC, err := circuitPoint(committed[i].Code)
		if err != nil {
			return fmt.Errorf("slot %d code: %w", i, err)
		}
		slot := Slot{
			Enabled:          1,
			AmountCommitment: amountC,
			CodeCommitment:   codeC,
		}
		if openings != nil {
			o := openings[i]
			slot.Amount = o.Amount.BigInt()
			slot.AmountBlind = o.AmountBlind.BigInt()
			slot.Code = o.Code.BigInt()
			slot.CodeBlind = o.CodeBlind.BigInt()
		} else {
			slot.Amount, slot.AmountBlind, slot.Code, slot.CodeBlind = 0, 0, 0, 0
		}
		slots[i] = slot
	}
	return nil
}

func circuitPoint(p commitment.Point) (twistededwards.Point, error) {
	q, err := p.Decompress()
	if err != nil {
		return twistededwards.Point{}, err
	}
	return twistededwards.Point{X: q.X.BigInt(new(big.Int)), Y: q.Y.BigInt(new(big.Int))}, nil
}

// publicAssignment is used on the verifier side.
func (s *Statement) publicAssignment(shape Shape) (frontend.Circuit, error) {
	return s.assign(shape, nil, nil)
}
