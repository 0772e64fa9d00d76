// circuit.go - Solvency statement as a gnark circuit over the BN254 scalar field.
//
// Public inputs: per hidden slot an enabled bit and the amount/code commitment
// points, the deduplicated rate table, and the two weighted sums of the public
// entries. Private witnesses: per hidden slot the amount, code and both blinds.
//
// The circuit proves that every enabled slot opens its commitments, that its
// amount and every rate fit in 64 bits, that its code matches an enabled rate row, and that
//
//	Σ amount·rate (assets) + PublicAssetSum ≥ Σ amount·rate (liabilities) + PublicLiabilitySum
//
// Disabled slots are padded with the identity point and must hold amount 0.

package prover

import (
	"math/big"

	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"

	"solvency/internal/commitment"
)

const (
	// AmountBits bounds every hidden amount.
	AmountBits = 64
	// RateBits bounds every conversion rate.
	RateBits = 64
	// SumBits bounds each side of the inequality, and so the difference.
	SumBits = 192
	// PublicSumBits bounds the public weighted sums supplied to the circuit.
	PublicSumBits = 190
)

// Slot is one hidden entry.
type Slot struct {
	Enabled          frontend.Variable    `gnark:",public"`
	AmountCommitment twistededwards.Point `gnark:",public"`
	CodeCommitment   twistededwards.Point `gnark:",public"`

	Amount      frontend.Variable
	AmountBlind frontend.Variable
	Code        frontend.Variable
	CodeBlind   frontend.Variable
}

// RateRow is one entry of the conversion table.
type RateRow struct {
	Enabled frontend.Variable `gnark:",public"`
	Code    frontend.Variable `gnark:",public"`
	Rate    frontend.Variable `gnark:",public"`
}

// SolvencyCircuit is sized by a Shape before compilation.
type SolvencyCircuit struct {
	Assets      []Slot
	Liabilities []Slot
	Rates       []RateRow

	PublicAssetSum     frontend.Variable `gnark:",public"`
	PublicLiabilitySum frontend.Variable `gnark:",public"`
}

// NewCircuit allocates a circuit with the capacities of shape.
func NewCircuit(shape Shape) *SolvencyCircuit {
	return &SolvencyCircuit{
		Assets:      make([]Slot, shape.HiddenAssets),
		Liabilities: make([]Slot, shape.HiddenLiabilities),
		Rates:       make([]RateRow, shape.Rates),
	}
}

// Define declares the circuit constraints.
func (c *SolvencyCircuit) Define(api frontend.API) error {
	curve, err := twistededwards.NewEdCurve(api, tedwards.BN254)
	if err != nil {
		return err
	}
	gens := commitment.PublicGenerators()
	g := twistededwards.Point{X: gens.G.X.BigInt(new(big.Int)), Y: gens.G.Y.BigInt(new(big.Int))}
	h := twistededwards.Point{X: gens.H.X.BigInt(new(big.Int)), Y: gens.H.Y.BigInt(new(big.Int))}

	for i := range c.Rates {
		api.AssertIsBoolean(c.Rates[i].Enabled)
		// amount·rate stays below 2^128, so slot weights cannot wrap the field.
		api.ToBinary(c.Rates[i].Rate, RateBits)
	}

	var assets frontend.Variable = c.PublicAssetSum
	for i := range c.Assets {
		assets = api.Add(assets, c.weighSlot(api, curve, g, h, &c.Assets[i]))
	}
	var liabilities frontend.Variable = c.PublicLiabilitySum
	for i := range c.Liabilities {
		liabilities = api.Add(liabilities, c.weighSlot(api, curve, g, h, &c.Liabilities[i]))
	}

	api.ToBinary(c.PublicAssetSum, PublicSumBits)
	api.ToBinary(c.PublicLiabilitySum, PublicSumBits)
	api.ToBinary(assets, SumBits)
	api.ToBinary(liabilities, SumBits)

	// A negative difference wraps around the field and no longer fits.
	api.ToBinary(api.Sub(assets, liabilities), SumBits)
	return nil
}

// weighSlot constrains one slot and returns amount·rate.
func (c *SolvencyCircuit) weighSlot(api frontend.API, curve twistededwards.Curve, g, h twistededwards.Point, s *Slot) frontend.Variable {
	api.AssertIsBoolean(s.Enabled)

	amountC := curve.DoubleBaseScalarMul(g, h, s.Amount, s.AmountBlind)
	api.AssertIsEqual(amountC.X, s.AmountCommitment.X)
	api.AssertIsEqual(amountC.Y, s.AmountCommitment.Y)

	codeC := curve.DoubleBaseScalarMul(g, h, s.Code, s.CodeBlind)
	api.AssertIsEqual(codeC.X, s.CodeCommitment.X)
	api.AssertIsEqual(codeC.Y, s.CodeCommitment.Y)

	api.ToBinary(s.Amount, AmountBits)
	api.AssertIsEqual(api.Mul(api.Sub(1, s.Enabled), s.Amount), 0)

	var matches, rate frontend.Variable = 0, 0
	for i := range c.Rates {
		row := &c.Rates[i]
		hit := api.Mul(api.IsZero(api.Sub(s.Code, row.Code)), row.Enabled)
		matches = api.Add(matches, hit)
		rate = api.Add(rate, api.Mul(hit, row.Rate))
	}
	api.AssertIsEqual(api.Mul(s.Enabled, api.Sub(matches, 1)), 0)

	return api.Mul(s.Amount, rate)
}
