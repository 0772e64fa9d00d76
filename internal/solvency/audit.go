// audit.go - Conversion rates and the prove/verify orchestration.
//
// The rate table is an ordered sequence. When a code is set more than once the
// last rate set wins; the code keeps the position of its first appearance.

package solvency

import (
	"fmt"
	"math/big"
	"sync"

	"solvency/internal/commitment"
	"solvency/internal/prover"
)

// Prover produces serialized proofs.
type Prover interface {
	Prove(w *prover.Witness) ([]byte, error)
}

// Verifier checks serialized proofs.
type Verifier interface {
	ReadProof(b []byte) (prover.Proof, error)
	Verify(st *prover.Statement, proof prover.Proof) error
}

// Audit holds the conversion rates of one audit session.
type Audit struct {
	mu    sync.RWMutex
	rates []CodeAndRate
}

// NewAudit returns an audit with an empty rate table.
func NewAudit() *Audit {
	return &Audit{}
}

// SetRate appends a rate for code.
func (a *Audit) SetRate(code commitment.AssetCode, rate uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rates = append(a.rates, CodeAndRate{Code: commitment.EncodeCode(code), Rate: commitment.NewScalar(rate)})
}

// Entries returns the raw table, duplicates included.
func (a *Audit) Entries() []CodeAndRate {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]CodeAndRate(nil), a.rates...)
}

// checkRates rejects rates that SetRate could not have produced.
func checkRates(rates []CodeAndRate) error {
	for i, r := range rates {
		if r.Rate.BigInt().BitLen() > prover.RateBits {
			return fmt.Errorf("%w: rate %d exceeds %d bits", ErrMalformedState, i, prover.RateBits)
		}
	}
	return nil
}

// RateTable resolves codes to rates.
type RateTable struct {
	index   map[commitment.Scalar]int
	entries []prover.RateEntry
	err     error
}

// Rates builds the resolution table. A table built from out-of-range rates
// carries an ErrMalformedState that Prove and Verify report.
func (a *Audit) Rates() RateTable {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t := RateTable{index: make(map[commitment.Scalar]int, len(a.rates)), err: checkRates(a.rates)}
	for _, r := range a.rates {
		if i, ok := t.index[r.Code]; ok {
			t.entries[i].Rate = r.Rate
			continue
		}
		t.index[r.Code] = len(t.entries)
		t.entries = append(t.entries, prover.RateEntry{Code: r.Code, Rate: r.Rate})
	}
	return t
}

// Lookup returns the rate for code.
func (t RateTable) Lookup(code commitment.Scalar) (commitment.Scalar, bool) {
	i, ok := t.index[code]
	if !ok {
		return commitment.Scalar{}, false
	}
	return t.entries[i].Rate, true
}

// Len is the number of distinct codes.
func (t RateTable) Len() int {
	return len(t.entries)
}

// Entries returns the deduplicated rows in first-appearance order.
func (t RateTable) Entries() []prover.RateEntry {
	return append([]prover.RateEntry(nil), t.entries...)
}

func (t RateTable) requireCodes(entries []AmountAndCode) error {
	for i, e := range entries {
		if _, ok := t.Lookup(e.Code); !ok {
			return fmt.Errorf("%w: entry %d code %s", ErrMissingConversionRate, i, e.Code)
		}
	}
	return nil
}

// weightedSum returns Σ amount·rate over entries whose codes all resolve.
func (t RateTable) weightedSum(entries []AmountAndCode) (*big.Int, error) {
	sum := new(big.Int)
	for i, e := range entries {
		rate, ok := t.Lookup(e.Code)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d code %s", ErrMissingConversionRate, i, e.Code)
		}
		sum.Add(sum, new(big.Int).Mul(e.Amount.BigInt(), rate.BigInt()))
	}
	return sum, nil
}

func hiddenValues(entries []HiddenEntry) []AmountAndCode {
	out := make([]AmountAndCode, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

func openings(entries []HiddenEntry) []prover.Opening {
	out := make([]prover.Opening, len(entries))
	for i, e := range entries {
		out[i] = prover.Opening{
			Amount:      e.Value.Amount,
			AmountBlind: e.Blinds.Amount,
			Code:        e.Value.Code,
			CodeBlind:   e.Blinds.Code,
		}
	}
	return out
}

func committed(entries []AmountAndCodeCommitment) []prover.Committed {
	out := make([]prover.Committed, len(entries))
	for i, c := range entries {
		out[i] = prover.Committed{Amount: c.Amount, Code: c.Code}
	}
	return out
}

// statement builds what the verifier sees from a public view.
func (t RateTable) statement(pub *PublicAccount) (*prover.Statement, error) {
	assets, err := t.weightedSum(pub.PublicAssets)
	if err != nil {
		return nil, fmt.Errorf("public assets: %w", err)
	}
	liabilities, err := t.weightedSum(pub.PublicLiabilities)
	if err != nil {
		return nil, fmt.Errorf("public liabilities: %w", err)
	}
	return &prover.Statement{
		HiddenAssets:       committed(pub.HiddenAssets),
		HiddenLiabilities:  committed(pub.HiddenLiabilities),
		Rates:              t.Entries(),
		PublicAssetSum:     assets,
		PublicLiabilitySum: liabilities,
	}, nil
}

// Prove proves acct solvent under the audit's rates and stores the proof in
// acct. On failure the stored proof is left as it was.
func (a *Audit) Prove(e Prover, acct *Account) error {
	table := a.Rates()
	if table.err != nil {
		return table.err
	}

	acct.mu.Lock()
	defer acct.mu.Unlock()

	if err := table.requireCodes(hiddenValues(acct.hiddenAssets)); err != nil {
		return fmt.Errorf("hidden assets: %w", err)
	}
	if err := table.requireCodes(hiddenValues(acct.hiddenLiabilities)); err != nil {
		return fmt.Errorf("hidden liabilities: %w", err)
	}
	st, err := table.statement(acct.publicLocked())
	if err != nil {
		return err
	}

	w := &prover.Witness{
		Statement:         *st,
		AssetOpenings:     openings(acct.hiddenAssets),
		LiabilityOpenings: openings(acct.hiddenLiabilities),
	}
	proof, err := e.Prove(w)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProveFailed, err)
	}
	acct.proof = proof
	return nil
}

// Verify checks the proof stored in acct. Hidden codes are checked against
// the table as well; the engine itself only sees commitments.
func (a *Audit) Verify(e Verifier, acct *Account) error {
	acct.mu.RLock()
	defer acct.mu.RUnlock()

	if acct.proof == nil {
		return ErrMissingProof
	}
	table := a.Rates()
	if table.err != nil {
		return a.verifyError(e, acct.proof, table.err)
	}
	if err := table.requireCodes(hiddenValues(acct.hiddenAssets)); err != nil {
		return a.verifyError(e, acct.proof, fmt.Errorf("hidden assets: %w", err))
	}
	if err := table.requireCodes(hiddenValues(acct.hiddenLiabilities)); err != nil {
		return a.verifyError(e, acct.proof, fmt.Errorf("hidden liabilities: %w", err))
	}
	return a.verifyWith(e, table, acct.publicLocked())
}

// verifyError keeps the error precedence of VerifyPublic: a corrupt proof is
// reported before a missing rate.
func (a *Audit) verifyError(e Verifier, proof []byte, rateErr error) error {
	if _, err := e.ReadProof(proof); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserializeProof, err)
	}
	return rateErr
}

// VerifyPublic checks a shared view. A hidden entry whose code has no rate
// cannot be detected here and surfaces as ErrVerifyFailed.
func (a *Audit) VerifyPublic(e Verifier, pub *PublicAccount) error {
	return a.verifyWith(e, a.Rates(), pub)
}

func (a *Audit) verifyWith(e Verifier, table RateTable, pub *PublicAccount) error {
	if pub.Proof == nil {
		return ErrMissingProof
	}
	proof, err := e.ReadProof(pub.Proof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeserializeProof, err)
	}
	if table.err != nil {
		return table.err
	}
	st, err := table.statement(pub)
	if err != nil {
		return err
	}
	if err := e.Verify(st, proof); err != nil {
		return fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	return nil
}
