// account.go - Account state and the update protocol.
//
// An Account accumulates public and hidden entries from ledger outputs. Every
// successful Update clears the cached proof. Update and Audit.Prove hold the
// account's write lock for the whole call; Verify and Public take the read lock.

package solvency

import (
	"context"
	"fmt"
	"sync"

	"solvency/internal/commitment"
	"solvency/internal/ledger"
)

// Account is the owner's private accounting state.
type Account struct {
	mu sync.RWMutex

	publicAssets      []AmountAndCode
	hiddenAssets      []HiddenEntry
	publicLiabilities []AmountAndCode
	hiddenLiabilities []HiddenEntry

	// proof is nil unless a prove succeeded after the last update.
	proof []byte
}

// NewAccount returns an empty account.
func NewAccount() *Account {
	return &Account{}
}

// Update resolves ref through q and records the output as an entry of kind.
// blinds is required only when the output turns out to be confidential.
// On failure the account is left unchanged.
func (a *Account) Update(ctx context.Context, kind AmountType, amount uint64, code commitment.AssetCode, blinds *ledger.Blinds, ref ledger.OutputRef, q ledger.Querier) error {
	if kind != Asset && kind != Liability {
		return fmt.Errorf("update: %s", kind)
	}
	codeScalar := commitment.EncodeCode(code)

	a.mu.Lock()
	defer a.mu.Unlock()

	resolved, err := q.Resolve(ctx, ref)
	if err != nil {
		return fmt.Errorf("%w: output %s: %v", ErrQuery, ref, err)
	}

	if !resolved.Confidential {
		if resolved.Value != amount {
			return fmt.Errorf("%w: output %s holds %d, claimed %d", ErrInputMismatch, ref, resolved.Value, amount)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := AmountAndCode{Amount: commitment.NewScalar(amount), Code: codeScalar}
		if kind == Asset {
			a.publicAssets = append(a.publicAssets, entry)
		} else {
			a.publicLiabilities = append(a.publicLiabilities, entry)
		}
		a.proof = nil
		return nil
	}

	if blinds == nil {
		return fmt.Errorf("%w: output %s is confidential", ErrMissingBlinds, ref)
	}
	amountBlind := commitment.CombineLimbs(blinds.AmountLow, blinds.AmountHigh)
	amountCommitment, err := commitment.CombineCommitments(resolved.Low, resolved.High)
	if err != nil {
		return fmt.Errorf("%w: output %s: %v", ErrDecompressElement, ref, err)
	}
	codeCommitment := commitment.Commit(codeScalar, blinds.Code)

	if err := ctx.Err(); err != nil {
		return err
	}
	entry := HiddenEntry{
		Value:      AmountAndCode{Amount: commitment.NewScalar(amount), Code: codeScalar},
		Blinds:     AmountAndCodeBlinds{Amount: amountBlind, Code: blinds.Code},
		Commitment: AmountAndCodeCommitment{Amount: amountCommitment, Code: codeCommitment},
	}
	if kind == Asset {
		a.hiddenAssets = append(a.hiddenAssets, entry)
	} else {
		a.hiddenLiabilities = append(a.hiddenLiabilities, entry)
	}
	a.proof = nil
	return nil
}

// PublicAssets returns a copy of the public asset list.
func (a *Account) PublicAssets() []AmountAndCode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]AmountAndCode(nil), a.publicAssets...)
}

// PublicLiabilities returns a copy of the public liability list.
func (a *Account) PublicLiabilities() []AmountAndCode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]AmountAndCode(nil), a.publicLiabilities...)
}

// HiddenAssets returns a copy of the hidden asset entries, openings included.
func (a *Account) HiddenAssets() []HiddenEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]HiddenEntry(nil), a.hiddenAssets...)
}

// HiddenLiabilities returns a copy of the hidden liability entries, openings included.
func (a *Account) HiddenLiabilities() []HiddenEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]HiddenEntry(nil), a.hiddenLiabilities...)
}

// Proof returns a copy of the stored proof, or nil.
func (a *Account) Proof() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.proof == nil {
		return nil
	}
	return append([]byte(nil), a.proof...)
}

// HasProof reports whether a proof is stored.
func (a *Account) HasProof() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.proof != nil
}

// Summary counts the entries of each list.
type Summary struct {
	PublicAssets      int
	HiddenAssets      int
	PublicLiabilities int
	HiddenLiabilities int
	HasProof          bool
}

// Summary counts the account entries per list.
func (a *Account) Summary() Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Summary{
		PublicAssets:      len(a.publicAssets),
		HiddenAssets:      len(a.hiddenAssets),
		PublicLiabilities: len(a.publicLiabilities),
		HiddenLiabilities: len(a.hiddenLiabilities),
		HasProof:          a.proof != nil,
	}
}

// PublicAccount is the view of an account shared with verifiers. It carries
// commitments in place of hidden values and has no room for openings.
type PublicAccount struct {
	PublicAssets      []AmountAndCode           `json:"public_assets" cbor:"public_assets"`
	HiddenAssets      []AmountAndCodeCommitment `json:"hidden_assets" cbor:"hidden_assets"`
	PublicLiabilities []AmountAndCode           `json:"public_liabilities" cbor:"public_liabilities"`
	HiddenLiabilities []AmountAndCodeCommitment `json:"hidden_liabilities" cbor:"hidden_liabilities"`
	Proof             []byte                    `json:"proof,omitempty" cbor:"proof,omitempty"`
}

// Public returns the shareable view of a.
func (a *Account) Public() *PublicAccount {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.publicLocked()
}

func (a *Account) publicLocked() *PublicAccount {
	pub := &PublicAccount{
		PublicAssets:      append([]AmountAndCode{}, a.publicAssets...),
		HiddenAssets:      commitmentsOf(a.hiddenAssets),
		PublicLiabilities: append([]AmountAndCode{}, a.publicLiabilities...),
		HiddenLiabilities: commitmentsOf(a.hiddenLiabilities),
	}
	if a.proof != nil {
		pub.Proof = append([]byte(nil), a.proof...)
	}
	return pub
}

func commitmentsOf(entries []HiddenEntry) []AmountAndCodeCommitment {
	out := make([]AmountAndCodeCommitment, len(entries))
	for i, e := range entries {
		out[i] = e.Commitment
	}
	return out
}
