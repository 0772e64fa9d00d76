// store.go - Append-only local output store persisted as JSON.
//
// Outputs are never modified or removed once appended; an output's ref is its
// position in the store. The store is safe for concurrent use.

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"solvency/internal/commitment"
)

// Store is a local, append-only ledger of outputs.
type Store struct {
	mu      sync.RWMutex
	outputs []Amount
}

type storeFile struct {
	Outputs []Amount `json:"outputs"`
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{outputs: make([]Amount, 0)}
}

// Append records a new output and returns its ref.
func (s *Store) Append(a Amount) OutputRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, a)
	return OutputRef(len(s.outputs) - 1)
}

// Len returns the number of outputs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outputs)
}

// Resolve implements Querier.
func (s *Store) Resolve(ctx context.Context, ref OutputRef) (Amount, error) {
	if err := ctx.Err(); err != nil {
		return Amount{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if uint64(ref) >= uint64(len(s.outputs)) {
		return Amount{}, fmt.Errorf("%w: %s", ErrUnknownOutput, ref)
	}
	return s.outputs[ref], nil
}

// Opening is what the issuer hands to the recipient of an output.
type Opening struct {
	Ref    OutputRef            `json:"ref"`
	Code   commitment.AssetCode `json:"code"`
	Amount uint64               `json:"amount"`
	Blinds *Blinds              `json:"blinds,omitempty"`
}

// Issue mints an output of the given amount. Confidential outputs commit to
// the two 32-bit limbs under fresh blinds, which are returned in the opening
// together with a fresh code blind.
func (s *Store) Issue(amount uint64, code commitment.AssetCode, confidential bool) (Opening, error) {
	if !confidential {
		ref := s.Append(PublicAmount(amount))
		return Opening{Ref: ref, Code: code, Amount: amount}, nil
	}

	blinds, err := RandomBlinds()
	if err != nil {
		return Opening{}, fmt.Errorf("sample blinds: %w", err)
	}
	lo, hi := commitment.SplitAmount(amount)
	low := commitment.Commit(commitment.NewScalar(lo), blinds.AmountLow)
	high := commitment.Commit(commitment.NewScalar(hi), blinds.AmountHigh)

	ref := s.Append(ConfidentialAmount(low, high))
	return Opening{Ref: ref, Code: code, Amount: amount, Blinds: &blinds}, nil
}

// SaveToFile writes the store as indented JSON, overwriting path.
func (s *Store) SaveToFile(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(storeFile{Outputs: s.outputs})
}

// LoadStoreFromFile reads a store written by SaveToFile.
func LoadStoreFromFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var sf storeFile
	if err := json.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", path, err)
	}
	if sf.Outputs == nil {
		sf.Outputs = make([]Amount, 0)
	}
	return &Store{outputs: sf.Outputs}, nil
}

// LoadOrCreateStore loads path, or returns an empty store if it does not exist.
func LoadOrCreateStore(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewStore(), nil
	}
	return LoadStoreFromFile(path)
}
