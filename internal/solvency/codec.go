// codec.go - Persisted state encodings.
//
// An Account encodes as eight parallel sequences plus the optional proof:
// public assets, hidden assets with their blinds and commitments, and the same
// for liabilities. An Audit encodes as its ordered (code, rate) sequence.
// CBOR uses the deterministic core encoding; JSON is offered for inspection.
// State files pick the codec from the file extension: ".json" is JSON,
// anything else is CBOR.

package solvency

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

var cborEnc = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

type accountState struct {
	PublicAssets               []AmountAndCode           `json:"public_assets" cbor:"public_assets"`
	HiddenAssets               []AmountAndCode           `json:"hidden_assets" cbor:"hidden_assets"`
	HiddenAssetBlinds          []AmountAndCodeBlinds     `json:"hidden_asset_blinds" cbor:"hidden_asset_blinds"`
	HiddenAssetCommitments     []AmountAndCodeCommitment `json:"hidden_asset_commitments" cbor:"hidden_asset_commitments"`
	PublicLiabilities          []AmountAndCode           `json:"public_liabilities" cbor:"public_liabilities"`
	HiddenLiabilities          []AmountAndCode           `json:"hidden_liabilities" cbor:"hidden_liabilities"`
	HiddenLiabilityBlinds      []AmountAndCodeBlinds     `json:"hidden_liability_blinds" cbor:"hidden_liability_blinds"`
	HiddenLiabilityCommitments []AmountAndCodeCommitment `json:"hidden_liability_commitments" cbor:"hidden_liability_commitments"`
	Proof                      []byte                    `json:"proof,omitempty" cbor:"proof,omitempty"`
}

func splitHidden(entries []HiddenEntry) ([]AmountAndCode, []AmountAndCodeBlinds, []AmountAndCodeCommitment) {
	values := make([]AmountAndCode, len(entries))
	blinds := make([]AmountAndCodeBlinds, len(entries))
	commits := make([]AmountAndCodeCommitment, len(entries))
	for i, e := range entries {
		values[i], blinds[i], commits[i] = e.Value, e.Blinds, e.Commitment
	}
	return values, blinds, commits
}

func joinHidden(list string, values []AmountAndCode, blinds []AmountAndCodeBlinds, commits []AmountAndCodeCommitment) ([]HiddenEntry, error) {
	if len(values) != len(blinds) || len(values) != len(commits) {
		return nil, fmt.Errorf("%w: %s has %d values, %d blinds, %d commitments",
			ErrMalformedState, list, len(values), len(blinds), len(commits))
	}
	out := make([]HiddenEntry, len(values))
	for i := range values {
		out[i] = HiddenEntry{Value: values[i], Blinds: blinds[i], Commitment: commits[i]}
	}
	return out, nil
}

func (a *Account) state() accountState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st := accountState{
		PublicAssets:      append([]AmountAndCode{}, a.publicAssets...),
		PublicLiabilities: append([]AmountAndCode{}, a.publicLiabilities...),
	}
	st.HiddenAssets, st.HiddenAssetBlinds, st.HiddenAssetCommitments = splitHidden(a.hiddenAssets)
	st.HiddenLiabilities, st.HiddenLiabilityBlinds, st.HiddenLiabilityCommitments = splitHidden(a.hiddenLiabilities)
	if a.proof != nil {
		st.Proof = append([]byte(nil), a.proof...)
	}
	return st
}

func (a *Account) restore(st *accountState) error {
	hiddenAssets, err := joinHidden("hidden assets", st.HiddenAssets, st.HiddenAssetBlinds, st.HiddenAssetCommitments)
	if err != nil {
		return err
	}
	hiddenLiabilities, err := joinHidden("hidden liabilities", st.HiddenLiabilities, st.HiddenLiabilityBlinds, st.HiddenLiabilityCommitments)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.publicAssets = st.PublicAssets
	a.publicLiabilities = st.PublicLiabilities
	a.hiddenAssets = hiddenAssets
	a.hiddenLiabilities = hiddenLiabilities
	a.proof = st.Proof
	return nil
}

// MarshalCBOR encodes the owner state, openings included, deterministically.
func (a *Account) MarshalCBOR() ([]byte, error) {
	return cborEnc.Marshal(a.state())
}

// UnmarshalCBOR replaces a with decoded state; inconsistent state gives ErrMalformedState.
func (a *Account) UnmarshalCBOR(data []byte) error {
	var st accountState
	if err := cbor.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	return a.restore(&st)
}

func (a *Account) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.state())
}

func (a *Account) UnmarshalJSON(data []byte) error {
	var st accountState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	return a.restore(&st)
}

// MarshalCBOR encodes the raw rate sequence, duplicates included.
func (a *Audit) MarshalCBOR() ([]byte, error) {
	return cborEnc.Marshal(a.sequence())
}

// UnmarshalCBOR replaces the rate sequence. Rates wider than 64 bits give
// ErrMalformedState.
func (a *Audit) UnmarshalCBOR(data []byte) error {
	var rates []CodeAndRate
	if err := cbor.Unmarshal(data, &rates); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	if err := checkRates(rates); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rates = rates
	return nil
}

func (a *Audit) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.sequence())
}

// UnmarshalJSON is the JSON counterpart of UnmarshalCBOR.
func (a *Audit) UnmarshalJSON(data []byte) error {
	var rates []CodeAndRate
	if err := json.Unmarshal(data, &rates); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	if err := checkRates(rates); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rates = rates
	return nil
}

func (a *Audit) sequence() []CodeAndRate {
	entries := a.Entries()
	if entries == nil {
		entries = []CodeAndRate{}
	}
	return entries
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func saveFile(path string, v interface{}) error {
	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = cborEnc.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o600)
}

func loadFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if isJSON(path) {
		err = json.Unmarshal(data, v)
	} else {
		err = cbor.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// SaveAccount writes the owner's private account state.
func SaveAccount(path string, acct *Account) error {
	return saveFile(path, acct)
}

// LoadAccount reads an account written by SaveAccount. A missing file yields
// an empty account.
func LoadAccount(path string) (*Account, error) {
	acct := NewAccount()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return acct, nil
	}
	if err := loadFile(path, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// SaveAudit writes the rate table.
func SaveAudit(path string, audit *Audit) error {
	return saveFile(path, audit)
}

// LoadAudit reads a rate table. A missing file yields an empty audit.
func LoadAudit(path string) (*Audit, error) {
	audit := NewAudit()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return audit, nil
	}
	if err := loadFile(path, audit); err != nil {
		return nil, err
	}
	return audit, nil
}

// SavePublic writes a shareable view.
func SavePublic(path string, pub *PublicAccount) error {
	return saveFile(path, pub)
}

// LoadPublic reads a view written by SavePublic.
func LoadPublic(path string) (*PublicAccount, error) {
	var pub PublicAccount
	if err := loadFile(path, &pub); err != nil {
		return nil, err
	}
	return &pub, nil
}
