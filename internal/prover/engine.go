// engine.go - Groth16 proof engine for the solvency circuit.
//
// An Engine is bound to one Shape: the circuit is compiled for that capacity
// and the proving/verifying keys only work for it. Prove needs the constraint
// system and the proving key; Verify only needs the verifying key, so a
// verifier may run with an engine returned by LoadVerifier.
//
// Verify is safe for concurrent use.

package prover

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
)

var (
	ErrNoProvingKey  = errors.New("engine has no proving key")
	ErrTrailingBytes = errors.New("trailing bytes after proof")
)

// Proof is a Groth16 proof over BN254.
type Proof = groth16.Proof

// Shape fixes the capacities of a compiled circuit.
type Shape struct {
	HiddenAssets      int `json:"hidden_assets" cbor:"hidden_assets"`
	HiddenLiabilities int `json:"hidden_liabilities" cbor:"hidden_liabilities"`
	Rates             int `json:"rates" cbor:"rates"`
}

// DefaultShape is used when no capacities are configured.
func DefaultShape() Shape {
	return Shape{HiddenAssets: 4, HiddenLiabilities: 4, Rates: 8}
}

// Validate rejects negative capacities and a rate table with no rows.
func (s Shape) Validate() error {
	if s.HiddenAssets < 0 || s.HiddenLiabilities < 0 {
		return fmt.Errorf("hidden capacities must be non-negative: %+v", s)
	}
	if s.Rates < 1 {
		return fmt.Errorf("rate capacity must be at least 1: %+v", s)
	}
	return nil
}

// Engine proves and verifies solvency statements of a fixed shape.
type Engine struct {
	shape Shape
	ccs   constraint.ConstraintSystem
	pk    groth16.ProvingKey
	vk    groth16.VerifyingKey
	log   zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger replaces the default logger, which derives from gnark's.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

func newEngine(shape Shape, opts []Option) *Engine {
	e := &Engine{
		shape: shape,
		log:   logger.Logger().With().Str("component", "prover").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compile builds the constraint system for shape.
func Compile(shape Shape) (constraint.ConstraintSystem, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, NewCircuit(shape))
	if err != nil {
		return nil, fmt.Errorf("compile solvency circuit: %w", err)
	}
	return ccs, nil
}

// Setup compiles the circuit and runs a fresh in-memory Groth16 setup.
func Setup(shape Shape, opts ...Option) (*Engine, error) {
	e := newEngine(shape, opts)
	ccs, err := Compile(shape)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup: %w", err)
	}
	e.ccs, e.pk, e.vk = ccs, pk, vk
	e.log.Info().
		Int("constraints", ccs.GetNbConstraints()).
		Dur("took", time.Since(start)).
		Msg("groth16 setup complete")
	return e, nil
}

// Shape returns the capacities the engine was built for.
func (e *Engine) Shape() Shape {
	return e.shape
}

// CanProve reports whether the engine holds a proving key.
func (e *Engine) CanProve() bool {
	return e.ccs != nil && e.pk != nil
}

// Prove produces a serialized proof for w.
func (e *Engine) Prove(w *Witness) ([]byte, error) {
	if !e.CanProve() {
		return nil, ErrNoProvingKey
	}
	assignment, err := w.assign(e.shape, w.AssetOpenings, w.LiabilityOpenings)
	if err != nil {
		return nil, err
	}
	full, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("build witness: %w", err)
	}

	start := time.Now()
	proof, err := groth16.Prove(e.ccs, e.pk, full)
	if err != nil {
		return nil, fmt.Errorf("groth16 prove: %w", err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize proof: %w", err)
	}
	e.log.Debug().
		Int("hidden_assets", len(w.HiddenAssets)).
		Int("hidden_liabilities", len(w.HiddenLiabilities)).
		Dur("took", time.Since(start)).
		Msg("proof generated")
	return buf.Bytes(), nil
}

// ReadProof decodes a serialized proof, rejecting trailing bytes.
func (e *Engine) ReadProof(b []byte) (Proof, error) {
	proof := groth16.NewProof(ecc.BN254)
	n, err := proof.ReadFrom(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	if n != int64(len(b)) {
		return nil, fmt.Errorf("%w: read %d of %d", ErrTrailingBytes, n, len(b))
	}
	return proof, nil
}

// Verify checks proof against st.
func (e *Engine) Verify(st *Statement, proof Proof) error {
	assignment, err := st.publicAssignment(e.shape)
	if err != nil {
		return err
	}
	public, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("build public witness: %w", err)
	}
	if err := groth16.Verify(proof, e.vk, public); err != nil {
		return fmt.Errorf("groth16 verify: %w", err)
	}
	return nil
}
