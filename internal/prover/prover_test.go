package prover

import (
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/logger"
	"github.com/consensys/gnark/test"

	"solvency/internal/commitment"
)

var testShape = Shape{HiddenAssets: 2, HiddenLiabilities: 2, Rates: 2}

var (
	engineOnce sync.Once
	engine     *Engine
	engineErr  error
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	engineOnce.Do(func() {
		logger.Disable()
		engine, engineErr = Setup(testShape)
	})
	if engineErr != nil {
		t.Fatalf("Setup failed: %v", engineErr)
	}
	return engine
}

func hiddenEntry(t *testing.T, amount uint64, code commitment.Scalar) (Committed, Opening) {
	t.Helper()
	ab, err := commitment.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar failed: %v", err)
	}
	cb, err := commitment.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar failed: %v", err)
	}
	amt := commitment.NewScalar(amount)
	return Committed{Amount: commitment.Commit(amt, ab), Code: commitment.Commit(code, cb)},
		Opening{Amount: amt, AmountBlind: ab, Code: code, CodeBlind: cb}
}

// witnessFor builds a witness with one hidden asset and one hidden liability
// under a two-row rate table.
func witnessFor(t *testing.T, asset, liability uint64, pubAssets, pubLiabilities int64) *Witness {
	t.Helper()
	codeA := commitment.NewScalar(11)
	codeB := commitment.NewScalar(22)
	ca, oa := hiddenEntry(t, asset, codeA)
	cl, ol := hiddenEntry(t, liability, codeB)
	return &Witness{
		Statement: Statement{
			HiddenAssets:      []Committed{ca},
			HiddenLiabilities: []Committed{cl},
			Rates: []RateEntry{
				{Code: codeA, Rate: commitment.NewScalar(3)},
				{Code: codeB, Rate: commitment.NewScalar(2)},
			},
			PublicAssetSum:     big.NewInt(pubAssets),
			PublicLiabilitySum: big.NewInt(pubLiabilities),
		},
		AssetOpenings:     []Opening{oa},
		LiabilityOpenings: []Opening{ol},
	}
}

func TestCircuitSatisfiability(t *testing.T) {
	field := ecc.BN254.ScalarField()

	t.Run("Solvent", func(t *testing.T) {
		w := witnessFor(t, 10, 15, 0, 0) // 30 >= 30
		assignment, err := w.assign(testShape, w.AssetOpenings, w.LiabilityOpenings)
		if err != nil {
			t.Fatalf("assign failed: %v", err)
		}
		if err := test.IsSolved(NewCircuit(testShape), assignment, field); err != nil {
			t.Errorf("expected solvent witness to satisfy the circuit: %v", err)
		}
	})

	t.Run("Insolvent", func(t *testing.T) {
		w := witnessFor(t, 10, 16, 0, 0) // 30 < 32
		assignment, err := w.assign(testShape, w.AssetOpenings, w.LiabilityOpenings)
		if err != nil {
			t.Fatalf("assign failed: %v", err)
		}
		if err := test.IsSolved(NewCircuit(testShape), assignment, field); err == nil {
			t.Errorf("expected insolvent witness to be rejected")
		}
	})

	t.Run("Public Sums Count", func(t *testing.T) {
		w := witnessFor(t, 10, 16, 2, 0) // 30 + 2 >= 32
		assignment, _ := w.assign(testShape, w.AssetOpenings, w.LiabilityOpenings)
		if err := test.IsSolved(NewCircuit(testShape), assignment, field); err != nil {
			t.Errorf("public asset sum must offset the deficit: %v", err)
		}
	})

	t.Run("Wrong Opening", func(t *testing.T) {
		w := witnessFor(t, 10, 1, 0, 0)
		w.AssetOpenings[0].Amount = commitment.NewScalar(11)
		assignment, _ := w.assign(testShape, w.AssetOpenings, w.LiabilityOpenings)
		if err := test.IsSolved(NewCircuit(testShape), assignment, field); err == nil {
			t.Errorf("expected mismatched opening to be rejected")
		}
	})

	t.Run("Code Without Rate", func(t *testing.T) {
		w := witnessFor(t, 10, 1, 0, 0)
		w.Rates = w.Rates[1:]
		assignment, _ := w.assign(testShape, w.AssetOpenings, w.LiabilityOpenings)
		if err := test.IsSolved(NewCircuit(testShape), assignment, field); err == nil {
			t.Errorf("expected a code with no rate row to be rejected")
		}
	})

	t.Run("Wrapping Rate", func(t *testing.T) {
		// A liability of 40 under rate 40⁻¹·k weighs k in the field.
		w := witnessFor(t, 10, 40, 0, 0)
		assignment, err := w.assign(testShape, w.AssetOpenings, w.LiabilityOpenings)
		if err != nil {
			t.Fatalf("assign failed: %v", err)
		}
		assignment.Rates[1].Rate = wrappingRate(40)
		if err := test.IsSolved(NewCircuit(testShape), assignment, field); err == nil {
			t.Errorf("expected a rate wider than %d bits to be rejected", RateBits)
		}
	})
}

// wrappingRate returns the smallest 40⁻¹·k mod p, for k = 1, 2, ..., that is
// still a canonical scalar.
func wrappingRate(amount int64) *big.Int {
	p := ecc.BN254.ScalarField()
	inv := new(big.Int).ModInverse(big.NewInt(amount), p)
	for k := int64(1); ; k++ {
		r := new(big.Int).Mul(inv, big.NewInt(k))
		r.Mod(r, p)
		if r.Cmp(commitment.Order()) < 0 {
			return r
		}
	}
}

func TestStatementChecks(t *testing.T) {
	w := witnessFor(t, 1, 1, 0, 0)

	t.Run("Capacity", func(t *testing.T) {
		over := *w
		over.Rates = append(append([]RateEntry{}, w.Rates...), RateEntry{Code: commitment.NewScalar(33)})
		if _, err := over.assign(testShape, nil, nil); !errors.Is(err, ErrCapacity) {
			t.Errorf("expected ErrCapacity, got %v", err)
		}
	})

	t.Run("Public Sum Range", func(t *testing.T) {
		over := *w
		over.PublicAssetSum = new(big.Int).Lsh(big.NewInt(1), PublicSumBits)
		if _, err := over.assign(testShape, nil, nil); !errors.Is(err, ErrCapacity) {
			t.Errorf("expected ErrCapacity, got %v", err)
		}
	})

	t.Run("Rate Range", func(t *testing.T) {
		over := *w
		over.Rates = append([]RateEntry{}, w.Rates...)
		over.Rates[1].Rate = commitment.ScalarFromBigInt(new(big.Int).Lsh(big.NewInt(1), RateBits))
		if _, err := over.assign(testShape, nil, nil); !errors.Is(err, ErrCapacity) {
			t.Errorf("expected ErrCapacity, got %v", err)
		}
		over.Rates[1].Rate = commitment.ScalarFromBigInt(wrappingRate(40))
		if _, err := over.assign(testShape, nil, nil); !errors.Is(err, ErrCapacity) {
			t.Errorf("expected ErrCapacity for a wrapping rate, got %v", err)
		}
	})

	t.Run("Opening Count", func(t *testing.T) {
		if _, err := w.assign(testShape, []Opening{}, w.LiabilityOpenings); !errors.Is(err, ErrOpeningMismatch) {
			t.Errorf("expected ErrOpeningMismatch, got %v", err)
		}
	})
}

func TestEngineProveVerify(t *testing.T) {
	e := testEngine(t)
	w := witnessFor(t, 10, 15, 4, 4)

	raw, err := e.Prove(w)
	if err != nil {
		t.Fatalf("Prove failed: %v", err)
	}
	proof, err := e.ReadProof(raw)
	if err != nil {
		t.Fatalf("ReadProof failed: %v", err)
	}
	if err := e.Verify(&w.Statement, proof); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	t.Run("Tampered Statement", func(t *testing.T) {
		st := w.Statement
		st.PublicLiabilitySum = big.NewInt(5)
		if err := e.Verify(&st, proof); err == nil {
			t.Errorf("expected verification to fail for a different statement")
		}
	})

	t.Run("Trailing Bytes", func(t *testing.T) {
		if _, err := e.ReadProof(append(append([]byte{}, raw...), 0)); !errors.Is(err, ErrTrailingBytes) {
			t.Errorf("expected ErrTrailingBytes, got %v", err)
		}
	})

	t.Run("Truncated", func(t *testing.T) {
		if _, err := e.ReadProof(raw[:len(raw)/2]); err == nil {
			t.Errorf("expected error for truncated proof")
		}
	})

	t.Run("Insolvent Prove Fails", func(t *testing.T) {
		if _, err := e.Prove(witnessFor(t, 1, 100, 0, 0)); err == nil {
			t.Errorf("expected proving an insolvent statement to fail")
		}
	})
}

func TestKeysRoundTrip(t *testing.T) {
	logger.Disable()
	dir := filepath.Join(t.TempDir(), "keys")
	shape := Shape{HiddenAssets: 1, HiddenLiabilities: 0, Rates: 1}

	first, err := SetupOrLoadKeys(shape, dir)
	if err != nil {
		t.Fatalf("SetupOrLoadKeys failed: %v", err)
	}
	code := commitment.NewScalar(5)
	c, o := hiddenEntry(t, 3, code)
	w := &Witness{
		Statement: Statement{
			HiddenAssets:       []Committed{c},
			Rates:              []RateEntry{{Code: code, Rate: commitment.NewScalar(1)}},
			PublicAssetSum:     big.NewInt(0),
			PublicLiabilitySum: big.NewInt(3),
		},
		AssetOpenings: []Opening{o},
	}
	raw, err := first.Prove(w)
	if err != nil {
		t.Fatalf("Prove failed: %v", err)
	}

	verifier, err := LoadVerifier(dir)
	if err != nil {
		t.Fatalf("LoadVerifier failed: %v", err)
	}
	if verifier.CanProve() {
		t.Errorf("a verifier loaded from disk must not hold a proving key")
	}
	if verifier.Shape() != shape {
		t.Errorf("shape not restored: %+v", verifier.Shape())
	}
	proof, err := verifier.ReadProof(raw)
	if err != nil {
		t.Fatalf("ReadProof failed: %v", err)
	}
	if err := verifier.Verify(&w.Statement, proof); err != nil {
		t.Errorf("proof from the saved keys must verify: %v", err)
	}
	if _, err := verifier.Prove(w); !errors.Is(err, ErrNoProvingKey) {
		t.Errorf("expected ErrNoProvingKey, got %v", err)
	}

	if err := ExpectShape(dir, testShape); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}
