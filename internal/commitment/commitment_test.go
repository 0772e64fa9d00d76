package commitment

import (
	"errors"
	"math/big"
	"testing"
)

func mustRandom(t *testing.T) Scalar {
	t.Helper()
	s, err := RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar failed: %v", err)
	}
	return s
}

func TestGenerators(t *testing.T) {
	g := PublicGenerators()
	if !g.G.IsOnCurve() || !g.H.IsOnCurve() {
		t.Fatalf("generators must lie on the curve")
	}
	if g.G.Equal(&g.H) {
		t.Fatalf("G and H must differ")
	}
	for name, p := range map[string]Point{"G": Compress(&g.G), "H": Compress(&g.H)} {
		if _, err := p.Decompress(); err != nil {
			t.Errorf("%s not in prime-order subgroup: %v", name, err)
		}
	}

	again := PublicGenerators()
	if !again.H.Equal(&g.H) {
		t.Errorf("H must be stable across calls")
	}
}

func TestScalar(t *testing.T) {
	t.Run("Reduction", func(t *testing.T) {
		l := Order()
		s := ScalarFromBigInt(new(big.Int).Add(l, big.NewInt(7)))
		if s != NewScalar(7) {
			t.Errorf("expected l+7 to reduce to 7, got %s", s)
		}
	})

	t.Run("Arithmetic", func(t *testing.T) {
		if got := NewScalar(3).Add(NewScalar(4)); got != NewScalar(7) {
			t.Errorf("3+4 = %s", got)
		}
		if got := NewScalar(6).Mul(NewScalar(7)); got != NewScalar(42) {
			t.Errorf("6*7 = %s", got)
		}
		if !(Scalar{}).IsZero() || NewScalar(1).IsZero() {
			t.Errorf("IsZero mismatch")
		}
	})

	t.Run("Non Canonical Rejected", func(t *testing.T) {
		var b [ScalarSize]byte
		Order().FillBytes(b[:])
		if _, err := ScalarFromBytes(b[:]); !errors.Is(err, ErrInvalidScalar) {
			t.Errorf("expected ErrInvalidScalar, got %v", err)
		}
		if _, err := ScalarFromBytes(b[:5]); !errors.Is(err, ErrInvalidScalar) {
			t.Errorf("expected ErrInvalidScalar for short input, got %v", err)
		}
	})

	t.Run("Text Round Trip", func(t *testing.T) {
		s := mustRandom(t)
		text, _ := s.MarshalText()
		var back Scalar
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText failed: %v", err)
		}
		if back != s {
			t.Errorf("round trip mismatch")
		}
	})
}

func TestCommit(t *testing.T) {
	t.Run("Binding To Value", func(t *testing.T) {
		r := mustRandom(t)
		if Commit(NewScalar(10), r) == Commit(NewScalar(11), r) {
			t.Errorf("different values must give different commitments")
		}
	})

	t.Run("Additive", func(t *testing.T) {
		r1, r2 := mustRandom(t), mustRandom(t)
		sum, err := Commit(NewScalar(5), r1).Add(Commit(NewScalar(9), r2))
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if sum != Commit(NewScalar(14), r1.Add(r2)) {
			t.Errorf("commitments must be additively homomorphic")
		}
	})

	t.Run("Zero Commitment Is Identity", func(t *testing.T) {
		if Commit(Scalar{}, Scalar{}) != Identity() {
			t.Errorf("0·G + 0·H must be the identity")
		}
	})
}

func TestLimbHomomorphism(t *testing.T) {
	amount := uint64(0xDEADBEEF_01234567)
	lo, hi := SplitAmount(amount)
	if lo != 0x01234567 || hi != 0xDEADBEEF {
		t.Fatalf("SplitAmount = (%x, %x)", lo, hi)
	}
	bLo, bHi := mustRandom(t), mustRandom(t)

	cLo := Commit(NewScalar(lo), bLo)
	cHi := Commit(NewScalar(hi), bHi)
	combined, err := CombineCommitments(cLo, cHi)
	if err != nil {
		t.Fatalf("CombineCommitments failed: %v", err)
	}

	want := Commit(NewScalar(amount), CombineLimbs(bLo, bHi))
	if combined != want {
		t.Errorf("C_low + 2^32·C_high must commit to the full amount under the combined blind")
	}
	if CombineLimbs(NewScalar(lo), NewScalar(hi)) != NewScalar(amount) {
		t.Errorf("CombineLimbs must rebuild the amount")
	}
}

func TestDecompress(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		p := Commit(NewScalar(1), mustRandom(t))
		q, err := p.Decompress()
		if err != nil {
			t.Fatalf("Decompress failed: %v", err)
		}
		if Compress(&q) != p {
			t.Errorf("compress(decompress(p)) != p")
		}
	})

	t.Run("Malformed Rejected", func(t *testing.T) {
		rejected := 0
		// Not every y has a matching x; scanning a few values finds encodings
		// that are off-curve or outside the subgroup.
		for i := 0; i < 32; i++ {
			var p Point
			p[0] = byte(i + 2)
			p[31] = 0x11
			if _, err := p.Decompress(); err != nil {
				if !errors.Is(err, ErrInvalidPoint) {
					t.Fatalf("expected ErrInvalidPoint, got %v", err)
				}
				rejected++
			}
		}
		if rejected == 0 {
			t.Errorf("expected some arbitrary encodings to be rejected")
		}
	})

	t.Run("All Ones Rejected", func(t *testing.T) {
		var p Point
		for i := range p {
			p[i] = 0xff
		}
		if _, err := p.Decompress(); !errors.Is(err, ErrInvalidPoint) {
			t.Errorf("expected ErrInvalidPoint, got %v", err)
		}
	})

	t.Run("Short Binary Rejected", func(t *testing.T) {
		var p Point
		if err := p.UnmarshalBinary(make([]byte, 31)); !errors.Is(err, ErrInvalidPoint) {
			t.Errorf("expected ErrInvalidPoint, got %v", err)
		}
	})
}

func TestAssetCode(t *testing.T) {
	var c AssetCode
	c[0] = 0x01
	c[1] = 0x02
	if got := EncodeCode(c).BigInt(); got.Cmp(big.NewInt(0x0201)) != 0 {
		t.Errorf("EncodeCode must read little-endian, got %v", got)
	}

	r, err := RandomAssetCode()
	if err != nil {
		t.Fatalf("RandomAssetCode failed: %v", err)
	}
	parsed, err := ParseAssetCode(r.String())
	if err != nil {
		t.Fatalf("ParseAssetCode failed: %v", err)
	}
	if parsed != r {
		t.Errorf("parse(String()) mismatch")
	}
	if _, err := ParseAssetCode("AAAA"); err == nil {
		t.Errorf("expected error for short code")
	}
}
