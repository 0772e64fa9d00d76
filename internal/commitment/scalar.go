// scalar.go - Scalars of the twisted Edwards prime-order subgroup.

package commitment

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// ScalarSize is the encoded length of a Scalar.
const ScalarSize = 32

// ErrInvalidScalar is returned when bytes do not encode a reduced scalar.
var ErrInvalidScalar = errors.New("invalid scalar encoding")

// Scalar is an element of the subgroup scalar field, big-endian and always
// reduced modulo the subgroup order. Scalars are comparable.
type Scalar [ScalarSize]byte

// limbBase is 2^32, the weight of the high limb of a confidential amount.
var limbBase = NewScalar(1 << LimbBits)

// NewScalar returns v as a scalar.
func NewScalar(v uint64) Scalar {
	var s Scalar
	binary.BigEndian.PutUint64(s[ScalarSize-8:], v)
	return s
}

// ScalarFromBigInt reduces b modulo the subgroup order.
func ScalarFromBigInt(b *big.Int) Scalar {
	r := new(big.Int).Mod(b, subgroupOrder())
	var s Scalar
	r.FillBytes(s[:])
	return s
}

// ScalarFromBytes parses a canonical 32-byte encoding.
func ScalarFromBytes(b []byte) (Scalar, error) {
	var s Scalar
	if len(b) != ScalarSize {
		return s, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidScalar, ScalarSize, len(b))
	}
	if new(big.Int).SetBytes(b).Cmp(subgroupOrder()) >= 0 {
		return s, fmt.Errorf("%w: not reduced", ErrInvalidScalar)
	}
	copy(s[:], b)
	return s, nil
}

// RandomScalar samples a uniform scalar using crypto/rand.
func RandomScalar() (Scalar, error) {
	n, err := rand.Int(rand.Reader, subgroupOrder())
	if err != nil {
		return Scalar{}, err
	}
	return ScalarFromBigInt(n), nil
}

// BigInt returns the integer value of s.
func (s Scalar) BigInt() *big.Int {
	return new(big.Int).SetBytes(s[:])
}

// Add returns s + o.
func (s Scalar) Add(o Scalar) Scalar {
	return ScalarFromBigInt(new(big.Int).Add(s.BigInt(), o.BigInt()))
}

// Mul returns s · o.
func (s Scalar) Mul(o Scalar) Scalar {
	return ScalarFromBigInt(new(big.Int).Mul(s.BigInt(), o.BigInt()))
}

// IsZero reports whether s is the zero scalar.
func (s Scalar) IsZero() bool {
	return s == Scalar{}
}

func (s Scalar) String() string {
	return hex.EncodeToString(s[:])
}

// MarshalText encodes s as lowercase hex.
func (s Scalar) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a hex scalar.
func (s *Scalar) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScalar, err)
	}
	v, err := ScalarFromBytes(b)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MarshalBinary returns the raw 32 bytes.
func (s Scalar) MarshalBinary() ([]byte, error) {
	out := make([]byte, ScalarSize)
	copy(out, s[:])
	return out, nil
}

// UnmarshalBinary parses the raw 32 bytes.
func (s *Scalar) UnmarshalBinary(b []byte) error {
	v, err := ScalarFromBytes(b)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
