// point.go - Compressed twisted Edwards points.

package commitment

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
)

// PointSize is the length of a compressed point.
const PointSize = 32

var ErrInvalidPoint = errors.New("invalid point encoding")

// Point is a compressed curve point as published on the ledger.
type Point [PointSize]byte

// Compress encodes p.
func Compress(p *twistededwards.PointAffine) Point {
	return Point(p.Bytes())
}

// Identity returns the compressed neutral element.
func Identity() Point {
	var id twistededwards.PointAffine
	id.X.SetZero()
	id.Y.SetOne()
	return Compress(&id)
}

// Decompress decodes p, rejecting encodings that are not canonical, not on
// the curve, or not in the prime-order subgroup.
func (p Point) Decompress() (twistededwards.PointAffine, error) {
	var q twistededwards.PointAffine
	if _, err := q.SetBytes(p[:]); err != nil {
		return q, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	if !q.IsOnCurve() {
		return q, fmt.Errorf("%w: not on curve", ErrInvalidPoint)
	}
	if Compress(&q) != p {
		return q, fmt.Errorf("%w: non-canonical", ErrInvalidPoint)
	}
	var t twistededwards.PointAffine
	t.ScalarMultiplication(&q, subgroupOrder())
	if !isIdentity(&t) {
		return q, fmt.Errorf("%w: outside prime-order subgroup", ErrInvalidPoint)
	}
	return q, nil
}

// Add returns the compressed sum of two points.
func (p Point) Add(o Point) (Point, error) {
	a, err := p.Decompress()
	if err != nil {
		return Point{}, err
	}
	b, err := o.Decompress()
	if err != nil {
		return Point{}, err
	}
	var sum twistededwards.PointAffine
	sum.Add(&a, &b)
	return Compress(&sum), nil
}

func (p Point) String() string {
	return hex.EncodeToString(p[:])
}

func (p Point) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes hex. Curve membership is checked on Decompress.
func (p *Point) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	return p.UnmarshalBinary(b)
}

func (p Point) MarshalBinary() ([]byte, error) {
	out := make([]byte, PointSize)
	copy(out, p[:])
	return out, nil
}

func (p *Point) UnmarshalBinary(b []byte) error {
	if len(b) != PointSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPoint, PointSize, len(b))
	}
	copy(p[:], b)
	return nil
}
