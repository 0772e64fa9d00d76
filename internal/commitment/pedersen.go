// pedersen.go - Pedersen commitments and 32-bit limb combination.

package commitment

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
)

// LimbBits is the width of one amount limb.
const LimbBits = 32

// CommitPoint returns value·G + blind·H in affine form.
func CommitPoint(value, blind Scalar) twistededwards.PointAffine {
	g := PublicGenerators()
	var vG, bH, c twistededwards.PointAffine
	vG.ScalarMultiplication(&g.G, value.BigInt())
	bH.ScalarMultiplication(&g.H, blind.BigInt())
	c.Add(&vG, &bH)
	return c
}

// Commit returns the compressed commitment value·G + blind·H.
func Commit(value, blind Scalar) Point {
	c := CommitPoint(value, blind)
	return Compress(&c)
}

// SplitAmount splits v into its low and high 32-bit limbs.
func SplitAmount(v uint64) (low, high uint64) {
	return v & (1<<LimbBits - 1), v >> LimbBits
}

// CombineLimbs returns low + 2^32·high.
func CombineLimbs(low, high Scalar) Scalar {
	return low.Add(limbBase.Mul(high))
}

// CombineCommitments returns D(low) + 2^32·D(high), which commits to the
// combined amount under the combined blind.
func CombineCommitments(low, high Point) (Point, error) {
	lo, err := low.Decompress()
	if err != nil {
		return Point{}, err
	}
	hi, err := high.Decompress()
	if err != nil {
		return Point{}, err
	}
	var shifted, sum twistededwards.PointAffine
	shifted.ScalarMultiplication(&hi, new(big.Int).Lsh(big.NewInt(1), LimbBits))
	sum.Add(&lo, &shifted)
	return Compress(&sum), nil
}
