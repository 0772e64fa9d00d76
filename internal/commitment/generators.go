// generators.go - Process-wide Pedersen generators.

package commitment

import (
	"encoding/binary"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	"golang.org/x/crypto/sha3"
)

// hDomain separates the derivation of H from any other hash-to-point use.
const hDomain = "solvency/pedersen/H/v1"

// Generators holds the two independent bases of the Pedersen scheme.
type Generators struct {
	G twistededwards.PointAffine
	H twistededwards.PointAffine
}

var (
	gensOnce sync.Once
	gens     Generators
	order    *big.Int
)

func initGenerators() {
	params := twistededwards.GetEdwardsCurve()
	order = new(big.Int).Set(&params.Order)
	gens.G = params.Base
	gens.H = hashToPoint([]byte(hDomain))
}

// PublicGenerators returns the generator pair. The value is computed once and
// every caller receives its own copy.
func PublicGenerators() Generators {
	gensOnce.Do(initGenerators)
	return gens
}

func subgroupOrder() *big.Int {
	gensOnce.Do(initGenerators)
	return order
}

// Order returns a copy of the prime subgroup order.
func Order() *big.Int {
	return new(big.Int).Set(subgroupOrder())
}

// hashToPoint expands domain||counter with SHAKE256 until the output decodes
// to a curve point, then clears the cofactor.
func hashToPoint(domain []byte) twistededwards.PointAffine {
	params := twistededwards.GetEdwardsCurve()
	cofactor := params.Cofactor.BigInt(new(big.Int))

	var ctr [4]byte
	for i := uint32(0); ; i++ {
		binary.BigEndian.PutUint32(ctr[:], i)
		xof := sha3.NewShake256()
		xof.Write(domain)
		xof.Write(ctr[:])

		var buf [PointSize]byte
		if _, err := xof.Read(buf[:]); err != nil {
			panic("commitment: shake256 read: " + err.Error())
		}

		var candidate twistededwards.PointAffine
		if _, err := candidate.SetBytes(buf[:]); err != nil || !candidate.IsOnCurve() {
			continue
		}
		var cleared twistededwards.PointAffine
		cleared.ScalarMultiplication(&candidate, cofactor)
		if isIdentity(&cleared) {
			continue
		}
		return cleared
	}
}

func isIdentity(p *twistededwards.PointAffine) bool {
	return p.X.IsZero() && p.Y.IsOne()
}
