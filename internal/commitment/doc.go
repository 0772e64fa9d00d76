// Package commitment implements the commitment algebra used by confidential outputs.
//
// Overview:
//   - Pedersen commitments C = v·G + r·H on the BN254 twisted Edwards curve (Baby Jubjub)
//   - Scalars live in the prime-order subgroup's scalar field and are stored as 32 bytes
//   - Points are published in their 32-byte compressed form
//   - 64-bit amounts are committed as two 32-bit limbs; CombineLimbs and
//     CombineCommitments fold them back as low + 2^32·high
//
// Security Model:
//   - G is the curve's standard base point
//   - H is derived by SHAKE256 try-and-increment followed by cofactor clearing,
//     so nobody knows log_G(H)
//   - Decompress rejects points that are off-curve, non-canonical or outside the subgroup
//
// The generators are computed once per process and never mutated afterwards.
package commitment
