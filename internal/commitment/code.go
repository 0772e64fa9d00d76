// code.go - Asset codes and their scalar encoding.

package commitment

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// AssetCodeSize is the length of an asset code.
const AssetCodeSize = 16

// AssetCode is an opaque identifier for an asset type.
type AssetCode [AssetCodeSize]byte

// RandomAssetCode returns a fresh random code.
func RandomAssetCode() (AssetCode, error) {
	var c AssetCode
	if _, err := rand.Read(c[:]); err != nil {
		return c, err
	}
	return c, nil
}

// EncodeCode maps a code to a scalar by reading its bytes little-endian.
// The result is below 2^128 and therefore never reduced.
func EncodeCode(c AssetCode) Scalar {
	var s Scalar
	for i := 0; i < AssetCodeSize; i++ {
		s[ScalarSize-1-i] = c[i]
	}
	return s
}

func (c AssetCode) String() string {
	return base64.RawURLEncoding.EncodeToString(c[:])
}

// ParseAssetCode parses the base64url form produced by String.
func ParseAssetCode(s string) (AssetCode, error) {
	var c AssetCode
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("parse asset code: %w", err)
	}
	if len(b) != AssetCodeSize {
		return c, fmt.Errorf("parse asset code: expected %d bytes, got %d", AssetCodeSize, len(b))
	}
	copy(c[:], b)
	return c, nil
}

func (c AssetCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *AssetCode) UnmarshalText(text []byte) error {
	v, err := ParseAssetCode(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
