// keys.go - Persisting Groth16 keys alongside the shape they were built for.
//
// A key directory holds three files:
//
//	solvency.shape  CBOR metadata (shape, curve, constraint count)
//	solvency.pk     proving key
//	solvency.vk     verifying key
//
// Keys are regenerated when any file is missing or the stored shape differs.

package prover

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/fxamacker/cbor/v2"
)

const (
	shapeFile = "solvency.shape"
	pkFile    = "solvency.pk"
	vkFile    = "solvency.vk"
)

var ErrShapeMismatch = errors.New("key directory was set up for a different shape")

type keyMeta struct {
	Shape       Shape  `cbor:"shape"`
	Curve       string `cbor:"curve"`
	Constraints int    `cbor:"constraints"`
}

// SetupOrLoadKeys returns an engine for shape, loading keys from dir when they
// were generated for the same shape and generating and saving them otherwise.
func SetupOrLoadKeys(shape Shape, dir string, opts ...Option) (*Engine, error) {
	ccs, err := Compile(shape)
	if err != nil {
		return nil, err
	}
	e := newEngine(shape, opts)
	e.ccs = ccs

	meta, metaErr := loadMeta(dir)
	if metaErr == nil && meta.Shape == shape && meta.Constraints == ccs.GetNbConstraints() {
		pk, pkErr := LoadProvingKey(filepath.Join(dir, pkFile))
		vk, vkErr := LoadVerifyingKey(filepath.Join(dir, vkFile))
		if pkErr == nil && vkErr == nil {
			e.pk, e.vk = pk, vk
			e.log.Info().Str("dir", dir).Msg("loaded groth16 keys")
			return e, nil
		}
	}

	e.log.Info().Str("dir", dir).Msg("generating groth16 keys")
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := SaveProvingKey(filepath.Join(dir, pkFile), pk); err != nil {
		return nil, err
	}
	if err := SaveVerifyingKey(filepath.Join(dir, vkFile), vk); err != nil {
		return nil, err
	}
	if err := saveMeta(dir, keyMeta{Shape: shape, Curve: ecc.BN254.String(), Constraints: ccs.GetNbConstraints()}); err != nil {
		return nil, err
	}
	e.pk, e.vk = pk, vk
	return e, nil
}

// LoadVerifier returns a verify-only engine from a key directory.
func LoadVerifier(dir string, opts ...Option) (*Engine, error) {
	meta, err := loadMeta(dir)
	if err != nil {
		return nil, err
	}
	if err := meta.Shape.Validate(); err != nil {
		return nil, err
	}
	vk, err := LoadVerifyingKey(filepath.Join(dir, vkFile))
	if err != nil {
		return nil, fmt.Errorf("load verifying key: %w", err)
	}
	e := newEngine(meta.Shape, opts)
	e.vk = vk
	return e, nil
}

// ExpectShape fails with ErrShapeMismatch when the key directory was built
// for another shape.
func ExpectShape(dir string, shape Shape) error {
	meta, err := loadMeta(dir)
	if err != nil {
		return err
	}
	if meta.Shape != shape {
		return fmt.Errorf("%w: have %+v, want %+v", ErrShapeMismatch, meta.Shape, shape)
	}
	return nil
}

func loadMeta(dir string) (keyMeta, error) {
	var meta keyMeta
	data, err := os.ReadFile(filepath.Join(dir, shapeFile))
	if err != nil {
		return meta, err
	}
	if err := cbor.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decode key metadata: %w", err)
	}
	if meta.Curve != ecc.BN254.String() {
		return meta, fmt.Errorf("key metadata: unexpected curve %q", meta.Curve)
	}
	return meta, nil
}

func saveMeta(dir string, meta keyMeta) error {
	data, err := cbor.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, shapeFile), data, 0o644)
}

// SaveProvingKey saves a BN254 Groth16 proving key to disk.
func SaveProvingKey(path string, pk groth16.ProvingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = pk.WriteTo(f)
	return err
}

// SaveVerifyingKey saves a BN254 Groth16 verifying key to disk.
func SaveVerifyingKey(path string, vk groth16.VerifyingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = vk.WriteTo(f)
	return err
}

// LoadProvingKey loads a BN254 Groth16 proving key from disk.
func LoadProvingKey(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BN254)
	_, err = pk.ReadFrom(f)
	return pk, err
}

// LoadVerifyingKey loads a BN254 Groth16 verifying key from disk.
func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BN254)
	_, err = vk.ReadFrom(f)
	return vk, err
}
