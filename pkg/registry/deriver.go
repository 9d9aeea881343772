package registry

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/meshprov/meshprov-go/pkg/mesh"
)

// KeyDeriver produces the short key identifiers and random key material the
// store needs. Implementations are called synchronously inside the store's
// critical section and must not block.
type KeyDeriver interface {
	// NetworkID derives the 7-bit NID from network key material.
	NetworkID(key mesh.Key) (uint8, error)

	// ApplicationID derives the 6-bit AID from application key material.
	ApplicationID(key mesh.Key) (uint8, error)

	// RandomKey generates fresh random key material.
	RandomKey() (mesh.Key, error)
}

// HKDF info strings for the identifier derivations.
var (
	nidInfo = []byte("meshprov network id")
	aidInfo = []byte("meshprov application id")
)

// LocalDeriver is the default KeyDeriver. Identifiers come from
// HKDF-SHA256 over the key material; randomness from crypto/rand.
type LocalDeriver struct{}

// NewLocalDeriver creates the default key deriver.
func NewLocalDeriver() *LocalDeriver {
	return &LocalDeriver{}
}

// NetworkID derives the NID for a network key.
func (d *LocalDeriver) NetworkID(key mesh.Key) (uint8, error) {
	b, err := derive(key, nidInfo)
	if err != nil {
		return 0, err
	}
	return b & 0x7F, nil
}

// ApplicationID derives the AID for an application key.
func (d *LocalDeriver) ApplicationID(key mesh.Key) (uint8, error) {
	b, err := derive(key, aidInfo)
	if err != nil {
		return 0, err
	}
	return b & 0x3F, nil
}

// RandomKey generates 16 bytes of cryptographically random key material.
func (d *LocalDeriver) RandomKey() (mesh.Key, error) {
	var k mesh.Key
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return mesh.Key{}, fmt.Errorf("random key: %w", err)
	}
	return k, nil
}

func derive(key mesh.Key, info []byte) (uint8, error) {
	r := hkdf.New(sha256.New, key[:], nil, info)
	var out [1]byte
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return 0, fmt.Errorf("hkdf: %w", err)
	}
	return out[0], nil
}

// Compile-time interface satisfaction check.
var _ KeyDeriver = (*LocalDeriver)(nil)
