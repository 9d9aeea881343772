package mesh

import (
	"crypto/subtle"
	"fmt"

	"github.com/google/uuid"
)

// KeySize is the length of network and application key material in bytes.
const KeySize = 16

// Key is raw symmetric key material for one key generation.
type Key [KeySize]byte

// Equal compares two keys in constant time.
func (k Key) Equal(other Key) bool {
	return subtle.ConstantTimeCompare(k[:], other[:]) == 1
}

// IsZero reports whether the key is all zeroes.
func (k Key) IsZero() bool {
	return k == Key{}
}

// String returns a redacted representation. Key material never appears in
// logs or diagnostic output.
func (k Key) String() string {
	return fmt.Sprintf("key(%02x%02x..)", k[0], k[1])
}

// KeyIndex identifies a network or application key. Network and application
// keys occupy independent namespaces; valid indices are below 0x1000.
type KeyIndex uint16

const (
	// KeyIndexMax is one past the largest valid key index.
	KeyIndexMax KeyIndex = 0x1000

	// KeyPrimary is the index of the primary network key.
	KeyPrimary KeyIndex = 0x0000

	// KeyUnused marks an empty model binding slot.
	KeyUnused KeyIndex = 0xFFFF

	// KeyAny is the wildcard index for subnet lookups by callers that have
	// not yet negotiated a concrete index.
	KeyAny KeyIndex = 0xFFFF

	// IndexAuto requests automatic index allocation on key add.
	IndexAuto KeyIndex = 0xFFFF
)

// Valid reports whether the index is inside the 12-bit key index space.
func (i KeyIndex) Valid() bool {
	return i < KeyIndexMax
}

// String returns the index in 0xXXX form, or "auto" for the sentinel.
func (i KeyIndex) String() string {
	if i == KeyUnused {
		return "auto"
	}
	return fmt.Sprintf("0x%03x", uint16(i))
}

// DeviceUUID is the 16-byte globally unique device identifier exchanged
// during provisioning.
type DeviceUUID = uuid.UUID
