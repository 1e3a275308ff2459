package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// FingerprintLength is the length of a hex-encoded SHA-256 digest.
const FingerprintLength = 64

// Fingerprint is the hex digest derived from a document's semantic content.
type Fingerprint string

// FingerprintOf hashes b with SHA-256.
func FingerprintOf(b []byte) Fingerprint {
	sum := sha256.Sum256(b)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Validate checks that f is 64 lowercase or uppercase hex characters.
func (f Fingerprint) Validate() error {
	if len(f) != FingerprintLength {
		return fmt.Errorf("%w: fingerprint must be %d hex characters, got %d", ErrInvalidInput, FingerprintLength, len(f))
	}
	if _, err := hex.DecodeString(string(f)); err != nil {
		return fmt.Errorf("%w: fingerprint is not hex", ErrInvalidInput)
	}
	return nil
}

func (f Fingerprint) String() string { return string(f) }

// Short returns the first 16 characters, for logs.
func (f Fingerprint) Short() string {
	if len(f) <= 16 {
		return string(f)
	}
	return string(f[:16])
}
