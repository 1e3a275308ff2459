package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	"docseal/signature-backend/internal/domain"
)

// Algorithm names reported in verification details.
const (
	HashAlgorithm      = "SHA-256"
	SignatureAlgorithm = "RSA-PSS-2048"
)

// Sign uses the maximum salt length; Verify auto-detects it, which also
// accepts signatures made by tooling that picks the maximum explicitly.
var (
	signOptions   = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}
	verifyOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}
)

// Signer signs fingerprints with RSA-PSS over SHA-256.
type Signer struct {
	keys KeyProvider
}

func NewSigner(keys KeyProvider) *Signer { return &Signer{keys: keys} }

// Sign returns a randomized signature over the UTF-8 bytes of fp.
func (s *Signer) Sign(fp domain.Fingerprint) ([]byte, error) {
	if err := fp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSigning, err)
	}
	priv, err := s.keys.LoadPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSigning, err)
	}
	digest := sha256.Sum256([]byte(fp))
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], signOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSigning, err)
	}
	return sig, nil
}

// Verifier checks signatures produced by Signer.
type Verifier struct {
	keys KeyProvider
}

func NewVerifier(keys KeyProvider) *Verifier { return &Verifier{keys: keys} }

// Verify reports whether sig is a valid signature over fp. A mismatch is
// (false, nil); only an unavailable public key is an error.
func (v *Verifier) Verify(fp domain.Fingerprint, sig []byte) (bool, error) {
	pub, err := v.keys.LoadPublicKey()
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrVerificationIO, err)
	}
	return VerifyWithKey(pub, fp, sig), nil
}

// VerifyWithKey checks sig against an explicit public key.
func VerifyWithKey(pub *rsa.PublicKey, fp domain.Fingerprint, sig []byte) bool {
	if pub == nil || len(sig) == 0 {
		return false
	}
	digest := sha256.Sum256([]byte(fp))
	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, verifyOptions) == nil
}
