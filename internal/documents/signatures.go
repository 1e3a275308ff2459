package documents

import (
	"encoding/hex"

	"docseal/signature-backend/internal/domain"
)

type FingerprintSigner interface {
	Sign(fp domain.Fingerprint) ([]byte, error)
}

type FingerprintVerifier interface {
	Verify(fp domain.Fingerprint, sig []byte) (bool, error)
}

type SignatureService struct {
	signer   FingerprintSigner
	verifier FingerprintVerifier
}

func NewSignatureService(signer FingerprintSigner, verifier FingerprintVerifier) *SignatureService {
	return &SignatureService{
		signer:   signer,
		verifier: verifier,
	}
}

// Sign returns the raw signature and its hex form.
func (s *SignatureService) Sign(fp domain.Fingerprint) ([]byte, string, error) {
	sig, err := s.signer.Sign(fp)
	if err != nil {
		return nil, "", err
	}
	return sig, hex.EncodeToString(sig), nil
}

func (s *SignatureService) Verify(fp domain.Fingerprint, sig []byte) (bool, error) {
	return s.verifier.Verify(fp, sig)
}
