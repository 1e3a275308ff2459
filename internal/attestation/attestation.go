package attestation

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"docseal/signature-backend/internal/domain"
)

// Attestation is the payload carried by the QR code on a signed document.
type Attestation struct {
	TransactionID   string             `json:"transaction_id"`
	DocumentHash    domain.Fingerprint `json:"document_hash"`
	Signature       string             `json:"signature"`
	Timestamp       string             `json:"timestamp"`
	VerificationURL string             `json:"verification_url"`
	Flags           map[string]bool    `json:"flags,omitempty"`
}

// New builds an attestation with the signature hex-encoded.
func New(transactionID string, fp domain.Fingerprint, sig []byte, timestamp, verificationURL string) Attestation {
	return Attestation{
		TransactionID:   transactionID,
		DocumentHash:    fp,
		Signature:       hex.EncodeToString(sig),
		Timestamp:       timestamp,
		VerificationURL: verificationURL,
	}
}

// Marshal encodes the attestation as compact JSON.
func (a Attestation) Marshal() ([]byte, error) {
	return json.Marshal(a)
}

// DecodeSignature returns the raw signature bytes.
func (a Attestation) DecodeSignature() ([]byte, error) {
	return DecodeSignature(a.Signature)
}

// Parse decodes and validates a QR payload. Unknown fields are ignored;
// document_hash and signature are required.
func Parse(raw []byte) (Attestation, error) {
	var a Attestation
	if err := json.Unmarshal(raw, &a); err != nil {
		return Attestation{}, fmt.Errorf("%w: %v", domain.ErrAttestationMalformed, err)
	}
	if a.DocumentHash == "" {
		return Attestation{}, fmt.Errorf("%w: missing document_hash", domain.ErrAttestationMalformed)
	}
	if a.Signature == "" {
		return Attestation{}, fmt.Errorf("%w: missing signature", domain.ErrAttestationMalformed)
	}
	if err := a.DocumentHash.Validate(); err != nil {
		return Attestation{}, fmt.Errorf("%w: %v", domain.ErrAttestationMalformed, err)
	}
	if _, err := a.DecodeSignature(); err != nil {
		return Attestation{}, err
	}
	return a, nil
}

// DecodeSignature decodes a hex signature, reporting bad input as a malformed
// attestation.
func DecodeSignature(s string) ([]byte, error) {
	sig, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not hex: %v", domain.ErrAttestationMalformed, err)
	}
	if len(sig) == 0 {
		return nil, fmt.Errorf("%w: empty signature", domain.ErrAttestationMalformed)
	}
	return sig, nil
}
