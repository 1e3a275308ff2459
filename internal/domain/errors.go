package domain

import "errors"

// Kind is the machine-readable error class surfaced to API callers.
type Kind string

const (
	KindContentExtraction    Kind = "content_extraction"
	KindKeyLoad              Kind = "key_load"
	KindAttestationNotFound  Kind = "attestation_not_found"
	KindAttestationMalformed Kind = "attestation_malformed"
	KindSigning              Kind = "signing"
	KindVerificationIO       Kind = "verification_io"
	KindInvalidInput         Kind = "invalid_input"
	KindDocumentTooLarge     Kind = "document_too_large"
	KindNotFound             Kind = "not_found"
	KindForbidden            Kind = "forbidden"
	KindTimeout              Kind = "timeout"
	KindInternal             Kind = "internal"
)

var (
	ErrContentExtraction    = errors.New("document content could not be extracted")
	ErrKeyLoad              = errors.New("key material could not be loaded")
	ErrAttestationNotFound  = errors.New("no attestation found in document")
	ErrAttestationMalformed = errors.New("attestation is malformed")
	ErrSigning              = errors.New("signing failed")
	ErrVerificationIO       = errors.New("verification could not be performed")
	ErrInvalidInput         = errors.New("invalid input")
	ErrDocumentTooLarge     = errors.New("document exceeds size limit")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
)

// kinds is ordered: the first match wins, so the more specific causes come first.
var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrKeyLoad, KindKeyLoad},
	{ErrAttestationNotFound, KindAttestationNotFound},
	{ErrAttestationMalformed, KindAttestationMalformed},
	{ErrSigning, KindSigning},
	{ErrVerificationIO, KindVerificationIO},
	{ErrContentExtraction, KindContentExtraction},
	{ErrDocumentTooLarge, KindDocumentTooLarge},
	{ErrInvalidInput, KindInvalidInput},
	{ErrNotFound, KindNotFound},
	{ErrForbidden, KindForbidden},
}

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
