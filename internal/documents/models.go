package documents

import (
	"time"

	"docseal/signature-backend/internal/attestation"
	"docseal/signature-backend/internal/domain"
	"docseal/signature-backend/internal/fingerprint"
)

// Verdict messages, one per combination of integrity and signature results.
const (
	MessageAuthentic         = "authentic and unmodified"
	MessageModifiedAndForged = "modified AND signature invalid"
	MessageModified          = "modified after signing"
	MessageSignatureInvalid  = "signature invalid"
)

// Messages for a scanned attestation verified without its document.
const (
	MessagePayloadValid   = "QR code and signature are valid"
	MessagePayloadInvalid = "QR code is readable but signature is invalid"
)

type SignRequest struct {
	Filename        string
	Document        []byte
	TransactionID   string
	CustomerName    string
	TransactionDate string
}

type SignResult struct {
	Message       string                  `json:"message"`
	TransactionID string                  `json:"transaction_id"`
	Fingerprint   domain.Fingerprint      `json:"document_hash"`
	SignatureHex  string                  `json:"signature"`
	SignedFile    string                  `json:"signed_file"`
	DownloadURL   string                  `json:"download_url"`
	Strategy      fingerprint.Strategy    `json:"fingerprint_strategy"`
	Attestation   attestation.Attestation `json:"attestation"`
	// Document is the stamped PDF.
	Document []byte `json:"-"`
}

// Verdict is the outcome of verifying a signed document. It is computed per
// call and never stored.
type Verdict struct {
	IntegrityOK         bool                 `json:"document_integrity"`
	SignatureOK         bool                 `json:"signature_valid"`
	OverallOK           bool                 `json:"overall_valid"`
	TransactionID       string               `json:"transaction_id"`
	Timestamp           string               `json:"timestamp"`
	OriginalFingerprint domain.Fingerprint   `json:"original_hash"`
	CurrentFingerprint  domain.Fingerprint   `json:"current_hash"`
	FingerprintStrategy fingerprint.Strategy `json:"fingerprint_strategy"`
	Message             string               `json:"message"`
	SecurityDetails     SecurityDetails      `json:"security_details"`
}

type SecurityDetails struct {
	HashAlgorithm         string    `json:"hash_algorithm"`
	SignatureAlgorithm    string    `json:"signature_algorithm"`
	VerificationTimestamp time.Time `json:"verification_timestamp"`
	TamperDetected        bool      `json:"tamper_detected"`
	SignatureVerified     bool      `json:"signature_verified"`
}

// SignatureCheck is the result of verifying a fingerprint and signature
// supplied by value.
type SignatureCheck struct {
	SignatureOK bool               `json:"signature_valid"`
	Fingerprint domain.Fingerprint `json:"document_hash"`
}

// PayloadVerdict is the result of verifying a scanned attestation payload.
type PayloadVerdict struct {
	SignatureOK   bool               `json:"signature_valid"`
	QRValid       bool               `json:"qr_valid"`
	OverallOK     bool               `json:"overall_valid"`
	TransactionID string             `json:"transaction_id"`
	Timestamp     string             `json:"timestamp"`
	Fingerprint   domain.Fingerprint `json:"document_hash"`
	Message       string             `json:"message"`
}

type ReceiptItem struct {
	Description string `json:"description" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
}

type ReceiptRequest struct {
	Title           string        `json:"title"`
	Author          string        `json:"author"`
	TransactionID   string        `json:"transaction_id"`
	CustomerName    string        `json:"customer_name"`
	TransactionDate string        `json:"transaction_date"`
	Items           []ReceiptItem `json:"items" binding:"dive"`
	Total           string        `json:"total"`
	Notes           []string      `json:"notes"`
}

type KeyInfo struct {
	PrivateKeyPath string    `json:"private_key_path"`
	PublicKeyPath  string    `json:"public_key_path"`
	GeneratedAt    time.Time `json:"generated_at"`
}
