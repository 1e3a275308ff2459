package ledger

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Record is the audit entry written for every issued attestation. Verification
// results are never stored.
type Record struct {
	ID            uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	TransactionID string         `json:"transaction_id" gorm:"not null;index"`
	CustomerName  string         `json:"customer_name"`
	Fingerprint   string         `json:"fingerprint" gorm:"not null;index;size:64"`
	SignatureHex  string         `json:"signature" gorm:"not null"`
	Strategy      string         `json:"strategy" gorm:"not null"`
	SignedFile    string         `json:"signed_file" gorm:"not null"`
	Attestation   datatypes.JSON `json:"attestation" gorm:"type:jsonb"`
	IssuedAt      time.Time      `json:"issued_at" gorm:"not null;index"`
}

func (Record) TableName() string { return "issued_signatures" }

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	TransactionID string
	Fingerprint   string
	Limit         int
}
