package documents

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"docseal/signature-backend/internal/attestation"
	"docseal/signature-backend/internal/crypto"
	"docseal/signature-backend/internal/fingerprint"
	"docseal/signature-backend/pkg/workflows"
)

// Verify reads the attestation stamped on doc, recomputes the fingerprint of
// the document as it is now and checks the signature against the fingerprint
// recorded at signing time. Integrity and signature validity are reported
// independently.
func (s *documentService) Verify(ctx context.Context, doc []byte) (*Verdict, error) {
	if err := s.checkDocument(doc); err != nil {
		return nil, err
	}
	run := s.workflow.Begin()

	att, err := s.scanner.Scan(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := step(ctx, run, workflows.StateQRDecoded); err != nil {
		return nil, err
	}

	sig, err := att.DecodeSignature()
	if err != nil {
		return nil, err
	}
	cur, err := s.extractor.Fingerprint(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := step(ctx, run, workflows.StateFingerprintsRecomputed); err != nil {
		return nil, err
	}

	ok, err := s.sigs.Verify(att.DocumentHash, sig)
	if err != nil {
		return nil, err
	}
	if err := step(ctx, run, workflows.StateSignatureChecked); err != nil {
		return nil, err
	}

	v := evaluate(att, cur, ok, s.now().UTC())
	if err := run.Advance(workflows.StateDone); err != nil {
		return nil, err
	}

	s.logger.Info("Document verified",
		zap.String("transaction_id", v.TransactionID),
		zap.Bool("integrity", v.IntegrityOK),
		zap.Bool("signature", v.SignatureOK),
		zap.String("strategy", string(cur.Strategy)),
	)
	return v, nil
}

func step(ctx context.Context, run *workflows.Run, next workflows.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return run.Advance(next)
}

// evaluate builds the verdict. A raw-bytes fingerprint never equals the
// fingerprint taken before stamping, so it always reports tampering.
func evaluate(att attestation.Attestation, cur fingerprint.Result, sigOK bool, now time.Time) *Verdict {
	integrity := strings.EqualFold(string(att.DocumentHash), string(cur.Fingerprint))
	return &Verdict{
		IntegrityOK:         integrity,
		SignatureOK:         sigOK,
		OverallOK:           integrity && sigOK,
		TransactionID:       att.TransactionID,
		Timestamp:           att.Timestamp,
		OriginalFingerprint: att.DocumentHash,
		CurrentFingerprint:  cur.Fingerprint,
		FingerprintStrategy: cur.Strategy,
		Message:             verdictMessage(integrity, sigOK),
		SecurityDetails: SecurityDetails{
			HashAlgorithm:         crypto.HashAlgorithm,
			SignatureAlgorithm:    crypto.SignatureAlgorithm,
			VerificationTimestamp: now,
			TamperDetected:        !integrity,
			SignatureVerified:     sigOK,
		},
	}
}

func verdictMessage(integrity, sigOK bool) string {
	switch {
	case integrity && sigOK:
		return MessageAuthentic
	case !integrity && !sigOK:
		return MessageModifiedAndForged
	case !integrity:
		return MessageModified
	default:
		return MessageSignatureInvalid
	}
}
