package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"docseal/signature-backend/internal/attestation"
	"docseal/signature-backend/internal/crypto"
	"docseal/signature-backend/internal/domain"
	"docseal/signature-backend/internal/fingerprint"
	"docseal/signature-backend/internal/ledger"
)

type Service interface {
	Sign(ctx context.Context, req SignRequest) (*SignResult, error)
	Verify(ctx context.Context, doc []byte) (*Verdict, error)
	ExtractAttestation(ctx context.Context, doc []byte) (*attestation.Attestation, error)
	VerifyByValue(ctx context.Context, fp string, sigHex string) (*SignatureCheck, error)
	VerifyAttestationPayload(ctx context.Context, raw string) (*PayloadVerdict, error)

	GenerateReceipt(ctx context.Context, req ReceiptRequest) ([]byte, error)
	Download(ctx context.Context, filename string) (io.ReadCloser, error)

	ListSignatures(ctx context.Context, filter ledger.ListFilter) ([]ledger.Record, error)
	ExportSignatures(ctx context.Context, w io.Writer, format string) error

	PublicKey(ctx context.Context) ([]byte, error)
	GenerateKeys(ctx context.Context) (*KeyInfo, error)
}

type FingerprintExtractor interface {
	Fingerprint(ctx context.Context, doc []byte) (fingerprint.Result, error)
}

type AttestationScanner interface {
	Scan(ctx context.Context, doc []byte) (attestation.Attestation, error)
}

type KeyAdmin interface {
	GenerateKeyPair() (*crypto.KeyPair, error)
	PublicKeyPEM() ([]byte, error)
	Paths() (string, string)
}

type Dependencies struct {
	Extractor  FingerprintExtractor
	Signatures *SignatureService
	Keys       KeyAdmin
	Codec      attestation.Codec
	Scanner    AttestationScanner
	PDF        *PDFService
	Storage    *StorageProvider
	Ledger     ledger.Repository
	Workflow   *WorkflowService
}

type ServiceConfig struct {
	MaxUploadBytes  int64
	VerificationURL string
	Caption         string
	// DownloadPath prefixes signed file names when the store has no direct URLs.
	DownloadPath string
}

type documentService struct {
	extractor FingerprintExtractor
	sigs      *SignatureService
	keys      KeyAdmin
	codec     attestation.Codec
	scanner   AttestationScanner
	pdf       *PDFService
	storage   *StorageProvider
	ledger    ledger.Repository
	workflow  *WorkflowService
	cfg       ServiceConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(deps Dependencies, cfg ServiceConfig, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Workflow == nil {
		deps.Workflow = NewWorkflowService()
	}
	if deps.Ledger == nil {
		deps.Ledger = ledger.NewMemoryRepository()
	}
	return &documentService{
		extractor: deps.Extractor,
		sigs:      deps.Signatures,
		keys:      deps.Keys,
		codec:     deps.Codec,
		scanner:   deps.Scanner,
		pdf:       deps.PDF,
		storage:   deps.Storage,
		ledger:    deps.Ledger,
		workflow:  deps.Workflow,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *documentService) checkDocument(doc []byte) error {
	if len(doc) == 0 {
		return fmt.Errorf("%w: empty document", domain.ErrInvalidInput)
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(doc)) > s.cfg.MaxUploadBytes {
		return fmt.Errorf("%w: %d bytes, limit is %d", domain.ErrDocumentTooLarge, len(doc), s.cfg.MaxUploadBytes)
	}
	return nil
}

func (s *documentService) Sign(ctx context.Context, req SignRequest) (*SignResult, error) {
	if !strings.EqualFold(strings.TrimSpace(pathExt(req.Filename)), ".pdf") {
		return nil, fmt.Errorf("%w: only PDF files are accepted", domain.ErrInvalidInput)
	}
	if err := s.checkDocument(req.Document); err != nil {
		return nil, err
	}

	fp, err := s.extractor.Fingerprint(ctx, req.Document)
	if err != nil {
		return nil, err
	}
	if fp.Degraded() {
		s.logger.Warn("Signing with raw-byte fingerprint",
			zap.String("filename", req.Filename),
			zap.Error(fp.Cause),
		)
	}

	sig, sigHex, err := s.sigs.Sign(fp.Fingerprint)
	if err != nil {
		return nil, err
	}

	txID := req.TransactionID
	if txID == "" {
		txID = uuid.NewString()
	}
	timestamp := req.TransactionDate
	if timestamp == "" {
		timestamp = s.now().UTC().Format(time.RFC3339)
	}
	att := attestation.New(txID, fp.Fingerprint, sig, timestamp, s.cfg.VerificationURL)
	payload, err := att.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: encode attestation: %v", domain.ErrSigning, err)
	}

	img, err := s.codec.Encode(payload, s.cfg.Caption)
	if err != nil {
		return nil, fmt.Errorf("%w: render attestation: %v", domain.ErrSigning, err)
	}
	stamped, err := s.pdf.StampAttestation(req.Document, img)
	if err != nil {
		return nil, fmt.Errorf("%w: document could not be stamped: %v", domain.ErrInvalidInput, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := SignedName(txID, req.Filename)
	if err := s.storage.Save(ctx, name, stamped); err != nil {
		return nil, fmt.Errorf("failed to store signed document: %w", err)
	}

	rec := &ledger.Record{
		TransactionID: txID,
		CustomerName:  req.CustomerName,
		Fingerprint:   string(fp.Fingerprint),
		SignatureHex:  sigHex,
		Strategy:      string(fp.Strategy),
		SignedFile:    name,
		Attestation:   datatypes.JSON(payload),
		IssuedAt:      s.now().UTC(),
	}
	if err := s.ledger.Create(ctx, rec); err != nil {
		s.logger.Error("Failed to record issued signature", zap.String("transaction_id", txID), zap.Error(err))
	}

	s.logger.Info("Document signed",
		zap.String("transaction_id", txID),
		zap.String("fingerprint", fp.Fingerprint.Short()),
		zap.String("strategy", string(fp.Strategy)),
		zap.String("signed_file", name),
	)

	return &SignResult{
		Message:       "Document signed successfully",
		TransactionID: txID,
		Fingerprint:   fp.Fingerprint,
		SignatureHex:  sigHex,
		SignedFile:    name,
		DownloadURL:   s.storage.DownloadURL(ctx, name, s.cfg.DownloadPath),
		Strategy:      fp.Strategy,
		Attestation:   att,
		Document:      stamped,
	}, nil
}

func (s *documentService) ExtractAttestation(ctx context.Context, doc []byte) (*attestation.Attestation, error) {
	if err := s.checkDocument(doc); err != nil {
		return nil, err
	}
	att, err := s.scanner.Scan(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &att, nil
}

func (s *documentService) VerifyByValue(ctx context.Context, fp string, sigHex string) (*SignatureCheck, error) {
	f := domain.Fingerprint(strings.TrimSpace(fp))
	if err := f.Validate(); err != nil {
		return nil, err
	}
	sig, err := attestation.DecodeSignature(strings.TrimSpace(sigHex))
	if err != nil {
		return nil, err
	}
	ok, err := s.sigs.Verify(f, sig)
	if err != nil {
		return nil, err
	}
	return &SignatureCheck{SignatureOK: ok, Fingerprint: f}, nil
}

func (s *documentService) VerifyAttestationPayload(ctx context.Context, raw string) (*PayloadVerdict, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: qr_data is required", domain.ErrInvalidInput)
	}
	att, err := attestation.Parse([]byte(raw))
	if err != nil {
		return nil, err
	}
	sig, err := att.DecodeSignature()
	if err != nil {
		return nil, err
	}
	ok, err := s.sigs.Verify(att.DocumentHash, sig)
	if err != nil {
		return nil, err
	}
	msg := MessagePayloadInvalid
	if ok {
		msg = MessagePayloadValid
	}
	return &PayloadVerdict{
		SignatureOK:   ok,
		QRValid:       true,
		OverallOK:     ok,
		TransactionID: att.TransactionID,
		Timestamp:     att.Timestamp,
		Fingerprint:   att.DocumentHash,
		Message:       msg,
	}, nil
}

func (s *documentService) GenerateReceipt(ctx context.Context, req ReceiptRequest) ([]byte, error) {
	doc, err := s.pdf.GenerateReceipt(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate receipt: %w", err)
	}
	return doc, nil
}

func (s *documentService) Download(ctx context.Context, filename string) (io.ReadCloser, error) {
	return s.storage.Open(ctx, filename)
}

func (s *documentService) ListSignatures(ctx context.Context, filter ledger.ListFilter) ([]ledger.Record, error) {
	return s.ledger.List(ctx, filter)
}

func (s *documentService) ExportSignatures(ctx context.Context, w io.Writer, format string) error {
	recs, err := s.ledger.List(ctx, ledger.ListFilter{})
	if err != nil {
		return err
	}
	if err := ledger.Export(w, format, recs); err != nil {
		if errors.Is(err, ledger.ErrUnsupportedFormat) {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return fmt.Errorf("failed to export signatures: %w", err)
	}
	return nil
}

func (s *documentService) PublicKey(ctx context.Context) ([]byte, error) {
	return s.keys.PublicKeyPEM()
}

// GenerateKeys replaces the signing key pair. Every attestation issued before
// the call stops verifying.
func (s *documentService) GenerateKeys(ctx context.Context) (*KeyInfo, error) {
	if _, err := s.keys.GenerateKeyPair(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyLoad, err)
	}
	priv, pub := s.keys.Paths()
	s.logger.Warn("Signing key pair regenerated; previously issued attestations no longer verify",
		zap.String("public_key", pub),
	)
	return &KeyInfo{PrivateKeyPath: priv, PublicKeyPath: pub, GeneratedAt: s.now().UTC()}, nil
}

func pathExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
