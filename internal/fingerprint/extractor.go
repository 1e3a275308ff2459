package fingerprint

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"docseal/signature-backend/internal/domain"
	"docseal/signature-backend/pkg/pdf"
)

// Strategy records how a fingerprint was derived.
type Strategy string

const (
	// StrategyContent hashes the canonical text and metadata of the document.
	StrategyContent Strategy = "content"
	// StrategyRawBytes hashes the file bytes; used when the content cannot be read.
	StrategyRawBytes Strategy = "raw-bytes"
)

// Document is the read side of a parsed PDF.
type Document interface {
	PageCount() (int, error)
	Metadata() (pdf.Metadata, error)
	ExtractText(page int) (string, error)
}

// Source parses raw bytes into a Document.
type Source interface {
	Open(data []byte) (Document, error)
}

type pdfSource struct{}

func (pdfSource) Open(data []byte) (Document, error) { return pdf.Open(data) }

// PDFSource parses documents with pkg/pdf.
func PDFSource() Source { return pdfSource{} }

// Result is a computed fingerprint. Cause is set when the content could not be
// read and the raw-byte fallback was used.
type Result struct {
	Fingerprint domain.Fingerprint
	Strategy    Strategy
	Cause       error
}

// Degraded reports whether the fallback strategy was used.
func (r Result) Degraded() bool { return r.Strategy == StrategyRawBytes }

// Extractor computes content fingerprints. It is stateless and safe for
// concurrent use.
type Extractor struct {
	source Source
	logger *zap.Logger
}

func NewExtractor(source Source, logger *zap.Logger) *Extractor {
	if source == nil {
		source = PDFSource()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{source: source, logger: logger}
}

// Fingerprint hashes the canonical content of doc. When the document cannot
// be parsed it falls back to hashing the raw bytes and reports the cause in
// the result. Only a cancelled context is returned as an error.
func (e *Extractor) Fingerprint(ctx context.Context, doc []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	content, err := e.Canonical(ctx, doc)
	if err == nil {
		return Result{Fingerprint: domain.FingerprintOf([]byte(content)), Strategy: StrategyContent}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	cause := fmt.Errorf("%w: %v", domain.ErrContentExtraction, err)
	e.logger.Warn("Falling back to raw-byte fingerprint",
		zap.Int("size", len(doc)),
		zap.Error(err),
	)
	return Result{Fingerprint: domain.FingerprintOf(doc), Strategy: StrategyRawBytes, Cause: cause}, nil
}

// Canonical builds the whitespace-normalized string that StrategyContent hashes:
//
//	PAGES:<n>TITLE:<title>AUTHOR:<author>CONTENT:PAGE_0:<text>PAGE_1:<text>...
func (e *Extractor) Canonical(ctx context.Context, doc []byte) (string, error) {
	d, err := e.source.Open(doc)
	if err != nil {
		return "", err
	}
	pages, err := d.PageCount()
	if err != nil {
		return "", err
	}
	md, err := d.Metadata()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("PAGES:")
	b.WriteString(strconv.Itoa(pages))
	b.WriteString("TITLE:")
	b.WriteString(md.Title)
	b.WriteString("AUTHOR:")
	b.WriteString(md.Author)
	b.WriteString("CONTENT:")
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := d.ExtractText(i)
		if err != nil {
			return "", err
		}
		b.WriteString("PAGE_")
		b.WriteString(strconv.Itoa(i))
		b.WriteString(":")
		b.WriteString(text)
	}
	return Normalize(b.String()), nil
}

// Normalize collapses every whitespace run to a single space and trims the ends.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
