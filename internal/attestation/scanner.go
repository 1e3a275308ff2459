package attestation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"docseal/signature-backend/internal/domain"
	"docseal/signature-backend/pkg/pdf"
)

// ImageSource lists the raster images of a document in page order.
type ImageSource func(doc []byte) ([]pdf.PageImage, error)

// Scanner finds the attestation embedded in a signed document.
type Scanner struct {
	codec  Codec
	images ImageSource
	logger *zap.Logger
}

// NewScanner scans images extracted with pdf.ExtractImages when images is nil.
func NewScanner(codec Codec, images ImageSource, logger *zap.Logger) *Scanner {
	if images == nil {
		images = pdf.ExtractImages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{codec: codec, images: images, logger: logger}
}

// Scan returns the first valid attestation found, walking pages in order.
// It fails with domain.ErrAttestationNotFound when no image holds a code, and
// with domain.ErrAttestationMalformed when codes were found but none parsed.
func (s *Scanner) Scan(ctx context.Context, doc []byte) (Attestation, error) {
	images, err := s.images(doc)
	if err != nil {
		return Attestation{}, fmt.Errorf("%w: %v", domain.ErrAttestationNotFound, err)
	}

	var malformed error
	for i, pi := range images {
		if err := ctx.Err(); err != nil {
			return Attestation{}, err
		}
		payload, err := s.codec.Decode(pi.Image)
		if errors.Is(err, ErrNoCode) {
			continue
		}
		if err != nil {
			s.logger.Warn("Failed to decode image", zap.Int("page", pi.Page), zap.Int("image", i), zap.Error(err))
			continue
		}
		att, err := Parse(payload)
		if err != nil {
			s.logger.Debug("Ignoring unparseable code", zap.Int("page", pi.Page), zap.Error(err))
			malformed = err
			continue
		}
		return att, nil
	}
	if malformed != nil {
		return Attestation{}, malformed
	}
	return Attestation{}, domain.ErrAttestationNotFound
}
