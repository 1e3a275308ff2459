package documents

import (
	"context"
	"fmt"
	"image"
	"strings"

	"docseal/signature-backend/pkg/pdf"
)

// Stamper draws an image onto a page of an existing PDF.
type Stamper func(doc []byte, page int, img image.Image, at pdf.Placement) ([]byte, error)

type PDFService struct {
	generator pdf.Generator
	stamp     Stamper
	placement pdf.Placement
}

func NewPDFService(generator pdf.Generator, stamp Stamper, placement pdf.Placement) *PDFService {
	if stamp == nil {
		stamp = pdf.EmbedImage
	}
	return &PDFService{
		generator: generator,
		stamp:     stamp,
		placement: placement,
	}
}

// StampAttestation places the attestation image on the first page.
func (s *PDFService) StampAttestation(doc []byte, img image.Image) ([]byte, error) {
	return s.stamp(doc, 0, img, s.placement)
}

func (s *PDFService) GenerateReceipt(ctx context.Context, req ReceiptRequest) ([]byte, error) {
	title := req.Title
	if title == "" {
		title = "Transaction Receipt"
	}
	var fields []pdf.Field
	for _, f := range []pdf.Field{
		{Label: "Transaction ID", Value: req.TransactionID},
		{Label: "Customer", Value: req.CustomerName},
		{Label: "Date", Value: req.TransactionDate},
	} {
		if strings.TrimSpace(f.Value) != "" {
			fields = append(fields, f)
		}
	}

	var paragraphs []string
	for i, item := range req.Items {
		paragraphs = append(paragraphs, fmt.Sprintf("%d. %s: %s", i+1, item.Description, item.Amount))
	}
	if req.Total != "" {
		paragraphs = append(paragraphs, "Total: "+req.Total)
	}
	paragraphs = append(paragraphs, req.Notes...)

	return s.generator.Generate(ctx, pdf.Receipt{
		Title:      title,
		Author:     req.Author,
		Fields:     fields,
		Paragraphs: paragraphs,
	})
}
