package pdf

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Generator renders new PDF documents. It never edits an existing file; see
// EmbedImage for that.
type Generator interface {
	Generate(ctx context.Context, doc Receipt) ([]byte, error)
}

// Receipt describes a simple text document: a title, optional key/value
// fields and free paragraphs.
type Receipt struct {
	Title      string
	Author     string
	Subtitle   string
	Fields     []Field
	Paragraphs []string
	// PageBreaks splits Paragraphs onto separate pages at these indexes.
	PageBreaks []int
}

// Field is one labelled row of a receipt.
type Field struct {
	Label string
	Value string
}

// Options configures page geometry and fonts.
type Options struct {
	PageSize      string  `json:"page_size"`   // A4, Letter, Legal
	Orientation   string  `json:"orientation"` // portrait, landscape
	FontFamily    string  `json:"font_family"`
	FontSize      float64 `json:"font_size"`
	TitleFontSize float64 `json:"title_font_size"`
	Margins       Margins `json:"margins"`
}

// Margins represents page margins in millimetres.
type Margins struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// DefaultOptions returns A4 portrait with Helvetica.
func DefaultOptions() Options {
	return Options{
		PageSize:      "A4",
		Orientation:   "portrait",
		FontFamily:    "Helvetica",
		FontSize:      11,
		TitleFontSize: 16,
		Margins:       Margins{Left: 15, Right: 15, Top: 20, Bottom: 20},
	}
}

type gofpdfGenerator struct {
	options Options
}

// NewGenerator returns a gofpdf-backed Generator.
func NewGenerator(options Options) Generator {
	return &gofpdfGenerator{options: options}
}

func (g *gofpdfGenerator) Generate(ctx context.Context, doc Receipt) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	orientation := "P"
	if g.options.Orientation == "landscape" {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", g.options.PageSize, "")
	pdf.SetMargins(g.options.Margins.Left, g.options.Margins.Top, g.options.Margins.Right)
	pdf.SetAutoPageBreak(true, g.options.Margins.Bottom)
	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor(doc.Author, true)
	pdf.SetCreator("docseal", true)

	pdf.AddPage()
	if doc.Title != "" {
		pdf.SetFont(g.options.FontFamily, "B", g.options.TitleFontSize)
		pdf.CellFormat(0, 10, doc.Title, "", 1, "C", false, 0, "")
	}
	if doc.Subtitle != "" {
		pdf.SetFont(g.options.FontFamily, "", g.options.FontSize+1)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 8, doc.Subtitle, "", 1, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	if len(doc.Fields) > 0 {
		pdf.Ln(4)
		g.addFields(pdf, doc.Fields)
	}

	breaks := make(map[int]bool, len(doc.PageBreaks))
	for _, i := range doc.PageBreaks {
		breaks[i] = true
	}
	pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	for i, p := range doc.Paragraphs {
		if breaks[i] {
			pdf.AddPage()
		}
		pdf.MultiCell(0, 6, p, "", "L", false)
		pdf.Ln(2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *gofpdfGenerator) addFields(pdf *gofpdf.Fpdf, fields []Field) {
	pageWidth, _ := pdf.GetPageSize()
	available := pageWidth - g.options.Margins.Left - g.options.Margins.Right
	labelWidth := available * 0.3

	for _, f := range fields {
		pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize)
		pdf.CellFormat(labelWidth, 7, f.Label, "", 0, "L", false, 0, "")
		pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
		pdf.MultiCell(available-labelWidth, 7, f.Value, "", "L", false)
	}
}
