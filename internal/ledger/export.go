package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Signatures"

// Export formats accepted by Export.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// ErrUnsupportedFormat is returned by Export for an unknown format name.
var ErrUnsupportedFormat = errors.New("unsupported export format")

var exportColumns = []string{"Transaction ID", "Customer", "Fingerprint", "Strategy", "Signed File", "Issued At"}

// Export writes records in the named format.
func Export(w io.Writer, format string, records []Record) error {
	switch format {
	case "", FormatXLSX:
		return ExportExcel(w, records)
	case FormatCSV:
		return ExportCSV(w, records)
	default:
		return fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
	}
}

func exportRow(rec Record) []string {
	return []string{
		rec.TransactionID,
		rec.CustomerName,
		rec.Fingerprint,
		rec.Strategy,
		rec.SignedFile,
		rec.IssuedAt.UTC().Format(time.RFC3339),
	}
}

// ExportCSV writes records to w as comma-separated values with a header row.
func ExportCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, rec := range records {
		if err := writer.Write(exportRow(rec)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ExportExcel writes records to w as an xlsx workbook with a frozen, styled
// header row.
func ExportExcel(w io.Writer, records []Record) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		file.SetCellValue(sheetName, cell, col)
		file.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	file.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	for r, rec := range records {
		fields := exportRow(rec)
		row := make([]interface{}, len(fields))
		for i, f := range fields {
			row[i] = f
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := file.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}

	file.SetColWidth(sheetName, "A", "B", 20)
	file.SetColWidth(sheetName, "C", "C", 66)
	file.SetColWidth(sheetName, "D", "F", 22)

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
