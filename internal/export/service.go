package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/docuvault/rxtract/internal/record"
)

// Row pairs a processed document with its canonical record for export.
type Row struct {
	Path   string
	Record record.CanonicalRecord
	Err    error
}

// Service renders batch results as an XLSX summary workbook or per-document
// JSON files.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// BatchXLSX returns an XLSX workbook (as bytes) with one row per document.
// Failed documents appear with their error so a batch report never silently
// drops inputs.
func (s *Service) BatchXLSX(rows []Row) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Prescriptions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		_, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"File",
		"Status",
		"Document Class",
		"Issue Date",
		"Patient",
		"Prescriber",
		"Facility",
		"Diagnosis",
		"Medications",
		"Signature",
		"Method",
		"Confidence",
		"Warnings",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	rowIdx := 2
	for _, r := range rows {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, rowIdx)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, filepath.Base(r.Path))
		if r.Err != nil {
			write(2, "FAILED")
			write(13, truncate(r.Err.Error(), 140))
			rowIdx++
			continue
		}

		rec := r.Record
		write(2, "OK")
		write(3, string(rec.DocumentClass))
		write(4, rec.IssueDate)
		write(5, rec.Patient[record.AttrName])
		write(6, rec.Prescriber[record.AttrName])
		write(7, rec.Facility[record.AttrName])
		write(8, truncate(rec.Diagnosis, 80))
		write(9, medicationSummary(rec.Items))
		write(10, signatureSummary(rec.Signature))
		write(11, string(rec.Provenance.Method))
		write(12, fmt.Sprintf("%.3f", rec.Provenance.RoutingConfidence.Combined))
		write(13, truncate(strings.Join(rec.Provenance.Warnings, "; "), 140))

		rowIdx++
	}

	_ = f.SetColWidth(sheet, "A", "A", 28) // file
	_ = f.SetColWidth(sheet, "B", "B", 10) // status
	_ = f.SetColWidth(sheet, "C", "D", 14) // class, date
	_ = f.SetColWidth(sheet, "E", "G", 24) // parties
	_ = f.SetColWidth(sheet, "H", "H", 32) // diagnosis
	_ = f.SetColWidth(sheet, "I", "I", 48) // medications
	_ = f.SetColWidth(sheet, "J", "L", 16) // signature, method, confidence
	_ = f.SetColWidth(sheet, "M", "M", 48) // warnings

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteJSON writes one canonical record as pretty JSON next to outDir,
// named after the source file.
func (s *Service) WriteJSON(outDir string, row Row) (string, error) {
	if row.Err != nil {
		return "", fmt.Errorf("no record for failed document %s: %w", row.Path, row.Err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(row.Path), filepath.Ext(row.Path))
	out := filepath.Join(outDir, base+".json")

	b, err := json.MarshalIndent(row.Record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return "", fmt.Errorf("write record: %w", err)
	}

	s.logger.Info("export.json.ok", "path", out, "bytes", len(b))
	return out, nil
}

func medicationSummary(items []record.LineItem) string {
	if len(items) == 0 {
		return ""
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		n := it.Name
		if it.Dosage != "" {
			n += " " + it.Dosage
		}
		names = append(names, n)
	}
	return truncate(strings.Join(names, "; "), 200)
}

func signatureSummary(sig *record.SignatureRecord) string {
	if sig == nil || !sig.Present {
		return "absent"
	}
	if sig.SignerName != nil && *sig.SignerName != "" {
		return "present: " + *sig.SignerName
	}
	return "present"
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
