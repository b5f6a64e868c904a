// Package export renders stored pipeline records as an XLSX workbook.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receptro/constants"
	"github.com/joseph-ayodele/receptro/internal/pipeline"
	"github.com/joseph-ayodele/receptro/internal/store"
)

// Sheet names.
const (
	SheetAudio     = "Audio"
	SheetDocuments = "Documents"
)

// Fields that get a fixed column, in this order; any other field is appended
// alphabetically.
var documentFieldOrder = []string{
	"name", "date_of_birth", "id_number", "address", "phone", "email", "expiry_date", "issuer",
}

// Lister is the part of store.Store the export reads from.
type Lister interface {
	List(ctx context.Context, f store.Filter) ([]pipeline.Record, error)
}

// Service produces XLSX bytes for exports.
type Service struct {
	results Lister
	logger  *slog.Logger
}

func NewService(results Lister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{results: results, logger: logger}
}

// maxExportRows bounds one workbook.
const maxExportRows = 10000

// ExportXLSX returns a workbook of every stored record created at or after since
// (zero means all), newest first.
func (s *Service) ExportXLSX(ctx context.Context, since time.Time) ([]byte, error) {
	start := time.Now()
	recs, err := s.results.List(ctx, store.Filter{Since: since, Limit: maxExportRows})
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	b, err := WriteXLSX(recs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok", "rows", len(recs), "elapsed_ms", time.Since(start).Milliseconds())
	return b, nil
}

// WriteXLSX renders recs into a workbook with an Audio and a Documents sheet.
func WriteXLSX(recs []pipeline.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	var audio, docs []pipeline.Record
	for _, r := range recs {
		switch r.FileType {
		case constants.Audio:
			audio = append(audio, r)
		case constants.Image:
			docs = append(docs, r)
		}
	}

	if err := writeAudioSheet(f, audio); err != nil {
		return nil, err
	}
	if err := writeDocumentSheet(f, docs); err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	if idx, err := f.GetSheetIndex(SheetAudio); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeAudioSheet(f *excelize.File, recs []pipeline.Record) error {
	headers := []string{
		"Run ID", "Timestamp", "Input File", "Intent", "Confidence",
		"Parameters", "Transcript", "Response", "Status", "Failed Stage",
	}
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []any{
			r.ID,
			formatTime(r.Timestamp),
			r.InputFile,
			r.Intent,
			r.Confidence,
			formatParams(r.Parameters),
			truncate(r.TranscriptText, 500),
			r.ResponseText,
			string(r.Status()),
			string(r.FailedStage()),
		})
	}
	if err := writeSheet(f, SheetAudio, headers, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(SheetAudio, "A", "A", 38)
	_ = f.SetColWidth(SheetAudio, "B", "B", 22)
	_ = f.SetColWidth(SheetAudio, "C", "C", 40)
	_ = f.SetColWidth(SheetAudio, "F", "H", 48)
	return nil
}

func writeDocumentSheet(f *excelize.File, recs []pipeline.Record) error {
	fieldCols := documentColumns(recs)
	headers := []string{"Run ID", "Timestamp", "Input File", "Field Count"}
	headers = append(headers, fieldCols...)
	headers = append(headers, "Status", "Failed Stage")

	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		row := []any{r.ID, formatTime(r.Timestamp), r.InputFile, r.FieldCount}
		for _, name := range fieldCols {
			row = append(row, r.ExtractedFields[name])
		}
		row = append(row, string(r.Status()), string(r.FailedStage()))
		rows = append(rows, row)
	}
	if err := writeSheet(f, SheetDocuments, headers, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(SheetDocuments, "A", "A", 38)
	_ = f.SetColWidth(SheetDocuments, "B", "B", 22)
	_ = f.SetColWidth(SheetDocuments, "C", "C", 40)
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// documentColumns returns the field columns: known fields present in recs in
// their fixed order, then the rest sorted.
func documentColumns(recs []pipeline.Record) []string {
	present := map[string]bool{}
	for _, r := range recs {
		for k := range r.ExtractedFields {
			present[k] = true
		}
	}
	var cols []string
	for _, k := range documentFieldOrder {
		if present[k] {
			cols = append(cols, k)
			delete(present, k)
		}
	}
	extra := make([]string, 0, len(present))
	for k := range present {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	return append(cols, extra...)
}

func formatParams(p map[string]string) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+p[k])
	}
	return strings.Join(parts, "; ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
