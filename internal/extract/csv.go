package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/docsearch/internal/model"
)

// maxCSVChunkRows bounds how many data rows become chunks.
const maxCSVChunkRows = 1000

// CSVExtractor turns each data row into one chunk, header-joined so
// keyword and semantic search can match on column names as well as
// values.
type CSVExtractor struct {
	BaseExtractor
}

// NewCSVExtractor creates a CSVExtractor.
func NewCSVExtractor() *CSVExtractor { return &CSVExtractor{} }

// Extract implements Extractor.
func (e *CSVExtractor) Extract(in Input) (*Summary, []ChunkDraft) {
	r := csv.NewReader(bytes.NewReader(in.Bytes))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		slog.Warn("csv extractor failed to parse document", "filename", in.Filename, "error", err)
		return &Summary{FileType: "csv"}, nil
	}
	if len(records) == 0 {
		return &Summary{FileType: "csv"}, nil
	}

	header := records[0]
	rows := records[1:]

	typeMeta := map[string]string{
		"csv_columns": fmt.Sprintf("%d", len(header)),
		"csv_rows":    fmt.Sprintf("%d", len(rows)),
	}

	// Chunks are the first 1000 rows, regardless of how
	// many rows the file actually carries.
	if len(rows) > maxCSVChunkRows {
		rows = rows[:maxCSVChunkRows]
	}

	var chunks []ChunkDraft
	var allText bytes.Buffer

	for i, row := range rows {
		text := rowText(header, row)
		if strings.TrimSpace(text) == "" {
			continue
		}

		allText.WriteString(text)
		allText.WriteString("\n")

		// Row numbers are 1-based.
		rowNumber := i + 1
		chunk := ChunkDraft{
			ChunkType: model.ChunkTypeRow,
			Text:      text,
			Locator:   model.Locator{RowIndex: intPtr(rowNumber)},
		}
		e.applyToChunk(&chunk, text)
		chunks = append(chunks, chunk)
	}

	summary := &Summary{
		Summary:      strings.Join(header, ", "),
		FileType:     "csv",
		TypeMetadata: typeMeta,
	}
	e.applyToSummary(summary, allText.String())

	// CSV artifact summaries are capped at 100 amounts,
	// 50 entities, 100 keywords, and 50 dates regardless of row count.
	summary.AmountsCents = capSlice(summary.AmountsCents, 100)
	summary.Entities = capSlice(summary.Entities, 50)
	summary.Keywords = capSlice(summary.Keywords, 100)
	summary.Dates = capSlice(summary.Dates, 50)

	return summary, chunks
}

// rowText joins a CSV row as "header: value" pairs, so a search match on
// either the column name or the cell value surfaces the row.
func rowText(header, row []string) string {
	var b strings.Builder
	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" | ")
		}
		if i < len(header) && header[i] != "" {
			b.WriteString(header[i])
			b.WriteString(": ")
		}
		b.WriteString(cell)
	}
	return b.String()
}
