package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Sheet defines tabular export content. Footer lines are appended after the rows.
type Sheet struct {
	Title   string
	Headers []string
	Rows    [][]string
	Footer  []string
}

// CSVExporter renders a Sheet into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the sheet. Short rows are padded to the header width.
func (e *CSVExporter) Render(sheet Sheet) ([]byte, error) {
	if len(sheet.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(sheet.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range sheet.Rows {
		if err := writer.Write(padRow(row, len(sheet.Headers))); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	if len(sheet.Footer) > 0 {
		if err := writer.Write([]string{}); err != nil {
			return nil, fmt.Errorf("write csv separator: %w", err)
		}
		for _, line := range sheet.Footer {
			if err := writer.Write([]string{line}); err != nil {
				return nil, fmt.Errorf("write csv footer: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
