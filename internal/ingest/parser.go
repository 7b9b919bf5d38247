// Package ingest implements the bulk lab-results pipeline: CSV parsing, row
// reconciliation against the catalog, classification and status propagation.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Row is one data line keyed by header column name.
type Row map[string]string

// Column names expected in a lab-results upload.
const (
	ColHN        = "hn_number"
	ColItemName  = "lab_item_name"
	ColItemValue = "lab_item_value"
)

// Parse decodes a delimited file with a header line into rows in file order.
// A structurally malformed record aborts the whole parse; per-row content
// validation is the batch processor's job, not the parser's.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading record: %w", err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			row[col] = strings.TrimSpace(record[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}
