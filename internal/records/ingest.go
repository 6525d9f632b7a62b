package records

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Ingest parses an uploaded spreadsheet into a Table. The format is chosen
// by file extension: .xlsx or .csv. The first row is the header.
func Ingest(filename string, r io.Reader) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return ParseXLSX(filename, r)
	case ".csv":
		return ParseCSV(filename, r)
	default:
		return nil, fmt.Errorf("records: ingest %s: unsupported file type (use .xlsx or .csv)", filename)
	}
}

// ParseXLSX reads the first sheet of an xlsx workbook into a Table.
func ParseXLSX(filename string, r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("records: open xlsx %s: %w", filename, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("records: xlsx %s: no sheets", filename)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("records: read xlsx %s: %w", filename, err)
	}
	return tableFromCells(filename, rows)
}

// ParseCSV reads a comma-separated file into a Table.
func ParseCSV(filename string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are padded below
	cells, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("records: read csv %s: %w", filename, err)
	}
	return tableFromCells(filename, cells)
}

// tableFromCells builds a Table from raw cell rows. The first row is the
// header; blank header cells drop their whole column by position, so the
// remaining data cells stay aligned with their own headers. Fully empty rows
// are skipped.
func tableFromCells(filename string, cells [][]string) (*Table, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("records: %s: empty dataset", filename)
	}

	header := make([]string, len(cells[0]))
	var columns []string
	for i, h := range cells[0] {
		h = strings.TrimSpace(h)
		header[i] = h
		if h != "" {
			columns = append(columns, h)
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("records: %s: header row is empty", filename)
	}

	var rows []Row
	for _, line := range cells[1:] {
		if isEmptyRow(line) {
			continue
		}
		row := make(Row, len(columns))
		for _, col := range columns {
			row[col] = ""
		}
		for i, col := range header {
			if col == "" || i >= len(line) {
				continue
			}
			row[col] = strings.TrimSpace(line[i])
		}
		rows = append(rows, row)
	}

	return &Table{
		Columns:    columns,
		Rows:       rows,
		Filename:   filename,
		UploadedAt: time.Now(),
	}, nil
}

func isEmptyRow(line []string) bool {
	for _, cell := range line {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
