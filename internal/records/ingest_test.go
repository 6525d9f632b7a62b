package records

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

const sampleCSV = `Policy #,MobileNumber,BirthDate,Plan,Address
POL-100,9876543210,01/01/1990,Gold,12 Hill Rd
POL-200,9123456780,15/06/1985,Bronze,4 Lake View
`

func TestParseCSV(t *testing.T) {
	table, err := ParseCSV("data.csv", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(table.Columns) != 5 {
		t.Fatalf("len(Columns) = %d, want 5", len(table.Columns))
	}
	if table.Columns[0] != "Policy #" {
		t.Errorf("Columns[0] = %q, want %q", table.Columns[0], "Policy #")
	}
	if len(table.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(table.Rows))
	}
	if table.Rows[1]["MobileNumber"] != "9123456780" {
		t.Errorf("Rows[1][MobileNumber] = %q, want 9123456780", table.Rows[1]["MobileNumber"])
	}
}

func TestParseCSV_SkipsEmptyRows(t *testing.T) {
	csv := "A,B\n1,2\n,\n3,4\n"
	table, err := ParseCSV("data.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Errorf("len(Rows) = %d, want 2 (empty row skipped)", len(table.Rows))
	}
}

func TestParseCSV_RaggedRowsPadded(t *testing.T) {
	csv := "A,B,C\n1,2\n"
	table, err := ParseCSV("data.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if table.Rows[0]["C"] != "" {
		t.Errorf("Rows[0][C] = %q, want empty", table.Rows[0]["C"])
	}
}

func TestParseCSV_BlankHeaderKeepsAlignment(t *testing.T) {
	csv := "Name,,MobileNumber\nAnn,junk,9876543210\n"
	table, err := ParseCSV("data.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(table.Columns) != 2 {
		t.Fatalf("len(Columns) = %d, want 2 (blank header dropped)", len(table.Columns))
	}
	row := table.Rows[0]
	if row["Name"] != "Ann" {
		t.Errorf("Name = %q, want Ann", row["Name"])
	}
	if row["MobileNumber"] != "9876543210" {
		t.Errorf("MobileNumber = %q, want 9876543210 (cells under blank headers must not shift)", row["MobileNumber"])
	}
	if len(row) != 2 {
		t.Errorf("len(row) = %d, want 2 (cell under the blank header discarded)", len(row))
	}
}

func TestParseCSV_EmptyFile(t *testing.T) {
	if _, err := ParseCSV("data.csv", strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	cells := [][]interface{}{
		{"Policy #", "MobileNumber", "BirthDate"},
		{"POL-100", "9876543210", "01/01/1990"},
		{"POL-200", "9123456780", "15/06/1985"},
	}
	for i, rowCells := range cells {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &rowCells); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	table, err := ParseXLSX("data.xlsx", &buf)
	if err != nil {
		t.Fatalf("ParseXLSX: %v", err)
	}
	if len(table.Columns) != 3 {
		t.Fatalf("len(Columns) = %d, want 3", len(table.Columns))
	}
	if len(table.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(table.Rows))
	}
	if table.Rows[0]["Policy #"] != "POL-100" {
		t.Errorf("Rows[0][Policy #] = %q, want POL-100", table.Rows[0]["Policy #"])
	}
}

func TestIngest_ByExtension(t *testing.T) {
	if _, err := Ingest("data.csv", strings.NewReader(sampleCSV)); err != nil {
		t.Errorf("Ingest csv: %v", err)
	}
	if _, err := Ingest("data.pdf", strings.NewReader("x")); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
