package utils

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func sampleTable() Table {
	return Table{
		Sheet:  "Payments",
		Header: []string{"ID", "Name", "Amount"},
		Rows: [][]interface{}{
			{1, "Ana Cruz", "150.00"},
			{2, nil, "0.00"},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleTable()); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "ID,Name,Amount\n1,Ana Cruz,150.00\n2,,0.00\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}

func TestWriteXLSXRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleTable()); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if name := f.GetSheetName(0); name != "Payments" {
		t.Fatalf("expected sheet Payments, got %q", name)
	}
	rows, err := f.GetRows("Payments")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 || rows[0][1] != "Name" || rows[1][1] != "Ana Cruz" {
		t.Fatalf("unexpected rows %v", rows)
	}
}
