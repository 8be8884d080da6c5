package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func exportFixtures() []*Record {
	base := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	passed := testRecord("STATUS", "DOC_PREP", true, base)
	failed := testRecord("ACTION", "FUNDING", false, base.Add(time.Hour))
	failed.ConclusionBy = "2"
	failed.ConclusionNotice = "amount must be positive"
	return []*Record{passed, failed}
}

func TestCSVExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewCSVExporter(true)

	if err := exporter.Export(context.Background(), exportFixtures(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading exported CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2 records", len(rows))
	}

	header := rows[0]
	if header[0] != "id" || header[len(header)-1] != "evaluated_at" {
		t.Errorf("header = %v", header)
	}
	if len(rows[1]) != len(header) {
		t.Errorf("record row has %d fields, header has %d", len(rows[1]), len(header))
	}

	// The failed record's conclusion columns.
	if rows[2][5] != "false" || rows[2][6] != "2" || rows[2][7] != "amount must be positive" {
		t.Errorf("failed record row = %v", rows[2])
	}
	if rows[2][11] != "2024-03-15T10:30:00Z" {
		t.Errorf("evaluated_at column = %q", rows[2][11])
	}
}

func TestCSVExporter_NoHeader(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewCSVExporter(false)

	if err := exporter.Export(context.Background(), exportFixtures(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading exported CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("rows = %d, want 2 without header", len(rows))
	}
}

func TestJSONExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewJSONExporter(false)
	fixtures := exportFixtures()

	if err := exporter.Export(context.Background(), fixtures, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	var decoded []*Record
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal exported JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded = %d records, want 2", len(decoded))
	}
	if decoded[0].ID != fixtures[0].ID || decoded[1].ConclusionBy != "2" {
		t.Errorf("decoded records do not match fixtures")
	}
}

func TestJSONExporter_EmptyAndSingle(t *testing.T) {
	ctx := context.Background()
	exporter := NewJSONExporter(false)

	var buf bytes.Buffer
	if err := exporter.Export(ctx, nil, &buf); err != nil {
		t.Fatalf("Export(nil): %v", err)
	}
	if got := buf.String(); got != "[]" {
		t.Errorf("empty export = %q, want []", got)
	}

	// A single record still exports as an array.
	buf.Reset()
	if err := exporter.Export(ctx, exportFixtures()[:1], &buf); err != nil {
		t.Fatalf("Export(single): %v", err)
	}
	if !strings.HasPrefix(buf.String(), "[") {
		t.Errorf("single-record export = %q, want an array", buf.String())
	}
}

func TestJSONExporter_Pretty(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewJSONExporter(true)

	if err := exporter.Export(context.Background(), exportFixtures(), &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("pretty export is not indented")
	}
}
