package xlsx

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

func TestExportEntriesWritesHeaderAndRows(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []domain.LibraryEntry{
		{ID: "e-1", UploadID: "u-1", Question: "Find the minimum of $2x^2-4x+1$", Solution: "$-1$ at $x=1$", CreatedAt: at, UpdatedAt: at},
		{ID: "e-2", UploadID: "u-2", Question: "q2", Solution: "s2", CreatedAt: at, UpdatedAt: at},
	}

	var buf bytes.Buffer
	if err := NewExporter().ExportEntries(&buf, entries); err != nil {
		t.Fatalf("ExportEntries() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][2] != "Question" || rows[1][2] != entries[0].Question || rows[2][0] != "e-2" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if rows[1][4] != "2025-03-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp cell %q", rows[1][4])
	}
}

func TestExportEmptyLibrary(t *testing.T) {
	var buf bytes.Buffer
	if err := NewExporter().ExportEntries(&buf, nil); err != nil {
		t.Fatalf("ExportEntries() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected a workbook even with no entries")
	}
}
