// Package xlsx renders error library entries as an Excel workbook.
package xlsx

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

const SheetName = "Error Library"

var header = []string{"Entry ID", "Upload ID", "Question", "Solution", "Created At", "Updated At"}

type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (Exporter) ExportEntries(w io.Writer, entries []domain.LibraryEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for col, title := range header {
		if err := setCell(f, col+1, 1, title); err != nil {
			return err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "F1", bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return fmt.Errorf("create body style: %w", err)
	}

	for i, e := range entries {
		row := i + 2
		values := []any{
			e.ID,
			e.UploadID,
			e.Question,
			e.Solution,
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.UpdatedAt.UTC().Format(time.RFC3339),
		}
		for col, v := range values {
			if err := setCell(f, col+1, row, v); err != nil {
				return err
			}
		}
	}
	if len(entries) > 0 {
		last := fmt.Sprintf("D%d", len(entries)+1)
		if err := f.SetCellStyle(SheetName, "C2", last, wrap); err != nil {
			return fmt.Errorf("apply body style: %w", err)
		}
	}

	for col, width := range map[string]float64{"A": 38, "B": 38, "C": 60, "D": 80, "E": 22, "F": 22} {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellValue(SheetName, cell, value); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}
