// ============================================================================
// Spreadsheet export
// ============================================================================
//
// Package: internal/export
// Purpose: write the current schedule and the weeks-worked table as an
//          .xlsx workbook.
//
// Sheets:
//   "Weekly Schedule"  Position | Mon | Tue | ...   names comma-joined
//   "Position Counts"  Worker   | <position> ...    weeks worked
//
// File name: Weekly_Schedule_<YYYY-MM-DD>.xlsx
// ============================================================================

package export

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// Sheet names
const (
	ScheduleSheet = "Weekly Schedule"
	CountsSheet   = "Position Counts"
)

// Workbook what goes into one export
type Workbook struct {
	Catalog  types.Catalog
	Schedule types.Schedule
	Counts   map[types.WorkerID]map[types.Position]int
	Roster   []types.Worker // names and row order for the counts sheet
}

// FileName returns the export file name for day t.
func FileName(t time.Time) string {
	return fmt.Sprintf("Weekly_Schedule_%s.xlsx", t.Format("2006-01-02"))
}

// Save writes the workbook into dir under FileName(now) and returns the path.
func Save(dir string, now time.Time, wb Workbook) (string, error) {
	f, err := build(wb)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, FileName(now))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", path, err)
	}
	return path, nil
}

// Write streams the workbook to w.
func Write(w io.Writer, wb Workbook) error {
	f, err := build(wb)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func build(wb Workbook) (*excelize.File, error) {
	f := excelize.NewFile()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFD100"}},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", ScheduleSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeRows(f, ScheduleSheet, scheduleRows(wb), header); err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.NewSheet(CountsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeRows(f, CountsSheet, countRows(wb), header); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func scheduleRows(wb Workbook) [][]any {
	head := []any{"Position"}
	for _, d := range wb.Schedule.Days {
		head = append(head, string(d))
	}
	rows := [][]any{head}

	for _, p := range wb.Catalog.AllPositions() {
		row := []any{string(p)}
		for _, d := range wb.Schedule.Days {
			var names []string
			for _, a := range wb.Schedule.At(p, d) {
				names = append(names, a.Name)
			}
			row = append(row, strings.Join(names, ", "))
		}
		rows = append(rows, row)
	}
	return rows
}

func countRows(wb Workbook) [][]any {
	head := []any{"Worker"}
	for _, p := range wb.Catalog.Positions {
		head = append(head, string(p))
	}
	rows := [][]any{head}

	names := make(map[types.WorkerID]string, len(wb.Roster))
	var ids []types.WorkerID
	for _, w := range wb.Roster {
		names[w.ID] = w.Name
		ids = append(ids, w.ID)
	}
	// workers who left the roster but still have history
	var former []types.WorkerID
	for id := range wb.Counts {
		if _, ok := names[id]; !ok {
			former = append(former, id)
		}
	}
	slices.Sort(former)
	ids = append(ids, former...)

	for _, id := range ids {
		name := names[id]
		if name == "" {
			name = string(id)
		}
		row := []any{name}
		for _, p := range wb.Catalog.Positions {
			row = append(row, wb.Counts[id][p])
		}
		rows = append(rows, row)
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(rows[0]))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 18)
}
