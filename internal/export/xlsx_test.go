package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ChuLiYu/shift-rota/pkg/types"
)

func sampleWorkbook() Workbook {
	catalog := types.Catalog{
		Positions: []types.Position{"flow", "val"},
		OffBucket: "off",
		Days:      []types.Day{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
	}
	s := types.NewSchedule(catalog.AllPositions(), []types.Day{"Mon", "Tue"})
	s.Append("flow", "Mon", types.Assignee{ID: "1", Name: "Denise"})
	s.Append("flow", "Mon", types.Assignee{ID: "2", Name: "Joseph"})
	s.Append("val", "Tue", types.Assignee{ID: "3", Name: "Sid"})

	return Workbook{
		Catalog:  catalog,
		Schedule: s,
		Counts: map[types.WorkerID]map[types.Position]int{
			"1":  {"flow": 2, "val": 0},
			"3":  {"flow": 0, "val": 5},
			"99": {"flow": 1},
		},
		Roster: []types.Worker{{ID: "1", Name: "Denise"}, {ID: "2", Name: "Joseph"}, {ID: "3", Name: "Sid"}},
	}
}

func TestFileName(t *testing.T) {
	day := time.Date(2026, time.January, 5, 17, 30, 0, 0, time.UTC)
	assert.Equal(t, "Weekly_Schedule_2026-01-05.xlsx", FileName(day))
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleWorkbook()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ScheduleSheet, CountsSheet}, f.GetSheetList())

	rows, err := f.GetRows(ScheduleSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Position", "Mon", "Tue"}, rows[0])

	for cell, want := range map[string]string{
		"A2": "flow", "B2": "Denise, Joseph", "C2": "",
		"A3": "val", "B3": "", "C3": "Sid",
		"A4": "off",
	} {
		got, err := f.GetCellValue(ScheduleSheet, cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, cell)
	}

	counts, err := f.GetRows(CountsSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Worker", "flow", "val"},
		{"Denise", "2", "0"},
		{"Joseph", "0", "0"},
		{"Sid", "0", "5"},
		{"99", "1", "0"},
	}, counts)
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path, err := Save(dir, time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), sampleWorkbook())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Weekly_Schedule_2026-03-02.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(ScheduleSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Denise, Joseph", v)
}
