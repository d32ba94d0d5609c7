package cli

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ChuLiYu/shift-rota/internal/engine"
	"github.com/ChuLiYu/shift-rota/pkg/types"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD100")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	shortStyle  = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("#FF5F5F"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#0046BE"))
)

func newTable() *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle)
}

// renderSchedule draws position × day with comma-joined names. Slots below
// their need are highlighted and carry the assigned/required count.
func renderSchedule(w io.Writer, catalog types.Catalog, s types.Schedule, short []engine.Shortfall) {
	if s.IsEmpty() {
		fmt.Fprintln(w, "No schedule generated yet.")
		return
	}

	type key struct {
		p types.Position
		d types.Day
	}
	missing := make(map[key]engine.Shortfall, len(short))
	for _, sf := range short {
		missing[key{sf.Position, sf.Day}] = sf
	}

	headers := []string{"Position"}
	for _, d := range s.Days {
		headers = append(headers, string(d))
	}

	var rows [][]string
	for _, p := range catalog.AllPositions() {
		row := []string{string(p)}
		for _, d := range s.Days {
			var names []string
			for _, a := range s.At(p, d) {
				names = append(names, a.Name)
			}
			cell := strings.Join(names, ", ")
			if sf, ok := missing[key{p, d}]; ok {
				cell = fmt.Sprintf("%s (%d/%d)", cell, sf.Assigned, sf.Required)
				cell = strings.TrimSpace(cell)
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}

	t := newTable().
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(rows) && col > 0 && strings.HasSuffix(rows[row][col], ")") {
				return shortStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

// renderCounts draws worker × tracked position weeks-worked counts. Roster
// order first, then ids no longer on the roster.
func renderCounts(w io.Writer, catalog types.Catalog, counts map[types.WorkerID]map[types.Position]int, roster []types.Worker) {
	headers := []string{"Worker"}
	for _, p := range catalog.Positions {
		headers = append(headers, string(p))
	}

	names := make(map[types.WorkerID]string, len(roster))
	var ids []types.WorkerID
	for _, wk := range roster {
		names[wk.ID] = wk.Name
		ids = append(ids, wk.ID)
	}
	var former []types.WorkerID
	for id := range counts {
		if _, ok := names[id]; !ok {
			former = append(former, id)
		}
	}
	slices.Sort(former)
	ids = append(ids, former...)

	var rows [][]string
	for _, id := range ids {
		name := names[id]
		if name == "" {
			name = string(id)
		}
		row := []string{name}
		for _, p := range catalog.Positions {
			row = append(row, strconv.Itoa(counts[id][p]))
		}
		rows = append(rows, row)
	}

	t := newTable().
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

func renderShortfalls(w io.Writer, short []engine.Shortfall) {
	if len(short) == 0 {
		fmt.Fprintln(w, "All needs met.")
		return
	}
	fmt.Fprintf(w, "%d slot(s) below need:\n", len(short))
	for _, sf := range short {
		fmt.Fprintf(w, "  - %s %s: %d/%d (missing %d)\n", sf.Position, sf.Day, sf.Assigned, sf.Required, sf.Missing())
	}
}
