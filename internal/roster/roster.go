// ============================================================================
// Roster and need inputs
// ============================================================================
//
// Package: internal/roster
// Purpose: read the roster and the need matrix from YAML files, and turn a
//          pasted spreadsheet column (one worker per line) into a roster.
//
// Labels are kept as written; the controller resolves them against the
// catalog and refuses unknown ones.
//
// Roster file:
//
//   workers:
//     - id: "1"
//       name: Denise
//       preferences: [Receiving, Direct Sorting, Re-pack]
//     - id: "19"
//       name: Sid
//       preferences: [VAL, Re-pack, Wrap]
//       locked_to: VAL
//       availability: {Sat: false}
//
// Needs file (every_day is expanded first, per-day entries override it):
//
//   every_day:
//     receiving: 3
//   days:
//     flow: {Mon: 2, Tue: 1}
// ============================================================================

package roster

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// Sentinel errors
var (
	ErrEmptyRoster = errors.New("roster is empty")
	ErrDuplicateID = errors.New("duplicate worker id")
)

// PreferenceSlots number of ranked preferences a pasted row carries
const PreferenceSlots = 3

// File on-disk roster
type File struct {
	Workers []types.Worker `yaml:"workers"`
}

// NeedsFile on-disk need matrix
type NeedsFile struct {
	EveryDay map[types.Position]int               `yaml:"every_day,omitempty"`
	Days     map[types.Position]map[types.Day]int `yaml:"days,omitempty"`
}

// LoadRoster reads a roster file.
func LoadRoster(path string) ([]types.Worker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster %s: %w", path, err)
	}
	return ParseRoster(data)
}

// ParseRoster decodes roster YAML. Ids must be unique; a row without an id
// gets its 1-based row number.
func ParseRoster(data []byte) ([]types.Worker, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	if len(f.Workers) == 0 {
		return nil, ErrEmptyRoster
	}

	seen := make(map[types.WorkerID]bool, len(f.Workers))
	for i := range f.Workers {
		w := &f.Workers[i]
		if w.ID == "" {
			w.ID = types.WorkerID(strconv.Itoa(i + 1))
		}
		if seen[w.ID] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, w.ID)
		}
		seen[w.ID] = true
	}
	return f.Workers, nil
}

// SaveRoster writes roster to path atomically.
func SaveRoster(path string, roster []types.Worker) error {
	data, err := yaml.Marshal(File{Workers: roster})
	if err != nil {
		return fmt.Errorf("failed to marshal roster: %w", err)
	}
	return writeAtomic(path, data)
}

// LoadNeeds reads a needs file; every_day targets apply to each of days.
func LoadNeeds(path string, days []types.Day) (types.NeedMatrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read needs %s: %w", path, err)
	}
	return ParseNeeds(data, days)
}

// ParseNeeds decodes needs YAML. Negative targets are refused.
func ParseNeeds(data []byte, days []types.Day) (types.NeedMatrix, error) {
	var f NeedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse needs: %w", err)
	}

	needs := types.NeedMatrix{}
	for p, v := range f.EveryDay {
		if v < 0 {
			return nil, fmt.Errorf("negative target %d for %s", v, p)
		}
		for _, d := range days {
			needs.Set(p, d, v)
		}
	}
	for p, row := range f.Days {
		for d, v := range row {
			if v < 0 {
				return nil, fmt.Errorf("negative target %d for %s/%s", v, p, d)
			}
			needs.Set(p, d, v)
		}
	}
	return needs, nil
}

// SaveNeeds writes needs as per-day entries.
func SaveNeeds(path string, needs types.NeedMatrix) error {
	data, err := yaml.Marshal(NeedsFile{Days: needs})
	if err != nil {
		return fmt.Errorf("failed to marshal needs: %w", err)
	}
	return writeAtomic(path, data)
}

// ============================================================================
// Paste import
// ============================================================================

// PasteOptions how pasted rows are completed
type PasteOptions struct {
	LockedNames []string       // rows with these names are locked
	LockTo      types.Position // position the locked rows go to
}

var fieldSep = regexp.MustCompile(`[\t,]+`)

// ParsePaste turns pasted lines into workers. Each non-blank line is
// "name, pref1, pref2, pref3" split on commas or tabs. A missing name
// becomes EmpN (N = row number), missing preferences become the wildcard.
// Ids are the row numbers.
func ParsePaste(text string, opts PasteOptions) []types.Worker {
	var out []types.Worker
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		idx := len(out) + 1

		parts := fieldSep.Split(line, -1)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field := func(i int) string {
			if i < len(parts) {
				return parts[i]
			}
			return ""
		}

		name := field(0)
		if name == "" {
			name = fmt.Sprintf("Emp%d", idx)
		}
		prefs := make([]types.Position, PreferenceSlots)
		for i := range prefs {
			prefs[i] = types.AnyPosition
			if v := field(i + 1); v != "" {
				prefs[i] = types.Position(v)
			}
		}

		w := types.Worker{
			ID:          types.WorkerID(strconv.Itoa(idx)),
			Name:        name,
			Preferences: prefs,
		}
		if opts.LockTo != "" && slices.ContainsFunc(opts.LockedNames, func(n string) bool {
			return types.NormalizeLabel(n) == types.NormalizeLabel(name)
		}) {
			w.LockedTo = opts.LockTo
		}
		out = append(out, w)
	}
	return out
}

func writeAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}
