package snapshot

// ============================================================================
// Responsibilities:
// 1. Serialize the full rota state (roster, needs, current schedule, ledger)
//    to one JSON snapshot file
// 2. Atomic write (temp file + rename) so a crash never leaves half a file
// 3. Schema version check on load
// 4. Record the last journal sequence so recovery replays only what the
//    snapshot does not already contain
// ============================================================================

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ChuLiYu/shift-rota/internal/ledger"
	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// SchemaVersion current on-disk layout
const SchemaVersion = 1

// ============================================================================
// Errors
// ============================================================================

var (
	ErrCorruptedSnapshot   = errors.New("snapshot file is corrupted")
	ErrIncompatibleVersion = errors.New("snapshot schema version is incompatible")
	ErrSnapshotNotFound    = errors.New("snapshot file not found")
)

// ============================================================================
// Data
// ============================================================================

// Data everything the controller needs to come back up
type Data struct {
	SchemaVer   int              `json:"schema_ver"`
	LastSeq     uint64           `json:"last_seq"` // last journal entry folded into this snapshot
	SavedAt     int64            `json:"saved_at"` // Unix milliseconds
	DaysPerWeek int              `json:"days_per_week"`
	Roster      []types.Worker   `json:"roster"`
	Needs       types.NeedMatrix `json:"needs"`
	Schedule    types.Schedule   `json:"schedule"`
	Ledger      ledger.State     `json:"ledger"`
}

// Empty returns the first-boot state.
func Empty() Data {
	return Data{
		SchemaVer: SchemaVersion,
		Needs:     types.NeedMatrix{},
	}
}

// Manager snapshot file manager
type Manager struct {
	path string
	mu   sync.Mutex
}

// NewManager creates a manager for the snapshot at path.
func NewManager(path string) *Manager {
	return &Manager{
		path: path,
	}
}

// Write atomically replaces the snapshot.
//
// Flow:
// 1. write <path>.tmp
// 2. os.Rename over the real file
//
// Parameters:
//   - data: state to persist; SchemaVer and SavedAt are filled in here
//
// Returns:
//   - error: marshal or file-system failure
func (m *Manager) Write(data Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(data)
}

func (m *Manager) write(data Data) error {
	data.SchemaVer = SchemaVersion
	data.SavedAt = time.Now().UnixMilli()

	// indented for people who open the file by hand
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if dir := filepath.Dir(m.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot dir: %w", err)
		}
	}

	tmpPath := m.path + ".tmp"
	if err := os.WriteFile(tmpPath, jsonBytes, 0644); err != nil {
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot.
//
// Behavior:
//   - missing file returns Empty() (first boot), not an error
//   - schema version must match SchemaVersion
//   - undecodable content returns ErrCorruptedSnapshot
func (m *Manager) Load() (Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var data Data

	jsonBytes, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return data, fmt.Errorf("failed to read snapshot: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, &data); err != nil {
		return data, fmt.Errorf("%w: %v", ErrCorruptedSnapshot, err)
	}

	if data.SchemaVer != SchemaVersion {
		return data, fmt.Errorf("%w: got %d, want %d", ErrIncompatibleVersion, data.SchemaVer, SchemaVersion)
	}

	if data.Needs == nil {
		data.Needs = types.NeedMatrix{}
	}
	return data, nil
}

// Exists reports whether a snapshot file is present.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// GetPath returns the snapshot path.
func (m *Manager) GetPath() string {
	return m.path
}

// ============================================================================
// Backups
// ============================================================================

const backupInfix = ".bak."

// WriteWithBackup moves the current snapshot aside before writing and keeps
// at most keepBackups of those copies, newest first.
func (m *Manager) WriteWithBackup(data Data, keepBackups int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Exists() {
		backupPath := m.path + backupInfix + time.Now().UTC().Format("20060102T150405.000000000")
		if err := os.Rename(m.path, backupPath); err != nil {
			return fmt.Errorf("failed to backup old snapshot: %w", err)
		}
	}

	if err := m.write(data); err != nil {
		return err
	}
	return m.pruneBackups(keepBackups)
}

// Backups lists backup files, oldest first.
func (m *Manager) Backups() ([]string, error) {
	matches, err := filepath.Glob(m.path + backupInfix + "*")
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	// fixed-width timestamps sort lexically
	sort.Strings(matches)
	return matches, nil
}

func (m *Manager) pruneBackups(keep int) error {
	if keep < 0 {
		keep = 0
	}
	backups, err := m.Backups()
	if err != nil {
		return err
	}
	for len(backups) > keep {
		if err := os.Remove(backups[0]); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove old backup: %w", err)
		}
		backups = backups[1:]
	}
	return nil
}
