package snapshot

// ============================================================================
// Snapshot manager tests: atomic write, load, version check, error handling
// ============================================================================

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/shift-rota/internal/ledger"
	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

var testPositions = []types.Position{"flow", "receiving", "wrap"}

func sampleData(lastSeq uint64) Data {
	days := []types.Day{"Mon", "Tue"}
	s := types.NewSchedule(append(testPositions, "off"), days)
	s.Append("flow", "Mon", types.Assignee{ID: "1", Name: "Denise"})
	s.Append("wrap", "Tue", types.Assignee{ID: "2", Name: "Joseph"})

	l := ledger.New(testPositions, 6)
	l.RecordWeek(s)

	needs := types.NeedMatrix{}
	needs.Set("flow", "Mon", 2)

	return Data{
		LastSeq:     lastSeq,
		DaysPerWeek: 5,
		Roster: []types.Worker{
			{ID: "1", Name: "Denise", Preferences: []types.Position{"flow", "receiving", "wrap"}},
			{ID: "2", Name: "Joseph", Preferences: []types.Position{"wrap"}, LockedTo: "wrap"},
		},
		Needs:    needs,
		Schedule: s,
		Ledger:   l.State(),
	}
}

// ============================================================================
// Basics
// ============================================================================

func TestNewManager(t *testing.T) {
	manager := NewManager("test_snapshot.json")
	assert.NotNil(t, manager)
	assert.Equal(t, "test_snapshot.json", manager.GetPath())
}

func TestWriteAndLoad(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "state.json")
	manager := NewManager(snapshotPath)

	original := sampleData(100)
	require.NoError(t, manager.Write(original))

	loaded, err := manager.Load()
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, loaded.SchemaVer)
	assert.Equal(t, uint64(100), loaded.LastSeq)
	assert.NotZero(t, loaded.SavedAt)
	assert.Equal(t, 5, loaded.DaysPerWeek)
	assert.Equal(t, original.Roster, loaded.Roster)
	assert.Equal(t, original.Needs, loaded.Needs)
	assert.Equal(t, original.Schedule, loaded.Schedule)

	restored := ledger.Restore(loaded.Ledger, testPositions, 6)
	assert.Equal(t, 1, restored.Count("1", "flow"))
	assert.Equal(t, 1, restored.Len())
}

func TestWriteCreatesParentDir(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "data", "nested", "state.json")
	manager := NewManager(snapshotPath)

	require.NoError(t, manager.Write(sampleData(1)))
	assert.True(t, manager.Exists())
}

func TestAtomicWrite(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "state.json")
	manager := NewManager(snapshotPath)

	require.NoError(t, manager.Write(sampleData(50)))

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		assert.NoError(t, manager.Write(sampleData(100)))
	}()

	var loaded Data
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		data, err := manager.Load()
		assert.NoError(t, err)
		loaded = data
	}()

	wg.Wait()

	// either the old or the new snapshot, never half of one
	assert.True(t, loaded.LastSeq == 50 || loaded.LastSeq == 100,
		"should load either old (50) or new (100) snapshot, got %d", loaded.LastSeq)

	_, err := os.Stat(snapshotPath + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should not exist after write")
}

func TestExists(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "state.json"))

	assert.False(t, manager.Exists())
	require.NoError(t, manager.Write(Empty()))
	assert.True(t, manager.Exists())
}

// ============================================================================
// Error handling
// ============================================================================

func TestFirstBoot(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "missing.json"))

	loaded, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, loaded.SchemaVer)
	assert.Equal(t, uint64(0), loaded.LastSeq)
	assert.NotNil(t, loaded.Needs)
	assert.Empty(t, loaded.Roster)
	assert.True(t, loaded.Schedule.IsEmpty())
}

func TestVersionMismatch(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "state.json")
	manager := NewManager(snapshotPath)

	invalid := Empty()
	invalid.SchemaVer = 2
	jsonBytes, err := json.MarshalIndent(invalid, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(snapshotPath, jsonBytes, 0644))

	_, err = manager.Load()
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestCorrupted(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "state.json")
	manager := NewManager(snapshotPath)

	corruptedJSON := `{"schema_ver": 1, "roster": [{"id": "1", "name": "Den`
	require.NoError(t, os.WriteFile(snapshotPath, []byte(corruptedJSON), 0644))

	_, err := manager.Load()
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptedSnapshot)
}

func TestWriteFailure(t *testing.T) {
	tempDir := t.TempDir()

	// a regular file where the parent directory should be
	blocker := filepath.Join(tempDir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	manager := NewManager(filepath.Join(blocker, "state.json"))
	assert.Error(t, manager.Write(Empty()))
}

// ============================================================================
// Backups
// ============================================================================

func TestWriteWithBackup(t *testing.T) {
	tempDir := t.TempDir()
	snapshotPath := filepath.Join(tempDir, "state.json")
	manager := NewManager(snapshotPath)

	require.NoError(t, manager.Write(sampleData(50)))
	require.NoError(t, manager.WriteWithBackup(sampleData(100), 3))

	loaded, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), loaded.LastSeq)

	backups, err := manager.Backups()
	require.NoError(t, err)
	require.Len(t, backups, 1)

	old, err := NewManager(backups[0]).Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(50), old.LastSeq)
}

func TestWriteWithBackup_PrunesOldest(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "state.json")
	manager := NewManager(snapshotPath)

	for i := 1; i <= 5; i++ {
		require.NoError(t, manager.WriteWithBackup(sampleData(uint64(i)), 2))
	}

	backups, err := manager.Backups()
	require.NoError(t, err)
	require.Len(t, backups, 2)

	// the two newest backups hold seq 3 and 4; 5 is the live file
	for i, path := range backups {
		data, err := NewManager(path).Load()
		require.NoError(t, err)
		assert.Equal(t, uint64(i+3), data.LastSeq, "backup %s", path)
	}
}

// ============================================================================
// Concurrency
// ============================================================================

func TestConcurrentWrites(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "state.json"))

	numGoroutines := 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(index int) {
			defer wg.Done()
			data := sampleData(uint64(index))
			data.Roster[0].Name = fmt.Sprintf("writer-%d", index)
			assert.NoError(t, manager.Write(data))
		}(i)
	}

	wg.Wait()

	loaded, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, loaded.SchemaVer)
	assert.Len(t, loaded.Roster, 2)
}

func TestConcurrentReads(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, manager.Write(sampleData(100)))

	numGoroutines := 20
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			loaded, err := manager.Load()
			assert.NoError(t, err)
			assert.Equal(t, uint64(100), loaded.LastSeq)
			assert.Len(t, loaded.Roster, 2)
		}()
	}

	wg.Wait()
}

// ============================================================================
// Benchmarks
// ============================================================================

func BenchmarkWrite(b *testing.B) {
	manager := NewManager(filepath.Join(b.TempDir(), "benchmark_snapshot.json"))
	data := sampleData(100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = manager.Write(data)
	}
}

func BenchmarkLoad(b *testing.B) {
	manager := NewManager(filepath.Join(b.TempDir(), "benchmark_snapshot.json"))
	_ = manager.Write(sampleData(100))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = manager.Load()
	}
}
