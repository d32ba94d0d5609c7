package wal

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

type movePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func newTestWAL(t *testing.T, bufferSize int) (*WAL, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal", "rota.wal")
	w, err := NewWAL(path, bufferSize)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w, path
}

func collect(t *testing.T, w *WAL) []Event {
	t.Helper()
	var events []Event
	require.NoError(t, w.Replay(func(e Event) error {
		events = append(events, e)
		return nil
	}))
	return events
}

// ============================================================================
// Append / Replay
// ============================================================================

func TestAppendAndReplay(t *testing.T) {
	w, _ := newTestWAL(t, 1)

	seq, err := w.Append(EventMove, movePayload{From: "flow", To: "wrap"}, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	seq, err = w.Append(EventReset, nil, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)

	events := collect(t, w)
	require.Len(t, events, 2)
	assert.Equal(t, EventMove, events[0].Type)
	assert.Equal(t, EventReset, events[1].Type)
	assert.Empty(t, events[1].Payload)

	var p movePayload
	require.NoError(t, events[0].Decode(&p))
	assert.Equal(t, movePayload{From: "flow", To: "wrap"}, p)
}

func TestReplaySeesBufferedEvents(t *testing.T) {
	w, path := newTestWAL(t, 100)

	_, err := w.Append(EventNeeds, map[string]int{"flow": 2}, false)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size(), "still buffered")

	assert.Len(t, collect(t, w), 1, "replay flushes first")
}

func TestReopenContinuesSeq(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rota.wal")
	w, err := NewWAL(path, 1)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := w.Append(EventGenerate, nil, true)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	reopened, err := NewWAL(path, 1)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, uint64(3), reopened.GetLastSeq())
	seq, err := reopened.Append(EventReset, nil, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seq)
}

func TestReplayStopsOnHandlerError(t *testing.T) {
	w, _ := newTestWAL(t, 1)
	for i := 0; i < 3; i++ {
		_, err := w.Append(EventReset, nil, false)
		require.NoError(t, err)
	}

	seen := 0
	err := w.Replay(func(e Event) error {
		seen++
		if e.Seq == 2 {
			return assert.AnError
		}
		return nil
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 2, seen)
}

// ============================================================================
// Integrity
// ============================================================================

func TestReplayDetectsChecksumMismatch(t *testing.T) {
	w, path := newTestWAL(t, 1)
	_, err := w.Append(EventMove, movePayload{From: "flow", To: "wrap"}, true)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(raw), `"wrap"`, `"bulk"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0644))

	err = w.Replay(func(Event) error { return nil })
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	var csErr *ChecksumError
	require.ErrorAs(t, err, &csErr)
	assert.Equal(t, uint64(1), csErr.Seq)
	assert.Contains(t, csErr.Error(), "seq=1")
}

func TestReplayDetectsCorruption(t *testing.T) {
	w, path := newTestWAL(t, 1)
	_, err := w.Append(EventReset, nil, true)
	require.NoError(t, err)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"seq": 2, "type": "MO`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = w.Replay(func(Event) error { return nil })
	assert.ErrorIs(t, err, ErrCorruptedWAL)
	var cErr *CorruptionError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, uint64(1), cErr.Seq)
}

func TestClosedWAL(t *testing.T) {
	w, _ := newTestWAL(t, 1)
	require.NoError(t, w.Close())

	_, err := w.Append(EventReset, nil, true)
	assert.ErrorIs(t, err, ErrWALClosed)
	assert.ErrorIs(t, w.Replay(func(Event) error { return nil }), ErrWALClosed)
	assert.NoError(t, w.Close(), "second close is harmless")
}

// ============================================================================
// Rotation
// ============================================================================

func TestRotateKeepsSeqAndArchives(t *testing.T) {
	w, path := newTestWAL(t, 1)
	for i := 0; i < 2; i++ {
		_, err := w.Append(EventGenerate, nil, false)
		require.NoError(t, err)
	}

	require.NoError(t, w.Rotate())
	assert.Empty(t, collect(t, w))

	seq, err := w.Append(EventReset, nil, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq, "numbering continues across rotation")

	archives, err := filepath.Glob(path + ".*.zst")
	require.NoError(t, err)
	require.Len(t, archives, 1)

	f, err := os.Open(archives[0])
	require.NoError(t, err)
	defer f.Close()
	zr, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()
	content, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(content, []byte("\n")))
}

func TestAdvanceTo(t *testing.T) {
	w, _ := newTestWAL(t, 1)

	w.AdvanceTo(41)
	seq, err := w.Append(EventReset, nil, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), seq)

	w.AdvanceTo(10)
	assert.Equal(t, uint64(42), w.GetLastSeq(), "never moves backwards")
}

// ============================================================================
// Utilities
// ============================================================================

func TestUtilities(t *testing.T) {
	w, path := newTestWAL(t, 1)
	_, err := w.Append(EventRoster, []string{"Denise"}, false)
	require.NoError(t, err)
	_, err = w.Append(EventGenerate, nil, false)
	require.NoError(t, err)
	_, err = w.Append(EventGenerate, nil, true)
	require.NoError(t, err)

	last, err := GetLastEvent(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last.Seq)

	n, err := CountEvents(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.NoError(t, ValidateWAL(path))

	stats, err := GetWALStats(path)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalEvents)
	assert.Equal(t, 2, stats.EventTypes[EventGenerate])
	assert.Equal(t, uint64(1), stats.FirstSeq)
	assert.Equal(t, uint64(3), stats.LastSeq)
	assert.LessOrEqual(t, stats.TimeRange[0], stats.TimeRange[1])

	var buf bytes.Buffer
	require.NoError(t, DumpWAL(path, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "[Seq:1] ROSTER at "))
}

func TestGetLastEventEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wal")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, err := GetLastEvent(path)
	assert.ErrorIs(t, err, ErrEmptyWAL)
}

func TestValidateWALSequenceGap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gap.wal")
	var buf bytes.Buffer
	for _, seq := range []uint64{1, 3, 3} {
		e := Event{Seq: seq, Type: EventReset}
		e.Checksum = CalculateChecksum(e.Type, e.Seq, nil)
		line, err := jsonLine(e)
		require.NoError(t, err)
		buf.Write(line)
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	assert.ErrorIs(t, ValidateWAL(path), ErrSequenceGap)
}

func jsonLine(e Event) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
