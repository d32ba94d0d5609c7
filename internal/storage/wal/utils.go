package wal

// ============================================================================
// WAL utilities: inspection and diagnostics over a journal file
// ============================================================================

import (
	"fmt"
	"io"
	"time"
)

// GetLastEvent returns the last event in the file, scanning from the start.
// An empty file yields ErrEmptyWAL.
func GetLastEvent(path string) (*Event, error) {
	var last *Event
	err := replayFile(path, func(e Event) error {
		ev := e
		last = &ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ErrEmptyWAL
	}
	return last, nil
}

// CountEvents counts the valid events in the file; corruption is an error.
func CountEvents(path string) (int, error) {
	n := 0
	err := replayFile(path, func(Event) error {
		n++
		return nil
	})
	return n, err
}

// ValidateWAL checks that every record decodes, every checksum matches and
// seq strictly increases.
func ValidateWAL(path string) error {
	var lastSeq uint64
	return replayFile(path, func(e Event) error {
		if e.Seq <= lastSeq {
			return fmt.Errorf("%w: seq=%d after seq=%d", ErrSequenceGap, e.Seq, lastSeq)
		}
		lastSeq = e.Seq
		return nil
	})
}

// DumpWAL writes one human-readable line per event, e.g.
//
//	[Seq:3] GENERATE at 2026-01-05T09:00:00Z (checksum:0x1a2b3c4d, 812 bytes)
func DumpWAL(path string, w io.Writer) error {
	return replayFile(path, func(e Event) error {
		ts := time.UnixMilli(e.Timestamp).UTC().Format(time.RFC3339)
		_, err := fmt.Fprintf(w, "[Seq:%d] %s at %s (checksum:0x%08x, %d bytes)\n",
			e.Seq, e.Type, ts, e.Checksum, len(e.Payload))
		return err
	})
}

// ============================================================================
// Statistics
// ============================================================================

// WALStats journal summary
type WALStats struct {
	TotalEvents int
	EventTypes  map[EventType]int
	FirstSeq    uint64
	LastSeq     uint64
	TimeRange   [2]int64 // [earliest, latest] Unix milliseconds
}

// GetWALStats scans the file and summarizes it.
func GetWALStats(path string) (*WALStats, error) {
	stats := &WALStats{EventTypes: make(map[EventType]int)}
	err := replayFile(path, func(e Event) error {
		if stats.TotalEvents == 0 {
			stats.FirstSeq = e.Seq
			stats.TimeRange[0] = e.Timestamp
		}
		stats.TotalEvents++
		stats.EventTypes[e.Type]++
		stats.LastSeq = e.Seq
		stats.TimeRange[1] = e.Timestamp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
