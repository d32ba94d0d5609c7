package wal

// ============================================================================
// Operation journal
// Responsibilities:
// 1. Append state-changing operations to a JSON-lines file (append-only)
// 2. Replay them to rebuild state after a restart
// 3. Rotate after a snapshot; the old file is archived zstd-compressed
// 4. Checksum every record
// ============================================================================

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// FileInterface the file operations the WAL needs; tests may swap it.
type FileInterface interface {
	Write(p []byte) (n int, err error)
	Sync() error
	Close() error
}

// WAL write-ahead log instance
type WAL struct {
	mu      sync.Mutex
	file    FileInterface
	encoder *json.Encoder
	path    string
	seq     uint64
	closed  bool

	buffer        []Event
	bufferSize    int
	lastFlushTime time.Time
	flushInterval time.Duration
}

// ============================================================================
// Public API
// ============================================================================

/*
NewWAL opens or creates a journal.

Behavior:
- a missing file is created and seq starts at 0
- an existing file continues from its last event's seq
- opened O_APPEND so writes never overwrite

Parameters:

	path       - journal path; parent directories are created
	bufferSize - events held in memory before a flush; <= 1 flushes on
	             every append
*/
func NewWAL(path string, bufferSize int) (*WAL, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create wal dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	var seq uint64
	if stat, statErr := file.Stat(); statErr == nil && stat.Size() > 0 {
		last, err := GetLastEvent(path)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to read last wal event: %w", err)
		}
		seq = last.Seq
	}

	if bufferSize < 1 {
		bufferSize = 1
	}
	return &WAL{
		file:          file,
		encoder:       json.NewEncoder(file),
		path:          path,
		seq:           seq,
		buffer:        make([]Event, 0, bufferSize),
		bufferSize:    bufferSize,
		lastFlushTime: time.Now(),
		flushInterval: 1 * time.Second,
	}, nil
}

// Append journals one operation.
//
// Behavior:
// - assigns the next seq
// - marshals payload and computes the checksum
// - buffers; flushes when forced, the buffer is full or the flush
//   interval has passed
//
// Returns:
//
//	the assigned seq, error
func (w *WAL) Append(eventType EventType, payload any, forceFlush bool) (uint64, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		raw = b
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrWALClosed
	}

	w.seq++
	event := Event{
		Seq:       w.seq,
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Payload:   raw,
	}
	event.Checksum = CalculateChecksum(eventType, w.seq, raw)
	w.buffer = append(w.buffer, event)

	if forceFlush || len(w.buffer) >= w.bufferSize || time.Since(w.lastFlushTime) > w.flushInterval {
		if err := w.flushLocked(); err != nil {
			return event.Seq, err
		}
	}
	return event.Seq, nil
}

// Replay walks every event on disk in order.
//
// Behavior:
// - flushes the buffer first so nothing appended is missed
// - verifies every checksum
// - stops at the first error (decode, checksum or handler)
func (w *WAL) Replay(handler EventHandler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWALClosed
	}
	if err := w.flushLocked(); err != nil {
		return err
	}
	return replayFile(w.path, handler)
}

func replayFile(path string, handler EventHandler) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	var lastSeq uint64
	for decoder.More() {
		offset := decoder.InputOffset()
		var event Event
		if err := decoder.Decode(&event); err != nil {
			return &CorruptionError{Seq: lastSeq, Offset: offset, Cause: err}
		}
		if !VerifyChecksum(event) {
			return &ChecksumError{
				Seq:      event.Seq,
				Expected: CalculateChecksum(event.Type, event.Seq, event.Payload),
				Actual:   event.Checksum,
			}
		}
		if err := handler(event); err != nil {
			return err
		}
		lastSeq = event.Seq
	}
	return nil
}

// Rotate starts a fresh file after a snapshot. The old file is archived as
// <path>.<timestamp>.zst. Seq keeps counting so a snapshot's LastSeq stays
// comparable with later events.
func (w *WAL) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWALClosed
	}
	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}

	rotated := w.path + "." + time.Now().UTC().Format("20060102T150405.000000000")
	if err := os.Rename(w.path, rotated); err != nil {
		return err
	}

	newFile, err := os.OpenFile(w.path, os.O_CREATE|os.O_RDWR|os.O_TRUNC|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	w.file = newFile
	w.encoder = json.NewEncoder(newFile)
	w.buffer = w.buffer[:0]
	w.lastFlushTime = time.Now()

	if err := compressWALFile(rotated, rotated+".zst"); err != nil {
		return fmt.Errorf("failed to archive rotated wal: %w", err)
	}
	return os.Remove(rotated)
}

// AdvanceTo raises seq to at least seq. The controller calls it with the
// snapshot's LastSeq so numbering continues after a rotation and restart.
func (w *WAL) AdvanceTo(seq uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if seq > w.seq {
		w.seq = seq
	}
}

// Flush writes buffered events and syncs.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWALClosed
	}
	return w.flushLocked()
}

// Close flushes and closes the file. A closed WAL is not reusable.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	if err := w.flushLocked(); err != nil {
		return err
	}
	w.closed = true
	return w.file.Close()
}

// GetLastSeq returns the last assigned seq.
func (w *WAL) GetLastSeq() uint64 {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// GetPath returns the journal path.
func (w *WAL) GetPath() string {
	return w.path
}

// ============================================================================
// Internal helpers
// ============================================================================

// flushLocked writes the buffer and syncs; caller holds w.mu.
func (w *WAL) flushLocked() error {
	if len(w.buffer) == 0 {
		return nil
	}
	for _, event := range w.buffer {
		if err := w.encoder.Encode(event); err != nil {
			return err
		}
	}
	w.buffer = w.buffer[:0]
	w.lastFlushTime = time.Now()
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	return nil
}

func compressWALFile(srcPath, dstPath string) error {
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	enc, err := zstd.NewWriter(dstFile)
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, srcFile); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
