package wal

// ============================================================================
// WAL Error Definitions
// ============================================================================

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptedWAL a line could not be decoded
	ErrCorruptedWAL = errors.New("wal: file is corrupted")

	// ErrChecksumMismatch an event's checksum does not match its content
	ErrChecksumMismatch = errors.New("wal: checksum mismatch")

	// ErrEmptyWAL the file holds no events
	ErrEmptyWAL = errors.New("wal: file is empty")

	// ErrWALClosed operation on a closed WAL
	ErrWALClosed = errors.New("wal: already closed")

	// ErrSyncFailed fsync failed
	ErrSyncFailed = errors.New("wal: sync to disk failed")

	// ErrSequenceGap ValidateWAL found a non-increasing seq
	ErrSequenceGap = errors.New("wal: sequence not increasing")
)

// ChecksumError checksum failure with detail
type ChecksumError struct {
	Seq      uint64 // sequence number of the failed event
	Expected uint32 // checksum computed from the content
	Actual   uint32 // checksum stored in the record
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("wal: checksum mismatch at seq=%d (expected=0x%08x, got=0x%08x)", e.Seq, e.Expected, e.Actual)
}

func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

// CorruptionError undecodable record
type CorruptionError struct {
	Seq    uint64 // last good sequence number before the failure
	Offset int64  // byte offset in the file
	Cause  error  // underlying decode error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("wal: corrupted record after seq=%d at offset %d: %v", e.Seq, e.Offset, e.Cause)
}

func (e *CorruptionError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrCorruptedWAL) match.
func (e *CorruptionError) Is(target error) bool {
	return target == ErrCorruptedWAL
}
