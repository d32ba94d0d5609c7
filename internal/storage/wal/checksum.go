package wal

// ============================================================================
// Checksums
// Responsibility: compute and verify the CRC32 of an event
// ============================================================================

import (
	"hash/crc32"
	"strconv"
)

// CalculateChecksum returns the CRC32-IEEE of type, seq and payload.
// Timestamp is left out.
func CalculateChecksum(eventType EventType, seq uint64, payload []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write([]byte(eventType))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(seq, 10)))
	h.Write([]byte{0})
	h.Write(payload)
	return h.Sum32()
}

// VerifyChecksum reports whether event's stored checksum matches.
func VerifyChecksum(event Event) bool {
	return event.Checksum == CalculateChecksum(event.Type, event.Seq, event.Payload)
}
