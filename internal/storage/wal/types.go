package wal

import "encoding/json"

// ============================================================================
// WAL Type Definitions
// Responsibility: core records of the operation journal
// ============================================================================

// EventType kind of state-changing operation
type EventType string

const (
	EventRoster   EventType = "ROSTER"   // roster replaced
	EventNeeds    EventType = "NEEDS"    // need matrix replaced
	EventDays     EventType = "DAYS"     // days per week changed
	EventGenerate EventType = "GENERATE" // a week was generated
	EventMove     EventType = "MOVE"     // manual move applied
	EventReset    EventType = "RESET"    // current schedule cleared
)

// Event one journal record, one JSON object per line
type Event struct {
	Seq       uint64          `json:"seq"`       // monotonically increasing, survives rotation
	Type      EventType       `json:"type"`      // operation kind
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
	Payload   json.RawMessage `json:"payload,omitempty"`
	Checksum  uint32          `json:"checksum"` // CRC32 over type, seq and payload
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// EventHandler applies one replayed event to in-memory state.
// A non-nil error aborts the replay.
type EventHandler func(event Event) error
