package events

import (
	"encoding/json"
	"time"
)

// Event types published on the hub.
const (
	TypePing            = "ping"
	TypeSessionStarted  = "session_started"
	TypeTermStarted     = "term_started"
	TypeTermFailed      = "term_failed"
	TypeLeadCaptured    = "lead_captured"
	TypeLeadDuplicate   = "lead_duplicate"
	TypeLeadInvalid     = "lead_invalid"
	TypeLeadDelivered   = "lead_delivered"
	TypeLeadFailed      = "lead_failed"
	TypeSessionFinished = "session_finished"
	TypeLeadDeleted     = "lead_deleted"
	TypeConfigUpdated   = "config_updated"
)

// Version of the envelope; bump when Data shapes change incompatibly.
const Version = 1

// Event is the envelope every SSE message carries.
type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Encode renders one event as a single JSON line. Data that cannot be
// marshaled is dropped rather than failing the publish.
func Encode(reqID, typ string, data any) string {
	e := Event{Type: typ, Version: Version, At: time.Now().UTC(), RequestID: reqID}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			e.Data = b
		}
	}
	b, _ := json.Marshal(e)
	return string(b)
}

func Decode(s string) (Event, error) {
	var e Event
	err := json.Unmarshal([]byte(s), &e)
	return e, err
}
