package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncKind says what a sync message points at.
type SyncKind string

const (
	// SyncRow mirrors one appended row.
	SyncRow SyncKind = "row"
	// SyncBatch mirrors one edit batch.
	SyncBatch SyncKind = "batch"
)

// SyncMessage is a lightweight pointer to something written to the local
// database. The worker loads the full row or batch by RefID.
type SyncMessage struct {
	ID        string    `json:"id"`
	Kind      SyncKind  `json:"kind"`
	RefID     int64     `json:"ref_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSyncMessage creates a message with a fresh id.
func NewSyncMessage(kind SyncKind, refID int64) *SyncMessage {
	return &SyncMessage{
		ID:        uuid.NewString(),
		Kind:      kind,
		RefID:     refID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncMessageFromJSON decodes and checks a message.
func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind != SyncRow && msg.Kind != SyncBatch {
		return nil, fmt.Errorf("unknown sync kind %q", msg.Kind)
	}
	if msg.RefID <= 0 {
		return nil, fmt.Errorf("invalid ref id %d", msg.RefID)
	}
	return &msg, nil
}
