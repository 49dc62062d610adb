package outbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the versioned wrapper stored in outbox_events.payload and
// carried verbatim onto the message bus.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeData unmarshals the envelope's data section into the typed payload.
// Empty or null data is an error; every event carries a body.
func (e PayloadEnvelope) DecodeData(into any) error {
	trimmed := bytes.TrimSpace(e.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("envelope data is empty")
	}
	if err := json.Unmarshal(e.Data, into); err != nil {
		return fmt.Errorf("decode envelope data: %w", err)
	}
	return nil
}
