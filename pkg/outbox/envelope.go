package outbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// CurrentVersion is stamped on every envelope.
const CurrentVersion = 1

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and sent to
// Kafka unchanged, so consumers can route on type without reading headers.
type PayloadEnvelope struct {
	Version     int                   `json:"version"`
	EventID     string                `json:"eventId"`
	Type        enums.OutboxEventType `json:"type,omitempty"`
	AggregateID string                `json:"aggregateId,omitempty"`
	OccurredAt  time.Time             `json:"occurredAt"`
	Actor       *ActorRef             `json:"actor,omitempty"`
	Data        json.RawMessage       `json:"data"`
}

// DecodeEnvelope parses a stored payload and rejects envelopes this build
// cannot publish.
func DecodeEnvelope(raw string) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	switch {
	case env.Version < 1 || env.Version > CurrentVersion:
		return PayloadEnvelope{}, fmt.Errorf("unsupported envelope version %d", env.Version)
	case env.EventID == "":
		return PayloadEnvelope{}, fmt.Errorf("envelope without event id")
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, fmt.Errorf("envelope %s has no data", env.EventID)
	}
	return env, nil
}
