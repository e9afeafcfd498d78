package natsadapter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
)

// Subject layout for agent position events.
const (
	PositionSubjectPrefix = "crm.agent.position."
	PositionSubjectAll    = PositionSubjectPrefix + ">"
	positionStream        = "AGENT_POSITIONS"
)

// PositionEvent is the wire form of an accepted position report. Origin
// identifies the publishing replica so it can ignore its own echo.
type PositionEvent struct {
	EventID    string    `json:"event_id"`
	Origin     string    `json:"origin"`
	AgentID    int64     `json:"user_id"`
	Name       string    `json:"name,omitempty"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

// PositionSubject returns the subject a position of agentID is published on.
func PositionSubject(agentID int64) string {
	return PositionSubjectPrefix + strconv.FormatInt(agentID, 10)
}

// NewPositionEvent wraps pos in an event with a fresh id.
func NewPositionEvent(origin string, pos domain.AgentPosition) PositionEvent {
	return PositionEvent{
		EventID:    uuid.NewString(),
		Origin:     origin,
		AgentID:    pos.AgentID,
		Name:       pos.Name,
		Latitude:   pos.Point.Lat,
		Longitude:  pos.Point.Lon,
		RecordedAt: pos.RecordedAt.UTC(),
	}
}

// Position converts the event back to a domain position.
func (e PositionEvent) Position() domain.AgentPosition {
	return domain.AgentPosition{
		AgentID:    e.AgentID,
		Name:       e.Name,
		Point:      domain.GeoPoint{Lat: e.Latitude, Lon: e.Longitude},
		RecordedAt: e.RecordedAt,
	}
}

// DecodePositionEvent parses a message body.
func DecodePositionEvent(data []byte) (PositionEvent, error) {
	var e PositionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("decode position event: %w", err)
	}
	if e.AgentID == 0 || e.RecordedAt.IsZero() {
		return e, fmt.Errorf("decode position event: missing user_id or recorded_at")
	}
	return e, nil
}
