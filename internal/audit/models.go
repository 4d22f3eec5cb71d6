package audit

import "time"

// Actions recorded by the platform's services
const (
	ActionObservationIngested = "OBSERVATION_INGESTED"
	ActionTrackCreated        = "TRACK_CREATED"
	ActionTrackUpdated        = "TRACK_UPDATED"
	ActionThreatUpserted      = "THREAT_UPSERTED"
)

// Event represents a single append-only audit record
type Event struct {
	EventID       string         `json:"event_id"`
	TsUTC         time.Time      `json:"ts_utc"`
	SourceService string         `json:"source_service"`
	Actor         string         `json:"actor"`
	Action        string         `json:"action"`
	Details       map[string]any `json:"details"`
}

// Storage defines the interface for audit event persistence
type Storage interface {
	Append(event *Event) error
	GetRecent(limit int) ([]*Event, error)
	Count() (int, error)
	Reset() error
}
