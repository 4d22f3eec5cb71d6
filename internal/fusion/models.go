package fusion

import (
	"time"
)

// Contact type classifications carried on observations and tracks
const (
	ContactTypeAir     = "AIR"
	ContactTypeSea     = "SEA"
	ContactTypeBenign  = "BENIGN"
	ContactTypeUnknown = "UNKNOWN"
)

// Position represents a geographic position
type Position struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	AltM float64 `json:"alt_m"`
}

// Velocity represents a velocity vector in meters per second
type Velocity struct {
	VX float64 `json:"vx_mps"`
	VY float64 `json:"vy_mps"`
	VZ float64 `json:"vz_mps"`
}

// Signature represents sensor signature measurements
type Signature struct {
	RCS float64 `json:"rcs"`
	IR  float64 `json:"ir"`
}

// Quality represents the measurement quality reported by the sensor
type Quality struct {
	SNRdB      float64 `json:"snr_db"`
	Confidence float64 `json:"confidence"`
}

// Observation is a single transient sensor report. It is consumed once per
// submit call and never stored.
type Observation struct {
	ObservationID string         `json:"observation_id"`
	SensorType    string         `json:"sensor_type"`
	SensorID      string         `json:"sensor_id"`
	TsUTC         string         `json:"ts_utc"`
	Position      *Position      `json:"position"`
	Velocity      *Velocity      `json:"velocity"`
	Signature     *Signature     `json:"signature,omitempty"`
	Quality       *Quality       `json:"quality"`
	ObjectID      string         `json:"object_id,omitempty"`
	Label         string         `json:"label,omitempty"`
	ContactType   string         `json:"contact_type,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Track is a persistent fused entity representing one physical contact.
// TrackID is generated once at creation and never changes.
type Track struct {
	TrackID         string    `json:"track_id"`
	LastUpdateUTC   time.Time `json:"last_update_utc"`
	State           Position  `json:"state"`
	Sources         []string  `json:"sources"`
	TrackConfidence float64   `json:"track_confidence"`
	Label           string    `json:"label"`
	ContactType     string    `json:"contact_type"`
}

// Clone returns a deep copy of the track, safe to use outside the engine lock
func (t *Track) Clone() *Track {
	clone := *t
	clone.Sources = make([]string, len(t.Sources))
	copy(clone.Sources, t.Sources)
	return &clone
}

// Stats holds the fusion engine's running counters. ActiveTracks is
// recomputed from the live track set on every read rather than maintained
// incrementally.
type Stats struct {
	ObservationsIngested int        `json:"observations_ingested"`
	TracksCreated        int        `json:"tracks_created"`
	TracksUpdated        int        `json:"tracks_updated"`
	ActiveTracks         int        `json:"active_tracks"`
	LastUpdateUTC        *time.Time `json:"last_update_utc"`
}

// SubmitResult is the outcome of one observation submission
type SubmitResult struct {
	Track   *Track
	Created bool
}
