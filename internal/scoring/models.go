package scoring

import (
	"strings"
	"time"

	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/fusion"
)

// Threat priorities
const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
)

// Recommended actions, one per priority
const (
	ActionTrack    = "TRACK"
	ActionReview   = "REVIEW"
	ActionEscalate = "ESCALATE"
)

// Threat is the assessment record derived from one track. Exactly one threat
// exists per track that has ever been scored; re-scoring overwrites every
// mutable field.
type Threat struct {
	ThreatID          string          `json:"threat_id"`
	TrackID           string          `json:"track_id"`
	Label             string          `json:"label"`
	ContactType       string          `json:"contact_type"`
	Priority          string          `json:"priority"`
	Score             float64         `json:"score"`
	Rationale         []string        `json:"rationale"`
	RecommendedAction string          `json:"recommended_action"`
	LastUpdateUTC     time.Time       `json:"last_update_utc"`

	// Display-only snapshot of the triggering track's state; the fusion
	// engine remains authoritative for positions.
	State fusion.Position `json:"state"`
}

// Clone returns a deep copy of the threat
func (t *Threat) Clone() *Threat {
	clone := *t
	clone.Rationale = make([]string, len(t.Rationale))
	copy(clone.Rationale, t.Rationale)
	return &clone
}

// Assessment is the output of one classification
type Assessment struct {
	Score     float64
	Rationale []string
	Priority  string
	Action    string
}

// Stats holds the scoring engine's running counters. ActiveThreats and
// ByPriority are recomputed from the live threat set on every read.
type Stats struct {
	TracksReceived int            `json:"tracks_received"`
	ThreatsEmitted int            `json:"threats_emitted"`
	ActiveThreats  int            `json:"active_threats"`
	ByPriority     map[string]int `json:"by_priority"`
	LastUpdateUTC  *time.Time     `json:"last_update_utc"`
}

// ThreatIDForTrack derives the deterministic threat id for a track id:
// a TRK- prefix becomes THR-, anything else gets THR- prepended whole.
func ThreatIDForTrack(trackID string) string {
	if strings.HasPrefix(trackID, "TRK-") {
		return "THR-" + strings.TrimPrefix(trackID, "TRK-")
	}
	return "THR-" + trackID
}
