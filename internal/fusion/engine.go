// Package fusion implements the track fusion engine: it correlates incoming
// sensor observations into persistent tracks, first by object identity and
// then by spatial proximity, and maintains the live track set.
package fusion

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

// ErrValidation indicates a malformed observation; the request is rejected
// before any state changes.
var ErrValidation = errors.New("observation missing required fields")

// Engine owns the live track set. All mutating operations run under a single
// engine-wide mutex; callers receive deep copies, never live pointers.
type Engine struct {
	mu sync.Mutex

	tracks        map[string]*Track
	trackOrder    []string          // insertion order, pins the spatial scan
	objectToTrack map[string]string // object_id -> track_id

	stats Stats

	correlationRadiusKM float64
	confidenceStep      float64
	logger              *logger.Logger
}

// NewEngine creates a new fusion engine
func NewEngine(correlationRadiusKM, confidenceStep float64, log *logger.Logger) *Engine {
	return &Engine{
		tracks:              make(map[string]*Track),
		objectToTrack:       make(map[string]string),
		correlationRadiusKM: correlationRadiusKM,
		confidenceStep:      confidenceStep,
		logger:              log.Named("fusion-engine"),
	}
}

// SubmitObservation correlates one observation into the track set, creating
// or updating a track. The returned track is a copy taken while still under
// the lock, so downstream consumers see a consistent snapshot.
func (e *Engine) SubmitObservation(obs *Observation) (*SubmitResult, error) {
	if obs == nil || obs.Position == nil || obs.Quality == nil || obs.SensorID == "" {
		return nil, ErrValidation
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	e.stats.ObservationsIngested++
	e.stats.LastUpdateUTC = &now

	// 1) strong correlation: object_id mapping is authoritative
	matchID := ""
	if obs.ObjectID != "" {
		if mapped, ok := e.objectToTrack[obs.ObjectID]; ok {
			if _, live := e.tracks[mapped]; live {
				matchID = mapped
			}
		}
	}

	// 2) fallback correlation: spatial proximity, first match wins.
	// The scan runs in track insertion order so the outcome is reproducible.
	if matchID == "" {
		for _, tid := range e.trackOrder {
			trk := e.tracks[tid]
			d := DistanceKM(trk.State.Lat, trk.State.Lon, obs.Position.Lat, obs.Position.Lon)
			if d < e.correlationRadiusKM {
				matchID = tid
				break
			}
		}
	}

	if matchID == "" {
		track := e.createTrack(obs, now)
		e.logger.Debug("Track created",
			logger.String("track_id", track.TrackID),
			logger.String("object_id", obs.ObjectID),
			logger.String("sensor_id", obs.SensorID))
		return &SubmitResult{Track: track.Clone(), Created: true}, nil
	}

	track := e.updateTrack(e.tracks[matchID], obs, now)
	e.logger.Debug("Track updated",
		logger.String("track_id", track.TrackID),
		logger.String("sensor_id", obs.SensorID),
		logger.Float64("confidence", track.TrackConfidence))
	return &SubmitResult{Track: track.Clone(), Created: false}, nil
}

// createTrack seeds a new track from the observation. Caller holds the lock.
func (e *Engine) createTrack(obs *Observation, now time.Time) *Track {
	trackID := newTrackID()

	label := obs.Label
	if label == "" {
		label = obs.ObjectID
	}
	if label == "" {
		label = trackID
	}
	contactType := obs.ContactType
	if contactType == "" {
		contactType = ContactTypeUnknown
	}

	track := &Track{
		TrackID:         trackID,
		LastUpdateUTC:   now,
		State:           *obs.Position,
		Sources:         []string{obs.SensorID},
		TrackConfidence: clamp01(obs.Quality.Confidence),
		Label:           label,
		ContactType:     contactType,
	}

	e.tracks[trackID] = track
	e.trackOrder = append(e.trackOrder, trackID)
	e.stats.TracksCreated++

	if obs.ObjectID != "" {
		e.objectToTrack[obs.ObjectID] = trackID
	}

	return track
}

// updateTrack applies one matched observation to an existing track.
// Caller holds the lock.
func (e *Engine) updateTrack(track *Track, obs *Observation, now time.Time) *Track {
	track.State = *obs.Position
	track.LastUpdateUTC = now

	// Fixed corroboration step rather than a real filter
	track.TrackConfidence = clamp01(track.TrackConfidence + e.confidenceStep)

	if !containsString(track.Sources, obs.SensorID) {
		track.Sources = append(track.Sources, obs.SensorID)
	}

	// Last-non-empty-wins for the display hints
	if obs.Label != "" {
		track.Label = obs.Label
	}
	if obs.ContactType != "" {
		track.ContactType = obs.ContactType
	}

	e.stats.TracksUpdated++
	return track
}

// ListTracks returns the live tracks ordered newest last_update_utc first,
// capped to limit.
func (e *Engine) ListTracks(limit int) []*Track {
	e.mu.Lock()
	defer e.mu.Unlock()

	tracks := make([]*Track, 0, len(e.tracks))
	for _, tid := range e.trackOrder {
		tracks = append(tracks, e.tracks[tid].Clone())
	}

	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].LastUpdateUTC.After(tracks[j].LastUpdateUTC)
	})

	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks
}

// GetTrack returns a copy of a single track by id
func (e *Engine) GetTrack(trackID string) (*Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	track, ok := e.tracks[trackID]
	if !ok {
		return nil, false
	}
	return track.Clone(), true
}

// Stats returns the engine counters with active_tracks recomputed from the
// live set.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := e.stats
	stats.ActiveTracks = len(e.tracks)
	return stats
}

// Reset atomically clears tracks, the object index, and all counters
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tracks = make(map[string]*Track)
	e.trackOrder = nil
	e.objectToTrack = make(map[string]string)
	e.stats = Stats{}

	e.logger.Info("Fusion engine reset")
}

func newTrackID() string {
	return fmt.Sprintf("TRK-%s", uuid.NewString()[:8])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
