package fusion

import (
	"context"
	"time"

	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/websocket"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

// AuditEmitter defines the interface for recording audit events
type AuditEmitter interface {
	Emit(actor, action string, details map[string]any)
}

// ThreatSubmitter defines the interface for pushing a fused track downstream
// to the threat scoring service
type ThreatSubmitter interface {
	SubmitTrack(ctx context.Context, track *Track, bearerToken string) error
}

// WebSocketServer defines the interface for broadcasting live updates
type WebSocketServer interface {
	Broadcast(message *websocket.Message)
}

// Service wraps the fusion engine with its side channels: audit emission,
// the downstream push to scoring, and the live COP feed. The engine mutation
// is the only fail-closed step; every side effect runs after the mutation
// commits and its failure is swallowed.
type Service struct {
	engine      *Engine
	emitter     AuditEmitter
	scoring     ThreatSubmitter
	wsServer    WebSocketServer
	pushTimeout time.Duration
	maxTracks   int
	logger      *logger.Logger
}

// NewService creates a new fusion service. scoring and wsServer may be nil,
// which disables the corresponding side channel.
func NewService(engine *Engine, emitter AuditEmitter, scoring ThreatSubmitter, wsServer WebSocketServer, pushTimeout time.Duration, maxTracks int, log *logger.Logger) *Service {
	return &Service{
		engine:      engine,
		emitter:     emitter,
		scoring:     scoring,
		wsServer:    wsServer,
		pushTimeout: pushTimeout,
		maxTracks:   maxTracks,
		logger:      log.Named("fusion"),
	}
}

// SubmitObservation runs one observation through the engine and dispatches
// the side effects. The track id is returned synchronously regardless of
// whether the downstream push succeeds.
func (s *Service) SubmitObservation(ctx context.Context, obs *Observation, bearerToken string) (*SubmitResult, error) {
	result, err := s.engine.SubmitObservation(obs)
	if err != nil {
		return nil, err
	}

	track := result.Track
	action := "TRACK_UPDATED"
	wsType := websocket.MessageTypeTrackUpdated
	if result.Created {
		action = "TRACK_CREATED"
		wsType = websocket.MessageTypeTrackCreated
	}

	s.emitter.Emit("system", action, map[string]any{
		"track_id":     track.TrackID,
		"object_id":    obs.ObjectID,
		"label":        track.Label,
		"contact_type": track.ContactType,
	})

	if s.wsServer != nil {
		s.wsServer.Broadcast(&websocket.Message{
			Type: wsType,
			Data: map[string]any{"track": track},
		})
	}

	if s.scoring != nil {
		go s.pushToScoring(track, bearerToken)
	}

	return result, nil
}

// pushToScoring makes a single best-effort attempt to hand the track to the
// scoring service. Errors are logged and discarded; fusion correctness does
// not depend on scoring availability.
func (s *Service) pushToScoring(track *Track, bearerToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.pushTimeout)
	defer cancel()

	if err := s.scoring.SubmitTrack(ctx, track, bearerToken); err != nil {
		s.logger.Warn("Track push to scoring failed",
			logger.Error(err),
			logger.String("track_id", track.TrackID))
	}
}

// ListTracks returns the most recently updated tracks
func (s *Service) ListTracks() []*Track {
	return s.engine.ListTracks(s.maxTracks)
}

// GetTrack returns a single track by id
func (s *Service) GetTrack(trackID string) (*Track, bool) {
	return s.engine.GetTrack(trackID)
}

// Stats returns the engine statistics
func (s *Service) Stats() Stats {
	return s.engine.Stats()
}

// Reset clears all fusion state
func (s *Service) Reset() {
	s.engine.Reset()
}
