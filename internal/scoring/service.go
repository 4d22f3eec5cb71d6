package scoring

import (
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/fusion"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/websocket"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

// AuditEmitter defines the interface for recording audit events
type AuditEmitter interface {
	Emit(actor, action string, details map[string]any)
}

// WebSocketServer defines the interface for broadcasting live updates
type WebSocketServer interface {
	Broadcast(message *websocket.Message)
}

// Service wraps the scoring engine with its side channels
type Service struct {
	engine     *Engine
	emitter    AuditEmitter
	wsServer   WebSocketServer
	maxThreats int
	logger     *logger.Logger
}

// NewService creates a new scoring service. wsServer may be nil.
func NewService(engine *Engine, emitter AuditEmitter, wsServer WebSocketServer, maxThreats int, log *logger.Logger) *Service {
	return &Service{
		engine:     engine,
		emitter:    emitter,
		wsServer:   wsServer,
		maxThreats: maxThreats,
		logger:     log.Named("scoring"),
	}
}

// SubmitTrack scores one track and upserts its threat record, then
// dispatches the audit and COP-feed side effects.
func (s *Service) SubmitTrack(track *fusion.Track) (*Threat, error) {
	threat, err := s.engine.SubmitTrack(track)
	if err != nil {
		return nil, err
	}

	s.emitter.Emit("system", "THREAT_UPSERTED", map[string]any{
		"threat_id": threat.ThreatID,
		"track_id":  threat.TrackID,
		"priority":  threat.Priority,
		"score":     threat.Score,
		"rationale": threat.Rationale,
	})

	if s.wsServer != nil {
		s.wsServer.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeThreatUpserted,
			Data: map[string]any{"threat": threat},
		})
	}

	return threat, nil
}

// ListThreats returns the highest-scoring active threats
func (s *Service) ListThreats() []*Threat {
	return s.engine.ListThreats(s.maxThreats)
}

// Stats returns the engine statistics
func (s *Service) Stats() Stats {
	return s.engine.Stats()
}

// Reset clears all scoring state
func (s *Service) Reset() {
	s.engine.Reset()
}
