package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/audit"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/auth"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/config"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/fusion"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/ingest"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/scenario"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/scoring"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/websocket"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	ingestService   *ingest.Service
	fusionService   *fusion.Service
	scoringService  *scoring.Service
	auditService    *audit.Service
	scenarioService *scenario.Service
	verifier        *auth.Verifier
	config          *config.Config
	logger          *logger.Logger
	wsServer        *websocket.Server
	startedAt       time.Time
}

// NewHandler creates a new API handler
func NewHandler(ingestService *ingest.Service, fusionService *fusion.Service, scoringService *scoring.Service, auditService *audit.Service, scenarioService *scenario.Service, verifier *auth.Verifier, config *config.Config, logger *logger.Logger, wsServer *websocket.Server) *Handler {
	return &Handler{
		ingestService:   ingestService,
		fusionService:   fusionService,
		scoringService:  scoringService,
		auditService:    auditService,
		scenarioService: scenarioService,
		verifier:        verifier,
		config:          config,
		logger:          logger.Named("api-handler"),
		wsServer:        wsServer,
		startedAt:       time.Now().UTC(),
	}
}

// IssueToken issues a demo bearer token for the given subject and role
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
		Role    string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Subject == "" || req.Role == "" {
		http.Error(w, "subject and role are required", http.StatusBadRequest)
		return
	}

	allowed := false
	for _, role := range h.config.Auth.IngestRoles {
		if req.Role == role {
			allowed = true
			break
		}
	}
	if !allowed {
		http.Error(w, "Unknown role", http.StatusBadRequest)
		return
	}

	token, err := h.verifier.IssueToken(req.Subject, req.Role)
	if err != nil {
		h.logger.Error("Failed to issue token", logger.Error(err))
		http.Error(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Issued token",
		logger.String("subject", req.Subject),
		logger.String("role", req.Role))

	WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   h.config.Auth.TokenTTLSeconds,
	})
}

// SubmitObservation is the authenticated sensor-ingest front door. The
// observation is validated, audited, and forwarded to fusion with the
// caller's token.
func (h *Handler) SubmitObservation(w http.ResponseWriter, r *http.Request) {
	var obs fusion.Observation
	if err := json.NewDecoder(r.Body).Decode(&obs); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	claims, _ := auth.ClaimsFromContext(r.Context())
	token, _ := auth.TokenFromContext(r.Context())
	subject := ""
	if claims != nil {
		subject = claims.Subject
	}

	if err := h.ingestService.SubmitObservation(r.Context(), &obs, subject, token); err != nil {
		if errors.Is(err, ingest.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":         "accepted",
		"observation_id": obs.ObservationID,
	})
}

// SubmitFusionObservation runs one observation through the fusion engine
// and returns the resulting track id synchronously.
func (h *Handler) SubmitFusionObservation(w http.ResponseWriter, r *http.Request) {
	var obs fusion.Observation
	if err := json.NewDecoder(r.Body).Decode(&obs); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, _ := auth.TokenFromContext(r.Context())
	result, err := h.fusionService.SubmitObservation(r.Context(), &obs, token)
	if err != nil {
		if errors.Is(err, fusion.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Fusion submit failed", logger.Error(err))
		http.Error(w, "Failed to process observation", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"track_id": result.Track.TrackID,
		"created":  result.Created,
	})
}

// GetTracks returns the most recently updated tracks
func (h *Handler) GetTracks(w http.ResponseWriter, r *http.Request) {
	tracks := h.fusionService.ListTracks()
	WriteJSON(w, http.StatusOK, map[string]any{
		"count":  len(tracks),
		"tracks": tracks,
	})
}

// GetTrack returns a single track by id
func (h *Handler) GetTrack(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")
	track, ok := h.fusionService.GetTrack(trackID)
	if !ok {
		http.Error(w, "Track not found", http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, track)
}

// GetFusionStats returns the fusion engine statistics
func (h *Handler) GetFusionStats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.fusionService.Stats())
}

// ResetFusion clears all fusion state
func (h *Handler) ResetFusion(w http.ResponseWriter, r *http.Request) {
	h.fusionService.Reset()
	h.logger.Info("Fusion state reset")
	WriteJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// SubmitTrack scores one fused track and upserts its threat record
func (h *Handler) SubmitTrack(w http.ResponseWriter, r *http.Request) {
	var track fusion.Track
	if err := json.NewDecoder(r.Body).Decode(&track); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	threat, err := h.scoringService.SubmitTrack(&track)
	if err != nil {
		if errors.Is(err, scoring.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Rule set load and classification failures are hard errors: no
		// threat state was touched.
		h.logger.Error("Track scoring failed", logger.Error(err))
		http.Error(w, "Failed to score track", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, threat)
}

// GetThreats returns the highest-scoring active threats
func (h *Handler) GetThreats(w http.ResponseWriter, r *http.Request) {
	threats := h.scoringService.ListThreats()
	WriteJSON(w, http.StatusOK, map[string]any{
		"count":   len(threats),
		"threats": threats,
	})
}

// GetScoringStats returns the scoring engine statistics
func (h *Handler) GetScoringStats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.scoringService.Stats())
}

// ResetScoring clears all scoring state
func (h *Handler) ResetScoring(w http.ResponseWriter, r *http.Request) {
	h.scoringService.Reset()
	h.logger.Info("Scoring state reset")
	WriteJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// AppendAuditEvent is the audit sink: it stores one event emitted by a
// platform service.
func (h *Handler) AppendAuditEvent(w http.ResponseWriter, r *http.Request) {
	var event audit.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.auditService.Append(&event); err != nil {
		h.logger.Error("Failed to store audit event", logger.Error(err))
		http.Error(w, "Failed to store event", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"status": "stored"})
}

// GetAuditEvents returns the most recent audit events, newest first
func (h *Handler) GetAuditEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.auditService.GetRecent(h.config.Audit.MaxEventsInAPI)
	if err != nil {
		h.logger.Error("Failed to read audit events", logger.Error(err))
		http.Error(w, "Failed to read events", http.StatusInternalServerError)
		return
	}

	count, err := h.auditService.Count()
	if err != nil {
		h.logger.Error("Failed to count audit events", logger.Error(err))
		http.Error(w, "Failed to read events", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"total":  count,
		"events": events,
	})
}

// ResetAudit clears the audit log
func (h *Handler) ResetAudit(w http.ResponseWriter, r *http.Request) {
	if err := h.auditService.Reset(); err != nil {
		h.logger.Error("Failed to reset audit log", logger.Error(err))
		http.Error(w, "Failed to reset audit log", http.StatusInternalServerError)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// RunScenario generates and ingests the named demo scenario
func (h *Handler) RunScenario(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		http.Error(w, "Scenario name is required", http.StatusBadRequest)
		return
	}

	count, err := h.scenarioService.Run(r.Context(), name)
	if err != nil {
		h.logger.Error("Scenario run failed",
			logger.Error(err),
			logger.String("scenario", name))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"scenario":     name,
		"observations": count,
	})
}

// GetStatus returns liveness plus per-engine counters
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	fusionStats := h.fusionService.Stats()
	scoringStats := h.scoringService.Stats()

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"station":        h.config.Station.Name,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"fusion": map[string]any{
			"active_tracks":         fusionStats.ActiveTracks,
			"observations_ingested": fusionStats.ObservationsIngested,
		},
		"scoring": map[string]any{
			"active_threats":  scoringStats.ActiveThreats,
			"tracks_received": scoringStats.TracksReceived,
		},
	})
}

// HandleWebSocket upgrades the request to the COP WebSocket feed
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
