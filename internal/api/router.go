package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/auth"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

// Router wires the API handlers into the HTTP mux
type Router struct {
	handler  *Handler
	verifier *auth.Verifier
	roles    []string
	logger   *logger.Logger
}

// NewRouter creates a new API router. roles is the list of roles allowed
// on the ingestion paths.
func NewRouter(handler *Handler, verifier *auth.Verifier, roles []string, log *logger.Logger) *Router {
	return &Router{
		handler:  handler,
		verifier: verifier,
		roles:    roles,
		logger:   log.Named("api-router"),
	}
}

// Routes returns the configured HTTP handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	requireIngestRole := auth.RequireRole(rt.verifier, rt.roles)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/token", rt.handler.IssueToken)

		r.Group(func(r chi.Router) {
			r.Use(requireIngestRole)
			r.Post("/observations", rt.handler.SubmitObservation)
			r.Post("/fusion/observations", rt.handler.SubmitFusionObservation)
			r.Post("/scoring/tracks", rt.handler.SubmitTrack)
		})

		r.Get("/fusion/tracks", rt.handler.GetTracks)
		r.Get("/fusion/tracks/{trackID}", rt.handler.GetTrack)
		r.Get("/fusion/stats", rt.handler.GetFusionStats)
		r.Post("/fusion/reset", rt.handler.ResetFusion)

		r.Get("/scoring/threats", rt.handler.GetThreats)
		r.Get("/scoring/stats", rt.handler.GetScoringStats)
		r.Post("/scoring/reset", rt.handler.ResetScoring)

		r.Post("/audit/events", rt.handler.AppendAuditEvent)
		r.Get("/audit/events", rt.handler.GetAuditEvents)
		r.Post("/audit/reset", rt.handler.ResetAudit)

		r.Post("/scenario/{name}", rt.handler.RunScenario)

		r.Get("/status", rt.handler.GetStatus)
	})

	r.Get("/ws", rt.handler.HandleWebSocket)

	return r
}
