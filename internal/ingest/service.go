// Package ingest is the authenticated front door for sensor observations.
// It validates the full observation shape, records the ingestion in the
// audit log, and forwards the observation to the track fusion service with
// the caller's bearer token intact.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/fusion"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

// ErrValidation indicates a malformed observation
var ErrValidation = errors.New("observation failed validation")

// ErrForwardFailed indicates the forward to fusion did not complete. Unlike
// the audit and scoring side channels this is surfaced to the caller: an
// observation that never reached fusion was not ingested.
var ErrForwardFailed = errors.New("failed to forward observation to track fusion")

// AuditEmitter defines the interface for recording audit events
type AuditEmitter interface {
	Emit(actor, action string, details map[string]any)
}

// Service validates and forwards observations
type Service struct {
	fusionURL string
	client    *http.Client
	emitter   AuditEmitter
	logger    *logger.Logger
}

// NewService creates a new ingest service
func NewService(fusionURL string, forwardTimeout time.Duration, emitter AuditEmitter, log *logger.Logger) *Service {
	return &Service{
		fusionURL: fusionURL,
		client:    &http.Client{Timeout: forwardTimeout},
		emitter:   emitter,
		logger:    log.Named("ingest"),
	}
}

// ValidateObservation checks the full observation shape required on the
// ingest path. Fusion itself only requires position/quality/sensor_id; the
// front door is stricter so malformed sensor payloads are caught early.
func ValidateObservation(obs *fusion.Observation) error {
	if obs == nil {
		return fmt.Errorf("%w: empty payload", ErrValidation)
	}
	if obs.ObservationID == "" {
		return fmt.Errorf("%w: observation_id is required", ErrValidation)
	}
	if obs.SensorID == "" {
		return fmt.Errorf("%w: sensor_id is required", ErrValidation)
	}
	if obs.SensorType == "" {
		return fmt.Errorf("%w: sensor_type is required", ErrValidation)
	}
	if obs.TsUTC == "" {
		return fmt.Errorf("%w: ts_utc is required", ErrValidation)
	}
	if obs.Position == nil {
		return fmt.Errorf("%w: position is required", ErrValidation)
	}
	if obs.Velocity == nil {
		return fmt.Errorf("%w: velocity is required", ErrValidation)
	}
	if obs.Quality == nil {
		return fmt.Errorf("%w: quality is required", ErrValidation)
	}
	if obs.Quality.Confidence < 0 || obs.Quality.Confidence > 1 {
		return fmt.Errorf("%w: quality.confidence must be in [0,1]", ErrValidation)
	}
	switch obs.ContactType {
	case "", fusion.ContactTypeAir, fusion.ContactTypeSea, fusion.ContactTypeBenign, fusion.ContactTypeUnknown:
	default:
		return fmt.Errorf("%w: unknown contact_type %q", ErrValidation, obs.ContactType)
	}
	return nil
}

// SubmitObservation validates one observation, records the ingestion, and
// forwards it to fusion preserving the caller's token.
func (s *Service) SubmitObservation(ctx context.Context, obs *fusion.Observation, subject, bearerToken string) error {
	if err := ValidateObservation(obs); err != nil {
		return err
	}

	s.emitter.Emit(fmt.Sprintf("operator:%s", subject), "OBSERVATION_INGESTED", map[string]any{
		"observation_id": obs.ObservationID,
		"sensor_type":    obs.SensorType,
		"sensor_id":      obs.SensorID,
	})

	if err := s.forward(ctx, obs, bearerToken); err != nil {
		s.logger.Error("Observation forward failed",
			logger.Error(err),
			logger.String("observation_id", obs.ObservationID))
		return ErrForwardFailed
	}

	s.logger.Debug("Observation forwarded",
		logger.String("observation_id", obs.ObservationID),
		logger.String("sensor_id", obs.SensorID))
	return nil
}

func (s *Service) forward(ctx context.Context, obs *fusion.Observation, bearerToken string) error {
	body, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("failed to marshal observation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.fusionURL+"/api/v1/fusion/observations", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build fusion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fusion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fusion rejected observation: status %d", resp.StatusCode)
	}
	return nil
}
