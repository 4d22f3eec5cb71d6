// Package scenario generates demo contact sets around the configured
// station and runs them through the authenticated ingest path, so the
// whole pipeline can be exercised without live sensors.
package scenario

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/fusion"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

// Known scenario names
const (
	ScenarioAir    = "air"
	ScenarioSea    = "sea"
	ScenarioBenign = "benign"
	ScenarioMixed  = "mixed"
)

// ObservationSubmitter defines the interface for pushing generated
// observations through the ingest path
type ObservationSubmitter interface {
	SubmitObservation(ctx context.Context, obs *fusion.Observation, subject, bearerToken string) error
}

// TokenIssuer defines the interface for minting the demo operator token a
// scenario run authenticates with
type TokenIssuer interface {
	IssueToken(subject, role string) (string, error)
}

// Service builds and submits scenario observation sets
type Service struct {
	submitter ObservationSubmitter
	issuer    TokenIssuer

	centerLat   float64
	centerLon   float64
	spreadMiles float64

	mu     sync.Mutex
	rng    *rand.Rand
	logger *logger.Logger
}

// NewService creates a new scenario service
func NewService(submitter ObservationSubmitter, issuer TokenIssuer, centerLat, centerLon, spreadMiles float64, log *logger.Logger) *Service {
	return &Service{
		submitter:   submitter,
		issuer:      issuer,
		centerLat:   centerLat,
		centerLon:   centerLon,
		spreadMiles: spreadMiles,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:      log.Named("scenario"),
	}
}

// Run generates the named scenario's observations and submits each one
// through the ingest path with a freshly issued demo operator token.
// Returns the number of observations submitted.
func (s *Service) Run(ctx context.Context, name string) (int, error) {
	observations, err := s.buildObservations(normalizeName(name))
	if err != nil {
		return 0, err
	}

	token, err := s.issuer.IssueToken("operator@demo.local", "operator")
	if err != nil {
		return 0, fmt.Errorf("failed to issue scenario token: %w", err)
	}

	for _, obs := range observations {
		if err := s.submitter.SubmitObservation(ctx, obs, "operator@demo.local", token); err != nil {
			return 0, fmt.Errorf("scenario submission failed at %s: %w", obs.ObservationID, err)
		}
	}

	s.logger.Info("Scenario completed",
		logger.String("scenario", name),
		logger.Int("observations", len(observations)))
	return len(observations), nil
}

// normalizeName maps scenario aliases onto the canonical names
func normalizeName(name string) string {
	switch name {
	case "airborne_fast_closing", "airborne", "fast_air":
		return ScenarioAir
	case "sea_surface_no_ais", "surface", "maritime":
		return ScenarioSea
	case "benign_contacts", "benign_scenario":
		return ScenarioBenign
	default:
		return name
	}
}

// buildObservations constructs the observation set for one scenario run.
// Each run gets a unique run id so repeated clicks create fresh contacts.
func (s *Service) buildObservations(name string) ([]*fusion.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runID := fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.NewString()[:6])
	now := time.Now().UTC().Format(time.RFC3339)

	makeID := func(prefix string, idx int) string {
		return fmt.Sprintf("%s-%s-%02d", prefix, runID, idx)
	}

	var observations []*fusion.Observation

	switch name {
	case ScenarioBenign:
		// 2 benign contacts, lower altitude, stable
		for i := 1; i <= 2; i++ {
			lat, lon := s.randomOffsetMiles(6.0)
			observations = append(observations, &fusion.Observation{
				ObservationID: newObsID(),
				SensorType:    "RADAR",
				SensorID:      "RADAR-01",
				TsUTC:         now,
				ObjectID:      makeID("BENIGN", i),
				ContactType:   fusion.ContactTypeBenign,
				Label:         fmt.Sprintf("BENIGN-%02d", i),
				Position:      &fusion.Position{Lat: lat, Lon: lon, AltM: 1500.0},
				Velocity:      &fusion.Velocity{VX: 120.0, VY: 40.0, VZ: 0.0},
				Quality:       &fusion.Quality{Confidence: 0.85},
				Metadata:      map[string]any{"scenario": "benign"},
			})
		}

	case ScenarioAir:
		// 3 air contacts, higher altitude, the first with a fast-closing profile
		for i := 1; i <= 3; i++ {
			lat, lon := s.randomOffsetMiles(10.0)
			closingFast := i == 1
			sensorType, sensorID := "RADAR", "RADAR-01"
			if i == 2 {
				sensorType, sensorID = "EOIR", "EOIR-02"
			}
			altM, vx := 9000.0, 250.0
			meta := "air"
			if closingFast {
				altM, vx = 12000.0, 420.0
				meta = "airborne_fast_closing"
			}
			observations = append(observations, &fusion.Observation{
				ObservationID: newObsID(),
				SensorType:    sensorType,
				SensorID:      sensorID,
				TsUTC:         now,
				ObjectID:      makeID("AIR", i),
				ContactType:   fusion.ContactTypeAir,
				Label:         fmt.Sprintf("AIRPLANE-%02d", i),
				Position:      &fusion.Position{Lat: lat, Lon: lon, AltM: altM},
				Velocity:      &fusion.Velocity{VX: vx, VY: 80.0, VZ: 0.0},
				Quality:       &fusion.Quality{Confidence: 0.88},
				Metadata:      map[string]any{"scenario": meta},
			})
		}

	case ScenarioSea:
		// 3 surface contacts, one carried by an AIS edge sensor
		for i := 1; i <= 3; i++ {
			lat, lon := s.randomOffsetMiles(12.0)
			sensorType, sensorID := "RADAR", "RADAR-01"
			if i == 3 {
				sensorType, sensorID = "AIS", "AIS-EDGE-01"
			}
			observations = append(observations, &fusion.Observation{
				ObservationID: newObsID(),
				SensorType:    sensorType,
				SensorID:      sensorID,
				TsUTC:         now,
				ObjectID:      makeID("SEA", i),
				ContactType:   fusion.ContactTypeSea,
				Label:         fmt.Sprintf("VESSEL-%02d", i),
				Position:      &fusion.Position{Lat: lat, Lon: lon, AltM: 0.0},
				Velocity:      &fusion.Velocity{VX: 18.0, VY: 3.0, VZ: 0.0},
				Quality:       &fusion.Quality{Confidence: 0.82},
				Metadata:      map[string]any{"scenario": "sea_surface_no_ais"},
			})
		}

	case ScenarioMixed:
		// One of each contact type
		types := []struct {
			prefix, label, contactType string
			altM, confidence           float64
		}{
			{"AIR", "AIRPLANE-01", fusion.ContactTypeAir, 9000.0, 0.88},
			{"SEA", "VESSEL-01", fusion.ContactTypeSea, 0.0, 0.82},
			{"BENIGN", "BENIGN-01", fusion.ContactTypeBenign, 1500.0, 0.85},
		}
		for i, t := range types {
			lat, lon := s.randomOffsetMiles(s.spreadMiles)
			observations = append(observations, &fusion.Observation{
				ObservationID: newObsID(),
				SensorType:    "RADAR",
				SensorID:      "RADAR-01",
				TsUTC:         now,
				ObjectID:      makeID(t.prefix, i+1),
				ContactType:   t.contactType,
				Label:         t.label,
				Position:      &fusion.Position{Lat: lat, Lon: lon, AltM: t.altM},
				Velocity:      &fusion.Velocity{VX: 120.0, VY: 20.0, VZ: 0.0},
				Quality:       &fusion.Quality{Confidence: t.confidence},
				Metadata:      map[string]any{"scenario": "mixed"},
			})
		}

	default:
		return nil, fmt.Errorf("unknown scenario: %s", name)
	}

	return observations, nil
}

// randomOffsetMiles returns a point offset from the station by up to
// maxMiles on each axis. Caller holds the lock.
func (s *Service) randomOffsetMiles(maxMiles float64) (float64, float64) {
	dx := s.rng.Float64()*2*maxMiles - maxMiles // east/west
	dy := s.rng.Float64()*2*maxMiles - maxMiles // north/south

	lat := s.centerLat + milesToLat(dy)
	lon := s.centerLon + milesToLon(dx, s.centerLat)
	return lat, lon
}

// 1 degree of latitude is roughly 69 statute miles
func milesToLat(miles float64) float64 {
	return miles / 69.0
}

// 1 degree of longitude is roughly 69*cos(lat) statute miles
func milesToLon(miles, atLat float64) float64 {
	denom := 69.0 * math.Cos(atLat*math.Pi/180)
	if denom == 0 {
		return 0
	}
	return miles / denom
}

func newObsID() string {
	return fmt.Sprintf("OBS-%s", uuid.NewString()[:12])
}
