package scenario

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/fusion"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

type capturingSubmitter struct {
	observations []*fusion.Observation
	subjects     []string
	tokens       []string
	err          error
}

func (c *capturingSubmitter) SubmitObservation(_ context.Context, obs *fusion.Observation, subject, token string) error {
	if c.err != nil {
		return c.err
	}
	c.observations = append(c.observations, obs)
	c.subjects = append(c.subjects, subject)
	c.tokens = append(c.tokens, token)
	return nil
}

type stubIssuer struct {
	token string
	err   error
}

func (s *stubIssuer) IssueToken(subject, role string) (string, error) {
	return s.token, s.err
}

const (
	testLat = 36.9460
	testLon = -76.3290
)

func newTestService(submitter ObservationSubmitter, issuer TokenIssuer) *Service {
	return NewService(submitter, issuer, testLat, testLon, 8.0, logger.NewNop())
}

func TestRun_AirScenario(t *testing.T) {
	submitter := &capturingSubmitter{}
	svc := newTestService(submitter, &stubIssuer{token: "tok-demo"})

	count, err := svc.Run(context.Background(), "air")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.Len(t, submitter.observations, 3)

	for i, obs := range submitter.observations {
		assert.Equal(t, fusion.ContactTypeAir, obs.ContactType)
		assert.NotEmpty(t, obs.ObservationID)
		assert.NotEmpty(t, obs.ObjectID)
		assert.InDelta(t, 0.88, obs.Quality.Confidence, 1e-9)
		assert.Equal(t, "tok-demo", submitter.tokens[i])
	}

	// First contact carries the fast-closing profile
	assert.InDelta(t, 12000.0, submitter.observations[0].Position.AltM, 1e-9)
	assert.InDelta(t, 420.0, submitter.observations[0].Velocity.VX, 1e-9)
	assert.InDelta(t, 9000.0, submitter.observations[1].Position.AltM, 1e-9)

	// Second contact comes from the EO/IR sensor
	assert.Equal(t, "EOIR-02", submitter.observations[1].SensorID)
	assert.Equal(t, "RADAR-01", submitter.observations[0].SensorID)
}

func TestRun_SeaScenario(t *testing.T) {
	submitter := &capturingSubmitter{}
	svc := newTestService(submitter, &stubIssuer{token: "tok"})

	count, err := svc.Run(context.Background(), "sea")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	for _, obs := range submitter.observations {
		assert.Equal(t, fusion.ContactTypeSea, obs.ContactType)
		assert.Zero(t, obs.Position.AltM)
		assert.InDelta(t, 0.82, obs.Quality.Confidence, 1e-9)
	}
	assert.Equal(t, "AIS-EDGE-01", submitter.observations[2].SensorID)
	assert.Equal(t, "AIS", submitter.observations[2].SensorType)
}

func TestRun_BenignScenario(t *testing.T) {
	submitter := &capturingSubmitter{}
	svc := newTestService(submitter, &stubIssuer{token: "tok"})

	count, err := svc.Run(context.Background(), "benign")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, obs := range submitter.observations {
		assert.Equal(t, fusion.ContactTypeBenign, obs.ContactType)
		assert.InDelta(t, 1500.0, obs.Position.AltM, 1e-9)
		assert.InDelta(t, 0.85, obs.Quality.Confidence, 1e-9)
	}
}

func TestRun_MixedScenario(t *testing.T) {
	submitter := &capturingSubmitter{}
	svc := newTestService(submitter, &stubIssuer{token: "tok"})

	count, err := svc.Run(context.Background(), "mixed")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	types := []string{}
	for _, obs := range submitter.observations {
		types = append(types, obs.ContactType)
	}
	assert.ElementsMatch(t, []string{fusion.ContactTypeAir, fusion.ContactTypeSea, fusion.ContactTypeBenign}, types)
}

func TestRun_Aliases(t *testing.T) {
	submitter := &capturingSubmitter{}
	svc := newTestService(submitter, &stubIssuer{token: "tok"})

	count, err := svc.Run(context.Background(), "airborne_fast_closing")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRun_UnknownScenario(t *testing.T) {
	svc := newTestService(&capturingSubmitter{}, &stubIssuer{token: "tok"})

	_, err := svc.Run(context.Background(), "submarine")
	assert.Error(t, err)
}

func TestRun_SubmitFailureAborts(t *testing.T) {
	submitter := &capturingSubmitter{err: errors.New("fusion unreachable")}
	svc := newTestService(submitter, &stubIssuer{token: "tok"})

	_, err := svc.Run(context.Background(), "air")
	assert.Error(t, err)
}

func TestRun_TokenIssueFailureAborts(t *testing.T) {
	submitter := &capturingSubmitter{}
	svc := newTestService(submitter, &stubIssuer{err: errors.New("bad secret")})

	_, err := svc.Run(context.Background(), "air")
	assert.Error(t, err)
	assert.Empty(t, submitter.observations)
}

func TestRun_PositionsStayNearStation(t *testing.T) {
	submitter := &capturingSubmitter{}
	svc := newTestService(submitter, &stubIssuer{token: "tok"})

	_, err := svc.Run(context.Background(), "sea")
	require.NoError(t, err)

	// Sea contacts spread up to 12 miles on each axis
	maxLatDelta := 12.0 / 69.0
	maxLonDelta := 12.0 / (69.0 * math.Cos(testLat*math.Pi/180))
	for _, obs := range submitter.observations {
		assert.LessOrEqual(t, math.Abs(obs.Position.Lat-testLat), maxLatDelta+1e-9)
		assert.LessOrEqual(t, math.Abs(obs.Position.Lon-testLon), maxLonDelta+1e-9)
	}
}

func TestRun_FreshObjectIDsPerRun(t *testing.T) {
	submitter := &capturingSubmitter{}
	svc := newTestService(submitter, &stubIssuer{token: "tok"})

	_, err := svc.Run(context.Background(), "benign")
	require.NoError(t, err)
	_, err = svc.Run(context.Background(), "benign")
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, obs := range submitter.observations {
		assert.False(t, seen[obs.ObjectID], "object id %s reused across runs", obs.ObjectID)
		seen[obs.ObjectID] = true
	}
}
