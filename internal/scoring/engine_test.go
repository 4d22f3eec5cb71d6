package scoring

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/fusion"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

// stubRules returns a fixed rule set, or an error when broken
type stubRules struct {
	rules *RuleSet
	err   error
}

func (s *stubRules) Load() (*RuleSet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rules, nil
}

// stubClassifier returns a scripted sequence of assessments
type stubClassifier struct {
	assessments []*Assessment
	calls       int
}

func (s *stubClassifier) Classify(_ *fusion.Track, _ *RuleSet) (*Assessment, error) {
	a := s.assessments[s.calls%len(s.assessments)]
	s.calls++
	return a, nil
}

func defaultRules() *RuleSet {
	return &RuleSet{Priorities: []PriorityRule{
		{Priority: PriorityLow, Weight: 0.55, MinScore: 0.05, MaxScore: 0.35, Action: ActionTrack},
		{Priority: PriorityMedium, Weight: 0.30, MinScore: 0.36, MaxScore: 0.70, Action: ActionReview},
		{Priority: PriorityHigh, Weight: 0.15, MinScore: 0.71, MaxScore: 0.95, Action: ActionEscalate},
	}}
}

func fixedAssessment(priority string, score float64) *Assessment {
	action := map[string]string{
		PriorityLow:    ActionTrack,
		PriorityMedium: ActionReview,
		PriorityHigh:   ActionEscalate,
	}[priority]
	return &Assessment{
		Score:     score,
		Rationale: []string{"Surface contact without positive ID"},
		Priority:  priority,
		Action:    action,
	}
}

func trackWithID(id string) *fusion.Track {
	return &fusion.Track{
		TrackID:         id,
		LastUpdateUTC:   time.Now().UTC(),
		State:           fusion.Position{Lat: 40, Lon: -70, AltM: 9000},
		Sources:         []string{"RADAR-01"},
		TrackConfidence: 0.9,
		Label:           "AIRPLANE-01",
		ContactType:     fusion.ContactTypeAir,
	}
}

func newTestEngine(capacity int, classifier Classifier) *Engine {
	return NewEngine(&stubRules{rules: defaultRules()}, classifier, capacity, logger.NewNop())
}

func TestSubmitTrack_Validation(t *testing.T) {
	e := newTestEngine(10, &stubClassifier{assessments: []*Assessment{fixedAssessment(PriorityLow, 0.2)}})

	_, err := e.SubmitTrack(nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.SubmitTrack(&fusion.Track{})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, 0, e.Stats().TracksReceived)
}

func TestSubmitTrack_ThreatIDDerivation(t *testing.T) {
	e := newTestEngine(10, &stubClassifier{assessments: []*Assessment{fixedAssessment(PriorityLow, 0.2)}})

	threat, err := e.SubmitTrack(trackWithID("TRK-ABC123"))
	require.NoError(t, err)
	assert.Equal(t, "THR-ABC123", threat.ThreatID)

	threat, err = e.SubmitTrack(trackWithID("XYZ"))
	require.NoError(t, err)
	assert.Equal(t, "THR-XYZ", threat.ThreatID)
}

func TestSubmitTrack_UpsertFullOverwrite(t *testing.T) {
	classifier := &stubClassifier{assessments: []*Assessment{
		fixedAssessment(PriorityHigh, 0.9),
		fixedAssessment(PriorityLow, 0.1),
	}}
	e := newTestEngine(10, classifier)

	first, err := e.SubmitTrack(trackWithID("TRK-1"))
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, first.Priority)
	assert.Equal(t, ActionEscalate, first.RecommendedAction)

	second, err := e.SubmitTrack(trackWithID("TRK-1"))
	require.NoError(t, err)
	assert.Equal(t, first.ThreatID, second.ThreatID)
	assert.Equal(t, PriorityLow, second.Priority)
	assert.InDelta(t, 0.1, second.Score, 1e-9)
	assert.Equal(t, ActionTrack, second.RecommendedAction)

	// Still a single record for that track
	stats := e.Stats()
	assert.Equal(t, 1, stats.ActiveThreats)
	assert.Equal(t, 2, stats.TracksReceived)
	assert.Equal(t, 2, stats.ThreatsEmitted)
	assert.Equal(t, 1, stats.ByPriority[PriorityLow])
	assert.Equal(t, 0, stats.ByPriority[PriorityHigh])
}

func TestSubmitTrack_CapacityEvictsOldest(t *testing.T) {
	e := newTestEngine(10, &stubClassifier{assessments: []*Assessment{fixedAssessment(PriorityLow, 0.2)}})

	for i := 0; i < 10; i++ {
		_, err := e.SubmitTrack(trackWithID(fmt.Sprintf("TRK-%02d", i)))
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, 10, e.Stats().ActiveThreats)

	// The 11th insert evicts TRK-00, the oldest by last_update_utc
	_, err := e.SubmitTrack(trackWithID("TRK-10"))
	require.NoError(t, err)

	stats := e.Stats()
	assert.Equal(t, 10, stats.ActiveThreats)

	threats := e.ListThreats(0)
	ids := make([]string, 0, len(threats))
	for _, threat := range threats {
		ids = append(ids, threat.TrackID)
	}
	assert.NotContains(t, ids, "TRK-00")
	assert.Contains(t, ids, "TRK-10")
}

func TestSubmitTrack_RescoringRefreshesEvictionOrder(t *testing.T) {
	e := newTestEngine(2, &stubClassifier{assessments: []*Assessment{fixedAssessment(PriorityLow, 0.2)}})

	_, err := e.SubmitTrack(trackWithID("TRK-A"))
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = e.SubmitTrack(trackWithID("TRK-B"))
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	// Re-scoring A makes B the oldest
	_, err = e.SubmitTrack(trackWithID("TRK-A"))
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	_, err = e.SubmitTrack(trackWithID("TRK-C"))
	require.NoError(t, err)

	threats := e.ListThreats(0)
	ids := make([]string, 0, len(threats))
	for _, threat := range threats {
		ids = append(ids, threat.TrackID)
	}
	assert.ElementsMatch(t, []string{"TRK-A", "TRK-C"}, ids)
}

func TestSubmitTrack_RulesLoadFailureLeavesStateUntouched(t *testing.T) {
	rules := &stubRules{rules: defaultRules()}
	e := NewEngine(rules, &stubClassifier{assessments: []*Assessment{fixedAssessment(PriorityLow, 0.2)}}, 10, logger.NewNop())

	_, err := e.SubmitTrack(trackWithID("TRK-1"))
	require.NoError(t, err)

	rules.err = errors.New("rules file unreadable")
	_, err = e.SubmitTrack(trackWithID("TRK-2"))
	require.Error(t, err)

	stats := e.Stats()
	assert.Equal(t, 1, stats.ActiveThreats)
	assert.Equal(t, 1, stats.TracksReceived)
}

func TestListThreats_SortAndCap(t *testing.T) {
	classifier := &stubClassifier{assessments: []*Assessment{
		fixedAssessment(PriorityLow, 0.10),
		fixedAssessment(PriorityHigh, 0.90),
		fixedAssessment(PriorityMedium, 0.50),
	}}
	e := newTestEngine(10, classifier)

	for i := 0; i < 3; i++ {
		_, err := e.SubmitTrack(trackWithID(fmt.Sprintf("TRK-%d", i)))
		require.NoError(t, err)
	}

	threats := e.ListThreats(10)
	require.Len(t, threats, 3)
	assert.InDelta(t, 0.90, threats[0].Score, 1e-9)
	assert.InDelta(t, 0.50, threats[1].Score, 1e-9)
	assert.InDelta(t, 0.10, threats[2].Score, 1e-9)

	capped := e.ListThreats(2)
	assert.Len(t, capped, 2)
}

func TestListThreats_TieBreaksOnRecency(t *testing.T) {
	e := newTestEngine(10, &stubClassifier{assessments: []*Assessment{fixedAssessment(PriorityMedium, 0.50)}})

	_, err := e.SubmitTrack(trackWithID("TRK-OLD"))
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = e.SubmitTrack(trackWithID("TRK-NEW"))
	require.NoError(t, err)

	threats := e.ListThreats(0)
	require.Len(t, threats, 2)
	assert.Equal(t, "TRK-NEW", threats[0].TrackID)
}

func TestStats_ByPriorityMatchesLiveSet(t *testing.T) {
	classifier := &stubClassifier{assessments: []*Assessment{
		fixedAssessment(PriorityHigh, 0.9),
		fixedAssessment(PriorityHigh, 0.8),
		fixedAssessment(PriorityLow, 0.2),
	}}
	e := newTestEngine(10, classifier)

	for i := 0; i < 3; i++ {
		_, err := e.SubmitTrack(trackWithID(fmt.Sprintf("TRK-%d", i)))
		require.NoError(t, err)
	}

	stats := e.Stats()
	assert.Equal(t, 2, stats.ByPriority[PriorityHigh])
	assert.Equal(t, 0, stats.ByPriority[PriorityMedium])
	assert.Equal(t, 1, stats.ByPriority[PriorityLow])
	assert.Equal(t, 3, stats.ActiveThreats)
}

func TestSubmitTrack_LabelFallback(t *testing.T) {
	e := newTestEngine(10, &stubClassifier{assessments: []*Assessment{fixedAssessment(PriorityLow, 0.2)}})

	track := trackWithID("TRK-1")
	track.Label = ""
	threat, err := e.SubmitTrack(track)
	require.NoError(t, err)
	assert.Equal(t, fusion.ContactTypeAir, threat.Label)

	track = trackWithID("TRK-2")
	track.Label = ""
	track.ContactType = ""
	threat, err = e.SubmitTrack(track)
	require.NoError(t, err)
	assert.Equal(t, "TRK-2", threat.Label)
	assert.Equal(t, fusion.ContactTypeUnknown, threat.ContactType)
}

func TestReset_ClearsThreatsAndCounters(t *testing.T) {
	e := newTestEngine(10, &stubClassifier{assessments: []*Assessment{fixedAssessment(PriorityLow, 0.2)}})

	_, err := e.SubmitTrack(trackWithID("TRK-1"))
	require.NoError(t, err)

	e.Reset()

	stats := e.Stats()
	assert.Equal(t, 0, stats.ActiveThreats)
	assert.Equal(t, 0, stats.TracksReceived)
	assert.Nil(t, stats.LastUpdateUTC)
	assert.Empty(t, e.ListThreats(0))
}

func TestThreatIDForTrack(t *testing.T) {
	assert.Equal(t, "THR-ABC123", ThreatIDForTrack("TRK-ABC123"))
	assert.Equal(t, "THR-XYZ", ThreatIDForTrack("XYZ"))
}
