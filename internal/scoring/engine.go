// Package scoring implements the threat scoring engine: each track pushed
// from fusion is classified by the installed policy and upserted as the
// single threat record for that track.
package scoring

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/fusion"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

// ErrValidation indicates a malformed track submission
var ErrValidation = errors.New("track missing required fields")

// Engine owns the active threat set, one record per scored track. All
// mutations run under a single engine-wide mutex.
type Engine struct {
	mu sync.Mutex

	threats map[string]*Threat // keyed by track_id
	stats   Stats

	rules      RulesSource
	classifier Classifier
	capacity   int
	logger     *logger.Logger
}

// NewEngine creates a new scoring engine
func NewEngine(rules RulesSource, classifier Classifier, capacity int, log *logger.Logger) *Engine {
	return &Engine{
		threats:    make(map[string]*Threat),
		rules:      rules,
		classifier: classifier,
		capacity:   capacity,
		logger:     log.Named("scoring-engine"),
	}
}

// SubmitTrack classifies one track and upserts its threat record. The rule
// set is loaded fresh on every call; a load failure fails the call and
// leaves the threat set untouched.
func (e *Engine) SubmitTrack(track *fusion.Track) (*Threat, error) {
	if track == nil || track.TrackID == "" {
		return nil, ErrValidation
	}

	rules, err := e.rules.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load scoring rules: %w", err)
	}

	assessment, err := e.classifier.Classify(track, rules)
	if err != nil {
		return nil, fmt.Errorf("classification failed for track %s: %w", track.TrackID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	e.stats.TracksReceived++
	e.stats.LastUpdateUTC = &now

	label := track.Label
	if label == "" {
		label = track.ContactType
	}
	if label == "" {
		label = track.TrackID
	}
	contactType := track.ContactType
	if contactType == "" {
		contactType = fusion.ContactTypeUnknown
	}

	threat := &Threat{
		ThreatID:          ThreatIDForTrack(track.TrackID),
		TrackID:           track.TrackID,
		Label:             label,
		ContactType:       contactType,
		Priority:          assessment.Priority,
		Score:             assessment.Score,
		Rationale:         assessment.Rationale,
		RecommendedAction: assessment.Action,
		LastUpdateUTC:     now,
		State:             track.State,
	}

	// Full overwrite, never a merge
	e.threats[track.TrackID] = threat

	if len(e.threats) > e.capacity {
		e.evictOldest()
	}

	e.stats.ThreatsEmitted++

	e.logger.Debug("Threat upserted",
		logger.String("threat_id", threat.ThreatID),
		logger.String("track_id", threat.TrackID),
		logger.String("priority", threat.Priority),
		logger.Float64("score", threat.Score))

	return threat.Clone(), nil
}

// evictOldest drops the single threat with the smallest last_update_utc.
// Caller holds the lock.
func (e *Engine) evictOldest() {
	oldestKey := ""
	var oldestTime time.Time
	for key, threat := range e.threats {
		if oldestKey == "" || threat.LastUpdateUTC.Before(oldestTime) {
			oldestKey = key
			oldestTime = threat.LastUpdateUTC
		}
	}
	if oldestKey != "" {
		e.logger.Debug("Evicting oldest threat",
			logger.String("track_id", oldestKey),
			logger.Time("last_update_utc", oldestTime))
		delete(e.threats, oldestKey)
	}
}

// ListThreats returns the active threats ordered by score descending, then
// last_update_utc descending, capped to limit.
func (e *Engine) ListThreats(limit int) []*Threat {
	e.mu.Lock()
	defer e.mu.Unlock()

	threats := make([]*Threat, 0, len(e.threats))
	for _, threat := range e.threats {
		threats = append(threats, threat.Clone())
	}

	sort.SliceStable(threats, func(i, j int) bool {
		if threats[i].Score != threats[j].Score {
			return threats[i].Score > threats[j].Score
		}
		return threats[i].LastUpdateUTC.After(threats[j].LastUpdateUTC)
	})

	if limit > 0 && len(threats) > limit {
		threats = threats[:limit]
	}
	return threats
}

// Stats returns the engine counters with active_threats and by_priority
// recomputed from the live set so they always match list output.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := e.stats
	stats.ActiveThreats = len(e.threats)
	stats.ByPriority = e.countByPriority()
	return stats
}

// countByPriority recomputes the histogram from the live set. Caller holds
// the lock.
func (e *Engine) countByPriority() map[string]int {
	byPriority := map[string]int{
		PriorityHigh:   0,
		PriorityMedium: 0,
		PriorityLow:    0,
	}
	for _, threat := range e.threats {
		byPriority[threat.Priority]++
	}
	return byPriority
}

// Reset atomically clears threats and counters
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.threats = make(map[string]*Threat)
	e.stats = Stats{}

	e.logger.Info("Scoring engine reset")
}
