package scoring

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/fusion"
)

// Classifier is the scoring strategy seam. The engine is agnostic to which
// policy is installed; swap in a rule- or model-based classifier here.
type Classifier interface {
	Classify(track *fusion.Track, rules *RuleSet) (*Assessment, error)
}

// rationaleCatalog is the fixed pool the reference policy samples from
var rationaleCatalog = []string{
	"High closing speed exceeds threshold",
	"No AIS match (identity/attribution gap)",
	"Altitude profile inconsistent with declared route",
	"Emissions/identity mismatch across sensors",
	"Rapid heading change within short interval",
	"Surface contact without positive ID",
	"Intermittent track quality / sensor disagreement",
}

// RandomPolicy is the reference classifier: a weighted random priority draw
// with the score sampled uniformly inside the priority's band and 1-3
// rationales sampled without replacement from the fixed catalog.
type RandomPolicy struct {
	rng *rand.Rand
}

// NewRandomPolicy creates the reference policy seeded from the given source.
// Pass a fixed-seed source for reproducible runs.
func NewRandomPolicy(seed int64) *RandomPolicy {
	return &RandomPolicy{rng: rand.New(rand.NewSource(seed))}
}

// Classify draws a priority per the rule weights and fills in the rest of
// the assessment from that priority's band.
func (p *RandomPolicy) Classify(_ *fusion.Track, rules *RuleSet) (*Assessment, error) {
	rule, err := p.drawPriority(rules)
	if err != nil {
		return nil, err
	}

	score := rule.MinScore + p.rng.Float64()*(rule.MaxScore-rule.MinScore)
	score = math.Round(score*100) / 100

	n := 1 + p.rng.Intn(3)
	rationale := p.sampleRationales(n)

	return &Assessment{
		Score:     score,
		Rationale: rationale,
		Priority:  rule.Priority,
		Action:    rule.Action,
	}, nil
}

// drawPriority picks one priority rule, weighted
func (p *RandomPolicy) drawPriority(rules *RuleSet) (*PriorityRule, error) {
	total := 0.0
	for _, rule := range rules.Priorities {
		if rule.Weight < 0 {
			return nil, fmt.Errorf("negative weight for priority %s", rule.Priority)
		}
		total += rule.Weight
	}
	if total <= 0 {
		return nil, fmt.Errorf("priority weights sum to zero")
	}

	draw := p.rng.Float64() * total
	for i := range rules.Priorities {
		rule := &rules.Priorities[i]
		if draw < rule.Weight {
			return rule, nil
		}
		draw -= rule.Weight
	}
	return &rules.Priorities[len(rules.Priorities)-1], nil
}

// sampleRationales picks n distinct entries from the catalog
func (p *RandomPolicy) sampleRationales(n int) []string {
	if n > len(rationaleCatalog) {
		n = len(rationaleCatalog)
	}
	indexes := p.rng.Perm(len(rationaleCatalog))[:n]
	picked := make([]string, 0, n)
	for _, idx := range indexes {
		picked = append(picked, rationaleCatalog[idx])
	}
	return picked
}
