package learning

import (
	"fmt"
	"strings"

	"github.com/sagrawal11/alfred-sub000/internal/store"
)

// PatternStore is the narrow slice of the repository the learner needs.
type PatternStore interface {
	FindPattern(userID, term, ptype, value string) (*store.LearnedPattern, error)
	CreatePattern(p *store.LearnedPattern) error
	UpdatePattern(p *store.LearnedPattern) error
	PatternsAbove(userID string, min float64) ([]store.LearnedPattern, error)
	PrunePatterns(userID string, threshold float64) (int, error)
}

const (
	learnBoost          = 0.1
	reinforceSeedWin    = 0.4
	reinforceSeedLoss   = 0.2
	maxConfidence       = 1.0
	defaultApplyMin     = 0.6
	defaultOverrideMin  = 0.8
	defaultPruneCeiling = 0.2
)

// Learner creates, reinforces and queries learned patterns.
type Learner struct {
	store       PatternStore
	applyMin    float64
	overrideMin float64
	pruneMax    float64
}

func NewLearner(ps PatternStore, applyMin, overrideMin, pruneMax float64) *Learner {
	if applyMin <= 0 {
		applyMin = defaultApplyMin
	}
	if overrideMin <= 0 {
		overrideMin = defaultOverrideMin
	}
	if pruneMax <= 0 {
		pruneMax = defaultPruneCeiling
	}
	return &Learner{store: ps, applyMin: applyMin, overrideMin: overrideMin, pruneMax: pruneMax}
}

// Learn records a (term -> value) association. An existing tuple is nudged
// up by 0.1 (capped at 1.0) instead of duplicated.
func (l *Learner) Learn(userID, term, ptype, value string, confidence float64, context string) error {
	existing, err := l.store.FindPattern(userID, term, ptype, value)
	if err != nil {
		return fmt.Errorf("learn pattern: %w", err)
	}
	if existing != nil {
		existing.Confidence += learnBoost
		if existing.Confidence > maxConfidence {
			existing.Confidence = maxConfidence
		}
		if context != "" {
			existing.Context = context
		}
		return l.store.UpdatePattern(existing)
	}

	return l.store.CreatePattern(&store.LearnedPattern{
		UserID:     userID,
		Term:       term,
		Type:       ptype,
		Value:      value,
		Confidence: confidence,
		Context:    context,
	})
}

// Reinforce records a usage outcome: counts are bumped and confidence is
// recomputed as success/(success+failure). A missing tuple is created on the
// spot (0.4 on success, 0.2 on failure) so reinforcement never fails silently.
func (l *Learner) Reinforce(userID, term, ptype, value string, success bool) error {
	p, err := l.store.FindPattern(userID, term, ptype, value)
	if err != nil {
		return fmt.Errorf("reinforce pattern: %w", err)
	}
	if p == nil {
		seed := reinforceSeedLoss
		success2 := 0
		failure := 1
		if success {
			seed = reinforceSeedWin
			success2, failure = 1, 0
		}
		return l.store.CreatePattern(&store.LearnedPattern{
			UserID:       userID,
			Term:         term,
			Type:         ptype,
			Value:        value,
			Confidence:   seed,
			UsageCount:   1,
			SuccessCount: success2,
			FailureCount: failure,
			Context:      "reinforcement",
		})
	}

	p.UsageCount++
	if success {
		p.SuccessCount++
	} else {
		p.FailureCount++
	}
	total := p.SuccessCount + p.FailureCount
	if total > 0 {
		p.Confidence = float64(p.SuccessCount) / float64(total)
	}
	return l.store.UpdatePattern(p)
}

// Match is one pattern that fired against a message.
type Match struct {
	Term       string
	Type       string
	Value      string
	Confidence float64
}

// Suggestion is the result of applying learned patterns to a message.
type Suggestion struct {
	Intent     string
	Confidence float64
	Entities   map[string][]string
	Matched    []Match
}

// HasIntent reports whether the suggestion carries an intent.
func (s *Suggestion) HasIntent() bool {
	return s != nil && s.Intent != ""
}

// Apply scans the user's confident patterns (confidence >= the apply
// threshold, inclusive) against a message. The strongest intent pattern wins;
// a later match only displaces an earlier one when it beats it outright or
// crosses the override threshold. Entity matches accumulate keyed by
// associated value.
func (l *Learner) Apply(userID, message string) (*Suggestion, error) {
	patterns, err := l.store.PatternsAbove(userID, l.applyMin)
	if err != nil {
		return nil, fmt.Errorf("apply patterns: %w", err)
	}

	msg := strings.ToLower(message)
	sugg := &Suggestion{Entities: make(map[string][]string)}
	for _, p := range patterns {
		if !termMatches(msg, p.Term) {
			continue
		}
		match := Match{Term: p.Term, Type: p.Type, Value: p.Value, Confidence: p.Confidence}
		sugg.Matched = append(sugg.Matched, match)

		switch p.Type {
		case store.PatternIntent, store.PatternSynonym:
			if sugg.Intent == "" || p.Confidence > sugg.Confidence || p.Confidence > l.overrideMin {
				sugg.Intent = p.Value
				sugg.Confidence = p.Confidence
			}
		case store.PatternEntity:
			sugg.Entities[p.Value] = append(sugg.Entities[p.Value], p.Term)
		}
	}
	return sugg, nil
}

// Prune deletes the user's patterns below the prune threshold. Advisory
// housekeeping; errors are the caller's to log, not fatal.
func (l *Learner) Prune(userID string) (int, error) {
	return l.store.PrunePatterns(userID, l.pruneMax)
}

// termMatches reports whether the case-folded term occurs in the message,
// as a substring for phrases and longer words, whole-word for short ones so
// "tea" does not fire inside "team".
func termMatches(message, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return false
	}
	if strings.Contains(term, " ") || len(term) > 3 {
		return strings.Contains(message, term)
	}
	for _, word := range strings.FieldsFunc(message, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '\'')
	}) {
		if word == term {
			return true
		}
	}
	return false
}
