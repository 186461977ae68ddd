package learning

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/sagrawal11/alfred-sub000/internal/store"
)

func newTestLearner(t *testing.T) (*Learner, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "alfred.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewLearner(st, 0.6, 0.8, 0.2), st
}

func TestLearnTwiceBoostsInsteadOfDuplicating(t *testing.T) {
	l, st := newTestLearner(t)

	if err := l.Learn("u1", "dhamaka", store.PatternIntent, "gym_workout", 0.9, "dhamaka means workout"); err != nil {
		t.Fatalf("Learn error: %v", err)
	}
	if err := l.Learn("u1", "dhamaka", store.PatternIntent, "gym_workout", 0.9, "dhamaka means workout"); err != nil {
		t.Fatalf("second Learn error: %v", err)
	}

	patterns, err := st.PatternsAbove("u1", 0)
	if err != nil {
		t.Fatalf("PatternsAbove error: %v", err)
	}
	if len(patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(patterns))
	}
	if patterns[0].Confidence != 1.0 {
		t.Fatalf("expected confidence capped at 1.0, got %v", patterns[0].Confidence)
	}
}

func TestReinforceRecomputesConfidence(t *testing.T) {
	l, st := newTestLearner(t)

	if err := l.Learn("u1", "dhamaka", store.PatternIntent, "gym_workout", 0.9, ""); err != nil {
		t.Fatalf("Learn error: %v", err)
	}

	outcomes := []bool{true, true, true, false}
	for _, ok := range outcomes {
		if err := l.Reinforce("u1", "dhamaka", store.PatternIntent, "gym_workout", ok); err != nil {
			t.Fatalf("Reinforce error: %v", err)
		}
	}

	p, err := st.FindPattern("u1", "dhamaka", store.PatternIntent, "gym_workout")
	if err != nil {
		t.Fatalf("FindPattern error: %v", err)
	}
	if p == nil {
		t.Fatal("pattern missing")
	}
	if p.SuccessCount != 3 || p.FailureCount != 1 || p.UsageCount != 4 {
		t.Fatalf("counts = %d/%d (usage %d), want 3/1 (usage 4)", p.SuccessCount, p.FailureCount, p.UsageCount)
	}
	if math.Abs(p.Confidence-0.75) > 1e-9 {
		t.Fatalf("confidence = %v, want exactly 0.75", p.Confidence)
	}
}

func TestReinforceMissingCreatesSeed(t *testing.T) {
	l, st := newTestLearner(t)

	if err := l.Reinforce("u1", "zumba", store.PatternIntent, "gym_workout", true); err != nil {
		t.Fatalf("Reinforce error: %v", err)
	}
	if err := l.Reinforce("u1", "slop", store.PatternIntent, "food_logging", false); err != nil {
		t.Fatalf("Reinforce error: %v", err)
	}

	win, _ := st.FindPattern("u1", "zumba", store.PatternIntent, "gym_workout")
	if win == nil || win.Confidence != 0.4 || win.SuccessCount != 1 {
		t.Fatalf("unexpected win seed: %+v", win)
	}
	loss, _ := st.FindPattern("u1", "slop", store.PatternIntent, "food_logging")
	if loss == nil || loss.Confidence != 0.2 || loss.FailureCount != 1 {
		t.Fatalf("unexpected loss seed: %+v", loss)
	}
}

func TestApplyThresholdInclusive(t *testing.T) {
	l, st := newTestLearner(t)

	// Exactly at the apply threshold: still fires.
	if err := st.CreatePattern(&store.LearnedPattern{
		UserID: "u1", Term: "dhamaka", Type: store.PatternIntent, Value: "gym_workout", Confidence: 0.6,
	}); err != nil {
		t.Fatalf("CreatePattern error: %v", err)
	}
	// Below: ignored.
	if err := st.CreatePattern(&store.LearnedPattern{
		UserID: "u1", Term: "biryani", Type: store.PatternIntent, Value: "food_logging", Confidence: 0.59,
	}); err != nil {
		t.Fatalf("CreatePattern error: %v", err)
	}

	sugg, err := l.Apply("u1", "dhamaka and biryani tonight")
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if sugg.Intent != "gym_workout" {
		t.Fatalf("intent = %q, want gym_workout", sugg.Intent)
	}
	if len(sugg.Matched) != 1 {
		t.Fatalf("expected exactly the threshold pattern to match, got %+v", sugg.Matched)
	}
}

func TestApplyStrongerIntentWins(t *testing.T) {
	l, st := newTestLearner(t)

	for _, p := range []store.LearnedPattern{
		{UserID: "u1", Term: "dhamaka", Type: store.PatternIntent, Value: "gym_workout", Confidence: 0.7},
		{UserID: "u1", Term: "biryani", Type: store.PatternIntent, Value: "food_logging", Confidence: 0.95},
	} {
		p := p
		if err := st.CreatePattern(&p); err != nil {
			t.Fatalf("CreatePattern error: %v", err)
		}
	}

	sugg, err := l.Apply("u1", "dhamaka then biryani")
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if sugg.Intent != "food_logging" {
		t.Fatalf("intent = %q, want the stronger food_logging", sugg.Intent)
	}
}

func TestOrchestratorConfirmedGuessSeedsTerms(t *testing.T) {
	l, st := newTestLearner(t)
	o := NewOrchestrator(l)

	o.ObserveConfirmedGuess("u1", "crushed a dhamaka tonight", "gym_workout")

	p, err := st.FindPattern("u1", "dhamaka", store.PatternIntent, "gym_workout")
	if err != nil {
		t.Fatalf("FindPattern error: %v", err)
	}
	if p == nil {
		t.Fatal("expected a seeded pattern for the unusual word")
	}
	if p.Confidence != 0.3 {
		t.Fatalf("seed confidence = %v, want 0.3", p.Confidence)
	}
}

func TestOrchestratorReplyReinforcement(t *testing.T) {
	l, st := newTestLearner(t)
	o := NewOrchestrator(l)

	if err := st.CreatePattern(&store.LearnedPattern{
		UserID: "u1", Term: "dhamaka", Type: store.PatternIntent, Value: "gym_workout", Confidence: 0.9,
	}); err != nil {
		t.Fatalf("CreatePattern error: %v", err)
	}

	sugg := o.Suggest("u1", "dhamaka again tonight")
	if sugg.Intent != "gym_workout" {
		t.Fatalf("suggestion intent = %q", sugg.Intent)
	}
	o.ObserveTurn("u1", "dhamaka again tonight", "gym_workout", "Workout logged.", true, sugg)

	// The success reinforcement runs once on the turn itself.
	p, _ := st.FindPattern("u1", "dhamaka", store.PatternIntent, "gym_workout")
	if p.SuccessCount != 1 {
		t.Fatalf("success count = %d, want 1", p.SuccessCount)
	}

	// A correction reply then counts a failure against the same pattern.
	o.ObserveReply("u1", "no, that was food")
	p, _ = st.FindPattern("u1", "dhamaka", store.PatternIntent, "gym_workout")
	if p.FailureCount != 1 {
		t.Fatalf("failure count = %d, want 1", p.FailureCount)
	}
	if math.Abs(p.Confidence-0.5) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.5 after 1/1", p.Confidence)
	}
}
