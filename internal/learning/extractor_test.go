package learning

import (
	"testing"

	"github.com/sagrawal11/alfred-sub000/internal/store"
)

func TestExtractTeachingPhrasings(t *testing.T) {
	tests := []struct {
		name    string
		message string
		term    string
		value   string
		conf    float64
	}{
		{
			name:    "means form",
			message: "dhamaka means workout",
			term:    "dhamaka",
			value:   "gym_workout",
			conf:    0.9,
		},
		{
			name:    "count as form",
			message: "count dhamaka as exercise",
			term:    "dhamaka",
			value:   "gym_workout",
			conf:    0.9,
		},
		{
			name:    "when i say form",
			message: "when I say dhamaka, log it as a workout",
			term:    "dhamaka",
			value:   "gym_workout",
			conf:    0.9,
		},
		{
			name:    "clause form picks the unusual word",
			message: "dhamaka practice today, count it as a workout",
			term:    "dhamaka",
			value:   "gym_workout",
			conf:    0.85,
		},
		{
			name:    "is form",
			message: "biryani is food",
			term:    "biryani",
			value:   "food_logging",
			conf:    0.9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands := ExtractTeaching(tt.message)
			if len(cands) != 1 {
				t.Fatalf("expected 1 candidate, got %d: %+v", len(cands), cands)
			}
			c := cands[0]
			if c.Term != tt.term {
				t.Errorf("term = %q, want %q", c.Term, tt.term)
			}
			if c.Value != tt.value {
				t.Errorf("value = %q, want %q", c.Value, tt.value)
			}
			if c.Confidence != tt.conf {
				t.Errorf("confidence = %v, want %v", c.Confidence, tt.conf)
			}
			if c.Type != store.PatternIntent {
				t.Errorf("type = %q, want %q", c.Type, store.PatternIntent)
			}
		})
	}
}

func TestExtractTeachingRejects(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{"pronoun placeholder", "count it as a workout"},
		{"value outside vocabulary", "dhamaka means chaos"},
		{"no teaching phrasing", "went to the gym this morning"},
		{"empty", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if cands := ExtractTeaching(tt.message); len(cands) != 0 {
				t.Fatalf("expected no candidates, got %+v", cands)
			}
		})
	}
}

func TestAmbiguousTerms(t *testing.T) {
	terms := AmbiguousTerms("had a dhamaka session today")
	if len(terms) != 1 || terms[0] != "dhamaka" {
		t.Fatalf("expected [dhamaka], got %v", terms)
	}

	if terms := AmbiguousTerms("went to the gym"); len(terms) != 0 {
		t.Fatalf("expected no unusual terms, got %v", terms)
	}
}

func TestDetectOpportunityReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		kind  OpportunityKind
	}{
		{"bare no", "no", OpportunityCorrect},
		{"correction phrase", "no, that was lunch", OpportunityCorrect},
		{"i meant", "actually I meant food", OpportunityCorrect},
		{"confirmation", "yes exactly", OpportunityConfirm},
		{"thanks", "thanks!", OpportunityConfirm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp, ok := DetectOpportunity("dhamaka today", "gym_workout", "Workout logged.", tt.reply)
			if !ok {
				t.Fatal("expected an opportunity")
			}
			if opp.Kind != tt.kind {
				t.Fatalf("kind = %q, want %q", opp.Kind, tt.kind)
			}
		})
	}

	if _, ok := DetectOpportunity("dhamaka today", "gym_workout", "Workout logged.", "also add milk to the list"); ok {
		t.Fatal("expected an unrelated reply to yield nothing")
	}
}
