package classifier

import (
	"context"
	"strings"
	"testing"

	"github.com/cexll/agentsdk-go/pkg/api"
)

type fakeRuntime struct {
	output string
	prompt string
	closed bool
}

func (f *fakeRuntime) Run(_ context.Context, req api.Request) (*api.Response, error) {
	f.prompt = req.Prompt
	return &api.Response{Result: &api.Result{Output: f.output}}, nil
}

func (f *fakeRuntime) Close() { f.closed = true }

func TestClassifyParsesIntent(t *testing.T) {
	rt := &fakeRuntime{output: `{"intent":"gym_workout"}`}
	c := New(rt)

	intent, err := c.Classify(context.Background(), "went to the gym")
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if intent != IntentGymWorkout {
		t.Fatalf("intent = %q", intent)
	}
	if !strings.Contains(rt.prompt, "went to the gym") {
		t.Fatal("expected the message in the prompt")
	}
}

func TestClassifyStripsCodeFences(t *testing.T) {
	rt := &fakeRuntime{output: "```json\n{\"intent\":\"food_logging\"}\n```"}
	c := New(rt)

	intent, err := c.Classify(context.Background(), "ate biryani")
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if intent != IntentFoodLogging {
		t.Fatalf("intent = %q", intent)
	}
}

func TestClassifyUnrecognizedBecomesUnknown(t *testing.T) {
	rt := &fakeRuntime{output: `{"intent":"world_domination"}`}
	c := New(rt)

	intent, err := c.Classify(context.Background(), "whatever")
	if err != nil {
		t.Fatalf("Classify error: %v", err)
	}
	if intent != IntentUnknown {
		t.Fatalf("intent = %q, want unknown", intent)
	}
}

func TestExtractEntities(t *testing.T) {
	rt := &fakeRuntime{output: `{"entities":{"amount":["500ml"],"food":["biryani"]}}`}
	c := New(rt)

	entities, err := c.ExtractEntities(context.Background(), "500ml of water with biryani")
	if err != nil {
		t.Fatalf("ExtractEntities error: %v", err)
	}
	if len(entities["amount"]) != 1 || entities["amount"][0] != "500ml" {
		t.Fatalf("unexpected entities: %+v", entities)
	}
}

func TestGuessIntent(t *testing.T) {
	rt := &fakeRuntime{output: `{"intent":"gym_workout","confidence":0.7,"reason":"sounds like exercise"}`}
	c := New(rt)

	g, err := c.GuessIntent(context.Background(), "crushed a dhamaka")
	if err != nil {
		t.Fatalf("GuessIntent error: %v", err)
	}
	if g == nil || g.Intent != IntentGymWorkout || g.Confidence != 0.7 {
		t.Fatalf("unexpected guess: %+v", g)
	}
}

func TestGuessIntentNoRealGuess(t *testing.T) {
	rt := &fakeRuntime{output: `{"intent":"unknown","confidence":0,"reason":""}`}
	c := New(rt)

	g, err := c.GuessIntent(context.Background(), "zorp")
	if err != nil {
		t.Fatalf("GuessIntent error: %v", err)
	}
	if g != nil {
		t.Fatalf("expected nil guess, got %+v", g)
	}
}

func TestCloseClosesRuntime(t *testing.T) {
	rt := &fakeRuntime{}
	c := New(rt)
	c.Close()
	if !rt.closed {
		t.Fatal("expected runtime closed")
	}
}

func TestCanonicalIntent(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"workout", IntentGymWorkout, true},
		{"a workout", IntentGymWorkout, true},
		{"my homework", IntentAssignmentAdd, true},
		{"gym_workout", IntentGymWorkout, true},
		{"chaos", "", false},
	}
	for _, tt := range tests {
		got, ok := CanonicalIntent(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("CanonicalIntent(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
