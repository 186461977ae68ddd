package learning

import (
	"log"
	"sync"

	"github.com/sagrawal11/alfred-sub000/internal/store"
)

const ambiguousSeedConfidence = 0.3

// Orchestrator drives the learning loop around every turn. Persistence
// failures are logged and swallowed; learning must never abort a turn.
type Orchestrator struct {
	learner *Learner

	mu   sync.Mutex
	last map[string]*TurnRecord // most recent observed turn per user
}

// TurnRecord is what the orchestrator remembers about a turn so the next
// message can be read as a correction or confirmation of it.
type TurnRecord struct {
	Message    string
	Intent     string
	Response   string
	Suggestion *Suggestion
}

func NewOrchestrator(learner *Learner) *Orchestrator {
	return &Orchestrator{
		learner: learner,
		last:    make(map[string]*TurnRecord),
	}
}

// Suggest applies learned patterns to a fresh message. Errors degrade to an
// empty suggestion.
func (o *Orchestrator) Suggest(userID, message string) *Suggestion {
	sugg, err := o.learner.Apply(userID, message)
	if err != nil {
		log.Printf("[learning] apply patterns warning: %v", err)
		return &Suggestion{Entities: map[string][]string{}}
	}
	return sugg
}

// ObserveReply inspects a new inbound message as a potential follow-up to
// the user's previous turn, reinforcing whatever patterns drove it.
func (o *Orchestrator) ObserveReply(userID, reply string) {
	o.mu.Lock()
	prev := o.last[userID]
	o.mu.Unlock()
	if prev == nil || prev.Suggestion == nil || len(prev.Suggestion.Matched) == 0 {
		return
	}

	opp, ok := DetectOpportunity(prev.Message, prev.Intent, prev.Response, reply)
	if !ok {
		return
	}

	switch opp.Kind {
	case OpportunityCorrect:
		o.reinforceMatched(userID, prev.Suggestion.Matched, false)
		o.forget(userID)
	case OpportunityConfirm:
		o.reinforceMatched(userID, prev.Suggestion.Matched, true)
		o.forget(userID)
	}
}

// ObserveTurn records the outcome of a completed turn: explicit teaching is
// learned, and successful suggested turns reinforce the patterns that drove
// them.
func (o *Orchestrator) ObserveTurn(userID, message, intent, response string, success bool, sugg *Suggestion) {
	opp, ok := DetectOpportunity(message, intent, response, "")
	if ok {
		switch opp.Kind {
		case OpportunityTeaching:
			for _, c := range opp.Candidates {
				if err := o.learner.Learn(userID, c.Term, c.Type, c.Value, c.Confidence, message); err != nil {
					log.Printf("[learning] learn %q warning: %v", c.Term, err)
				}
			}
		}
	}

	if success && sugg != nil && sugg.HasIntent() {
		o.reinforceMatched(userID, sugg.Matched, true)
	}

	o.mu.Lock()
	o.last[userID] = &TurnRecord{
		Message:    message,
		Intent:     intent,
		Response:   response,
		Suggestion: sugg,
	}
	o.mu.Unlock()
}

// ObserveConfirmedGuess seeds weak intent associations for a message that
// could not be classified until the user confirmed a guess: its unusual words
// each pick up a low-confidence link to the confirmed intent, so the next
// occurrence can be suggested instead of guessed.
func (o *Orchestrator) ObserveConfirmedGuess(userID, message, intent string) {
	if intent == "" || intent == "unknown" {
		return
	}
	for _, term := range AmbiguousTerms(message) {
		if err := o.learner.Learn(userID, term, store.PatternIntent, intent, ambiguousSeedConfidence, message); err != nil {
			log.Printf("[learning] seed %q warning: %v", term, err)
		}
	}
}

// Prune drops a user's patterns below the prune threshold.
func (o *Orchestrator) Prune(userID string) {
	if n, err := o.learner.Prune(userID); err != nil {
		log.Printf("[learning] prune warning: %v", err)
	} else if n > 0 {
		log.Printf("[learning] pruned %d weak patterns for %s", n, userID)
	}
}

func (o *Orchestrator) reinforceMatched(userID string, matched []Match, success bool) {
	for _, m := range matched {
		if err := o.learner.Reinforce(userID, m.Term, m.Type, m.Value, success); err != nil {
			log.Printf("[learning] reinforce %q warning: %v", m.Term, err)
		}
	}
}

func (o *Orchestrator) forget(userID string) {
	o.mu.Lock()
	delete(o.last, userID)
	o.mu.Unlock()
}
