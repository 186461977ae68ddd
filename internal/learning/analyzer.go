package learning

import "strings"

// OpportunityKind classifies how a turn can teach us something.
type OpportunityKind string

const (
	OpportunityNone     OpportunityKind = ""
	OpportunityTeaching OpportunityKind = "explicit_teaching"
	OpportunityCorrect  OpportunityKind = "correction"
	OpportunityConfirm  OpportunityKind = "confirmation"
	OpportunityAmbig    OpportunityKind = "ambiguous_term"
)

// Opportunity is a detected learning opening for one turn.
type Opportunity struct {
	Kind       OpportunityKind
	Candidates []Candidate // teaching candidates
	Terms      []string    // ambiguous terms
}

var correctionKeywords = []string{
	"no,", "no ", "nope", "not ", "wrong", "actually", "i meant", "that's not",
}

var confirmationKeywords = []string{
	"yes", "yep", "yeah", "correct", "right", "exactly", "perfect", "thanks", "thank you",
}

// DetectOpportunity classifies one turn. The reply, when present, is the
// user's follow-up to our previous response and signals correction or
// confirmation of how that turn was handled.
func DetectOpportunity(message, intent string, result, reply string) (Opportunity, bool) {
	if cands := ExtractTeaching(message); len(cands) > 0 {
		return Opportunity{Kind: OpportunityTeaching, Candidates: cands}, true
	}

	if reply != "" {
		lower := strings.ToLower(strings.TrimSpace(reply))
		if lower == "no" || containsAny(lower, correctionKeywords) {
			return Opportunity{Kind: OpportunityCorrect}, true
		}
		if containsAny(lower, confirmationKeywords) {
			return Opportunity{Kind: OpportunityConfirm}, true
		}
	}

	if intent == "" || intent == "unknown" {
		if terms := AmbiguousTerms(message); len(terms) > 0 {
			return Opportunity{Kind: OpportunityAmbig, Terms: terms}, true
		}
	}

	return Opportunity{}, false
}

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
