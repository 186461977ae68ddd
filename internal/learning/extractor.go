package learning

import (
	"regexp"
	"strings"

	"github.com/sagrawal11/alfred-sub000/internal/classifier"
	"github.com/sagrawal11/alfred-sub000/internal/store"
)

// Candidate is one extracted (term -> intent) association with the
// confidence the phrasing warrants.
type Candidate struct {
	Term       string
	Type       string
	Value      string
	Confidence float64
}

// Teaching phrasings, checked in order. "count/log it as" is handled by the
// clause form; the bare "count X as" form rejects pronoun placeholders.
var (
	reMeans     = regexp.MustCompile(`^\s*"?([a-z][a-z0-9' -]{1,40}?)"?\s+(?:means|equals|is)\s+(.+?)\s*$`)
	reCountAs   = regexp.MustCompile(`\b(?:count|log)\s+([a-z][a-z0-9']*)\s+as\s+(.+?)\s*$`)
	reWhenISay  = regexp.MustCompile(`\bwhen\s+i\s+say\s+"?([a-z][a-z0-9' -]{1,40}?)"?\s*,?\s+(?:log|count|treat)\s+it\s+as\s+(.+?)\s*$`)
	reClauseAs  = regexp.MustCompile(`^(.{2,80}?),\s*(?:count|log)\s+it\s+as\s+(.+?)\s*$`)
	reTokenizer = regexp.MustCompile(`[a-z][a-z0-9']*`)
)

var pronounPlaceholders = map[string]bool{
	"it": true, "this": true, "that": true, "them": true, "these": true, "those": true,
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "i": true, "my": true, "me": true,
	"we": true, "our": true, "you": true, "it": true, "this": true, "that": true,
	"is": true, "are": true, "was": true, "were": true, "had": true, "have": true,
	"has": true, "do": true, "did": true, "does": true, "went": true, "got": true,
	"get": true, "go": true, "just": true, "some": true, "and": true, "with": true,
	"for": true, "to": true, "at": true, "in": true, "on": true, "of": true,
	"today": true, "tomorrow": true, "yesterday": true, "tonight": true,
	"morning": true, "evening": true, "afternoon": true, "night": true,
	"practice": true, "session": true, "class": true, "thing": true, "stuff": true,
}

var penalizedSuffixes = []string{"ing", "ed", "ly", "er", "est"}

// ExtractTeaching parses explicit-teaching phrasings out of a message and
// returns zero or more intent-pattern candidates. Values outside the intent
// vocabulary yield nothing.
func ExtractTeaching(message string) []Candidate {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return nil
	}

	var out []Candidate
	add := func(term, value string, confidence float64) {
		term = strings.TrimSpace(term)
		if term == "" || pronounPlaceholders[term] {
			return
		}
		intent, ok := classifier.CanonicalIntent(value)
		if !ok {
			return
		}
		for _, c := range out {
			if c.Term == term && c.Value == intent {
				return
			}
		}
		out = append(out, Candidate{
			Term:       term,
			Type:       store.PatternIntent,
			Value:      intent,
			Confidence: confidence,
		})
	}

	if m := reWhenISay.FindStringSubmatch(msg); m != nil {
		add(m[1], m[2], 0.9)
	}
	if m := reMeans.FindStringSubmatch(msg); m != nil {
		add(m[1], m[2], 0.9)
	}
	if m := reCountAs.FindStringSubmatch(msg); m != nil {
		add(m[1], m[2], 0.9)
	}
	if m := reClauseAs.FindStringSubmatch(msg); m != nil {
		if term := bestClauseTerm(m[1]); term != "" {
			add(term, m[2], 0.85)
		}
	}
	return out
}

// bestClauseTerm picks the teaching term out of a free-text clause: stop
// words are stripped, then the longest remaining token wins, with tokens
// ending in a common inflection suffix penalized so unusual vocabulary is
// preferred.
func bestClauseTerm(clause string) string {
	tokens := reTokenizer.FindAllString(strings.ToLower(clause), -1)

	best := ""
	bestScore := 0
	for _, tok := range tokens {
		if len(tok) < 3 || stopWords[tok] {
			continue
		}
		score := len(tok)
		for _, suf := range penalizedSuffixes {
			if strings.HasSuffix(tok, suf) {
				score -= len(suf) + 2
				break
			}
		}
		if score > bestScore {
			best = tok
			bestScore = score
		}
	}
	return best
}

// AmbiguousTerms returns the words of a message worth remembering when the
// intent could not be resolved: anything longer than four characters that is
// not a stop word.
func AmbiguousTerms(message string) []string {
	tokens := reTokenizer.FindAllString(strings.ToLower(message), -1)
	var out []string
	for _, tok := range tokens {
		if len(tok) > 4 && !stopWords[tok] {
			out = append(out, tok)
		}
	}
	return out
}
