// Package engine turns one inbound message into replies. It resolves what the
// user meant — pending menus and confirmations first, then onboarding, then
// learned associations, then the external classifier — and dispatches to the
// matching handler. A guessed intent is never executed without the user
// confirming it first.
package engine

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/sagrawal11/alfred-sub000/internal/classifier"
	"github.com/sagrawal11/alfred-sub000/internal/learning"
	"github.com/sagrawal11/alfred-sub000/internal/onboarding"
	"github.com/sagrawal11/alfred-sub000/internal/session"
	"github.com/sagrawal11/alfred-sub000/internal/store"
)

// Life-log kinds.
const (
	logWorkout = "workout"
	logFood    = "food"
	logWater   = "water"
	logSleep   = "sleep"
)

const fallbackReply = "I'm not sure what you mean. You can log workouts, meals, water and sleep, manage todos, or set reminders."

// FollowUpResolver answers messages that respond to an outstanding
// reschedule offer.
type FollowUpResolver interface {
	ResolveReply(userID, message string) (string, bool)
}

// Engine is the per-message brain. One instance serves all users; turns for
// the same user are serialized.
type Engine struct {
	store      *store.Store
	sessions   *session.Manager
	classifier classifier.Classifier
	learning   *learning.Orchestrator
	flow       *onboarding.Flow
	followups  FollowUpResolver

	guessThreshold  float64
	defaultBottleML int
	now             func() time.Time

	mu    sync.Mutex
	locks map[string]*userLock
}

// userLock serializes turns for one user. The refs count lets lockUser drop
// the entry once nobody is holding or waiting on it, so the map tracks only
// in-flight users.
type userLock struct {
	mu   sync.Mutex
	refs int
}

func New(st *store.Store, sessions *session.Manager, cls classifier.Classifier, orch *learning.Orchestrator, flow *onboarding.Flow, followups FollowUpResolver, guessThreshold float64, defaultBottleML int) *Engine {
	return &Engine{
		store:           st,
		sessions:        sessions,
		classifier:      cls,
		learning:        orch,
		flow:            flow,
		followups:       followups,
		guessThreshold:  guessThreshold,
		defaultBottleML: defaultBottleML,
		now:             time.Now,
		locks:           make(map[string]*userLock),
	}
}

// SetNow injects a clock for tests.
func (e *Engine) SetNow(now func() time.Time) {
	e.now = now
}

func (e *Engine) lockUser(userID string) func() {
	e.mu.Lock()
	l, ok := e.locks[userID]
	if !ok {
		l = &userLock{}
		e.locks[userID] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, userID)
		}
		e.mu.Unlock()
	}
}

// ProcessTurn handles one inbound message end to end and returns the replies
// to send. It never panics outward; a handler blow-up degrades to an apology.
func (e *Engine) ProcessTurn(ctx context.Context, userID, message string) (replies []string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[engine] panic handling message from %s: %v", userID, r)
			replies = []string{"Something went wrong on my end. Mind trying that again?"}
		}
	}()

	unlock := e.lockUser(userID)
	defer unlock()

	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}

	now := e.now()
	sess := e.sessions.GetOrCreate(userID)
	user, err := e.ensureUser(userID)
	if err != nil {
		log.Printf("[engine] load user %s: %v", userID, err)
		return []string{"I'm having trouble reaching my memory right now. Try again in a moment."}
	}

	turn := &Turn{User: user, Session: sess, Message: message, Now: now}

	// An outstanding reschedule offer gets first claim on the message.
	if e.followups != nil {
		if reply, ok := e.followups.ResolveReply(userID, message); ok {
			e.finishTurn(turn, "followup_reply", reply, true, nil)
			return []string{reply}
		}
	}

	switch p := sess.Pending.(type) {
	case *session.PendingSelection:
		if out, handled := e.resolveSelection(turn, p); handled {
			return out
		}
		// Not a pick; drop the menu and read the message normally.
		e.sessions.SetPending(userID, nil)
	case *session.PendingConfirmation:
		return e.resolveConfirmation(ctx, turn, p)
	case *session.OnboardingState:
		return e.resolveOnboarding(turn, p)
	}

	if !user.OnboardingComplete {
		e.sessions.SetPending(userID, &session.OnboardingState{Step: onboarding.StepReminderStyle})
		return e.flow.Welcome()
	}

	// Read the message against the previous turn first; a bare "no, that was
	// lunch" is feedback, not a new request.
	e.learning.ObserveReply(userID, message)

	if out, ok := e.resolveTeaching(turn); ok {
		return out
	}
	if out, ok := e.resolveMemoryCommand(turn); ok {
		return out
	}

	intent, sugg := e.resolveIntent(ctx, userID, message)
	if intent == classifier.IntentUnknown {
		return e.guessOrGiveUp(ctx, turn, sugg)
	}

	turn.Intent = intent
	turn.Entities = e.resolveEntities(ctx, message, sugg)
	return e.dispatch(turn, sugg)
}

// dispatch runs the handler for a resolved intent and records the outcome.
func (e *Engine) dispatch(turn *Turn, sugg *learning.Suggestion) []string {
	h, ok := e.handlers()[turn.Intent]
	if !ok {
		return []string{fallbackReply}
	}

	reply, err := h(turn)
	success := err == nil
	if err != nil {
		log.Printf("[engine] handle %s for %s: %v", turn.Intent, turn.User.ID, err)
		reply = "I couldn't finish that. Something went wrong saving it."
	}
	e.finishTurn(turn, turn.Intent, reply, success, sugg)
	return []string{reply}
}

func (e *Engine) finishTurn(turn *Turn, intent, reply string, success bool, sugg *learning.Suggestion) {
	e.learning.ObserveTurn(turn.User.ID, turn.Message, intent, reply, success, sugg)
	e.sessions.AppendHistory(turn.User.ID, session.HistoryEntry{
		Message:   turn.Message,
		Intent:    intent,
		Response:  reply,
		Timestamp: turn.Now,
	})
}

// resolveIntent tries learned associations before paying for a classifier
// call. A confident learned intent wins outright.
func (e *Engine) resolveIntent(ctx context.Context, userID, message string) (string, *learning.Suggestion) {
	sugg := e.learning.Suggest(userID, message)
	if sugg.HasIntent() && classifier.IsKnownIntent(sugg.Intent) {
		return sugg.Intent, sugg
	}

	intent, err := e.classifier.Classify(ctx, message)
	if err != nil {
		log.Printf("[engine] classify warning: %v", err)
		return classifier.IntentUnknown, sugg
	}
	return intent, sugg
}

// resolveEntities merges classifier entities with terms the user has taught.
func (e *Engine) resolveEntities(ctx context.Context, message string, sugg *learning.Suggestion) map[string][]string {
	entities, err := e.classifier.ExtractEntities(ctx, message)
	if err != nil {
		log.Printf("[engine] extract entities warning: %v", err)
		entities = map[string][]string{}
	}
	if entities == nil {
		entities = map[string][]string{}
	}
	for key, vals := range sugg.Entities {
		entities[key] = append(entities[key], vals...)
	}
	return entities
}

// guessOrGiveUp asks the classifier for a best guess. Anything confident
// enough becomes a yes/no question; it is never executed on its own.
func (e *Engine) guessOrGiveUp(ctx context.Context, turn *Turn, sugg *learning.Suggestion) []string {
	guess, err := e.classifier.GuessIntent(ctx, turn.Message)
	if err != nil {
		log.Printf("[engine] guess warning: %v", err)
	}
	if guess == nil || guess.Confidence <= e.guessThreshold || !classifier.IsKnownIntent(guess.Intent) {
		e.finishTurn(turn, classifier.IntentUnknown, fallbackReply, false, sugg)
		return []string{fallbackReply}
	}

	e.sessions.SetPending(turn.User.ID, &session.PendingConfirmation{
		Intent:          guess.Intent,
		OriginalMessage: turn.Message,
		Reason:          guess.Reason,
	})
	reply := fmt.Sprintf("I'm not certain — did you mean %s? (yes/no)", intentLabel(guess.Intent))
	e.finishTurn(turn, classifier.IntentUnknown, reply, false, sugg)
	return []string{reply}
}

var positiveWords = map[string]bool{
	"yes": true, "yep": true, "yeah": true, "correct": true, "right": true,
	"sure": true, "ok": true, "okay": true, "confirm": true, "true": true, "1": true,
}

var negativeWords = map[string]bool{
	"no": true, "nope": true, "wrong": true, "false": true, "0": true,
	"cancel": true, "nah": true,
}

// messageWords splits a message into lower-cased words, dropping punctuation.
func messageWords(message string) []string {
	return strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsWord(words []string, set map[string]bool) bool {
	for _, w := range words {
		if set[w] {
			return true
		}
	}
	return false
}

// resolveConfirmation answers a stored yes/no question. Yes executes the
// guessed intent against the original message and seeds weak associations so
// the guess isn't needed next time; no drops it; anything else re-asks.
// Negation is checked first so "no, that's not right" doesn't read as a yes.
func (e *Engine) resolveConfirmation(ctx context.Context, turn *Turn, p *session.PendingConfirmation) []string {
	words := messageWords(turn.Message)

	switch {
	case containsWord(words, negativeWords):
		e.sessions.SetPending(turn.User.ID, nil)
		reply := "Got it, scrapping that guess. What did you mean?"
		e.finishTurn(turn, "confirmation_declined", reply, true, nil)
		return []string{reply}

	case containsWord(words, positiveWords):
		e.sessions.SetPending(turn.User.ID, nil)
		e.learning.ObserveConfirmedGuess(turn.User.ID, p.OriginalMessage, p.Intent)

		confirmed := &Turn{
			User:     turn.User,
			Session:  turn.Session,
			Message:  p.OriginalMessage,
			Intent:   p.Intent,
			Entities: p.Entities,
			Now:      turn.Now,
		}
		if confirmed.Entities == nil {
			confirmed.Entities = e.resolveEntities(ctx, p.OriginalMessage, &learning.Suggestion{})
		}
		return e.dispatch(confirmed, nil)

	default:
		return []string{fmt.Sprintf("Quick yes or no: did you mean %s?", intentLabel(p.Intent))}
	}
}

// firstInt returns the first integer token in the message, trimming
// punctuation, so "2 please" and "option 2" both read as 2.
func firstInt(message string) (int, bool) {
	for _, f := range strings.Fields(message) {
		if n, err := strconv.Atoi(strings.Trim(f, ".,!?")); err == nil {
			return n, true
		}
	}
	return 0, false
}

// resolveSelection interprets a message as a pick from a numbered menu, by
// number or, for the decay menu, by option keyword ("keep", "delete it").
// Reports false when the message picks nothing, so the caller can clear the
// menu and process it normally.
func (e *Engine) resolveSelection(turn *Turn, p *session.PendingSelection) ([]string, bool) {
	var opt session.Option
	if n, ok := firstInt(turn.Message); ok {
		if n < 1 || n > len(p.Options) {
			return []string{fmt.Sprintf("Pick a number between 1 and %d.", len(p.Options))}, true
		}
		opt = p.Options[n-1]
	} else if p.Kind == session.SelectionDecayMenu {
		words := messageWords(turn.Message)
		found := false
		for _, o := range p.Options {
			for _, w := range words {
				if w == o.Value {
					opt = o
					found = true
				}
			}
		}
		if !found {
			return nil, false
		}
	} else {
		return nil, false
	}

	e.sessions.SetPending(turn.User.ID, nil)

	var reply string
	switch p.Kind {
	case session.SelectionDecayMenu:
		reply = e.applyDecayChoice(opt)
	case session.SelectionFactDeletion:
		if err := e.store.DeletePattern(opt.Ref); err != nil {
			log.Printf("[engine] delete pattern %d: %v", opt.Ref, err)
			reply = "Something went wrong forgetting that."
		} else {
			reply = fmt.Sprintf("Forgotten: %s.", opt.Label)
		}
	case session.SelectionFactQuery:
		reply = opt.Label
	default: // SelectionWhatHappened
		if err := e.store.MarkItemCompleted(opt.Ref); err != nil {
			log.Printf("[engine] complete item %d: %v", opt.Ref, err)
			reply = "Something went wrong updating that."
		} else {
			reply = "Done: " + opt.Label
		}
	}

	e.finishTurn(turn, "selection:"+p.Kind, reply, true, nil)
	return []string{reply}, true
}

func (e *Engine) applyDecayChoice(opt session.Option) string {
	switch opt.Value {
	case "keep":
		return "Okay, it stays on the list."
	case "reschedule":
		due := clockTime(e.now(), 9, 0, true)
		if err := e.store.RescheduleItem(opt.Ref, due); err != nil {
			log.Printf("[engine] reschedule item %d: %v", opt.Ref, err)
			return "Something went wrong rescheduling that."
		}
		return "Moved to tomorrow morning."
	case "delete":
		if err := e.store.DeleteItem(opt.Ref); err != nil {
			log.Printf("[engine] delete item %d: %v", opt.Ref, err)
			return "Something went wrong deleting that."
		}
		return "Gone."
	}
	return "Okay."
}

// resolveOnboarding advances the setup flow one step.
func (e *Engine) resolveOnboarding(turn *Turn, p *session.OnboardingState) []string {
	msgs, next, done := e.flow.HandleReply(turn.User, p.Step, turn.Message)
	if done {
		e.sessions.SetPending(turn.User.ID, nil)
	} else {
		e.sessions.SetPending(turn.User.ID, &session.OnboardingState{Step: next})
	}
	return msgs
}

// resolveTeaching acknowledges explicit "X means Y" style messages.
func (e *Engine) resolveTeaching(turn *Turn) ([]string, bool) {
	cands := learning.ExtractTeaching(turn.Message)
	if len(cands) == 0 {
		return nil, false
	}

	e.learning.ObserveTurn(turn.User.ID, turn.Message, "teaching", "", true, nil)

	parts := make([]string, 0, len(cands))
	for _, c := range cands {
		parts = append(parts, fmt.Sprintf("\"%s\" counts as %s", c.Term, intentLabel(c.Value)))
	}
	reply := "Got it — " + strings.Join(parts, "; ") + ". I'll remember that."
	e.sessions.AppendHistory(turn.User.ID, session.HistoryEntry{
		Message: turn.Message, Intent: "teaching", Response: reply, Timestamp: turn.Now,
	})
	return []string{reply}, true
}

// resolveMemoryCommand handles "what have you learned" and "forget ..."
// requests over the learned pattern store.
func (e *Engine) resolveMemoryCommand(turn *Turn) ([]string, bool) {
	lower := strings.ToLower(turn.Message)

	switch {
	case strings.Contains(lower, "what have you learned"), strings.Contains(lower, "what do you know about me"):
		patterns, err := e.store.PatternsAbove(turn.User.ID, 0)
		if err != nil {
			log.Printf("[engine] list patterns: %v", err)
			return []string{"I couldn't read my notes just now."}, true
		}
		if len(patterns) == 0 {
			return []string{"Nothing yet. Teach me with something like \"dhamaka means workout\"."}, true
		}
		var b strings.Builder
		b.WriteString("Here's what I've picked up:")
		opts := make([]session.Option, 0, len(patterns))
		for i, p := range patterns {
			label := fmt.Sprintf("\"%s\" → %s (%.0f%% confident)", p.Term, intentLabel(p.Value), p.Confidence*100)
			fmt.Fprintf(&b, "\n%d. %s", i+1, label)
			opts = append(opts, session.Option{Label: label, Value: p.Value, Ref: p.ID})
		}
		b.WriteString("\nReply with a number for details.")
		e.sessions.SetPending(turn.User.ID, &session.PendingSelection{
			Kind: session.SelectionFactQuery, Options: opts, CreatedAt: turn.Now,
		})
		return []string{b.String()}, true

	case strings.HasPrefix(lower, "forget "):
		topic := strings.TrimSpace(turn.Message[len("forget "):])
		patterns, err := e.store.PatternsAbove(turn.User.ID, 0)
		if err != nil {
			log.Printf("[engine] list patterns: %v", err)
			return []string{"I couldn't read my notes just now."}, true
		}
		var matched []store.LearnedPattern
		for _, p := range patterns {
			if strings.Contains(strings.ToLower(p.Term), strings.ToLower(topic)) ||
				strings.Contains(strings.ToLower(p.Value), strings.ToLower(topic)) {
				matched = append(matched, p)
			}
		}
		if len(matched) == 0 {
			return []string{fmt.Sprintf("I don't have anything learned about \"%s\".", topic)}, true
		}
		if len(matched) == 1 {
			if err := e.store.DeletePattern(matched[0].ID); err != nil {
				log.Printf("[engine] delete pattern %d: %v", matched[0].ID, err)
				return []string{"Something went wrong forgetting that."}, true
			}
			return []string{fmt.Sprintf("Forgotten: \"%s\".", matched[0].Term)}, true
		}
		var b strings.Builder
		b.WriteString("Which one should I forget?")
		opts := make([]session.Option, 0, len(matched))
		for i, p := range matched {
			label := fmt.Sprintf("\"%s\" → %s", p.Term, intentLabel(p.Value))
			fmt.Fprintf(&b, "\n%d. %s", i+1, label)
			opts = append(opts, session.Option{Label: label, Value: p.Value, Ref: p.ID})
		}
		e.sessions.SetPending(turn.User.ID, &session.PendingSelection{
			Kind: session.SelectionFactDeletion, Options: opts, CreatedAt: turn.Now,
		})
		return []string{b.String()}, true
	}

	return nil, false
}

// ensureUser loads the profile, creating a blank row on first contact.
func (e *Engine) ensureUser(userID string) (*store.User, error) {
	user, err := e.store.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &store.User{ID: userID}
		if err := e.store.SaveUser(user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

var intentLabels = map[string]string{
	classifier.IntentGymWorkout:    "a workout",
	classifier.IntentFoodLogging:   "logging food",
	classifier.IntentWaterLogging:  "logging water",
	classifier.IntentSleepLogging:  "logging sleep",
	classifier.IntentTodoAdd:       "adding a todo",
	classifier.IntentTodoList:      "listing your todos",
	classifier.IntentTodoComplete:  "finishing a todo",
	classifier.IntentReminderSet:   "setting a reminder",
	classifier.IntentAssignmentAdd: "tracking an assignment",
	classifier.IntentStatsQuery:    "your stats",
}

func intentLabel(intent string) string {
	if l, ok := intentLabels[intent]; ok {
		return l
	}
	return intent
}
