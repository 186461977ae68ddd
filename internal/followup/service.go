// Package followup runs the reminder lifecycle sweeps: firing due reminders,
// checking back on ones that went out, and surfacing todos that sat untouched
// long enough to question.
package followup

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/sagrawal11/alfred-sub000/internal/onboarding"
	"github.com/sagrawal11/alfred-sub000/internal/session"
	"github.com/sagrawal11/alfred-sub000/internal/store"
)

// ItemStore is the slice of persistence the sweeps need.
type ItemStore interface {
	DueReminders(now time.Time) ([]store.Item, error)
	FollowUpCandidates() ([]store.Item, error)
	DecayCandidates() ([]store.Item, error)
	GetUser(id string) (*store.User, error)
	MarkReminderSent(id int64, at time.Time) error
	MarkFollowUpSent(id int64) error
	MarkDecayCheckSent(id int64) error
	MarkItemCompleted(id int64) error
	RescheduleItem(id int64, due time.Time) error
}

// Notifier delivers an out-of-band message to a user. A send error leaves the
// item unmarked so the next sweep retries it.
type Notifier interface {
	Notify(userID, text string) error
}

// Offer is a pending reschedule proposal attached to a follow-up nudge.
type Offer struct {
	ItemID  int64
	Content string
	Slots   []time.Time
}

// Service owns the three sweeps and the reply side of reschedule offers.
type Service struct {
	items    ItemStore
	notifier Notifier
	sessions *session.Manager

	delay          time.Duration // quiet period after a reminder fires
	decayAge       time.Duration // todo age before the keep/drop question
	cutoffHour     int           // no same-day reschedule offers at or past this hour
	autoReschedule bool          // overdue nudges come with reschedule slots

	mu     sync.Mutex
	offers map[string]*Offer
	now    func() time.Time
}

func NewService(items ItemStore, notifier Notifier, sessions *session.Manager, delay, decayAge time.Duration, cutoffHour int, autoReschedule bool) *Service {
	return &Service{
		items:          items,
		notifier:       notifier,
		sessions:       sessions,
		delay:          delay,
		decayAge:       decayAge,
		cutoffHour:     cutoffHour,
		autoReschedule: autoReschedule,
		offers:         make(map[string]*Offer),
		now:            time.Now,
	}
}

// SetNow injects a clock for tests.
func (s *Service) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Service) clock() func() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// RunReminderSweep fires every reminder whose due time has passed. The sent
// marker is written only after the message actually went out.
func (s *Service) RunReminderSweep(ctx context.Context) {
	now := s.clock()()
	due, err := s.items.DueReminders(now)
	if err != nil {
		log.Printf("[followup] reminder sweep: %v", err)
		return
	}
	for _, it := range due {
		if ctx.Err() != nil {
			return
		}
		if err := s.notifier.Notify(it.UserID, "Reminder: "+it.Content); err != nil {
			log.Printf("[followup] send reminder %d: %v", it.ID, err)
			continue
		}
		if err := s.items.MarkReminderSent(it.ID, now); err != nil {
			log.Printf("[followup] mark reminder %d sent: %v", it.ID, err)
		}
	}
}

// RunFollowUpSweep checks back on reminders that fired at least the quiet
// period ago and were never confirmed done. Overdue ones come with up to two
// reschedule slots; the nudge wording follows the user's reminder style.
func (s *Service) RunFollowUpSweep(ctx context.Context) {
	cands, err := s.items.FollowUpCandidates()
	if err != nil {
		log.Printf("[followup] follow-up sweep: %v", err)
		return
	}
	now := s.clock()()
	for _, it := range cands {
		if ctx.Err() != nil {
			return
		}
		if it.SentAt == nil || now.Sub(*it.SentAt) < s.delay {
			continue
		}

		user, err := s.items.GetUser(it.UserID)
		if err != nil {
			log.Printf("[followup] load user %s: %v", it.UserID, err)
			continue
		}
		style := ""
		if user != nil {
			style = user.ReminderStyle
		}

		msg := nudge(style, it.Content)
		var offer *Offer
		if s.autoReschedule && it.DueDate != nil && it.DueDate.Before(now) {
			offer = &Offer{ItemID: it.ID, Content: it.Content, Slots: s.rescheduleSlots(now)}
			msg += "\n" + offerText(offer)
		}

		if err := s.notifier.Notify(it.UserID, msg); err != nil {
			log.Printf("[followup] send follow-up %d: %v", it.ID, err)
			continue
		}
		if err := s.items.MarkFollowUpSent(it.ID); err != nil {
			log.Printf("[followup] mark follow-up %d: %v", it.ID, err)
		}
		if offer != nil {
			s.mu.Lock()
			s.offers[it.UserID] = offer
			s.mu.Unlock()
		}
	}
}

// rescheduleSlots proposes at most two times: two hours out when that still
// lands before the evening cutoff, and tomorrow morning at nine.
func (s *Service) rescheduleSlots(now time.Time) []time.Time {
	var slots []time.Time
	inTwo := now.Add(2 * time.Hour)
	if inTwo.Hour() < s.cutoffHour && inTwo.Day() == now.Day() {
		slots = append(slots, inTwo)
	}
	tomorrow := now.AddDate(0, 0, 1)
	slots = append(slots, time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 9, 0, 0, 0, now.Location()))
	return slots
}

func nudge(style, content string) string {
	switch style {
	case onboarding.StylePersistent:
		return fmt.Sprintf("Hey — did \"%s\" happen? Don't let it slip.", content)
	case onboarding.StyleRelaxed:
		return fmt.Sprintf("No rush, but did you get to \"%s\"?", content)
	default:
		return fmt.Sprintf("Quick check: did \"%s\" get done?", content)
	}
}

func offerText(o *Offer) string {
	var b strings.Builder
	b.WriteString("Want me to reschedule it?")
	for i, slot := range o.Slots {
		fmt.Fprintf(&b, "\n%d. %s", i+1, slot.Format("Mon 3:04pm"))
	}
	b.WriteString("\nOr reply \"done\" or \"skip\".")
	return b.String()
}

// RunDecaySweep finds open todos older than the decay threshold and asks the
// user, once per item, whether to keep, reschedule or drop each one. The
// question lands as a numbered menu on the user's session.
func (s *Service) RunDecaySweep(ctx context.Context) {
	cands, err := s.items.DecayCandidates()
	if err != nil {
		log.Printf("[followup] decay sweep: %v", err)
		return
	}
	now := s.clock()()
	for _, it := range cands {
		if ctx.Err() != nil {
			return
		}
		if now.Sub(it.CreatedAt) < s.decayAge {
			continue
		}

		msg := fmt.Sprintf("\"%s\" has been sitting for a while. What should I do with it?\n1. Keep it\n2. Reschedule for tomorrow\n3. Delete it", it.Content)
		if err := s.notifier.Notify(it.UserID, msg); err != nil {
			log.Printf("[followup] send decay check %d: %v", it.ID, err)
			continue
		}
		if err := s.items.MarkDecayCheckSent(it.ID); err != nil {
			log.Printf("[followup] mark decay check %d: %v", it.ID, err)
		}

		s.sessions.GetOrCreate(it.UserID)
		s.sessions.SetPending(it.UserID, &session.PendingSelection{
			Kind:      session.SelectionDecayMenu,
			CreatedAt: now,
			Options: []session.Option{
				{Label: "Keep it", Value: "keep", Ref: it.ID},
				{Label: "Reschedule for tomorrow", Value: "reschedule", Ref: it.ID},
				{Label: "Delete it", Value: "delete", Ref: it.ID},
			},
		})
	}
}

var doneWords = []string{"yes", "yep", "done", "finished", "completed", "did it", "all set"}
var skipWords = []string{"no", "skip", "cancel", "nah", "later", "leave it", "ignore"}

// matchesAny reports whether any keyword appears in the message. Single words
// must match a whole word so "no" doesn't fire on "noted"; phrases match as
// substrings.
func matchesAny(lower string, words []string) bool {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if strings.Contains(w, " ") {
			if strings.Contains(lower, w) {
				return true
			}
			continue
		}
		for _, f := range fields {
			if f == w {
				return true
			}
		}
	}
	return false
}

// ResolveReply consumes a message as the answer to an outstanding reschedule
// offer. It reports false when the user has no offer or the message doesn't
// answer it; a non-matching message clears the offer so stale menus never
// capture an unrelated number later.
func (s *Service) ResolveReply(userID, message string) (string, bool) {
	s.mu.Lock()
	offer := s.offers[userID]
	if offer != nil {
		delete(s.offers, userID)
	}
	s.mu.Unlock()
	if offer == nil {
		return "", false
	}

	lower := strings.ToLower(strings.TrimSpace(message))
	if matchesAny(lower, doneWords) {
		if err := s.items.MarkItemCompleted(offer.ItemID); err != nil {
			log.Printf("[followup] complete item %d: %v", offer.ItemID, err)
			return "Something went wrong marking that done.", true
		}
		return "Nice, marked it done.", true
	}
	if fields := strings.Fields(lower); len(fields) > 0 {
		if n, err := strconv.Atoi(fields[0]); err == nil && n >= 1 && n <= len(offer.Slots) {
			slot := offer.Slots[n-1]
			if err := s.items.RescheduleItem(offer.ItemID, slot); err != nil {
				log.Printf("[followup] reschedule item %d: %v", offer.ItemID, err)
				return "Something went wrong rescheduling that.", true
			}
			return "Rescheduled for " + slot.Format("Mon 3:04pm") + ".", true
		}
	}
	if matchesAny(lower, skipWords) {
		return "No problem, I'll leave it alone.", true
	}
	return "", false
}
