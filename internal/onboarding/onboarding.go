// Package onboarding walks a new user through initial preference capture
// before normal message handling takes over.
package onboarding

import (
	"fmt"
	"log"

	"github.com/sagrawal11/alfred-sub000/internal/store"
)

// Flow steps, in order. A reply at step N configures that preference and
// advances to N+1; StepDone means the user is fully set up.
const (
	StepReminderStyle = iota
	StepVoiceStyle
	StepBottleSize
	StepCheckinHour
	StepDone
)

// UserStore persists onboarding results.
type UserStore interface {
	SaveUser(u *store.User) error
}

// Flow drives the first-run conversation for a user.
type Flow struct {
	users           UserStore
	defaultBottleML int
}

func NewFlow(users UserStore, defaultBottleML int) *Flow {
	return &Flow{users: users, defaultBottleML: defaultBottleML}
}

// Welcome returns the greeting plus the first question. The caller stores
// step StepReminderStyle on the session before sending these.
func (f *Flow) Welcome() []string {
	return []string{
		"Hi, I'm Alfred. I'll help you track workouts, meals, todos and reminders. A few quick questions to get set up.",
		prompts[StepReminderStyle],
	}
}

var prompts = map[int]string{
	StepReminderStyle: "How should I handle reminders? Persistent nudging, or relaxed and hands-off?",
	StepVoiceStyle:    "How should I talk to you? Formal, casual, or playful?",
	StepBottleSize:    "How big is your water bottle? (e.g. \"750ml\", \"1 liter\", \"24 oz\", or \"standard\")",
	StepCheckinHour:   "What time should I check in each morning? (e.g. \"8am\" or \"20:00\")",
}

// HandleReply consumes one user reply at the given step. It returns the
// messages to send, the next step, and whether onboarding finished. Style
// questions accept anything; the bottle and check-in questions re-ask on
// input they cannot parse.
func (f *Flow) HandleReply(user *store.User, step int, reply string) (msgs []string, next int, done bool) {
	switch step {
	case StepReminderStyle:
		user.ReminderStyle = ReminderStyleBucket(reply)
		f.save(user)
		return []string{prompts[StepVoiceStyle]}, StepVoiceStyle, false

	case StepVoiceStyle:
		user.VoiceStyle = VoiceStyleBucket(reply)
		f.save(user)
		return []string{prompts[StepBottleSize]}, StepBottleSize, false

	case StepBottleSize:
		ml, ok := ParseVolumeML(reply, f.defaultBottleML)
		if !ok {
			return []string{"I didn't catch a size there. " + prompts[StepBottleSize]}, StepBottleSize, false
		}
		user.BottleSizeML = ml
		f.save(user)
		return []string{prompts[StepCheckinHour]}, StepCheckinHour, false

	case StepCheckinHour:
		hour, ok := ParseHour(reply)
		if !ok {
			return []string{"That doesn't look like a time. " + prompts[StepCheckinHour]}, StepCheckinHour, false
		}
		user.CheckinHour = hour
		user.OnboardingComplete = true
		f.save(user)
		return []string{fmt.Sprintf("All set. I'll check in around %d:00. Just talk to me normally from here on.", hour)}, StepDone, true
	}

	// Unknown step: treat the flow as finished rather than trapping the user.
	log.Printf("[onboarding] unexpected step %d for user %s", step, user.ID)
	user.OnboardingComplete = true
	f.save(user)
	return nil, StepDone, true
}

func (f *Flow) save(u *store.User) {
	if err := f.users.SaveUser(u); err != nil {
		log.Printf("[onboarding] save user %s: %v", u.ID, err)
	}
}
