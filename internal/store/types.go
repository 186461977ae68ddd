package store

import "time"

// Pattern types.
const (
	PatternIntent  = "intent"
	PatternEntity  = "entity"
	PatternSynonym = "synonym"
)

// Item types.
const (
	ItemTodo     = "todo"
	ItemReminder = "reminder"
)

// LearnedPattern is a user-scoped (term -> value) association. The tuple
// (UserID, Term, Type, Value) is unique; re-learning updates in place.
type LearnedPattern struct {
	ID           int64
	UserID       string
	Term         string
	Type         string
	Value        string
	Confidence   float64
	UsageCount   int
	SuccessCount int
	FailureCount int
	Context      string
	LastUsed     time.Time
	CreatedAt    time.Time
}

// Effectiveness is success/(success+failure), or 0 with no outcomes yet.
func (p *LearnedPattern) Effectiveness() float64 {
	total := p.SuccessCount + p.FailureCount
	if total == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(total)
}

// Item is a todo or reminder tracked through the follow-up/decay lifecycle.
type Item struct {
	ID             int64
	UserID         string
	Type           string
	Content        string
	DueDate        *time.Time
	Completed      bool
	SentAt         *time.Time
	FollowUpSent   bool
	DecayCheckSent bool
	CreatedAt      time.Time
}

// User is the persisted profile. ChatID/Channel record where the user last
// talked to us so sweeps can reach them.
type User struct {
	ID                 string
	Phone              string
	Channel            string
	ChatID             string
	OnboardingComplete bool
	ReminderStyle      string
	VoiceStyle         string
	BottleSizeML       int
	CheckinHour        int
	CreatedAt          time.Time
}

// LogEntry is one logged life event (food, water, workout, sleep).
type LogEntry struct {
	ID        int64
	UserID    string
	Kind      string
	Content   string
	Quantity  float64
	CreatedAt time.Time
}
