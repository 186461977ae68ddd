// Package session owns the per-user ephemeral conversation state: TTL-bounded
// sessions, the pending disambiguation slot and a short history window.
// Nothing here is persisted; an expired session is recreated blank.
package session

import (
	"log"
	"sync"
	"time"
)

// Selection kinds.
const (
	SelectionWhatHappened = "what_happened"
	SelectionFactQuery    = "fact_query"
	SelectionFactDeletion = "fact_deletion"
	SelectionDecayMenu    = "decay_menu"
)

// PendingState is the tagged union of disambiguation modes. A session is in
// at most one mode at a time; setting a new one replaces the old.
type PendingState interface {
	pendingState()
}

// PendingConfirmation waits for a yes/no on a guessed intent.
type PendingConfirmation struct {
	Intent          string
	OriginalMessage string
	Entities        map[string][]string
	Reason          string
}

// Option is one entry of a numbered menu.
type Option struct {
	Label string
	Value string
	Ref   int64 // item/pattern id when the option refers to a stored row
}

// PendingSelection waits for a numeric pick from a menu.
type PendingSelection struct {
	Kind      string
	Options   []Option
	CreatedAt time.Time
	Context   map[string]string
}

// OnboardingState tracks the sequential setup flow (steps 0..4).
type OnboardingState struct {
	Step int
}

func (*PendingConfirmation) pendingState() {}
func (*PendingSelection) pendingState()    {}
func (*OnboardingState) pendingState()     {}

// HistoryEntry is one completed turn.
type HistoryEntry struct {
	Message   string
	Intent    string
	Response  string
	Timestamp time.Time
}

// Session is the per-user ephemeral record.
type Session struct {
	UserID       string
	CreatedAt    time.Time
	LastActivity time.Time
	Pending      PendingState
	History      []HistoryEntry
}

// Manager owns all sessions. All methods are safe for concurrent use.
type Manager struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	ttl          time.Duration
	historyLimit int
	now          func() time.Time
}

func NewManager(ttl time.Duration, historyLimit int) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &Manager{
		sessions:     make(map[string]*Session),
		ttl:          ttl,
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

// SetNow injects a clock for tests.
func (m *Manager) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// GetOrCreate returns the live session for the user, refreshing its activity
// timestamp, or a brand-new blank one if none exists or the old one expired.
// Expired sessions are discarded whole, never partially restored.
func (m *Manager) GetOrCreate(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if s, ok := m.sessions[userID]; ok && now.Sub(s.LastActivity) < m.ttl {
		s.LastActivity = now
		return s
	}

	s := &Session{
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
	}
	m.sessions[userID] = s
	return s
}

// Touch refreshes the activity timestamp without creating a session.
func (m *Manager) Touch(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		s.LastActivity = m.now()
	}
}

// SetPending replaces the session's disambiguation mode (nil clears it).
func (m *Manager) SetPending(userID string, p PendingState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		s.Pending = p
		s.LastActivity = m.now()
	}
}

// AppendHistory records a completed turn, evicting the oldest entry past the
// cap.
func (m *Manager) AppendHistory(userID string, entry HistoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now()
	}
	s.History = append(s.History, entry)
	if len(s.History) > m.historyLimit {
		s.History = s.History[len(s.History)-m.historyLimit:]
	}
	s.LastActivity = m.now()
}

// Clear removes the session outright.
func (m *Manager) Clear(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// EvictExpired removes sessions idle past the TTL, independent of lookups,
// to bound memory. Returns the number evicted.
func (m *Manager) EvictExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	evicted := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity) >= m.ttl {
			delete(m.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		log.Printf("[session] evicted %d expired sessions", evicted)
	}
	return evicted
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
