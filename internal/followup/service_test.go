package followup

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sagrawal11/alfred-sub000/internal/session"
	"github.com/sagrawal11/alfred-sub000/internal/store"
)

type fakeItems struct {
	due        []store.Item
	followUps  []store.Item
	decaying   []store.Item
	users      map[string]*store.User
	sent       []int64
	followed   []int64
	decayed    []int64
	completed  []int64
	reschedule map[int64]time.Time
}

func newFakeItems() *fakeItems {
	return &fakeItems{
		users:      map[string]*store.User{},
		reschedule: map[int64]time.Time{},
	}
}

func (f *fakeItems) DueReminders(time.Time) ([]store.Item, error)  { return f.due, nil }
func (f *fakeItems) FollowUpCandidates() ([]store.Item, error)     { return f.followUps, nil }
func (f *fakeItems) DecayCandidates() ([]store.Item, error)        { return f.decaying, nil }
func (f *fakeItems) GetUser(id string) (*store.User, error)        { return f.users[id], nil }
func (f *fakeItems) MarkReminderSent(id int64, _ time.Time) error  { f.sent = append(f.sent, id); return nil }
func (f *fakeItems) MarkFollowUpSent(id int64) error               { f.followed = append(f.followed, id); return nil }
func (f *fakeItems) MarkDecayCheckSent(id int64) error             { f.decayed = append(f.decayed, id); return nil }
func (f *fakeItems) MarkItemCompleted(id int64) error              { f.completed = append(f.completed, id); return nil }
func (f *fakeItems) RescheduleItem(id int64, due time.Time) error  { f.reschedule[id] = due; return nil }

type fakeNotifier struct {
	sent []string
	fail bool
}

func (n *fakeNotifier) Notify(userID, text string) error {
	if n.fail {
		return errors.New("unreachable")
	}
	n.sent = append(n.sent, userID+": "+text)
	return nil
}

func newTestService(items ItemStore, n Notifier, now time.Time) (*Service, *session.Manager) {
	sessions := session.NewManager(30*time.Minute, 10)
	svc := NewService(items, n, sessions, 15*time.Minute, 7*24*time.Hour, 20, true)
	svc.SetNow(func() time.Time { return now })
	return svc, sessions
}

func TestReminderSweepMarksAfterSend(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	items := newFakeItems()
	items.due = []store.Item{{ID: 1, UserID: "u1", Type: store.ItemReminder, Content: "take meds"}}
	n := &fakeNotifier{}
	svc, _ := newTestService(items, n, now)

	svc.RunReminderSweep(context.Background())

	if len(n.sent) != 1 || !strings.Contains(n.sent[0], "take meds") {
		t.Fatalf("unexpected sends: %v", n.sent)
	}
	if len(items.sent) != 1 || items.sent[0] != 1 {
		t.Fatalf("expected item 1 marked sent, got %v", items.sent)
	}
}

func TestReminderSweepSendFailureLeavesUnmarked(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	items := newFakeItems()
	items.due = []store.Item{{ID: 1, UserID: "u1", Type: store.ItemReminder, Content: "take meds"}}
	svc, _ := newTestService(items, &fakeNotifier{fail: true}, now)

	svc.RunReminderSweep(context.Background())

	if len(items.sent) != 0 {
		t.Fatalf("expected no sent marker on failed send, got %v", items.sent)
	}
}

func TestFollowUpSweepWaitsForDelay(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	items := newFakeItems()
	n := &fakeNotifier{}

	// Fired 10 minutes ago with a 15 minute delay: too early.
	early := now.Add(-10 * time.Minute)
	items.followUps = []store.Item{{ID: 1, UserID: "u1", Type: store.ItemReminder, Content: "call mom", SentAt: &early}}
	svc, _ := newTestService(items, n, now)

	svc.RunFollowUpSweep(context.Background())
	if len(n.sent) != 0 || len(items.followed) != 0 {
		t.Fatalf("expected nothing before the delay, sent=%v marked=%v", n.sent, items.followed)
	}

	// 20 minutes: due now.
	late := now.Add(-20 * time.Minute)
	items.followUps[0].SentAt = &late
	svc.RunFollowUpSweep(context.Background())
	if len(n.sent) != 1 || len(items.followed) != 1 {
		t.Fatalf("expected one follow-up, sent=%v marked=%v", n.sent, items.followed)
	}
}

func TestFollowUpToneMatchesReminderStyle(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sentAt := now.Add(-time.Hour)

	tests := []struct {
		style string
		want  string
	}{
		{"persistent", "Don't let it slip"},
		{"relaxed", "No rush"},
		{"neutral", "Quick check"},
	}
	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			items := newFakeItems()
			items.users["u1"] = &store.User{ID: "u1", ReminderStyle: tt.style}
			items.followUps = []store.Item{{ID: 1, UserID: "u1", Type: store.ItemReminder, Content: "call mom", SentAt: &sentAt}}
			n := &fakeNotifier{}
			svc, _ := newTestService(items, n, now)

			svc.RunFollowUpSweep(context.Background())
			if len(n.sent) != 1 || !strings.Contains(n.sent[0], tt.want) {
				t.Fatalf("expected %q in nudge, got %v", tt.want, n.sent)
			}
		})
	}
}

func TestOverdueFollowUpOffersSlots(t *testing.T) {
	// 10:00: in-two-hours lands at noon, before the 20:00 cutoff, so both
	// slots are offered.
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sentAt := now.Add(-time.Hour)
	due := now.Add(-2 * time.Hour)

	items := newFakeItems()
	items.followUps = []store.Item{{ID: 7, UserID: "u1", Type: store.ItemReminder, Content: "gym", SentAt: &sentAt, DueDate: &due}}
	n := &fakeNotifier{}
	svc, _ := newTestService(items, n, now)

	svc.RunFollowUpSweep(context.Background())
	if len(n.sent) != 1 || !strings.Contains(n.sent[0], "reschedule") {
		t.Fatalf("expected a reschedule offer, got %v", n.sent)
	}
	if !strings.Contains(n.sent[0], "1.") || !strings.Contains(n.sent[0], "2.") {
		t.Fatalf("expected two slots before the cutoff, got %v", n.sent[0])
	}

	// Picking slot 1 reschedules to now+2h.
	reply, handled := svc.ResolveReply("u1", "1")
	if !handled {
		t.Fatal("expected the reply to be consumed")
	}
	if !strings.Contains(reply, "Rescheduled") {
		t.Fatalf("unexpected reply %q", reply)
	}
	if got := items.reschedule[7]; !got.Equal(now.Add(2 * time.Hour)) {
		t.Fatalf("rescheduled to %v, want %v", got, now.Add(2*time.Hour))
	}
}

func TestEveningOfferSkipsSameDaySlot(t *testing.T) {
	// 19:00: two hours out is past the 20:00 cutoff, so only tomorrow 9:00
	// is offered.
	now := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	sentAt := now.Add(-time.Hour)
	due := now.Add(-2 * time.Hour)

	items := newFakeItems()
	items.followUps = []store.Item{{ID: 7, UserID: "u1", Type: store.ItemReminder, Content: "gym", SentAt: &sentAt, DueDate: &due}}
	n := &fakeNotifier{}
	svc, _ := newTestService(items, n, now)

	svc.RunFollowUpSweep(context.Background())
	if strings.Contains(n.sent[0], "2.") {
		t.Fatalf("expected a single slot after the cutoff, got %v", n.sent[0])
	}

	reply, handled := svc.ResolveReply("u1", "1")
	if !handled || !strings.Contains(reply, "Rescheduled") {
		t.Fatalf("expected reschedule, got %q (%v)", reply, handled)
	}
	want := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	if got := items.reschedule[7]; !got.Equal(want) {
		t.Fatalf("rescheduled to %v, want tomorrow 9:00", got)
	}
}

func TestResolveReplyDoneAndSkip(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	items := newFakeItems()
	svc, _ := newTestService(items, &fakeNotifier{}, now)

	svc.mu.Lock()
	svc.offers["u1"] = &Offer{ItemID: 3, Content: "gym", Slots: []time.Time{now.Add(2 * time.Hour)}}
	svc.mu.Unlock()

	reply, handled := svc.ResolveReply("u1", "done!")
	if !handled || len(items.completed) != 1 || items.completed[0] != 3 {
		t.Fatalf("expected completion, reply=%q completed=%v", reply, items.completed)
	}

	// The offer is gone; a second reply flows through.
	if _, handled := svc.ResolveReply("u1", "done"); handled {
		t.Fatal("expected no offer left")
	}

	svc.mu.Lock()
	svc.offers["u1"] = &Offer{ItemID: 4, Content: "gym", Slots: []time.Time{now.Add(2 * time.Hour)}}
	svc.mu.Unlock()
	if _, handled := svc.ResolveReply("u1", "skip it"); !handled {
		t.Fatal("expected skip to be consumed")
	}
	if len(items.reschedule) != 0 {
		t.Fatalf("skip must not reschedule, got %v", items.reschedule)
	}

	// An unrelated message clears the offer without being consumed.
	svc.mu.Lock()
	svc.offers["u1"] = &Offer{ItemID: 5, Content: "gym", Slots: []time.Time{now.Add(2 * time.Hour)}}
	svc.mu.Unlock()
	if _, handled := svc.ResolveReply("u1", "add milk to my list"); handled {
		t.Fatal("expected an unrelated message to flow through")
	}
	if _, handled := svc.ResolveReply("u1", "1"); handled {
		t.Fatal("expected the stale offer to be cleared")
	}
}

func TestResolveReplyBareYesAndNo(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	items := newFakeItems()
	svc, _ := newTestService(items, &fakeNotifier{}, now)

	svc.mu.Lock()
	svc.offers["u1"] = &Offer{ItemID: 3, Content: "gym", Slots: []time.Time{now.Add(2 * time.Hour)}}
	svc.mu.Unlock()

	reply, handled := svc.ResolveReply("u1", "yes")
	if !handled {
		t.Fatalf("expected a bare yes to be consumed, reply=%q", reply)
	}
	if len(items.completed) != 1 || items.completed[0] != 3 {
		t.Fatalf("expected item 3 completed, got %v", items.completed)
	}

	svc.mu.Lock()
	svc.offers["u1"] = &Offer{ItemID: 4, Content: "gym", Slots: []time.Time{now.Add(2 * time.Hour)}}
	svc.mu.Unlock()
	reply, handled = svc.ResolveReply("u1", "no")
	if !handled || !strings.Contains(reply, "leave it alone") {
		t.Fatalf("expected a bare no to skip, reply=%q handled=%v", reply, handled)
	}
	if len(items.completed) != 1 || len(items.reschedule) != 0 {
		t.Fatalf("no must not mutate the item, completed=%v reschedule=%v", items.completed, items.reschedule)
	}

	svc.mu.Lock()
	svc.offers["u1"] = &Offer{ItemID: 5, Content: "gym", Slots: []time.Time{now.Add(2 * time.Hour)}}
	svc.mu.Unlock()
	if _, handled := svc.ResolveReply("u1", "cancel that"); !handled {
		t.Fatal("expected cancel to be consumed")
	}

	// Word-boundary matching: "noted" must not read as "no".
	svc.mu.Lock()
	svc.offers["u1"] = &Offer{ItemID: 6, Content: "gym", Slots: []time.Time{now.Add(2 * time.Hour)}}
	svc.mu.Unlock()
	if _, handled := svc.ResolveReply("u1", "noted"); handled {
		t.Fatal("expected 'noted' to flow through")
	}
}

func TestFollowUpWithoutAutoReschedule(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	sentAt := now.Add(-time.Hour)
	due := now.Add(-2 * time.Hour)

	items := newFakeItems()
	items.followUps = []store.Item{{ID: 7, UserID: "u1", Type: store.ItemReminder, Content: "gym", SentAt: &sentAt, DueDate: &due}}
	n := &fakeNotifier{}
	sessions := session.NewManager(30*time.Minute, 10)
	svc := NewService(items, n, sessions, 15*time.Minute, 7*24*time.Hour, 20, false)
	svc.SetNow(func() time.Time { return now })

	svc.RunFollowUpSweep(context.Background())

	if len(n.sent) != 1 {
		t.Fatalf("expected the plain nudge, got %v", n.sent)
	}
	if strings.Contains(n.sent[0], "reschedule") {
		t.Fatalf("expected no offer with auto-reschedule off, got %v", n.sent[0])
	}
	if _, handled := svc.ResolveReply("u1", "1"); handled {
		t.Fatal("expected no pending offer")
	}
	if len(items.followed) != 1 {
		t.Fatalf("the follow-up itself still goes out, marked=%v", items.followed)
	}
}

func TestDecaySweepOneShotMenu(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	items := newFakeItems()
	n := &fakeNotifier{}

	// 8 days old with a 7 day threshold: decaying. 3 days old: left alone.
	items.decaying = []store.Item{
		{ID: 1, UserID: "u1", Type: store.ItemTodo, Content: "clean garage", CreatedAt: now.AddDate(0, 0, -8)},
		{ID: 2, UserID: "u1", Type: store.ItemTodo, Content: "new todo", CreatedAt: now.AddDate(0, 0, -3)},
	}
	svc, sessions := newTestService(items, n, now)

	svc.RunDecaySweep(context.Background())

	if len(n.sent) != 1 || !strings.Contains(n.sent[0], "clean garage") {
		t.Fatalf("expected one decay question, got %v", n.sent)
	}
	if len(items.decayed) != 1 || items.decayed[0] != 1 {
		t.Fatalf("expected item 1 marked checked, got %v", items.decayed)
	}

	s := sessions.GetOrCreate("u1")
	sel, ok := s.Pending.(*session.PendingSelection)
	if !ok || sel.Kind != session.SelectionDecayMenu {
		t.Fatalf("expected a decay menu on the session, got %T", s.Pending)
	}
	if len(sel.Options) != 3 {
		t.Fatalf("expected keep/reschedule/delete, got %d options", len(sel.Options))
	}
}
