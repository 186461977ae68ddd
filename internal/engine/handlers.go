package engine

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sagrawal11/alfred-sub000/internal/classifier"
	"github.com/sagrawal11/alfred-sub000/internal/onboarding"
	"github.com/sagrawal11/alfred-sub000/internal/session"
	"github.com/sagrawal11/alfred-sub000/internal/store"
)

// Turn carries everything a handler needs for one resolved message.
type Turn struct {
	User     *store.User
	Session  *session.Session
	Message  string
	Intent   string
	Entities map[string][]string
	Now      time.Time
}

func (t *Turn) entity(key string) string {
	if vals := t.Entities[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

type handlerFunc func(t *Turn) (string, error)

func (e *Engine) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		classifier.IntentGymWorkout:    e.handleWorkout,
		classifier.IntentFoodLogging:   e.handleFood,
		classifier.IntentWaterLogging:  e.handleWater,
		classifier.IntentSleepLogging:  e.handleSleep,
		classifier.IntentTodoAdd:       e.handleTodoAdd,
		classifier.IntentTodoList:      e.handleTodoList,
		classifier.IntentTodoComplete:  e.handleTodoComplete,
		classifier.IntentReminderSet:   e.handleReminderSet,
		classifier.IntentAssignmentAdd: e.handleAssignmentAdd,
		classifier.IntentStatsQuery:    e.handleStats,
	}
}

// styled prefixes a reply according to the user's voice preference.
func styled(u *store.User, base string) string {
	if u == nil {
		return base
	}
	switch u.VoiceStyle {
	case onboarding.VoiceFormal:
		return "Noted. " + base
	case onboarding.VoicePlayful:
		return "Nice! " + base
	default:
		return base
	}
}

func (e *Engine) handleWorkout(t *Turn) (string, error) {
	entry := &store.LogEntry{UserID: t.User.ID, Kind: logWorkout, Content: t.Message}
	if d := t.entity("duration"); d != "" {
		if h, ok := parseHours(d); ok {
			entry.Quantity = h
		}
	}
	if err := e.store.CreateLog(entry); err != nil {
		return "", fmt.Errorf("log workout: %w", err)
	}
	return styled(t.User, "Workout logged."), nil
}

func (e *Engine) handleFood(t *Turn) (string, error) {
	content := strings.Join(t.Entities["food"], ", ")
	if content == "" {
		content = t.Message
	}
	if err := e.store.CreateLog(&store.LogEntry{UserID: t.User.ID, Kind: logFood, Content: content}); err != nil {
		return "", fmt.Errorf("log food: %w", err)
	}
	return styled(t.User, "Logged: "+content), nil
}

func (e *Engine) handleWater(t *Turn) (string, error) {
	bottle := t.User.BottleSizeML
	if bottle <= 0 {
		bottle = e.defaultBottleML
	}

	ml := bottle
	if amt := t.entity("amount"); amt != "" {
		if v, ok := onboarding.ParseVolumeML(amt, bottle); ok {
			ml = v
		}
	} else if v, ok := onboarding.ParseVolumeML(t.Message, bottle); ok {
		ml = v
	}

	entry := &store.LogEntry{UserID: t.User.ID, Kind: logWater, Content: t.Message, Quantity: float64(ml)}
	if err := e.store.CreateLog(entry); err != nil {
		return "", fmt.Errorf("log water: %w", err)
	}
	return styled(t.User, fmt.Sprintf("Water logged: %dml.", ml)), nil
}

var reHours = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:hours?|hrs?|h)\b`)

func parseHours(text string) (float64, bool) {
	m := reHours.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, false
	}
	var h float64
	if _, err := fmt.Sscanf(m[1], "%g", &h); err != nil {
		return 0, false
	}
	return h, true
}

func (e *Engine) handleSleep(t *Turn) (string, error) {
	hours := 0.0
	if d := t.entity("duration"); d != "" {
		if h, ok := parseHours(d); ok {
			hours = h
		}
	}
	if hours == 0 {
		if h, ok := parseHours(t.Message); ok {
			hours = h
		}
	}
	entry := &store.LogEntry{UserID: t.User.ID, Kind: logSleep, Content: t.Message, Quantity: hours}
	if err := e.store.CreateLog(entry); err != nil {
		return "", fmt.Errorf("log sleep: %w", err)
	}
	if hours > 0 {
		return styled(t.User, fmt.Sprintf("Sleep logged: %.1f hours.", hours)), nil
	}
	return styled(t.User, "Sleep logged."), nil
}

var taskPrefixes = []string{
	"add a todo to ", "add a todo ", "add todo ", "todo: ", "todo ",
	"i need to ", "remind me to ", "add a task to ", "add task ",
}

func taskContent(message string) string {
	lower := strings.ToLower(message)
	for _, p := range taskPrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(message[len(p):])
		}
	}
	return strings.TrimSpace(message)
}

func (e *Engine) handleTodoAdd(t *Turn) (string, error) {
	content := t.entity("task")
	if content == "" {
		content = taskContent(t.Message)
	}
	it := &store.Item{UserID: t.User.ID, Type: store.ItemTodo, Content: content}
	if when, ok := parseWhen(t.Message, t.Now); ok {
		it.DueDate = &when
	}
	if err := e.store.CreateItem(it); err != nil {
		return "", fmt.Errorf("add todo: %w", err)
	}
	return styled(t.User, "Added to your list: "+content), nil
}

func (e *Engine) handleTodoList(t *Turn) (string, error) {
	items, err := e.store.OpenItems(t.User.ID, store.ItemTodo)
	if err != nil {
		return "", fmt.Errorf("list todos: %w", err)
	}
	if len(items) == 0 {
		return "Your list is empty.", nil
	}
	var b strings.Builder
	b.WriteString("Here's your list:")
	for i, it := range items {
		fmt.Fprintf(&b, "\n%d. %s", i+1, it.Content)
		if it.DueDate != nil {
			fmt.Fprintf(&b, " (due %s)", it.DueDate.Format("Mon Jan 2"))
		}
	}
	return b.String(), nil
}

func (e *Engine) handleTodoComplete(t *Turn) (string, error) {
	items, err := e.store.OpenItems(t.User.ID, store.ItemTodo)
	if err != nil {
		return "", fmt.Errorf("load todos: %w", err)
	}
	if len(items) == 0 {
		return "Nothing on your list to finish.", nil
	}

	target := t.entity("task")
	if target == "" {
		target = t.Message
	}
	matches := matchItems(items, target)
	if len(matches) == 0 {
		// No text match: let the user pick from everything open.
		matches = items
	}
	if len(matches) == 1 {
		if err := e.store.MarkItemCompleted(matches[0].ID); err != nil {
			return "", fmt.Errorf("complete todo: %w", err)
		}
		return styled(t.User, "Done: "+matches[0].Content), nil
	}

	opts := make([]session.Option, 0, len(matches))
	var b strings.Builder
	b.WriteString("Which one did you finish?")
	for i, it := range matches {
		opts = append(opts, session.Option{Label: it.Content, Value: "complete", Ref: it.ID})
		fmt.Fprintf(&b, "\n%d. %s", i+1, it.Content)
	}
	e.sessions.SetPending(t.User.ID, &session.PendingSelection{
		Kind:      session.SelectionWhatHappened,
		Options:   opts,
		CreatedAt: t.Now,
	})
	return b.String(), nil
}

// matchItems finds items whose content shares a significant word with the
// message.
func matchItems(items []store.Item, text string) []store.Item {
	words := strings.Fields(strings.ToLower(text))
	var out []store.Item
	for _, it := range items {
		content := strings.ToLower(it.Content)
		for _, w := range words {
			if len(w) > 3 && strings.Contains(content, w) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

func (e *Engine) handleReminderSet(t *Turn) (string, error) {
	content := t.entity("task")
	if content == "" {
		content = taskContent(t.Message)
	}

	when, ok := parseWhen(t.Message, t.Now)
	if !ok && t.entity("time") != "" {
		when, ok = parseWhen("at "+t.entity("time"), t.Now)
	}
	defaulted := false
	if !ok {
		// No parseable time; fall back to tomorrow morning and say so.
		when = clockTime(t.Now, 9, 0, true)
		defaulted = true
	}

	it := &store.Item{UserID: t.User.ID, Type: store.ItemReminder, Content: content, DueDate: &when}
	if err := e.store.CreateItem(it); err != nil {
		return "", fmt.Errorf("set reminder: %w", err)
	}
	reply := fmt.Sprintf("Reminder set for %s.", when.Format("Mon 3:04pm"))
	if defaulted {
		reply = fmt.Sprintf("I couldn't find a time in that, so I set it for %s.", when.Format("Mon 3:04pm"))
	}
	return styled(t.User, reply), nil
}

func (e *Engine) handleAssignmentAdd(t *Turn) (string, error) {
	content := t.entity("subject")
	if content == "" {
		content = t.entity("task")
	}
	if content == "" {
		content = taskContent(t.Message)
	}
	it := &store.Item{UserID: t.User.ID, Type: store.ItemTodo, Content: "Assignment: " + content}
	if when, ok := parseWhen(t.Message, t.Now); ok {
		it.DueDate = &when
	}
	if err := e.store.CreateItem(it); err != nil {
		return "", fmt.Errorf("add assignment: %w", err)
	}
	if it.DueDate != nil {
		return styled(t.User, fmt.Sprintf("Assignment tracked, due %s.", it.DueDate.Format("Mon Jan 2"))), nil
	}
	return styled(t.User, "Assignment tracked."), nil
}

func (e *Engine) handleStats(t *Turn) (string, error) {
	since := t.Now.AddDate(0, 0, -7)

	workouts, err := e.store.CountLogs(t.User.ID, logWorkout, since)
	if err != nil {
		return "", fmt.Errorf("stats: %w", err)
	}
	meals, err := e.store.CountLogs(t.User.ID, logFood, since)
	if err != nil {
		return "", fmt.Errorf("stats: %w", err)
	}
	waterML, err := e.store.SumLogQuantity(t.User.ID, logWater, since)
	if err != nil {
		return "", fmt.Errorf("stats: %w", err)
	}
	sleepH, err := e.store.SumLogQuantity(t.User.ID, logSleep, since)
	if err != nil {
		return "", fmt.Errorf("stats: %w", err)
	}

	return fmt.Sprintf(
		"Last 7 days: %d workouts, %d meals logged, %.1fL of water, %.1f hours of sleep recorded.",
		workouts, meals, waterML/1000, sleepH,
	), nil
}
