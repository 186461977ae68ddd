package store

import (
	"database/sql"
	"fmt"
	"time"
)

const itemColumns = `id, user_id, type, content, due_date, completed,
	sent_at, follow_up_sent, decay_check_sent, created_at`

// CreateItem inserts a todo or reminder.
func (s *Store) CreateItem(it *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due any
	if it.DueDate != nil {
		due = formatTime(*it.DueDate)
	}
	created := it.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.Exec(`
		INSERT INTO items (user_id, type, content, due_date, completed, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, it.UserID, it.Type, it.Content, due, formatTime(created))
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	it.ID, _ = res.LastInsertId()
	it.CreatedAt = created
	return nil
}

// GetItem loads one item by id, nil when absent.
func (s *Store) GetItem(id int64) (*Item, error) {
	row := s.db.QueryRow(`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// DueReminders returns reminders whose due date has passed and that have not
// been fired yet.
func (s *Store) DueReminders(now time.Time) ([]Item, error) {
	return s.queryItems(`
		SELECT `+itemColumns+` FROM items
		WHERE type = ? AND completed = 0 AND sent_at IS NULL
		  AND due_date IS NOT NULL AND due_date <= ?
		ORDER BY due_date ASC
	`, ItemReminder, formatTime(now))
}

// FollowUpCandidates returns fired, uncompleted reminders that have not had
// their one follow-up yet.
func (s *Store) FollowUpCandidates() ([]Item, error) {
	return s.queryItems(`
		SELECT `+itemColumns+` FROM items
		WHERE type = ? AND completed = 0 AND sent_at IS NOT NULL AND follow_up_sent = 0
		ORDER BY sent_at ASC
	`, ItemReminder)
}

// DecayCandidates returns open todos that have not had their one decay check.
func (s *Store) DecayCandidates() ([]Item, error) {
	return s.queryItems(`
		SELECT `+itemColumns+` FROM items
		WHERE type = ? AND completed = 0 AND decay_check_sent = 0
		ORDER BY created_at ASC
	`, ItemTodo)
}

// OpenItems returns the user's uncompleted items of one type, newest first.
func (s *Store) OpenItems(userID, itemType string) ([]Item, error) {
	return s.queryItems(`
		SELECT `+itemColumns+` FROM items
		WHERE user_id = ? AND type = ? AND completed = 0
		ORDER BY created_at DESC
	`, userID, itemType)
}

func (s *Store) MarkItemCompleted(id int64) error {
	return s.execItem(`UPDATE items SET completed = 1 WHERE id = ?`, id)
}

// MarkReminderSent records the fire time. Called only after a successful send.
func (s *Store) MarkReminderSent(id int64, at time.Time) error {
	return s.execItem(`UPDATE items SET sent_at = ? WHERE id = ?`, formatTime(at), id)
}

// MarkFollowUpSent flips the one-shot flag. Called only after a successful send.
func (s *Store) MarkFollowUpSent(id int64) error {
	return s.execItem(`UPDATE items SET follow_up_sent = 1 WHERE id = ?`, id)
}

// MarkDecayCheckSent flips the one-shot flag. Called only after a successful send.
func (s *Store) MarkDecayCheckSent(id int64) error {
	return s.execItem(`UPDATE items SET decay_check_sent = 1 WHERE id = ?`, id)
}

// RescheduleItem moves the due date and resets the sent/follow-up flags so
// the follow-up cycle restarts against the new time.
func (s *Store) RescheduleItem(id int64, due time.Time) error {
	return s.execItem(`
		UPDATE items SET due_date = ?, sent_at = NULL, follow_up_sent = 0 WHERE id = ?
	`, formatTime(due), id)
}

func (s *Store) DeleteItem(id int64) error {
	return s.execItem(`DELETE FROM items WHERE id = ?`, id)
}

func (s *Store) execItem(query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

func (s *Store) queryItems(query string, args ...any) ([]Item, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	result := make([]Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		result = append(result, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return result, nil
}

func scanItem(row rowScanner) (*Item, error) {
	var it Item
	var due, sentAt sql.NullString
	var completed, followUp, decay int
	var createdAt string
	if err := row.Scan(
		&it.ID,
		&it.UserID,
		&it.Type,
		&it.Content,
		&due,
		&completed,
		&sentAt,
		&followUp,
		&decay,
		&createdAt,
	); err != nil {
		return nil, err
	}
	it.DueDate = parseNullTime(due)
	it.SentAt = parseNullTime(sentAt)
	it.Completed = completed == 1
	it.FollowUpSent = followUp == 1
	it.DecayCheckSent = decay == 1
	it.CreatedAt = parseTime(createdAt)
	return &it, nil
}
