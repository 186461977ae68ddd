package store

import (
	"database/sql"
	"fmt"
	"time"
)

// GetUser loads a profile by id, nil when the user is unknown.
func (s *Store) GetUser(id string) (*User, error) {
	row := s.db.QueryRow(`
		SELECT id, phone, channel, chat_id, onboarding_complete,
		       reminder_style, voice_style, bottle_size_ml, checkin_hour, created_at
		FROM users WHERE id = ?
	`, id)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var complete int
	var createdAt string
	err := row.Scan(
		&u.ID,
		&u.Phone,
		&u.Channel,
		&u.ChatID,
		&complete,
		&u.ReminderStyle,
		&u.VoiceStyle,
		&u.BottleSizeML,
		&u.CheckinHour,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	u.OnboardingComplete = complete == 1
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// SaveUser upserts a profile by id.
func (s *Store) SaveUser(u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		return fmt.Errorf("save user: empty id")
	}
	if u.ReminderStyle == "" {
		u.ReminderStyle = "neutral"
	}
	if u.VoiceStyle == "" {
		u.VoiceStyle = "neutral"
	}
	_, err := s.db.Exec(`
		INSERT INTO users (id, phone, channel, chat_id, onboarding_complete,
			reminder_style, voice_style, bottle_size_ml, checkin_hour)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phone = excluded.phone,
			channel = excluded.channel,
			chat_id = excluded.chat_id,
			onboarding_complete = excluded.onboarding_complete,
			reminder_style = excluded.reminder_style,
			voice_style = excluded.voice_style,
			bottle_size_ml = excluded.bottle_size_ml,
			checkin_hour = excluded.checkin_hour
	`, u.ID, u.Phone, u.Channel, u.ChatID, boolToInt(u.OnboardingComplete),
		u.ReminderStyle, u.VoiceStyle, u.BottleSizeML, u.CheckinHour)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// ListUsers returns every known user.
func (s *Store) ListUsers() ([]User, error) {
	rows, err := s.db.Query(`
		SELECT id, phone, channel, chat_id, onboarding_complete,
		       reminder_style, voice_style, bottle_size_ml, checkin_hour, created_at
		FROM users ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CreateLog records one life event.
func (s *Store) CreateLog(entry *LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.Exec(`
		INSERT INTO life_logs (user_id, kind, content, quantity, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.UserID, entry.Kind, entry.Content, entry.Quantity, formatTime(created))
	if err != nil {
		return fmt.Errorf("create log: %w", err)
	}
	entry.ID, _ = res.LastInsertId()
	entry.CreatedAt = created
	return nil
}

// CountLogs counts the user's entries of one kind since a cutoff.
func (s *Store) CountLogs(userID, kind string, since time.Time) (int, error) {
	row := s.db.QueryRow(`
		SELECT COUNT(*) FROM life_logs
		WHERE user_id = ? AND kind = ? AND created_at >= ?
	`, userID, kind, formatTime(since))
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count logs: %w", err)
	}
	return n, nil
}

// SumLogQuantity totals the quantity column (e.g. water ml) since a cutoff.
func (s *Store) SumLogQuantity(userID, kind string, since time.Time) (float64, error) {
	row := s.db.QueryRow(`
		SELECT COALESCE(SUM(quantity), 0) FROM life_logs
		WHERE user_id = ? AND kind = ? AND created_at >= ?
	`, userID, kind, formatTime(since))
	var total float64
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("sum logs: %w", err)
	}
	return total, nil
}
