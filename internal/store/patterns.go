package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// FindPattern returns the pattern for the unique tuple, or nil when absent.
func (s *Store) FindPattern(userID, term, ptype, value string) (*LearnedPattern, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, pattern_term, pattern_type, associated_value,
		       confidence, usage_count, success_count, failure_count,
		       context, last_used, created_at
		FROM learned_patterns
		WHERE user_id = ? AND pattern_term = ? AND pattern_type = ? AND associated_value = ?
	`, userID, strings.ToLower(strings.TrimSpace(term)), ptype, value)

	p, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pattern: %w", err)
	}
	return p, nil
}

// CreatePattern inserts a new pattern row. Terms are case-folded on write.
func (s *Store) CreatePattern(p *LearnedPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	term := strings.ToLower(strings.TrimSpace(p.Term))
	if term == "" {
		return fmt.Errorf("create pattern: empty term")
	}
	now := time.Now()
	res, err := s.db.Exec(`
		INSERT INTO learned_patterns
			(user_id, pattern_term, pattern_type, associated_value, confidence,
			 usage_count, success_count, failure_count, context, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.UserID, term, p.Type, p.Value, p.Confidence,
		p.UsageCount, p.SuccessCount, p.FailureCount, p.Context, formatTime(now))
	if err != nil {
		return fmt.Errorf("create pattern: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	p.Term = term
	p.LastUsed = now
	return nil
}

// UpdatePattern rewrites the mutable fields of an existing row.
func (s *Store) UpdatePattern(p *LearnedPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE learned_patterns
		SET confidence = ?, usage_count = ?, success_count = ?, failure_count = ?,
		    context = ?, last_used = ?
		WHERE id = ?
	`, p.Confidence, p.UsageCount, p.SuccessCount, p.FailureCount,
		p.Context, formatTime(time.Now()), p.ID)
	if err != nil {
		return fmt.Errorf("update pattern: %w", err)
	}
	return nil
}

// PatternsAbove returns the user's patterns with confidence >= min, strongest
// first.
func (s *Store) PatternsAbove(userID string, min float64) ([]LearnedPattern, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, pattern_term, pattern_type, associated_value,
		       confidence, usage_count, success_count, failure_count,
		       context, last_used, created_at
		FROM learned_patterns
		WHERE user_id = ? AND confidence >= ?
		ORDER BY confidence DESC, id ASC
	`, userID, min)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	result := make([]LearnedPattern, 0)
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}
	return result, nil
}

// PrunePatterns deletes all of the user's patterns below the threshold and
// reports how many were removed.
func (s *Store) PrunePatterns(userID string, threshold float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		DELETE FROM learned_patterns WHERE user_id = ? AND confidence < ?
	`, userID, threshold)
	if err != nil {
		return 0, fmt.Errorf("prune patterns: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeletePattern removes one learned pattern outright.
func (s *Store) DeletePattern(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM learned_patterns WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete pattern: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPattern(row rowScanner) (*LearnedPattern, error) {
	var p LearnedPattern
	var lastUsed, createdAt string
	if err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Term,
		&p.Type,
		&p.Value,
		&p.Confidence,
		&p.UsageCount,
		&p.SuccessCount,
		&p.FailureCount,
		&p.Context,
		&lastUsed,
		&createdAt,
	); err != nil {
		return nil, err
	}
	p.LastUsed = parseTime(lastUsed)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}
