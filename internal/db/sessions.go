package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SessionState is the lifecycle position of a competition session.
type SessionState string

const (
	SessionCreated      SessionState = "created"
	SessionIntentionSet SessionState = "intention_set"
	SessionCompleted    SessionState = "completed"
)

var sessionOrder = []SessionState{SessionCreated, SessionIntentionSet, SessionCompleted}

// Rank orders states; unknown states rank below created.
func (s SessionState) Rank() int {
	for i, st := range sessionOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// before returns every state that may advance to s.
func (s SessionState) before() []SessionState {
	r := s.Rank()
	if r <= 0 {
		return nil
	}
	return sessionOrder[:r]
}

// Session is a competition session row.
type Session struct {
	ID        int64        `json:"id"`
	CSID      string       `json:"csid"`
	CCID      string       `json:"ccid"`
	ProfileID int          `json:"profile_id"`
	State     SessionState `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// CreateSession inserts a session in the created state. The ccid is the
// row id, assigned in the same transaction.
func (s *Store) CreateSession(ctx context.Context, csid string, profileID int, now time.Time) (*Session, error) {
	session := &Session{
		CSID:      csid,
		ProfileID: profileID,
		State:     SessionCreated,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	ts := formatTime(now)

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO competition_sessions (csid, ccid, profile_id, state, created_at, updated_at)
			VALUES (?, '', ?, ?, ?, ?)`,
			csid, profileID, string(SessionCreated), ts, ts)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		session.ID = id
		session.CCID = strconv.FormatInt(id, 10)

		_, err = tx.ExecContext(ctx, "UPDATE competition_sessions SET ccid = ? WHERE id = ?", session.CCID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession looks up a session by csid.
func (s *Store) GetSession(ctx context.Context, csid string) (*Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, csid, ccid, profile_id, state, created_at, updated_at
		FROM competition_sessions WHERE csid = ?`, csid)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", csid, err)
	}
	return session, nil
}

// AdvanceSession moves a session forward to state. It reports false when
// the session is missing or already at or past state.
func (s *Store) AdvanceSession(ctx context.Context, csid string, state SessionState, now time.Time) (bool, error) {
	from := state.before()
	if len(from) == 0 {
		return false, nil
	}

	args := []any{string(state), formatTime(now), csid}
	placeholders := make([]string, len(from))
	for i, st := range from {
		placeholders[i] = "?"
		args = append(args, string(st))
	}

	res, err := s.db.Exec(ctx,
		"UPDATE competition_sessions SET state = ?, updated_at = ? WHERE csid = ? AND state IN ("+
			strings.Join(placeholders, ", ")+")",
		args...)
	if err != nil {
		return false, fmt.Errorf("failed to advance session %s: %w", csid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListSessions returns the most recent sessions first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, csid, ccid, profile_id, state, created_at, updated_at
		FROM competition_sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// SessionCounts returns the number of sessions per state.
func (s *Store) SessionCounts(ctx context.Context) (map[SessionState]int, error) {
	rows, err := s.db.Query(ctx, "SELECT state, COUNT(*) FROM competition_sessions GROUP BY state")
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}
	defer rows.Close()

	counts := make(map[SessionState]int, len(sessionOrder))
	for _, st := range sessionOrder {
		counts[st] = 0
	}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[SessionState(state)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		session          Session
		state            string
		created, updated string
	)
	if err := row.Scan(&session.ID, &session.CSID, &session.CCID, &session.ProfileID,
		&state, &created, &updated); err != nil {
		return nil, err
	}
	session.State = SessionState(state)
	session.CreatedAt = parseTime(created)
	session.UpdatedAt = parseTime(updated)
	return &session, nil
}
