// Package session keeps signed-in users durable across restarts: the
// upstream bearer token and the user record it resolved to, keyed by a
// session id that labeld puts in its own tokens.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/labeld/internal/dataset"
)

var ErrNotFound = errors.New("session not found")

type Record struct {
	ID            string
	User          dataset.User
	UpstreamToken string // empty for local admin sessions
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Local reports whether the session was opened without the backend.
func (r Record) Local() bool { return r.UpstreamToken == "" }

type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewStore(db *sql.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{db: db, ttl: ttl, now: time.Now}
}

func (s *Store) TTL() time.Duration { return s.ttl }

// WithClock makes the store read time from now.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Create stores a new session for u and returns it with a fresh id.
func (s *Store) Create(ctx context.Context, u dataset.User, upstreamToken string) (Record, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return Record{}, err
	}
	now := s.now().UTC().Truncate(time.Second)
	rec := Record{
		ID:            uuid.NewString(),
		User:          u,
		UpstreamToken: upstreamToken,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, role, user_json, upstream_token, created_at, expires_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.ID, u.ID, u.Role, string(raw), upstreamToken, rec.CreatedAt.Unix(), rec.ExpiresAt.Unix())
	if err != nil {
		return Record{}, fmt.Errorf("insert session: %w", err)
	}
	return rec, nil
}

// Get returns a live session. Expired sessions are reported as ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	rec := Record{ID: id}
	var userJSON string
	var created, expires int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_json, upstream_token, created_at, expires_at FROM sessions WHERE id=$1`, id).
		Scan(&userJSON, &rec.UpstreamToken, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load session: %w", err)
	}
	if s.now().Unix() >= expires {
		return Record{}, ErrNotFound
	}
	if err := json.Unmarshal([]byte(userJSON), &rec.User); err != nil {
		return Record{}, fmt.Errorf("decode session user: %w", err)
	}
	rec.CreatedAt = time.Unix(created, 0).UTC()
	rec.ExpiresAt = time.Unix(expires, 0).UTC()
	return rec, nil
}

// UpdateUser refreshes the stored user record, e.g. after /auth/me.
func (s *Store) UpdateUser(ctx context.Context, id string, u dataset.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET user_json=$1, role=$2 WHERE id=$3`, string(raw), u.Role, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=$1`, id)
	return err
}

// Sweep removes expired sessions and returns their ids so the caller can
// release whatever it held for them.
func (s *Store) Sweep(ctx context.Context) ([]string, error) {
	cutoff := s.now().Unix()
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions WHERE expires_at <= $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=$1 AND expires_at <= $2`, id, cutoff); err != nil {
			return nil, fmt.Errorf("delete session %s: %w", id, err)
		}
	}
	return ids, nil
}
