package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists sessions in the sessions table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed session store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess.Values)
	if err != nil {
		return fmt.Errorf("session: marshal values: %w", err)
	}

	query := `
		INSERT INTO sessions (token, id, user_id, ip, user_agent, data, created_at, last_active_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.pool.Exec(ctx, query,
		sess.Token, sess.ID, sess.UserID, sess.IP, sess.UserAgent, data,
		sess.CreatedAt, sess.LastActiveAt, sess.ExpiresAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, token string) (*Session, error) {
	var (
		sess Session
		data []byte
	)
	query := `
		SELECT token, id, user_id, ip, user_agent, data, created_at, last_active_at, expires_at
		FROM sessions WHERE token = $1`
	err := s.pool.QueryRow(ctx, query, token).Scan(
		&sess.Token, &sess.ID, &sess.UserID, &sess.IP, &sess.UserAgent, &data,
		&sess.CreatedAt, &sess.LastActiveAt, &sess.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(data, &sess.Values); err != nil {
		return nil, fmt.Errorf("session: unmarshal values: %w", err)
	}

	if sess.IsExpired() {
		// Expired rows are reaped lazily on access.
		_ = s.Delete(ctx, sess.ID)
		return nil, ErrExpired
	}

	return &sess, nil
}

func (s *PGStore) Update(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess.Values)
	if err != nil {
		return fmt.Errorf("session: marshal values: %w", err)
	}

	query := `
		UPDATE sessions
		SET token = $2, user_id = $3, data = $4, last_active_at = $5, expires_at = $6
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		sess.ID, sess.Token, sess.UserID, data, sess.LastActiveAt, sess.ExpiresAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (s *PGStore) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (s *PGStore) Touch(ctx context.Context, id string, lastActiveAt time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET last_active_at = $2 WHERE id = $1`, id, lastActiveAt)
	return err
}

var _ Store = (*PGStore)(nil)
