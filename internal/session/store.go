package session

import (
	"context"
	"time"
)

// Store persists sessions. Implementations: Postgres (PGStore) and Redis
// (RedisStore).
type Store interface {
	// Create persists a new session.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session by its token.
	// Returns ErrNotFound if it does not exist, ErrExpired if it has expired.
	Get(ctx context.Context, token string) (*Session, error)

	// Update saves changes to an existing session, keyed by ID so token
	// rotation replaces the token in place.
	Update(ctx context.Context, s *Session) error

	// Delete removes a session by ID.
	Delete(ctx context.Context, id string) error

	// DeleteByUserID removes all sessions for a user ("log out everywhere").
	DeleteByUserID(ctx context.Context, userID string) error

	// Touch updates LastActiveAt without loading the full session.
	Touch(ctx context.Context, id string, lastActiveAt time.Time) error
}
