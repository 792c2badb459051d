// Package session provides server-side sessions: an opaque cookie token
// resolved against a pluggable store (Postgres or Redis), with token
// rotation on login and lazy dirty-tracking saves.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session errors.
var (
	ErrNotFound     = errors.New("session: not found")
	ErrExpired      = errors.New("session: expired")
	ErrInvalidToken = errors.New("session: invalid token")
)

// Session is a user session. UserID is nil for anonymous sessions.
type Session struct {
	CreatedAt    time.Time
	LastActiveAt time.Time
	ExpiresAt    time.Time

	UserID    *uuid.UUID     // nil = anonymous
	Values    map[string]any // arbitrary session data (flash messages etc.)
	ID        string         // stable identifier
	Token     string         // cookie token, rotated on login
	IP        string         // client IP
	UserAgent string         // raw User-Agent header

	dirty bool
	isNew bool
}

// New creates a new anonymous session.
func New(id, token string, expiresAt time.Time) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Token:        token,
		Values:       make(map[string]any),
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    expiresAt,
		isNew:        true,
		dirty:        true,
	}
}

// IsAuthenticated reports whether a user is attached to the session.
func (s *Session) IsAuthenticated() bool {
	return s.UserID != nil && *s.UserID != uuid.Nil
}

// SetValue stores a value and marks the session dirty.
func (s *Session) SetValue(key string, val any) {
	if s.Values == nil {
		s.Values = make(map[string]any)
	}
	s.Values[key] = val
	s.dirty = true
}

// GetValue retrieves a stored value.
func (s *Session) GetValue(key string) (any, bool) {
	val, ok := s.Values[key]
	return val, ok
}

// DeleteValue removes a value, marking the session dirty only when the key
// existed.
func (s *Session) DeleteValue(key string) {
	if _, ok := s.Values[key]; ok {
		delete(s.Values, key)
		s.dirty = true
	}
}

// IsExpired reports whether the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsDirty reports whether the session has unsaved changes.
func (s *Session) IsDirty() bool { return s.dirty }

// ClearDirty marks the session clean; called by the store after persisting.
func (s *Session) ClearDirty() { s.dirty = false }

// MarkDirty flags the session for saving.
func (s *Session) MarkDirty() { s.dirty = true }

// IsNew reports whether the session was created during this request.
func (s *Session) IsNew() bool { return s.isNew }

// ClearNew marks the session as persisted.
func (s *Session) ClearNew() { s.isNew = false }
