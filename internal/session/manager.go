package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds session cookie settings, populated from the environment.
type Config struct {
	CookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"__sid"`
	MaxAge     time.Duration `env:"SESSION_MAX_AGE" envDefault:"720h"`
	Secure     bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
}

// Manager owns the session cookie lifecycle: loading from the request,
// creating, rotating tokens after login, and clearing on logout.
type Manager struct {
	store      Store
	cookieName string
	maxAge     time.Duration
	secure     bool
}

// NewManager creates a session manager over the given store.
func NewManager(store Store, cfg Config) *Manager {
	m := &Manager{
		store:      store,
		cookieName: cfg.CookieName,
		maxAge:     cfg.MaxAge,
		secure:     cfg.Secure,
	}
	if m.cookieName == "" {
		m.cookieName = "__sid"
	}
	if m.maxAge <= 0 {
		m.maxAge = 30 * 24 * time.Hour
	}
	return m
}

// Load returns the session referenced by the request cookie.
// Returns nil, nil when no cookie is present.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	return m.store.Get(ctx, cookie.Value)
}

// Create makes a new anonymous session with metadata from the request.
func (m *Manager) Create(ctx context.Context, r *http.Request) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	sess := New(uuid.NewString(), token, time.Now().Add(m.maxAge))
	sess.IP = clientIP(r)
	sess.UserAgent = r.UserAgent()

	if err := m.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	sess.ClearNew()
	sess.ClearDirty()
	return sess, nil
}

// Authenticate attaches the user to the session and rotates the token so a
// pre-login token captured by an attacker is useless (session fixation).
func (m *Manager) Authenticate(ctx context.Context, sess *Session, userID uuid.UUID) error {
	newToken, err := generateToken()
	if err != nil {
		return err
	}

	oldToken := sess.Token
	sess.Token = newToken
	sess.UserID = &userID
	sess.MarkDirty()

	if err := m.store.Update(ctx, sess); err != nil {
		sess.Token = oldToken
		sess.UserID = nil
		return err
	}
	sess.ClearDirty()
	return nil
}

// Save persists dirty sessions and touches LastActiveAt otherwise.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	if sess.IsDirty() {
		sess.LastActiveAt = time.Now()
		if err := m.store.Update(ctx, sess); err != nil {
			return err
		}
		sess.ClearDirty()
		return nil
	}
	return m.store.Touch(ctx, sess.ID, time.Now())
}

// Destroy removes the session from the store.
func (m *Manager) Destroy(ctx context.Context, sess *Session) error {
	return m.store.Delete(ctx, sess.ID)
}

// WriteCookie sets the session cookie on the response.
func (m *Manager) WriteCookie(w http.ResponseWriter, sess *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Store exposes the underlying store ("log out everywhere" etc.).
func (m *Manager) Store() Store { return m.store }

// generateToken creates a cryptographically random cookie token.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generate token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// clientIP extracts the client address, preferring X-Forwarded-For when a
// proxy set it.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip, _, ok := strings.Cut(fwd, ","); ok || ip != "" {
			return strings.TrimSpace(ip)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
