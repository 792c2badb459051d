package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/agora/internal/session"
)

// memStore is an in-memory Store for manager tests.
type memStore struct {
	mu       sync.Mutex
	byToken  map[string]*session.Session
	touched  int
	deleted  int
	failNext error
}

func newMemStore() *memStore {
	return &memStore{byToken: map[string]*session.Session{}}
}

func (s *memStore) clone(sess *session.Session) *session.Session {
	cp := *sess
	return &cp
}

func (s *memStore) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.byToken[sess.Token] = s.clone(sess)
	return nil
}

func (s *memStore) Get(ctx context.Context, token string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byToken[token]
	if !ok {
		return nil, session.ErrNotFound
	}
	if sess.IsExpired() {
		delete(s.byToken, token)
		return nil, session.ErrExpired
	}
	return s.clone(sess), nil
}

func (s *memStore) Update(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	for token, existing := range s.byToken {
		if existing.ID == sess.ID {
			delete(s.byToken, token)
			s.byToken[sess.Token] = s.clone(sess)
			return nil
		}
	}
	return session.ErrNotFound
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, existing := range s.byToken {
		if existing.ID == id {
			delete(s.byToken, token)
			s.deleted++
			return nil
		}
	}
	return session.ErrNotFound
}

func (s *memStore) DeleteByUserID(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, existing := range s.byToken {
		if existing.UserID != nil && existing.UserID.String() == userID {
			delete(s.byToken, token)
		}
	}
	return nil
}

func (s *memStore) Touch(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byToken {
		if existing.ID == id {
			existing.LastActiveAt = at
			s.touched++
			return nil
		}
	}
	return session.ErrNotFound
}

func newRequest() *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.7:4242"
	r.Header.Set("User-Agent", "test-agent")
	return r
}

func requestWithCookie(m *session.Manager, sess *session.Session) *http.Request {
	rec := httptest.NewRecorder()
	m.WriteCookie(rec, sess)
	r := newRequest()
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestManagerCreateAndLoad(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	m := session.NewManager(store, session.Config{})

	sess, err := m.Create(t.Context(), newRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "198.51.100.7", sess.IP)
	assert.Equal(t, "test-agent", sess.UserAgent)
	assert.False(t, sess.IsAuthenticated())

	loaded, err := m.Load(t.Context(), requestWithCookie(m, sess))
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, sess.ID, loaded.ID)
}

func TestManagerLoadWithoutCookie(t *testing.T) {
	t.Parallel()

	m := session.NewManager(newMemStore(), session.Config{})
	sess, err := m.Load(t.Context(), newRequest())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestManagerAuthenticateRotatesToken(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	m := session.NewManager(store, session.Config{})

	sess, err := m.Create(t.Context(), newRequest())
	require.NoError(t, err)
	oldToken := sess.Token

	userID := uuid.New()
	require.NoError(t, m.Authenticate(t.Context(), sess, userID))

	assert.NotEqual(t, oldToken, sess.Token)
	require.NotNil(t, sess.UserID)
	assert.Equal(t, userID, *sess.UserID)
	assert.True(t, sess.IsAuthenticated())

	// The pre-login token no longer resolves.
	_, err = store.Get(t.Context(), oldToken)
	assert.ErrorIs(t, err, session.ErrNotFound)

	loaded, err := store.Get(t.Context(), sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
}

func TestManagerAuthenticateRollsBackOnStoreFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	m := session.NewManager(store, session.Config{})

	sess, err := m.Create(t.Context(), newRequest())
	require.NoError(t, err)
	oldToken := sess.Token

	store.failNext = assert.AnError
	require.Error(t, m.Authenticate(t.Context(), sess, uuid.New()))
	assert.Equal(t, oldToken, sess.Token)
	assert.Nil(t, sess.UserID)
}

func TestManagerSave(t *testing.T) {
	t.Parallel()

	t.Run("clean session only touches", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		m := session.NewManager(store, session.Config{})

		sess, err := m.Create(t.Context(), newRequest())
		require.NoError(t, err)

		require.NoError(t, m.Save(t.Context(), sess))
		assert.Equal(t, 1, store.touched)
	})

	t.Run("dirty session is persisted", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		m := session.NewManager(store, session.Config{})

		sess, err := m.Create(t.Context(), newRequest())
		require.NoError(t, err)

		sess.SetValue("theme", "dark")
		require.True(t, sess.IsDirty())
		require.NoError(t, m.Save(t.Context(), sess))
		assert.False(t, sess.IsDirty())

		loaded, err := store.Get(t.Context(), sess.Token)
		require.NoError(t, err)
		v, ok := loaded.GetValue("theme")
		require.True(t, ok)
		assert.Equal(t, "dark", v)
	})
}

func TestManagerDestroy(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	m := session.NewManager(store, session.Config{})

	sess, err := m.Create(t.Context(), newRequest())
	require.NoError(t, err)

	require.NoError(t, m.Destroy(t.Context(), sess))
	_, err = store.Get(t.Context(), sess.Token)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestManagerCookies(t *testing.T) {
	t.Parallel()

	m := session.NewManager(newMemStore(), session.Config{CookieName: "__sid"})
	sess := session.New("id", "token-value", time.Now().Add(time.Hour))

	rec := httptest.NewRecorder()
	m.WriteCookie(rec, sess)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "__sid", cookies[0].Name)
	assert.Equal(t, "token-value", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	rec = httptest.NewRecorder()
	m.ClearCookie(rec)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestSessionExpiry(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	m := session.NewManager(store, session.Config{MaxAge: time.Nanosecond})

	sess, err := m.Create(t.Context(), newRequest())
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	_, err = m.Load(t.Context(), requestWithCookie(m, sess))
	assert.ErrorIs(t, err, session.ErrExpired)
}
