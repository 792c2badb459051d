package handler_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/agora/internal/attachment"
	"github.com/dmitrymomot/agora/internal/forum"
	"github.com/dmitrymomot/agora/internal/logger"
	"github.com/dmitrymomot/agora/internal/repository"
	"github.com/dmitrymomot/agora/internal/web"
)

// recRenderer records the last rendered template and data instead of
// producing HTML.
type recRenderer struct {
	mu   sync.Mutex
	name string
	data any
}

func (r *recRenderer) Render(w io.Writer, name string, data any) error {
	r.mu.Lock()
	r.name = name
	r.data = data
	r.mu.Unlock()
	_, err := fmt.Fprintf(w, "template:%s", name)
	return err
}

func (r *recRenderer) lastData() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, _ := r.data.(map[string]any)
	return m
}

// identityMW injects a fixed identity, standing in for the session chain.
func identityMW(ident forum.Identity) web.Middleware {
	return func(next web.HandlerFunc) web.HandlerFunc {
		return func(c *web.Context) error {
			c.SetIdentity(ident)
			return next(c)
		}
	}
}

func newTestApp(ident forum.Identity, rnd *recRenderer, handlers ...web.Handler) *web.App {
	app := web.NewApp(logger.NewNope(), rnd)
	app.Router().Use(identityMW(ident))
	app.Register(handlers...)
	return app
}

// testApp wraps App with request helpers.
type testApp struct {
	*web.App
}

func (a *testApp) get(target string, header ...string) *httptest.ResponseRecorder {
	return doGet(a.App, target, header...)
}

func (a *testApp) postForm(target string, form url.Values, header ...string) *httptest.ResponseRecorder {
	return doPost(a.App, target, form, header...)
}

func (a *testApp) upload(target, field, filename string, content []byte, fields url.Values) *httptest.ResponseRecorder {
	return doUpload(a.App, target, field, filename, content, fields)
}

func doGet(app *web.App, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func doPost(app *web.App, target string, form url.Values, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func doUpload(app *web.App, target, field, filename string, content []byte, fields url.Values) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile(field, filename)
	_, _ = fw.Write(content)
	for k, vs := range fields {
		for _, v := range vs {
			_ = mw.WriteField(k, v)
		}
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

// pngBytes carries a PNG signature so MIME sniffing sees an image.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

// fakeStore is an in-memory stand-in for *repository.Queries covering every
// handler store interface.
type fakeStore struct {
	mu sync.Mutex

	users      map[uuid.UUID]forum.User
	categories []forum.Category
	forums     map[uuid.UUID]forum.Forum
	topics     map[uuid.UUID]forum.Topic
	posts      map[uuid.UUID]forum.Post
	headers    map[uuid.UUID]forum.Header
	avatars    map[uuid.UUID]forum.Avatar

	hitsErr error // forced IncrementHits failure
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[uuid.UUID]forum.User{},
		forums:  map[uuid.UUID]forum.Forum{},
		topics:  map[uuid.UUID]forum.Topic{},
		posts:   map[uuid.UUID]forum.Post{},
		headers: map[uuid.UUID]forum.Header{},
		avatars: map[uuid.UUID]forum.Avatar{},
	}
}

func (s *fakeStore) addUser(u forum.User) forum.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.DisplayName == "" {
		u.DisplayName = "user-" + u.ID.String()[:8]
	}
	s.users[u.ID] = u
	return u
}

func (s *fakeStore) addForum(f forum.Forum) forum.Forum {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.CategoryID == uuid.Nil {
		cat := forum.Category{ID: uuid.New(), Name: "Community"}
		s.categories = append(s.categories, cat)
		f.CategoryID = cat.ID
	}
	s.forums[f.ID] = f
	return f
}

func (s *fakeStore) addTopic(t forum.Topic) forum.Topic {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.LastPosterID == uuid.Nil {
		t.LastPosterID = t.UserID
	}
	s.topics[t.ID] = t
	return t
}

func (s *fakeStore) addHeader(h forum.Header) forum.Header {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	s.headers[h.ID] = h
	return h
}

// UserLoader / AuthStore

func (s *fakeStore) GetUser(ctx context.Context, id uuid.UUID) (forum.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return forum.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *fakeStore) GetUserByEmail(ctx context.Context, email string) (forum.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return forum.User{}, repository.ErrNotFound
}

func (s *fakeStore) CreateUser(ctx context.Context, u forum.User) (forum.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return forum.User{}, repository.ErrDuplicate
		}
	}
	u.ID = uuid.New()
	s.users[u.ID] = u
	return u, nil
}

// ForumStore

func (s *fakeStore) ListCategories(ctx context.Context) ([]forum.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]forum.Category(nil), s.categories...), nil
}

func (s *fakeStore) ListForums(ctx context.Context) ([]forum.Forum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]forum.Forum, 0, len(s.forums))
	for _, f := range s.forums {
		out = append(out, f)
	}
	return out, nil
}

func (s *fakeStore) GetCategory(ctx context.Context, id uuid.UUID) (forum.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return forum.Category{}, repository.ErrNotFound
}

func (s *fakeStore) GetForum(ctx context.Context, id uuid.UUID) (forum.Forum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forums[id]
	if !ok {
		return forum.Forum{}, repository.ErrNotFound
	}
	return f, nil
}

func (s *fakeStore) ListTopics(ctx context.Context, forumID uuid.UUID, includePrivate bool, page int) ([]forum.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []forum.Topic
	for _, t := range s.topics {
		if t.ForumID != forumID {
			continue
		}
		if t.Private && !includePrivate {
			continue
		}
		t.Author = &forum.User{ID: t.UserID, DisplayName: "author"}
		t.LastPoster = &forum.User{ID: t.LastPosterID, DisplayName: "poster"}
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeStore) CountTopics(ctx context.Context, forumID uuid.UUID, includePrivate bool) (int, error) {
	topics, _ := s.ListTopics(ctx, forumID, includePrivate, 1)
	return len(topics), nil
}

func (s *fakeStore) ListAllTopics(ctx context.Context, includePrivate bool, page int) ([]forum.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []forum.Topic
	for _, t := range s.topics {
		if t.Private && !includePrivate {
			continue
		}
		t.Author = &forum.User{ID: t.UserID, DisplayName: "author"}
		t.LastPoster = &forum.User{ID: t.LastPosterID, DisplayName: "poster"}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastPostAt.After(out[j].LastPostAt) })
	return out, nil
}

func (s *fakeStore) CountAllTopics(ctx context.Context, includePrivate bool) (int, error) {
	topics, _ := s.ListAllTopics(ctx, includePrivate, 1)
	return len(topics), nil
}

// TopicStore

func (s *fakeStore) GetTopic(ctx context.Context, id uuid.UUID) (forum.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[id]
	if !ok {
		return forum.Topic{}, repository.ErrNotFound
	}
	t.Author = &forum.User{ID: t.UserID, DisplayName: "author"}
	return t, nil
}

func (s *fakeStore) CreateTopicWithPost(ctx context.Context, t forum.Topic, body string) (forum.Topic, forum.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.New()
	now := time.Now()
	t.CreatedAt = now
	t.LastPostAt = now
	t.LastPosterID = t.UserID
	s.topics[t.ID] = t

	p := forum.Post{ID: uuid.New(), TopicID: t.ID, UserID: t.UserID, Body: body, CreatedAt: now}
	s.posts[p.ID] = p
	return t, p, nil
}

func (s *fakeStore) UpdateTopic(ctx context.Context, id uuid.UUID, title string, private bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Title = title
	t.Private = private
	s.topics[id] = t
	return nil
}

func (s *fakeStore) DeleteTopic(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.topics, id)
	for pid, p := range s.posts {
		if p.TopicID == id {
			delete(s.posts, pid)
		}
	}
	return nil
}

func (s *fakeStore) IncrementHits(ctx context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hitsErr != nil {
		return 0, s.hitsErr
	}
	t, ok := s.topics[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	t.Hits++
	s.topics[id] = t
	return t.Hits, nil
}

func (s *fakeStore) ListPosts(ctx context.Context, topicID uuid.UUID) ([]forum.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []forum.Post
	for _, p := range s.posts {
		if p.TopicID == topicID {
			p.Author = &forum.User{ID: p.UserID, DisplayName: "author"}
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) ListPosters(ctx context.Context, topicID uuid.UUID) ([]forum.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var out []forum.User
	for _, p := range s.posts {
		if p.TopicID == topicID && !seen[p.UserID] {
			seen[p.UserID] = true
			out = append(out, forum.User{ID: p.UserID})
		}
	}
	return out, nil
}

func (s *fakeStore) Reply(ctx context.Context, p forum.Post) (forum.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[p.TopicID]
	if !ok {
		return forum.Post{}, repository.ErrNotFound
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	s.posts[p.ID] = p
	t.LastPostAt = p.CreatedAt
	t.LastPosterID = p.UserID
	s.topics[t.ID] = t
	return p, nil
}

func (s *fakeStore) DeletePost(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *fakeStore) GetPost(ctx context.Context, id uuid.UUID) (forum.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return forum.Post{}, repository.ErrNotFound
	}
	return p, nil
}

// HeaderStore

func (s *fakeStore) ListHeaders(ctx context.Context) ([]forum.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]forum.Header, 0, len(s.headers))
	for _, h := range s.headers {
		out = append(out, h)
	}
	return out, nil
}

func (s *fakeStore) GetHeader(ctx context.Context, id uuid.UUID) (forum.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.headers[id]
	if !ok {
		return forum.Header{}, repository.ErrNotFound
	}
	return h, nil
}

func (s *fakeStore) RandomHeader(ctx context.Context) (forum.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.headers {
		return h, nil
	}
	return forum.Header{}, repository.ErrNotFound
}

func (s *fakeStore) CreateHeader(ctx context.Context, h forum.Header) (forum.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.headers {
		if existing.Filename == h.Filename {
			return forum.Header{}, repository.ErrDuplicate
		}
	}
	h.ID = uuid.New()
	h.CreatedAt = time.Now()
	s.headers[h.ID] = h
	return h, nil
}

func (s *fakeStore) UpdateHeader(ctx context.Context, id uuid.UUID, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.headers[id]
	if !ok {
		return repository.ErrNotFound
	}
	h.Description = description
	s.headers[id] = h
	return nil
}

func (s *fakeStore) DeleteHeader(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.headers[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.headers, id)
	return nil
}

func (s *fakeStore) VoteUp(ctx context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.headers[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	h.Votes++
	s.headers[id] = h
	return h.Votes, nil
}

func (s *fakeStore) VoteDown(ctx context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.headers[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if h.Votes > 0 {
		h.Votes--
	}
	s.headers[id] = h
	return h.Votes, nil
}

// AvatarStore

func (s *fakeStore) GetAvatarByUser(ctx context.Context, userID uuid.UUID) (forum.Avatar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.avatars {
		if a.UserID == userID {
			return a, nil
		}
	}
	return forum.Avatar{}, repository.ErrNotFound
}

func (s *fakeStore) GetAvatar(ctx context.Context, id uuid.UUID) (forum.Avatar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.avatars[id]
	if !ok {
		return forum.Avatar{}, repository.ErrNotFound
	}
	return a, nil
}

func (s *fakeStore) ReplaceAvatar(ctx context.Context, a forum.Avatar) (forum.Avatar, *forum.Avatar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed *forum.Avatar
	for id, existing := range s.avatars {
		if existing.UserID == a.UserID {
			old := existing
			removed = &old
			delete(s.avatars, id)
		}
	}
	a.ID = uuid.New()
	s.avatars[a.ID] = a
	return a, removed, nil
}

func (s *fakeStore) DeleteAvatar(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.avatars[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.avatars, id)
	return nil
}

// fakeFiles is an in-memory attachment.Store.
type fakeFiles struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	deleted []string

	// fixedKey forces every Put onto the same key, for duplicate tests.
	fixedKey string
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{blobs: map[string][]byte{}}
}

func (f *fakeFiles) Put(ctx context.Context, r io.Reader, size int64, opts ...attachment.Option) (*attachment.FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	key := "fake/" + uuid.NewString() + ".png"
	if f.fixedKey != "" {
		key = f.fixedKey
	}
	f.mu.Lock()
	f.blobs[key] = data
	f.mu.Unlock()
	return &attachment.FileInfo{
		Key:         key,
		Filename:    strings.TrimPrefix(key, "fake/"),
		ContentType: "image/png",
		Size:        int64(len(data)),
	}, nil
}

func (f *fakeFiles) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[key]
	if !ok {
		return nil, attachment.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeFiles) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeFiles) URL(key string) string {
	return "/files/" + key
}
