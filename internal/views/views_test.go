package views_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/agora/internal/forum"
	"github.com/dmitrymomot/agora/internal/validator"
	"github.com/dmitrymomot/agora/internal/views"
)

func TestRender(t *testing.T) {
	t.Parallel()

	r, err := views.New()
	require.NoError(t, err)

	anon := forum.Anonymous
	member := forum.Identity{ID: uuid.New()}
	now := time.Now()

	author := &forum.User{ID: uuid.New(), DisplayName: "Ada"}
	topic := forum.Topic{
		ID:         uuid.New(),
		ForumID:    uuid.New(),
		UserID:     author.ID,
		Title:      "Welcome",
		Hits:       3,
		CreatedAt:  now,
		LastPostAt: now,
		Author:     author,
		LastPoster: author,
	}
	f := forum.Forum{ID: uuid.New(), Name: "General", Description: "Anything goes"}
	header := forum.Header{ID: uuid.New(), Description: "Sunrise", Votes: 2, CreatedAt: now}

	type card struct {
		Header forum.Header
		URL    string
	}

	cases := []struct {
		template string
		data     map[string]any
		want     string
	}{
		{
			template: "home",
			data: map[string]any{
				"Identity": anon,
				"Categories": []struct {
					forum.Category
					Forums []forum.Forum
				}{{Category: forum.Category{ID: uuid.New(), Name: "Community"}, Forums: []forum.Forum{f}}},
			},
			want: "General",
		},
		{
			template: "forums/show",
			data: map[string]any{
				"Identity": member,
				"Forum":    f,
				"Topics":   []forum.Topic{topic},
				"Page":     1, "PageCount": 2, "PrevPage": 0, "NextPage": 2,
			},
			want: "Welcome",
		},
		{
			template: "topics/show",
			data: map[string]any{
				"Identity": member,
				"Topic":    topic,
				"Forum":    f,
				"Category": forum.Category{ID: uuid.New(), Name: "Community"},
				"Posts":    []forum.Post{{ID: uuid.New(), TopicID: topic.ID, Body: "**bold**", CreatedAt: now, Author: author}},
				"Posters":  []forum.User{*author},
				"CanEdit":  true,
			},
			want: "<strong>bold</strong>",
		},
		{
			template: "topics/index",
			data: map[string]any{
				"Identity": member,
				"Topics":   []forum.Topic{topic},
				"Page":     1, "PageCount": 2, "PrevPage": 0, "NextPage": 2,
			},
			want: "Welcome",
		},
		{
			template: "topics/new",
			data:     map[string]any{"Identity": member, "Forums": []forum.Forum{f}, "Selected": f.ID.String()},
			want:     "New topic",
		},
		{
			template: "topics/edit",
			data:     map[string]any{"Identity": member, "Topic": topic},
			want:     "Edit topic",
		},
		{
			template: "headers/index",
			data:     map[string]any{"Identity": anon, "Headers": []card{{Header: header, URL: "/files/h.png"}}},
			want:     "Sunrise",
		},
		{
			template: "headers/show",
			data:     map[string]any{"Identity": anon, "Header": header, "URL": "/files/h.png", "CanEdit": false},
			want:     "Sunrise",
		},
		{
			template: "headers/new",
			data:     map[string]any{"Identity": member},
			want:     "Upload a header",
		},
		{
			template: "headers/edit",
			data:     map[string]any{"Identity": member, "Header": header, "URL": "/files/h.png"},
			want:     "Edit header",
		},
		{
			template: "auth/login",
			data:     map[string]any{"Identity": anon, "Flash": "Invalid email or password."},
			want:     "Invalid email or password.",
		},
		{
			template: "auth/signup",
			data:     map[string]any{"Identity": anon},
			want:     "Create account",
		},
		{
			template: "avatars/edit",
			data:     map[string]any{"Identity": member},
			want:     "no avatar yet",
		},
		{
			template: "errors/error",
			data:     map[string]any{"Identity": anon, "Status": 404, "Title": "Not Found", "Message": "no such topic", "RequestID": "abc"},
			want:     "no such topic",
		},
		{
			template: "errors/validation",
			data:     map[string]any{"Identity": anon, "Errors": validator.ValidationErrors{{Field: "title", Message: "is required"}}},
			want:     "is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.template, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			require.NoError(t, r.Render(&buf, tc.template, tc.data))
			assert.Contains(t, buf.String(), tc.want)
			assert.NotContains(t, buf.String(), "<no value>")
		})
	}

	t.Run("unknown template", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		assert.Error(t, r.Render(&buf, "nope", nil))
	})
}

func TestLayoutNavigation(t *testing.T) {
	t.Parallel()

	r, err := views.New()
	require.NoError(t, err)

	t.Run("anonymous sees login links", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, r.Render(&buf, "auth/login", map[string]any{"Identity": forum.Anonymous}))
		assert.Contains(t, buf.String(), `href="/signup"`)
		assert.NotContains(t, buf.String(), "Log out")
	})

	t.Run("members see logout", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, r.Render(&buf, "home", map[string]any{
			"Identity":   forum.Identity{ID: uuid.New()},
			"Categories": nil,
		}))
		assert.Contains(t, buf.String(), "Log out")
	})

	t.Run("banner renders when a header is set", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, r.Render(&buf, "home", map[string]any{
			"Identity": forum.Anonymous,
			"Header": struct {
				URL         string
				Description string
			}{URL: "/files/banner.png", Description: "Sunrise"},
			"Categories": nil,
		}))
		assert.Contains(t, buf.String(), `src="/files/banner.png"`)
	})
}

func TestMarkdown(t *testing.T) {
	t.Parallel()

	t.Run("renders formatting", func(t *testing.T) {
		t.Parallel()
		out := views.Markdown("# Hello\n\nsome *text*")
		assert.Contains(t, string(out), "<h1>")
		assert.Contains(t, string(out), "<em>text</em>")
	})

	t.Run("strips scripts", func(t *testing.T) {
		t.Parallel()
		out := views.Markdown("hi <script>alert(1)</script>")
		assert.NotContains(t, string(out), "<script>")
	})

	t.Run("autolinks stay nofollow", func(t *testing.T) {
		t.Parallel()
		out := views.Markdown("[site](https://example.com)")
		assert.Contains(t, string(out), `href="https://example.com"`)
		assert.Contains(t, string(out), "nofollow")
	})
}
