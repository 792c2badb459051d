// Package forum holds the domain model: users, the category → forum →
// topic → post hierarchy, votable page headers, avatars, and the
// authorization predicates over them.
package forum

import (
	"time"

	"github.com/google/uuid"
)

// User is a forum member. Admin bypasses ownership checks.
type User struct {
	ID           uuid.UUID `json:"id" xml:"id"`
	Email        string    `json:"email" xml:"email"`
	DisplayName  string    `json:"display_name" xml:"display-name"`
	PasswordHash []byte    `json:"-" xml:"-"`
	Admin        bool      `json:"admin" xml:"admin"`
	AvatarsCount int       `json:"avatars_count" xml:"-"`
	CreatedAt    time.Time `json:"created_at" xml:"created-at"`
	UpdatedAt    time.Time `json:"updated_at" xml:"-"`
}

// Category is the top-level grouping of forums.
type Category struct {
	ID       uuid.UUID `json:"id" xml:"id"`
	Name     string    `json:"name" xml:"name"`
	Position int       `json:"position" xml:"-"`
}

// Forum is a named subsection of a category containing topics.
type Forum struct {
	ID          uuid.UUID `json:"id" xml:"id"`
	CategoryID  uuid.UUID `json:"category_id" xml:"category-id"`
	Name        string    `json:"name" xml:"name"`
	Description string    `json:"description" xml:"description"`
	Position    int       `json:"position" xml:"-"`
}

// Topic is a discussion thread. A topic always has at least one post: the
// originating post is created in the same transaction. LastPostAt and
// LastPosterID are denormalized for list ordering and kept current on every
// reply.
type Topic struct {
	ID           uuid.UUID `json:"id" xml:"id"`
	ForumID      uuid.UUID `json:"forum_id" xml:"forum-id"`
	UserID       uuid.UUID `json:"user_id" xml:"user-id"`
	Title        string    `json:"title" xml:"title"`
	Private      bool      `json:"private" xml:"private"`
	Hits         int       `json:"hits" xml:"hits"`
	LastPostAt   time.Time `json:"last_post_at" xml:"last-post-at"`
	LastPosterID uuid.UUID `json:"last_poster_id" xml:"last-poster-id"`
	CreatedAt    time.Time `json:"created_at" xml:"created-at"`
	UpdatedAt    time.Time `json:"updated_at" xml:"-"`

	// Joined for list rendering; zero-valued unless the query loaded them.
	Author     *User `json:"author,omitempty" xml:"-"`
	LastPoster *User `json:"last_poster,omitempty" xml:"-"`
}

// Post is a single message in a topic.
type Post struct {
	ID        uuid.UUID `json:"id" xml:"id"`
	TopicID   uuid.UUID `json:"topic_id" xml:"topic-id"`
	UserID    uuid.UUID `json:"user_id" xml:"user-id"`
	Body      string    `json:"body" xml:"body"`
	CreatedAt time.Time `json:"created_at" xml:"created-at"`

	Author *User `json:"author,omitempty" xml:"-"`
}

// Avatar is a user's profile image, at most one per user.
type Avatar struct {
	ID            uuid.UUID `json:"id" xml:"id"`
	UserID        uuid.UUID `json:"user_id" xml:"user-id"`
	Filename      string    `json:"filename" xml:"filename"`
	AttachmentKey string    `json:"-" xml:"-"`
	ContentType   string    `json:"content_type" xml:"content-type"`
	Size          int64     `json:"size" xml:"size"`
	CreatedAt     time.Time `json:"created_at" xml:"created-at"`
}

// Header is a votable page-banner image, independent of the forum
// hierarchy. Votes never go below zero.
type Header struct {
	ID            uuid.UUID `json:"id" xml:"id"`
	UserID        uuid.UUID `json:"user_id" xml:"user-id"`
	Description   string    `json:"description" xml:"description"`
	Votes         int       `json:"votes" xml:"votes"`
	Filename      string    `json:"filename" xml:"filename"`
	AttachmentKey string    `json:"-" xml:"-"`
	ContentType   string    `json:"content_type" xml:"content-type"`
	Size          int64     `json:"size" xml:"size"`
	CreatedAt     time.Time `json:"created_at" xml:"created-at"`
	UpdatedAt     time.Time `json:"updated_at" xml:"-"`
}

// OwnerID implementations for the authorization gate.

func (t Topic) OwnerID() uuid.UUID  { return t.UserID }
func (h Header) OwnerID() uuid.UUID { return h.UserID }
func (a Avatar) OwnerID() uuid.UUID { return a.UserID }
func (p Post) OwnerID() uuid.UUID   { return p.UserID }
