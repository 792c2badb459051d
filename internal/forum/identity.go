package forum

import "github.com/google/uuid"

// Identity is the caller of a request: either anonymous (zero value) or a
// logged-in user. It is resolved once per request from the session and
// passed explicitly to every operation that needs it.
type Identity struct {
	ID    uuid.UUID
	Admin bool
}

// Anonymous is the identity of an unauthenticated request.
var Anonymous = Identity{}

// IsAnonymous reports whether the identity belongs to no user.
func (i Identity) IsAnonymous() bool { return i.ID == uuid.Nil }

// IsLoggedIn reports whether the identity belongs to an authenticated user.
func (i Identity) IsLoggedIn() bool { return i.ID != uuid.Nil }

// IdentityOf builds an Identity from a loaded user.
func IdentityOf(u User) Identity {
	return Identity{ID: u.ID, Admin: u.Admin}
}
