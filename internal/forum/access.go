package forum

import "github.com/google/uuid"

// Owned is anything with a single owning user.
type Owned interface {
	OwnerID() uuid.UUID
}

// CanView reports whether the identity may read the topic. Private topics
// require a logged-in user; public topics are open to everyone.
func CanView(ident Identity, t Topic) bool {
	if !t.Private {
		return true
	}
	return ident.IsLoggedIn()
}

// CanEdit reports whether the identity may modify or delete the entity.
// Admins may edit anything; otherwise only the owner may.
func CanEdit(ident Identity, o Owned) bool {
	if ident.Admin {
		return true
	}
	return ident.IsLoggedIn() && ident.ID == o.OwnerID()
}

// CanCreate reports whether the identity may create content. Any logged-in
// user may.
func CanCreate(ident Identity) bool {
	return ident.IsLoggedIn()
}
