// Package requests defines the whitelisted form inputs for every write
// operation. Only fields listed here ever reach the database; anything
// else in the submitted form is ignored.
package requests

// LoginRequest is the form data for logging in.
type LoginRequest struct {
	Email    string `form:"email"    sanitize:"trim,lower,email" validate:"required;email"`
	Password string `form:"password"                             validate:"required"`
}

// SignupRequest is the form data for creating an account.
type SignupRequest struct {
	DisplayName string `form:"display_name" sanitize:"trim,name"        validate:"required;min:2;max:50"`
	Email       string `form:"email"        sanitize:"trim,lower,email" validate:"required;email"`
	Password    string `form:"password"                                 validate:"required;min:8;max:72"`
}

// CreateTopicRequest is the form data for starting a topic. Body becomes
// the topic's first post.
type CreateTopicRequest struct {
	ForumID string `form:"forum_id" sanitize:"trim"     validate:"required;uuid"`
	Title   string `form:"title"   sanitize:"trim,strip" validate:"required;min:3;max:120"`
	Body    string `form:"body"    sanitize:"trim"       validate:"required;max:20000"`
	Private bool   `form:"private"`
}

// UpdateTopicRequest is the form data for editing a topic. Posts are edited
// separately; only the title and visibility can change here.
type UpdateTopicRequest struct {
	Title   string `form:"title"   sanitize:"trim,strip" validate:"required;min:3;max:120"`
	Private bool   `form:"private"`
}

// CreatePostRequest is the form data for replying to a topic.
type CreatePostRequest struct {
	Body string `form:"body" sanitize:"trim" validate:"required;max:20000"`
}

// CreateHeaderRequest is the text part of the header upload form; the
// image arrives as a multipart file alongside it.
type CreateHeaderRequest struct {
	Description string `form:"description" sanitize:"trim,strip" validate:"max:200"`
}

// UpdateHeaderRequest is the form data for editing a header. The image is
// immutable after upload; only the description can change.
type UpdateHeaderRequest struct {
	Description string `form:"description" sanitize:"trim,strip" validate:"max:200"`
}
