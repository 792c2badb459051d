// Package validator provides composable field validation producing
// structured field/message errors suitable for form re-rendering and XML
// error documents.
package validator

import (
	"fmt"
	"net/mail"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidationError describes a single failed field rule.
type ValidationError struct {
	Field   string `json:"field" xml:"field,attr"`
	Message string `json:"message" xml:",chardata"`
}

// ValidationErrors is the collection returned from Apply. A nil or empty
// collection means the input passed.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation: no errors"
	}
	return fmt.Sprintf("validation: %s %s (and %d more)", e[0].Field, e[0].Message, len(e)-1)
}

// IsEmpty reports whether the input passed validation.
func (e ValidationErrors) IsEmpty() bool { return len(e) == 0 }

// Has reports whether the field has at least one error.
func (e ValidationErrors) Has(field string) bool {
	for _, v := range e {
		if v.Field == field {
			return true
		}
	}
	return false
}

// Get returns the first message for the field, or "".
func (e ValidationErrors) Get(field string) string {
	for _, v := range e {
		if v.Field == field {
			return v.Message
		}
	}
	return ""
}

// Rule checks one field. It returns a zero ValidationError when the check
// passes; the bool reports failure.
type Rule func() (ValidationError, bool)

// Apply runs all rules and collects failures. Returns nil when everything
// passes so callers can do `if errs := Apply(...); !errs.IsEmpty()`.
func Apply(rules ...Rule) ValidationErrors {
	var errs ValidationErrors
	for _, rule := range rules {
		if ve, failed := rule(); failed {
			errs = append(errs, ve)
		}
	}
	return errs
}

// RequiredString fails when the value is empty.
func RequiredString(field, value string) Rule {
	return func() (ValidationError, bool) {
		if value == "" {
			return ValidationError{Field: field, Message: "is required"}, true
		}
		return ValidationError{}, false
	}
}

// MinLen fails when the value is shorter than min runes. Empty values pass;
// combine with RequiredString when the field is mandatory.
func MinLen(field, value string, min int) Rule {
	return func() (ValidationError, bool) {
		if value != "" && utf8.RuneCountInString(value) < min {
			return ValidationError{Field: field, Message: fmt.Sprintf("must be at least %d characters", min)}, true
		}
		return ValidationError{}, false
	}
}

// MaxLen fails when the value is longer than max runes.
func MaxLen(field, value string, max int) Rule {
	return func() (ValidationError, bool) {
		if utf8.RuneCountInString(value) > max {
			return ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)}, true
		}
		return ValidationError{}, false
	}
}

// Email fails when the value is not a parseable address. Empty values pass.
func Email(field, value string) Rule {
	return func() (ValidationError, bool) {
		if value == "" {
			return ValidationError{}, false
		}
		if _, err := mail.ParseAddress(value); err != nil {
			return ValidationError{Field: field, Message: "is not a valid email address"}, true
		}
		return ValidationError{}, false
	}
}

// UUID fails when the value is not a valid UUID. Empty values pass.
func UUID(field, value string) Rule {
	return func() (ValidationError, bool) {
		if value == "" {
			return ValidationError{}, false
		}
		if _, err := uuid.Parse(value); err != nil {
			return ValidationError{Field: field, Message: "is not a valid identifier"}, true
		}
		return ValidationError{}, false
	}
}
