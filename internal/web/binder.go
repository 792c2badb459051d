package web

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/dmitrymomot/agora/internal/sanitizer"
	"github.com/dmitrymomot/agora/internal/validator"
)

// Bind populates dst from the request form. dst must be a pointer to a
// struct whose fields carry `form` tags, optionally with `sanitize` (ops
// applied in order) and `validate` (semicolon-separated rules) tags.
// Validation failures come back as validator.ValidationErrors so the error
// handler can re-render the form.
func (c *Context) Bind(dst any) error {
	if err := c.r.ParseForm(); err != nil {
		return ErrBadRequest("invalid form data", WithError(err))
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("web: Bind expects a pointer to struct, got %T", dst)
	}
	v = v.Elem()
	t := v.Type()

	var errs validator.ValidationErrors
	for i := range t.NumField() {
		field := t.Field(i)
		name := field.Tag.Get("form")
		if name == "" || name == "-" {
			continue
		}

		raw := c.r.PostFormValue(name)
		if raw == "" {
			raw = c.r.FormValue(name)
		}
		if tag := field.Tag.Get("sanitize"); tag != "" {
			raw = sanitizer.Apply(raw, tag)
		}

		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.String:
			fv.SetString(raw)
		case reflect.Bool:
			fv.SetBool(raw == "true" || raw == "on" || raw == "1")
		case reflect.Int, reflect.Int64:
			if raw != "" {
				n, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					errs = append(errs, validator.ValidationError{Field: name, Message: "must be a number"})
					continue
				}
				fv.SetInt(n)
			}
		default:
			return fmt.Errorf("web: Bind does not support field kind %s for %q", fv.Kind(), name)
		}

		if tag := field.Tag.Get("validate"); tag != "" {
			errs = append(errs, applyRules(name, raw, tag)...)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// applyRules evaluates a semicolon-separated rule tag, e.g.
// "required;min:2;max:100" or "required;email".
func applyRules(field, value, tag string) validator.ValidationErrors {
	var rules []validator.Rule
	for part := range strings.SplitSeq(tag, ";") {
		part = strings.TrimSpace(part)
		name, arg, _ := strings.Cut(part, ":")
		switch name {
		case "required":
			rules = append(rules, validator.RequiredString(field, value))
		case "min":
			if n, err := strconv.Atoi(arg); err == nil {
				rules = append(rules, validator.MinLen(field, value, n))
			}
		case "max":
			if n, err := strconv.Atoi(arg); err == nil {
				rules = append(rules, validator.MaxLen(field, value, n))
			}
		case "email":
			rules = append(rules, validator.Email(field, value))
		case "uuid":
			rules = append(rules, validator.UUID(field, value))
		}
	}
	return validator.Apply(rules...)
}
