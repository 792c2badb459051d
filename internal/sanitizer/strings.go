package sanitizer

import "strings"

// Op is a named string sanitization operation, referenced by `sanitize:"..."`
// struct tags on request structs.
type Op func(string) string

// ops maps tag names to operations. Unknown names are ignored by Apply so a
// typo in a tag degrades to a no-op instead of dropping input.
var ops = map[string]Op{
	"trim":  strings.TrimSpace,
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"email": func(s string) string { return strings.ToLower(strings.TrimSpace(s)) },
	"name":  collapseSpaces,
	"strip": StripHTML,
}

// Apply runs the comma-separated list of named operations over the value.
func Apply(value, tag string) string {
	if tag == "" {
		return value
	}
	for name := range strings.SplitSeq(tag, ",") {
		if op, ok := ops[strings.TrimSpace(name)]; ok {
			value = op(value)
		}
	}
	return value
}

// collapseSpaces trims the value and folds internal whitespace runs into a
// single space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
