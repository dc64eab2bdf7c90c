package validator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// EmailRX is the email pattern recommended by the WHATWG HTML spec.
	EmailRX = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+\\/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")
	// UsernameRX allows letters, digits and @/./+/-/_ only.
	UsernameRX = regexp.MustCompile(`^[\w.@+-]+$`)
	// SlugRX matches URL-safe identifiers.
	SlugRX = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
)

// Validator collects validation errors keyed by field name.
type Validator struct {
	Errors map[string]string
}

func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid reports whether no errors have been recorded.
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError records message for key unless key already has one, so the first
// failing check for a field wins.
func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

// Check adds an error message for key only if ok is false.
func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// In reports whether value is one of list.
func In[T comparable](value T, list ...T) bool {
	for i := range list {
		if value == list[i] {
			return true
		}
	}
	return false
}

func Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

// Unique reports whether all values in the slice are distinct.
func Unique[T comparable](values []T) bool {
	seen := make(map[T]bool, len(values))
	for _, value := range values {
		seen[value] = true
	}
	return len(values) == len(seen)
}

// NotBlank reports whether value has any non-whitespace character.
func NotBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

// MaxChars reports whether value has at most n characters (not bytes).
func MaxChars(value string, n int) bool {
	return utf8.RuneCountInString(value) <= n
}
