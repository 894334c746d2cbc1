// Package schema holds the form schema engine: pure validation of form
// values, the built-in forms, YAML definition loading, and the registry the
// rest of the service reads schemas from.
package schema

import (
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/xtremefabrix/formrelay/model"
)

// DateLayout is the wire format of date fields.
const DateLayout = "2006-01-02"

// Validate checks values against the schema's constraints. Fields are
// visited in declaration order and only the first failing constraint of each
// field is reported. It has no side effects and is safe to call on every
// keystroke. today is the reference used by date constraints; only its
// calendar date in its own location matters. Constraints apply to the
// normalized values, see Normalize.
func Validate(values model.Values, s model.FormSchema, today time.Time) model.ValidationResult {
	values = Normalize(s, values)
	result := model.ValidationResult{}
	for _, f := range s.Fields {
		if msg := validateField(f, values[f.Name], today); msg != "" {
			result[f.Name] = msg
		}
	}
	return result
}

// Defaults returns the initial values of a form: every field empty unless it
// declares a default.
func Defaults(s model.FormSchema) model.Values {
	out := make(model.Values, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = f.Default
	}
	return out
}

func validateField(f model.Field, raw string, today time.Time) string {
	value := strings.TrimSpace(raw)

	// Empty optional fields only answer to a declared maximum length.
	if f.Optional && value == "" {
		for _, c := range f.Constraints {
			if c.Kind == model.ConstraintMaxLength {
				return check(f, c, value, today)
			}
		}
		return ""
	}

	for _, c := range f.Constraints {
		if msg := check(f, c, value, today); msg != "" {
			return msg
		}
	}
	return ""
}

func check(f model.Field, c model.Constraint, value string, today time.Time) string {
	switch c.Kind {
	case model.ConstraintRequired:
		if value == "" {
			return messageOr(c, label(f)+" is required")
		}
	case model.ConstraintMinLength:
		n, err := strconv.Atoi(c.Value)
		if err != nil {
			return ""
		}
		if utf8.RuneCountInString(value) < n {
			return messageOr(c, label(f)+" must be at least "+c.Value+" characters")
		}
	case model.ConstraintMaxLength:
		n, err := strconv.Atoi(c.Value)
		if err != nil {
			return ""
		}
		if utf8.RuneCountInString(value) > n {
			return messageOr(c, label(f)+" must be at most "+c.Value+" characters")
		}
	case model.ConstraintPattern:
		re, err := compilePattern(c.Value)
		if err != nil {
			return ""
		}
		if !re.MatchString(value) {
			return messageOr(c, label(f)+" has an invalid format")
		}
	case model.ConstraintEmail:
		if !isEmail(value) {
			return messageOr(c, "Invalid email address")
		}
	case model.ConstraintOneOf:
		options := f.Options
		if c.Value != "" {
			options = strings.Split(c.Value, "|")
		}
		if !contains(options, value) {
			return messageOr(c, "Please select a valid "+strings.ToLower(label(f)))
		}
	case model.ConstraintNotBeforeToday:
		day, ok := parseDate(value, today.Location())
		if !ok {
			return "Please enter a valid date"
		}
		if day.Before(calendarDay(today)) {
			return messageOr(c, label(f)+" cannot be in the past")
		}
	}
	return ""
}

func messageOr(c model.Constraint, fallback string) string {
	if c.Message != "" {
		return c.Message
	}
	return fallback
}

func label(f model.Field) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

func isEmail(value string) bool {
	if value == "" {
		return false
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return false
	}
	at := strings.LastIndexByte(value, '@')
	domain := value[at+1:]
	return strings.Contains(domain, ".") && !strings.HasSuffix(domain, ".")
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns midnight
// of that calendar day in loc.
func parseDate(value string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(DateLayout, value, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return calendarDay(t.In(loc)), true
	}
	return time.Time{}, false
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}

// Compiled patterns are cached; definitions are checked at load time so
// compile errors here only come from unchecked schemas.
var patternCache sync.Map

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}
