package model

// FieldKind is the semantic type of a form field.
type FieldKind string

// Supported field kinds.
const (
	FieldText      FieldKind = "text"
	FieldEmail     FieldKind = "email"
	FieldPhone     FieldKind = "phone"
	FieldSelect    FieldKind = "select"
	FieldDate      FieldKind = "date"
	FieldMultiline FieldKind = "multiline"
)

// Valid reports whether k is a known field kind.
func (k FieldKind) Valid() bool {
	switch k {
	case FieldText, FieldEmail, FieldPhone, FieldSelect, FieldDate, FieldMultiline:
		return true
	}
	return false
}

// ConstraintKind identifies a single validation rule.
type ConstraintKind string

// Supported constraint kinds.
const (
	ConstraintRequired       ConstraintKind = "required"
	ConstraintMinLength      ConstraintKind = "min_length"
	ConstraintMaxLength      ConstraintKind = "max_length"
	ConstraintPattern        ConstraintKind = "pattern"
	ConstraintEmail          ConstraintKind = "email"
	ConstraintOneOf          ConstraintKind = "one_of"
	ConstraintNotBeforeToday ConstraintKind = "not_before_today"
)

// Constraint is a validation rule attached to a field. Value carries the
// rule parameter (a length, a pattern) as a string so definitions
// round-trip through YAML unchanged.
type Constraint struct {
	Kind    ConstraintKind `yaml:"kind" json:"kind"`
	Value   string         `yaml:"value,omitempty" json:"value,omitempty"`
	Message string         `yaml:"message,omitempty" json:"message,omitempty"`
}

// Field describes one named input of a form.
type Field struct {
	Name        string       `yaml:"name" json:"name"`
	Label       string       `yaml:"label" json:"label"`
	Kind        FieldKind    `yaml:"kind" json:"kind"`
	Optional    bool         `yaml:"optional,omitempty" json:"optional,omitempty"`
	Default     string       `yaml:"default,omitempty" json:"default,omitempty"`
	Options     []string     `yaml:"options,omitempty" json:"options,omitempty"`
	Placeholder string       `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Sanitize    bool         `yaml:"sanitize,omitempty" json:"-"`
	Constraints []Constraint `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

// FormMessages is the notification copy shown after a submission.
type FormMessages struct {
	SuccessTitle       string `yaml:"success_title" json:"success_title"`
	SuccessDescription string `yaml:"success_description" json:"success_description"`
	FailureDescription string `yaml:"failure_description" json:"failure_description"`
	SubmitLabel        string `yaml:"submit_label,omitempty" json:"submit_label,omitempty"`
	SubmittingLabel    string `yaml:"submitting_label,omitempty" json:"submitting_label,omitempty"`
}

// FormSchema is an ordered set of named fields. Field order is validation
// order.
type FormSchema struct {
	ID          string       `yaml:"id" json:"id"`
	Title       string       `yaml:"title" json:"title"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Fields      []Field      `yaml:"fields" json:"fields"`
	Messages    FormMessages `yaml:"messages" json:"messages"`

	// Set by the loader.
	Checksum   string `yaml:"-" json:"-"`
	SourceFile string `yaml:"-" json:"-"`
}

// Field returns the field with the given name.
func (s FormSchema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Values maps a field name to its current input value.
type Values map[string]string

// Clone returns an independent copy of v.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Equal reports whether v and other hold the same entries.
func (v Values) Equal(other Values) bool {
	if len(v) != len(other) {
		return false
	}
	for k, val := range v {
		o, ok := other[k]
		if !ok || o != val {
			return false
		}
	}
	return true
}

// ValidationResult maps a field name to its error message. Fields without a
// violation are absent.
type ValidationResult map[string]string

// Valid reports whether no field has an error.
func (r ValidationResult) Valid() bool {
	return len(r) == 0
}

// FieldErrors returns the errors ordered by the schema's field order.
func (r ValidationResult) FieldErrors(schema FormSchema) []FieldError {
	if len(r) == 0 {
		return nil
	}
	out := make([]FieldError, 0, len(r))
	for _, f := range schema.Fields {
		msg, ok := r[f.Name]
		if !ok {
			continue
		}
		out = append(out, FieldError{Field: f.Name, Code: "INVALID_VALUE", Message: msg})
	}
	return out
}
