package schema

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/xtremefabrix/formrelay/model"
)

// CheckError describes one problem in a form definition.
type CheckError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e CheckError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// CheckAll checks every form and reports duplicate IDs across them.
func CheckAll(forms []model.FormSchema) []CheckError {
	var errs []CheckError
	seen := make(map[string]string, len(forms))
	for i, f := range forms {
		prefix := fmt.Sprintf("forms[%d]", i)
		if f.SourceFile != "" {
			prefix = f.SourceFile
		}
		if prev, ok := seen[f.ID]; ok && f.ID != "" {
			errs = append(errs, CheckError{Path: prefix + ".id", Code: "DUPLICATE", Message: fmt.Sprintf("form %q already defined in %s", f.ID, prev)})
		}
		seen[f.ID] = prefix
		errs = append(errs, checkForm(prefix, f)...)
	}
	return errs
}

// Check reports structural problems in a single form definition: missing
// IDs, unknown kinds, unparseable constraint parameters.
func Check(f model.FormSchema) []CheckError {
	return checkForm("form", f)
}

func checkForm(prefix string, f model.FormSchema) []CheckError {
	var errs []CheckError
	add := func(path, code, msg string) {
		errs = append(errs, CheckError{Path: path, Code: code, Message: msg})
	}

	if f.ID == "" {
		add(prefix+".id", "REQUIRED", "id is required")
	}
	if f.Title == "" {
		add(prefix+".title", "REQUIRED", "title is required")
	}
	if len(f.Fields) == 0 {
		add(prefix+".fields", "REQUIRED", "at least one field is required")
	}
	if f.Messages.SuccessTitle == "" {
		add(prefix+".messages.success_title", "REQUIRED", "success_title is required")
	}

	names := make(map[string]bool, len(f.Fields))
	for i, field := range f.Fields {
		fp := fmt.Sprintf("%s.fields[%d]", prefix, i)
		if field.Name == "" {
			add(fp+".name", "REQUIRED", "name is required")
		} else if names[field.Name] {
			add(fp+".name", "DUPLICATE", fmt.Sprintf("field %q declared twice", field.Name))
		}
		names[field.Name] = true

		if !field.Kind.Valid() {
			add(fp+".kind", "INVALID", fmt.Sprintf("unknown field kind %q", field.Kind))
		}
		if field.Kind == model.FieldSelect && len(field.Options) == 0 {
			add(fp+".options", "REQUIRED", "select fields must declare options")
		}

		for j, c := range field.Constraints {
			cp := fmt.Sprintf("%s.constraints[%d]", fp, j)
			switch c.Kind {
			case model.ConstraintRequired, model.ConstraintEmail, model.ConstraintNotBeforeToday:
			case model.ConstraintOneOf:
				if c.Value == "" && len(field.Options) == 0 {
					add(cp+".value", "REQUIRED", "one_of needs options or a value")
				}
			case model.ConstraintMinLength, model.ConstraintMaxLength:
				if n, err := strconv.Atoi(c.Value); err != nil || n < 0 {
					add(cp+".value", "INVALID", fmt.Sprintf("length %q is not a non-negative integer", c.Value))
				}
			case model.ConstraintPattern:
				if _, err := regexp.Compile(c.Value); err != nil {
					add(cp+".value", "INVALID", fmt.Sprintf("pattern does not compile: %v", err))
				}
			default:
				add(cp+".kind", "INVALID", fmt.Sprintf("unknown constraint kind %q", c.Kind))
			}
		}
	}
	return errs
}
