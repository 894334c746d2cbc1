package schema

import (
	"testing"

	"github.com/xtremefabrix/formrelay/model"
)

func TestLoader_LoadFile(t *testing.T) {
	l := NewLoader()
	form, err := l.LoadFile("testdata/forms/quote.yaml")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if form.ID != "quote" {
		t.Errorf("ID = %q, want quote", form.ID)
	}
	if len(form.Fields) != 4 {
		t.Fatalf("Fields = %d, want 4", len(form.Fields))
	}
	details := form.Fields[3]
	if !details.Optional || !details.Sanitize {
		t.Errorf("details Optional = %v, Sanitize = %v, want both true", details.Optional, details.Sanitize)
	}
	if form.Fields[2].Kind != model.FieldSelect || len(form.Fields[2].Options) != 3 {
		t.Errorf("seats = %+v", form.Fields[2])
	}
	if form.Messages.SubmitLabel != "Get Quote" {
		t.Errorf("SubmitLabel = %q", form.Messages.SubmitLabel)
	}
	if form.Checksum == "" {
		t.Error("Checksum should not be empty")
	}
	if form.SourceFile != "testdata/forms/quote.yaml" {
		t.Errorf("SourceFile = %q", form.SourceFile)
	}
}

func TestLoader_LoadFile_not_found(t *testing.T) {
	if _, err := NewLoader().LoadFile("testdata/nonexistent.yaml"); err == nil {
		t.Fatal("LoadFile() with missing file should return error")
	}
}

func TestLoader_LoadFile_invalid_yaml(t *testing.T) {
	if _, err := NewLoader().LoadFile("testdata/invalid/bad.yaml"); err == nil {
		t.Fatal("LoadFile() with invalid YAML should return error")
	}
}

func TestLoader_LoadAll_skipsNonYAML(t *testing.T) {
	forms, err := NewLoader().LoadAll([]string{"testdata/forms"})
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(forms) != 2 {
		t.Fatalf("LoadAll() returned %d forms, want 2", len(forms))
	}
}

func TestLoader_LoadAll_invalid_dir(t *testing.T) {
	if _, err := NewLoader().LoadAll([]string{"testdata/nonexistent"}); err == nil {
		t.Fatal("LoadAll() with missing directory should return error")
	}
}

func TestLoader_LoadAll_invalid_yaml(t *testing.T) {
	if _, err := NewLoader().LoadAll([]string{"testdata/invalid"}); err == nil {
		t.Fatal("LoadAll() with invalid YAML should return error")
	}
}

func TestLoader_Checksum_deterministic(t *testing.T) {
	l := NewLoader()
	a, _ := l.LoadFile("testdata/forms/quote.yaml")
	b, _ := l.LoadFile("testdata/forms/quote.yaml")
	if a.Checksum != b.Checksum {
		t.Error("Checksum should be deterministic")
	}
}

func TestLoadedForm_validates(t *testing.T) {
	form, err := NewLoader().LoadFile("testdata/forms/quote.yaml")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if errs := Check(form); len(errs) != 0 {
		t.Fatalf("Check() = %v", errs)
	}

	got := Validate(model.Values{"name": "Li", "vehicle": "VW Polo!", "seats": "3"}, form, today)
	if got["vehicle"] != "Letters and numbers only" {
		t.Errorf("vehicle = %q", got["vehicle"])
	}
	if got["seats"] != "Please select a valid seats" {
		t.Errorf("seats = %q", got["seats"])
	}
	if _, ok := got["details"]; ok {
		t.Error("empty optional details should be valid")
	}
}

// --- Merge ---

func TestMerge_overridesByID(t *testing.T) {
	override := model.FormSchema{ID: ContactFormID, Title: "Talk to us"}
	extra := model.FormSchema{ID: "quote", Title: "Quick Quote"}

	got := Merge(Builtin(), []model.FormSchema{override, extra})
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if got[1].ID != ContactFormID || got[1].Title != "Talk to us" {
		t.Errorf("got[1] = %s %q, want overridden contact", got[1].ID, got[1].Title)
	}
	if got[3].ID != "quote" {
		t.Errorf("got[3].ID = %q, want quote", got[3].ID)
	}
}
