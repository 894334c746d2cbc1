package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xtremefabrix/formrelay/model"
)

func TestNormalize(t *testing.T) {
	in := model.Values{
		"nameFabrixTestimonial":        "Thandi <b>M</b>",
		"emailFabrixTestimonial":       "thandi@example.com",
		"ratingFabrixTestimonial":      " ",
		"testimonialFabrixTestimonial": "Fixed my <script>x()</script>seats &amp; dash, 10/10",
		"honeypot":                     "spam",
	}
	got := Normalize(Testimonial(), in)

	want := model.Values{
		"nameFabrixTestimonial":        "Thandi <b>M</b>",
		"emailFabrixTestimonial":       "thandi@example.com",
		"ratingFabrixTestimonial":      "5",
		"testimonialFabrixTestimonial": "Fixed my seats & dash, 10/10",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
	if in["ratingFabrixTestimonial"] != " " || in["honeypot"] != "spam" {
		t.Errorf("input modified: %v", in)
	}
}

func TestNormalize_missingFieldsAreEmpty(t *testing.T) {
	got := Normalize(Contact(), nil)
	if len(got) != len(Contact().Fields) {
		t.Fatalf("len = %d, want %d", len(got), len(Contact().Fields))
	}
	for name, v := range got {
		if v != "" {
			t.Errorf("%s = %q, want empty", name, v)
		}
	}
}

func TestNormalize_keepsChosenRating(t *testing.T) {
	got := Normalize(Testimonial(), model.Values{"ratingFabrixTestimonial": "3"})
	if got["ratingFabrixTestimonial"] != "3" {
		t.Errorf("rating = %q, want 3", got["ratingFabrixTestimonial"])
	}
}
