// Package notify maps submission outcomes to the notifications shown to the
// visitor.
package notify

import "github.com/xtremefabrix/formrelay/model"

// Generic copy used when a form does not declare its own.
const (
	DefaultSuccessTitle       = "Thank you!"
	DefaultSuccessDescription = "Your submission has been received."
	FailureTitle              = "Something went wrong"
	DefaultFailureDescription = "We couldn't submit your request. Please try again."
	InvalidTitle              = "Please check the form"
	InvalidDescription        = "Some fields need your attention before you can submit."
)

// For returns the notification for an outcome of the given form. Failures
// never expose status codes or error text.
func For(s model.FormSchema, outcome model.Outcome) model.Notification {
	switch outcome.Kind {
	case model.OutcomeDelivered:
		return model.Notification{
			Title:       or(s.Messages.SuccessTitle, DefaultSuccessTitle),
			Description: or(s.Messages.SuccessDescription, DefaultSuccessDescription),
			Variant:     model.VariantDefault,
		}
	case model.OutcomeValidationFailed:
		return model.Notification{
			Title:       InvalidTitle,
			Description: InvalidDescription,
			Variant:     model.VariantDestructive,
		}
	default:
		return model.Notification{
			Title:       FailureTitle,
			Description: or(s.Messages.FailureDescription, DefaultFailureDescription),
			Variant:     model.VariantDestructive,
		}
	}
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
