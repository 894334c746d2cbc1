package model

import "time"

// SubmissionState is the lifecycle state of one form instance.
type SubmissionState string

// Submission states.
const (
	StateIdle       SubmissionState = "idle"
	StateSubmitting SubmissionState = "submitting"
	StateSucceeded  SubmissionState = "succeeded"
	StateFailed     SubmissionState = "failed"
)

// OutcomeKind discriminates the result of a submit call.
type OutcomeKind string

// Outcome kinds.
const (
	OutcomeDelivered        OutcomeKind = "delivered"
	OutcomeRejected         OutcomeKind = "rejected"
	OutcomeUnreachable      OutcomeKind = "unreachable"
	OutcomeValidationFailed OutcomeKind = "validation_failed"
)

// FailureReason refines an unsuccessful outcome for diagnostics. End users
// never see it.
type FailureReason string

// Failure reasons.
const (
	ReasonNone                 FailureReason = ""
	ReasonConfigurationMissing FailureReason = "configuration_missing"
	ReasonTransport            FailureReason = "transport"
	ReasonStatus               FailureReason = "status"
	ReasonValidation           FailureReason = "validation"
)

// Outcome is the discriminated result of a submission attempt. Only the kind
// and field errors are serialized; the rest is for operators and logs.
type Outcome struct {
	Kind   OutcomeKind      `json:"kind"`
	Errors ValidationResult `json:"errors,omitempty"`

	StatusCode int           `json:"-"`
	Reason     FailureReason `json:"-"`
	Cause      error         `json:"-"`
	Duration   time.Duration `json:"-"`
}

// Delivered reports whether the endpoint accepted the payload.
func (o Outcome) Delivered() bool {
	return o.Kind == OutcomeDelivered
}

// Failed reports whether the outcome moves an instance to the failed state.
func (o Outcome) Failed() bool {
	return o.Kind == OutcomeRejected || o.Kind == OutcomeUnreachable
}

// Notification variants.
const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

// Notification is the title/description pair shown by the host page's
// toast surface.
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
}
