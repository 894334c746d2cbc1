package transport

import (
	"net/http"
	"strings"

	"github.com/xtremefabrix/formrelay/internal/notify"
	"github.com/xtremefabrix/formrelay/internal/submission"
	"github.com/xtremefabrix/formrelay/model"
)

// IdempotencyHeader carries the client key of a one-shot submission.
const IdempotencyHeader = "X-Idempotency-Key"

const maxIdempotencyKeyLen = 128

// SubmitResponse is the body of every submit endpoint. Submission failures
// are outcomes, so it is always sent with 200.
type SubmitResponse struct {
	Outcome      model.Outcome        `json:"outcome"`
	Notification model.Notification   `json:"notification"`
	Errors       []model.FieldError   `json:"errors,omitempty"`
	Replayed     bool                 `json:"replayed,omitempty"`
	Instance     *submission.Snapshot `json:"instance,omitempty"`
}

func newSubmitResponse(s model.FormSchema, outcome model.Outcome) SubmitResponse {
	return SubmitResponse{
		Outcome:      outcome,
		Notification: notify.For(s, outcome),
		Errors:       outcome.Errors.FieldErrors(s),
	}
}

func handleSubmit(mgr *submission.Manager, dedupe *submission.Deduplicator, maxBody int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := pipelineFor(w, r, mgr)
		if !ok {
			return
		}
		var req valuesRequest
		if err := decodeJSON(w, r, maxBody, &req); err != nil {
			WriteError(w, err)
			return
		}

		key := strings.TrimSpace(req.IdempotencyKey)
		if key == "" {
			key = strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		}
		if len(key) > maxIdempotencyKeyLen {
			WriteError(w, model.NewBadRequestError("idempotency key is too long"))
			return
		}

		outcome, replayed, err := dedupe.Submit(r.Context(), p, key, req.Values)
		if err != nil {
			WriteError(w, err)
			return
		}

		resp := newSubmitResponse(p.Schema(), outcome)
		resp.Replayed = replayed
		WriteJSON(w, http.StatusOK, resp)
	}
}
