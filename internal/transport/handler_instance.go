package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xtremefabrix/formrelay/internal/submission"
	"github.com/xtremefabrix/formrelay/model"
)

// ValuesResponse is the body of PATCH /api/instances/{instanceId}/values.
type ValuesResponse struct {
	Instance submission.Snapshot    `json:"instance"`
	Valid    bool                   `json:"valid"`
	Errors   model.ValidationResult `json:"errors"`
}

func handleOpenInstance(mgr *submission.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, err := mgr.Open(r.Context(), chi.URLParam(r, "formId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		w.Header().Set("Location", "/api/instances/"+inst.ID())
		WriteJSON(w, http.StatusCreated, inst.Snapshot())
	}
}

func handleGetInstance(mgr *submission.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, err := mgr.Get(r.Context(), chi.URLParam(r, "instanceId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, inst.Snapshot())
	}
}

func handleSetValues(mgr *submission.Manager, maxBody int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, err := mgr.Get(r.Context(), chi.URLParam(r, "instanceId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		var req valuesRequest
		if err := decodeJSON(w, r, maxBody, &req); err != nil {
			WriteError(w, err)
			return
		}

		result, err := inst.SetValues(req.Values)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ValuesResponse{
			Instance: inst.Snapshot(),
			Valid:    result.Valid(),
			Errors:   result,
		})
	}
}

func handleSubmitInstance(mgr *submission.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, outcome, err := mgr.Submit(r.Context(), chi.URLParam(r, "instanceId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		resp := newSubmitResponse(inst.Pipeline().Schema(), outcome)
		snap := inst.Snapshot()
		resp.Instance = &snap
		WriteJSON(w, http.StatusOK, resp)
	}
}

func handleAcknowledge(mgr *submission.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, err := mgr.Get(r.Context(), chi.URLParam(r, "instanceId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		if err := inst.Acknowledge(); err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, inst.Snapshot())
	}
}

func handleCloseInstance(mgr *submission.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := mgr.Close(r.Context(), chi.URLParam(r, "instanceId")); err != nil {
			WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
