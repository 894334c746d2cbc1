package transport

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xtremefabrix/formrelay/internal/config"
	"github.com/xtremefabrix/formrelay/internal/submission"
	"github.com/xtremefabrix/formrelay/model"
)

// FormSummary is one entry of the form listing.
type FormSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	SubmitLabel string `json:"submit_label,omitempty"`
	Fields      int    `json:"fields"`
}

// ContactDetails is the business contact block shown next to the forms.
type ContactDetails struct {
	Name        string `json:"name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	WhatsAppURL string `json:"whatsapp_url,omitempty"`
}

// FormListResponse is the body of GET /api/forms.
type FormListResponse struct {
	Forms   []FormSummary  `json:"forms"`
	Contact ContactDetails `json:"contact"`
}

// FormDescriptor is the body of GET /api/forms/{formId}.
type FormDescriptor struct {
	Form     model.FormSchema `json:"form"`
	Defaults model.Values     `json:"defaults"`
}

// ValidateResponse is the body of POST /api/forms/{formId}/validate.
type ValidateResponse struct {
	Valid       bool                   `json:"valid"`
	Errors      model.ValidationResult `json:"errors"`
	FieldErrors []model.FieldError     `json:"field_errors,omitempty"`
}

type valuesRequest struct {
	Values         model.Values `json:"values"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
}

func handleListForms(mgr *submission.Manager, site config.SiteConfig) http.HandlerFunc {
	contact := ContactDetails{
		Name:        site.Name,
		Phone:       site.Phone,
		Email:       site.Email,
		WhatsAppURL: site.WhatsAppURL(),
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		pipelines := mgr.Pipelines()
		resp := FormListResponse{Forms: make([]FormSummary, 0, len(pipelines)), Contact: contact}
		for _, p := range pipelines {
			s := p.Schema()
			resp.Forms = append(resp.Forms, FormSummary{
				ID:          s.ID,
				Title:       s.Title,
				Description: s.Description,
				SubmitLabel: s.Messages.SubmitLabel,
				Fields:      len(s.Fields),
			})
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func handleGetForm(mgr *submission.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := pipelineFor(w, r, mgr)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, FormDescriptor{Form: p.Schema(), Defaults: p.Defaults()})
	}
}

func handleValidate(mgr *submission.Manager, maxBody int64) http.HandlerFunc {
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

		result := p.Validate(req.Values)
		WriteJSON(w, http.StatusOK, ValidateResponse{
			Valid:       result.Valid(),
			Errors:      result,
			FieldErrors: result.FieldErrors(p.Schema()),
		})
	}
}

// pipelineFor resolves the {formId} URL parameter, writing a 404 when the
// form is unknown.
func pipelineFor(w http.ResponseWriter, r *http.Request, mgr *submission.Manager) (*submission.Pipeline, bool) {
	formID := chi.URLParam(r, "formId")
	p, ok := mgr.Pipeline(formID)
	if !ok {
		WriteNotFound(w, fmt.Sprintf("form %q not found", formID))
		return nil, false
	}
	return p, true
}
