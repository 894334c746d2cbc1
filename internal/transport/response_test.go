package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xtremefabrix/formrelay/model"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]string{"hello": "world"})

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if xct := w.Header().Get("X-Content-Type-Options"); xct != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", xct)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["hello"] != "world" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteError_envelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, model.NewNotFoundError("form not found"))

	if w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}

	var resp struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Error.Code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", resp.Error.Code)
	}
}

func TestWriteError_non_envelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, fmt.Errorf("something went wrong"))

	if w.Code != 500 {
		t.Errorf("status = %d, want 500 for non-envelope error", w.Code)
	}
}

func TestWriteNotFound(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNotFound(w, "resource missing")
	if w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestWriteError_wrapped(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, fmt.Errorf("submit: %w", model.NewSubmissionInFlightError()))

	if w.Code != 409 {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestWriteError_unknownCode(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, &model.ErrorEnvelope{Code: "SOMETHING_NEW", Message: "x"})
	if w.Code != 500 {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestStatusForCode_coverage(t *testing.T) {
	codes := []struct {
		code   string
		status int
	}{
		{model.ErrBadRequest, 400},
		{model.ErrUnauthorized, 401},
		{model.ErrNotFound, 404},
		{model.ErrConflict, 409},
		{model.ErrValidationError, 422},
		{model.ErrInternalError, 500},
		{model.ErrSubmissionInFlight, 409},
		{model.ErrInstanceClosed, 410},
	}
	for _, tc := range codes {
		t.Run(tc.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, &model.ErrorEnvelope{Code: tc.code, Message: "test"})
			if w.Code != tc.status {
				t.Errorf("status for %s = %d, want %d", tc.code, w.Code, tc.status)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		limit   int64
		wantErr string
	}{
		{name: "valid", body: `{"values":{"name":"Sam"}}`, limit: 1024},
		{name: "unknown field", body: `{"values":{},"extra":1}`, limit: 1024, wantErr: "invalid JSON body"},
		{name: "malformed", body: `{"values":`, limit: 1024, wantErr: "invalid JSON body"},
		{name: "too large", body: `{"values":{"message":"` + strings.Repeat("a", 200) + `"}}`, limit: 64, wantErr: "request body too large"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))

			var dst valuesRequest
			err := decodeJSON(w, r, tc.limit, &dst)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("decodeJSON: %v", err)
				}
				if dst.Values["name"] != "Sam" {
					t.Errorf("values = %v", dst.Values)
				}
				return
			}
			var ee *model.ErrorEnvelope
			if !errors.As(err, &ee) || ee.Code != model.ErrBadRequest || ee.Message != tc.wantErr {
				t.Errorf("err = %v, want BAD_REQUEST %q", err, tc.wantErr)
			}
		})
	}
}
