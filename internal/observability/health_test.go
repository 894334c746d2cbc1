package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleHealth_returnsOK(t *testing.T) {
	// Set build-time variables for test.
	origVersion, origCommit := Version, Commit
	Version = "1.2.3"
	Commit = "abc1234"
	t.Cleanup(func() {
		Version = origVersion
		Commit = origCommit
	})

	handler := HandleHealth()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", resp.Version)
	}
	if resp.Commit != "abc1234" {
		t.Errorf("commit = %q, want abc1234", resp.Commit)
	}
}

func TestHandleHealth_defaultValues(t *testing.T) {
	handler := HandleHealth()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Version == "" {
		t.Error("version should have a default value")
	}
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) HealthCheck(_ context.Context) error {
	return m.err
}

func serveReady(t *testing.T, checks ReadinessChecks) (int, ReadinessResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	HandleReady(checks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	var resp ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return rec.Code, resp
}

func formsLoaded(n int) func() int {
	return func() int { return n }
}

func TestHandleReady_formsOnly(t *testing.T) {
	code, resp := serveReady(t, ReadinessChecks{FormsLoaded: formsLoaded(3)})

	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp.Status != "ready" {
		t.Errorf("status = %q, want ready", resp.Status)
	}
	if len(resp.Checks) != 1 {
		t.Errorf("checks count = %d, want 1", len(resp.Checks))
	}
	if resp.Checks["forms"].Status != "ok" {
		t.Errorf("forms = %q, want ok", resp.Checks["forms"].Status)
	}
}

func TestHandleReady_noFormsLoaded(t *testing.T) {
	code, resp := serveReady(t, ReadinessChecks{FormsLoaded: formsLoaded(0)})

	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
	if resp.Status != "not_ready" {
		t.Errorf("status = %q, want not_ready", resp.Status)
	}
	if resp.Checks["forms"].Error != "no forms loaded" {
		t.Errorf("forms error = %q", resp.Checks["forms"].Error)
	}
}

func TestHandleReady_nilFormsFunc(t *testing.T) {
	code, _ := serveReady(t, ReadinessChecks{})
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
}

func TestHandleReady_withOptionalChecks_allHealthy(t *testing.T) {
	code, resp := serveReady(t, ReadinessChecks{
		FormsLoaded:      formsLoaded(3),
		IdempotencyStore: &mockHealthChecker{},
		AuditStore:       &mockHealthChecker{},
	})

	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if len(resp.Checks) != 3 {
		t.Errorf("checks count = %d, want 3", len(resp.Checks))
	}
	for name, check := range resp.Checks {
		if check.Status != "ok" {
			t.Errorf("%s = %q, want ok", name, check.Status)
		}
	}
}

func TestHandleReady_storeDown(t *testing.T) {
	tests := []struct {
		name   string
		checks ReadinessChecks
		failed string
	}{
		{
			name: "idempotency",
			checks: ReadinessChecks{
				FormsLoaded:      formsLoaded(3),
				IdempotencyStore: &mockHealthChecker{err: errors.New("redis: connection refused")},
				AuditStore:       &mockHealthChecker{},
			},
			failed: "idempotency_store",
		},
		{
			name: "audit",
			checks: ReadinessChecks{
				FormsLoaded: formsLoaded(3),
				AuditStore:  &mockHealthChecker{err: errors.New("pg: too many connections")},
			},
			failed: "audit_store",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := serveReady(t, tt.checks)
			if code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want 503", code)
			}
			check := resp.Checks[tt.failed]
			if check.Status != "error" {
				t.Errorf("%s status = %q, want error", tt.failed, check.Status)
			}
			if check.Error == "" {
				t.Errorf("%s should carry the error message", tt.failed)
			}
			if resp.Checks["forms"].Status != "ok" {
				t.Error("forms check should still pass")
			}
		})
	}
}

type slowHealthChecker struct{}

func (slowHealthChecker) HealthCheck(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestHandleReady_checkTimesOut(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	ctx, cancel := context.WithCancel(req.Context())
	cancel()

	rec := httptest.NewRecorder()
	HandleReady(ReadinessChecks{
		FormsLoaded: formsLoaded(1),
		AuditStore:  slowHealthChecker{},
	}).ServeHTTP(rec, req.WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
