package transport

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xtremefabrix/formrelay/internal/audit"
	"github.com/xtremefabrix/formrelay/internal/config"
	"github.com/xtremefabrix/formrelay/internal/observability"
	"github.com/xtremefabrix/formrelay/internal/submission"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Manager   *submission.Manager
	Dedupe    *submission.Deduplicator
	Audit     audit.Store
	Metrics   *observability.Metrics
	Gatherer  prometheus.Gatherer
	Readiness observability.ReadinessChecks
	OpenAPI   *openapi3.T

	// AdminSecret verifies operator tokens on the admin routes, which are
	// mounted when admin access is enabled.
	AdminSecret []byte
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// request pipeline.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config
	maxBody := cfg.Server.MaxBodyBytes

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(logger))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(CORS(cfg.Server.CORS))

	r.Get("/health", observability.HandleHealth())
	r.Get("/ready", observability.HandleReady(deps.Readiness))
	if cfg.Observability.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Observability.Metrics.Path, observability.Handler(deps.Gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(observability.TracingMiddleware)
		r.Use(BuildRequestContext(logger))
		r.Use(HandlerTimeout(cfg.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}

		r.Get("/openapi.json", handleOpenAPI(deps.OpenAPI))

		r.Route("/api", func(r chi.Router) {
			r.Get("/forms", handleListForms(deps.Manager, cfg.Site))
			r.Get("/forms/{formId}", handleGetForm(deps.Manager))
			r.Post("/forms/{formId}/validate", handleValidate(deps.Manager, maxBody))
			r.Post("/forms/{formId}/submissions", handleSubmit(deps.Manager, deps.Dedupe, maxBody))
			r.Post("/forms/{formId}/instances", handleOpenInstance(deps.Manager))

			r.Get("/instances/{instanceId}", handleGetInstance(deps.Manager))
			r.Patch("/instances/{instanceId}/values", handleSetValues(deps.Manager, maxBody))
			r.Post("/instances/{instanceId}/submit", handleSubmitInstance(deps.Manager))
			r.Post("/instances/{instanceId}/acknowledge", handleAcknowledge(deps.Manager))
			r.Delete("/instances/{instanceId}", handleCloseInstance(deps.Manager))
		})

		if cfg.Admin.Enabled && deps.Audit != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(OperatorAuthenticator(cfg.Admin, deps.AdminSecret))
				r.Get("/deliveries", handleDeliveries(deps.Audit))
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	return r
}

func handleOpenAPI(doc *openapi3.T) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if doc == nil {
			WriteNotFound(w, "OpenAPI document is not available")
			return
		}
		WriteJSON(w, http.StatusOK, doc)
	}
}
