package transport

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/xtremefabrix/formrelay/internal/audit"
	"github.com/xtremefabrix/formrelay/internal/observability"
	"github.com/xtremefabrix/formrelay/model"
)

// DeliveriesResponse is the body of GET /admin/deliveries.
type DeliveriesResponse struct {
	Deliveries []audit.Record `json:"deliveries"`
}

func handleDeliveries(store audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := audit.Query{FormID: r.URL.Query().Get("form")}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				WriteError(w, model.NewBadRequestError("limit must be a positive integer"))
				return
			}
			q.Limit = n
		}

		records, err := store.Recent(r.Context(), q)
		if err != nil {
			observability.RequestLogger(r.Context(), zap.NewNop()).Error("audit query failed", zap.Error(err))
			WriteError(w, model.NewInternalError())
			return
		}
		if records == nil {
			records = []audit.Record{}
		}
		WriteJSON(w, http.StatusOK, DeliveriesResponse{Deliveries: records})
	}
}
