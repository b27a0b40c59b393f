package httptransport

import (
	"encoding/json"
	"net/http"

	"tori-server/internal/store"
)

type HealthHandlers struct {
	store *store.Store
}

func NewHealthHandlers(st *store.Store) *HealthHandlers {
	return &HealthHandlers{store: st}
}

func (h *HealthHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}
