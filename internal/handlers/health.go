package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// HealthHandler reports liveness, and mirror connectivity when one is wired
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
