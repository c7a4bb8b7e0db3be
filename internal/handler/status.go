package handler

import (
	"net/http"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/service"
)

// StatusHandler reports readiness, pipeline stage, frame counters and session plates.
func StatusHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := manager.Status()
		code := http.StatusOK
		if !status.Ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	}
}

// ResetSessionHandler forgets every recorded plate.
func ResetSessionHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		manager.ResetSession()
		w.WriteHeader(http.StatusNoContent)
	}
}
