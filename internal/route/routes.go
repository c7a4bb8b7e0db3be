package route

import (
	"net/http"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/config"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/handler"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/logger"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service"
)

// SetupRoutes registers the viewer stream, the recording API, status and log endpoints.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Viewer stream
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(manager, logger))

	// Pipeline state
	mux.HandleFunc("/api/status", handler.StatusHandler(manager))
	mux.HandleFunc("/api/session/reset", handler.ResetSessionHandler(manager))

	// Recording API
	mux.HandleFunc("/api/entries", handler.RecentEntriesHandler(manager, logger))
	mux.HandleFunc("/api/entries/pending", handler.PendingEntriesHandler(manager, logger))
	mux.HandleFunc("/api/entries/enter", handler.EnterHandler(manager, logger))
	mux.HandleFunc("/api/entries/exit", handler.ExitHandler(manager, logger))

	// Log endpoints
	for _, level := range []string{"info", "warning", "error"} {
		mux.HandleFunc("/logs/"+level, handler.ShowLogsHandler(cfg, level))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(logger, level))
	}

	return mux
}
