package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/BalaMeghanaShivani/CarbonLane/internal/logger"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/repository"
	"github.com/BalaMeghanaShivani/CarbonLane/internal/service"
)

type enterRequest struct {
	Plate string `json:"plate"`
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// RecentEntriesHandler lists the latest entries; ?limit= is clamped to 1..500.
func RecentEntriesHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil {
			limit = repository.DefaultRecentLimit
		}

		entries, err := manager.Recent(r.Context(), limit)
		if err != nil {
			logger.Error("Error listing entries: %v", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// PendingEntriesHandler lists cars still in the lane, oldest first.
func PendingEntriesHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		entries, err := manager.Pending(r.Context())
		if err != nil {
			logger.Error("Error listing pending entries: %v", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// EnterHandler records a plate manually, subject to session de-duplication.
func EnterHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req enterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		entry, err := manager.RecordEntry(r.Context(), req.Plate)
		switch {
		case errors.Is(err, repository.ErrEmptyPlate):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrAlreadyRecorded):
			writeError(w, http.StatusConflict, err.Error())
		case err != nil:
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			writeJSON(w, http.StatusOK, entry)
		}
	}
}

// ExitHandler closes the longest-waiting entry.
func ExitHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		entry, err := manager.RecordExit(r.Context())
		switch {
		case errors.Is(err, repository.ErrNoOpenEntry):
			writeError(w, http.StatusBadRequest, "No car in drive-through to exit")
		case err != nil:
			logger.Error("Error recording exit: %v", err)
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			writeJSON(w, http.StatusOK, entry)
		}
	}
}
