package handler

import (
	"log"
	"net/http"

	"doctranslate/internal/errlog"
)

// HandleRoot returns the service banner.
func HandleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"message": "Document Translation API"})
	}
}

// HandleHealth reports liveness.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// HandleHistory lists the most recent stage runs.
func HandleHistory(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 50, 500)
		jobs, enabled, err := app.RecentJobs(r.Context(), limit)
		if err != nil {
			log.Printf("[API] history: %v", err)
			WriteError(w, http.StatusInternalServerError, "failed to read history")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"enabled": enabled,
			"jobs":    jobs,
		})
	}
}

// HandleRecentErrors returns the newest lines of the error log.
func HandleRecentErrors() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := queryInt(r, "lines", 100, 1000)
		lines, err := errlog.RecentLines(n)
		if err != nil {
			log.Printf("[API] read error log: %v", err)
			WriteError(w, http.StatusInternalServerError, "failed to read error log")
			return
		}
		if lines == nil {
			lines = []string{}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"path":  errlog.GetLogPath(),
			"lines": lines,
		})
	}
}
