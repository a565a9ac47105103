package httpapi

import (
	"database/sql"
	"net/http"

	"leadhunt-engine/internal/session"
	"leadhunt-engine/internal/store"
)

type DBHandler struct {
	DB       *sql.DB
	Sessions *session.Manager
}

// Checkpoint folds the WAL back into the main ledger file.
func (h DBHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	if err := store.Checkpoint(r.Context(), h.DB); err != nil {
		writeStoreError(w, r, "checkpoint", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats reports ledger counts per delivery status.
func (h DBHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := store.CountByStatus(r.Context(), h.DB)
	if err != nil {
		writeStoreError(w, r, "stats", err)
		return
	}
	resp := statsResponse{Leads: counts}
	if h.Sessions != nil {
		resp.Session = h.Sessions.Status()
	}
	writeJSON(w, resp)
}
