package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"leadhunt-engine/internal/session"
	"leadhunt-engine/internal/store"
)

type SessionHandler struct {
	DB       *sql.DB
	Sessions *session.Manager
}

func (h SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Sessions.Status())
}

// Run starts a session in the background. It outlives the request, so it
// gets its own context; /session/stop or shutdown ends it.
func (h SessionHandler) Run(w http.ResponseWriter, r *http.Request) {
	err := h.Sessions.Start(context.WithoutCancel(r.Context()))
	if errors.Is(err, session.ErrAlreadyRunning) {
		WriteJSON(w, http.StatusConflict, runResponse{OK: false, Msg: "already running", Status: h.Sessions.Status()})
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "session_start_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, runResponse{OK: true, Status: h.Sessions.Status()})
}

// Stop blocks until the interrupted session has written its file.
func (h SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if !h.Sessions.Stop() {
		writeJSON(w, runResponse{OK: false, Msg: "not running", Status: h.Sessions.Status()})
		return
	}
	writeJSON(w, runResponse{OK: true, Status: h.Sessions.Status()})
}

func (h SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	rows, err := store.ListSessions(r.Context(), h.DB, queryInt(r, "limit", 0))
	if err != nil {
		writeStoreError(w, r, "session", err)
		return
	}
	if rows == nil {
		rows = []store.SessionRow{}
	}
	writeJSON(w, rows)
}
