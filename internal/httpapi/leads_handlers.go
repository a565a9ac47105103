package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"leadhunt-engine/internal/delivery"
	"leadhunt-engine/internal/events"
	"leadhunt-engine/internal/session"
	"leadhunt-engine/internal/store"
)

type LeadsHandler struct {
	DB        *sql.DB
	Hub       *events.Hub
	Redeliver func(ctx context.Context) (session.RedeliverResult, error)
}

func (h LeadsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	leads, err := store.ListLeads(r.Context(), h.DB, store.ListLeadsOpts{
		Sort:      q.Get("sort"),
		Window:    q.Get("window"),
		Status:    q.Get("status"),
		SessionID: q.Get("session"),
		Limit:     queryInt(r, "limit", 0),
	})
	if err != nil {
		writeStoreError(w, r, "lead", err)
		return
	}
	if leads == nil {
		leads = []store.LeadRow{}
	}
	writeJSON(w, leads)
}

func (h LeadsHandler) Failed(w http.ResponseWriter, r *http.Request) {
	leads, err := store.ListFailed(r.Context(), h.DB, queryInt(r, "limit", 500))
	if err != nil {
		writeStoreError(w, r, "lead", err)
		return
	}
	if leads == nil {
		leads = []store.LeadRow{}
	}
	writeJSON(w, leads)
}

func (h LeadsHandler) RedeliverAll(w http.ResponseWriter, r *http.Request) {
	if h.Redeliver == nil {
		WriteError(w, r, http.StatusConflict, "crm_disabled", "no CRM is configured")
		return
	}
	res, err := h.Redeliver(r.Context())
	if errors.Is(err, session.ErrAlreadyRunning) {
		WriteError(w, r, http.StatusConflict, "session_running", "wait for the running session to finish")
		return
	}
	if errors.Is(err, delivery.ErrDisabled) {
		WriteError(w, r, http.StatusConflict, "crm_disabled", err.Error())
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusBadGateway, "redeliver_failed", err.Error())
		return
	}
	writeJSON(w, res)
}

func (h LeadsHandler) DeleteByPath(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/leads/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, r, http.StatusBadRequest, "invalid_id", "invalid id")
		return
	}

	if err := store.DeleteLead(r.Context(), h.DB, id); err != nil {
		writeStoreError(w, r, "lead", err)
		return
	}

	h.Hub.Emit(RequestIDFrom(r.Context()), events.TypeLeadDeleted, map[string]any{"id": id})
	writeJSON(w, map[string]any{"ok": true, "id": id})
}
