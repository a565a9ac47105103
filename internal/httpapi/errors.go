package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"leadhunt-engine/internal/store"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// writeStoreError maps ledger errors onto responses; what names the
// missing thing in the 404 message.
func writeStoreError(w http.ResponseWriter, r *http.Request, what string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", what+" not found")
		return
	}
	log.Printf("[http] req_id=%s db error: %v", RequestIDFrom(r.Context()), err)
	WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
}
