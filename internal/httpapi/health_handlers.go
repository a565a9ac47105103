package httpapi

import (
	"encoding/json"
	"net/http"

	"leadhunt-engine/internal/session"
)

type HealthHandler struct {
	Sessions *session.Manager
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	state := session.StateIdle
	if h.Sessions != nil {
		state = h.Sessions.Status().State
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":      true,
		"session": state,
	})
}
