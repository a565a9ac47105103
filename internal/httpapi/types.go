package httpapi

import "leadhunt-engine/internal/session"

type runResponse struct {
	OK     bool           `json:"ok"`
	Msg    string         `json:"msg,omitempty"`
	Status session.Status `json:"status"`
}

type statsResponse struct {
	Leads   map[string]int `json:"leads"`
	Session session.Status `json:"session"`
}
