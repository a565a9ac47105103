package httpapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setSecretReq struct {
	Password string `json:"password"`
	Token    string `json:"token"`
}

func (req setSecretReq) value() string {
	if req.Token != "" {
		return req.Token
	}
	return req.Password
}

func (h SecretsHandler) SetIMAPPassword(w http.ResponseWriter, r *http.Request) {
	var req setSecretReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.Set(secrets.IMAPKeyringAccount(cfg.Source.Mail), req.value()); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keyring_failed", "failed to store password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetCRMSecret stores the Odoo password, REST token or webhook auth header,
// depending on the configured crm.type.
func (h SecretsHandler) SetCRMSecret(w http.ResponseWriter, r *http.Request) {
	var req setSecretReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.SetCRMSecret(cfg.CRM, req.value()); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keyring_failed", "failed to store secret: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
