// config/overlay.go
package config

import (
	"os"
	"strconv"
	"strings"
)

// OverlayEnv applies LEADHUNT_* environment variables on top of the YAML.
// Secrets usually come from here (or the keychain) rather than the file.
func OverlayEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("LEADHUNT_CRM_TYPE", &cfg.CRM.Type)
	str("LEADHUNT_CRM_URL", &cfg.CRM.URL)
	str("LEADHUNT_CRM_AUTH_HEADER", &cfg.CRM.AuthHeader)
	str("LEADHUNT_CRM_DB", &cfg.CRM.DB)
	str("LEADHUNT_CRM_USERNAME", &cfg.CRM.Username)
	str("LEADHUNT_CRM_PASSWORD", &cfg.CRM.Password)
	str("LEADHUNT_CRM_TOKEN", &cfg.CRM.Token)
	str("LEADHUNT_IMAP_PASSWORD", &cfg.Source.Mail.Password)
	str("LEADHUNT_SOURCE_PATH", &cfg.Source.Path)

	if v := os.Getenv("LEADHUNT_CRM_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CRM.Enabled = b
		}
	}
	if v := os.Getenv("LEADHUNT_DURATION_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Session.DurationMinutes = n
		}
	}
}
