package secrets

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"leadhunt-engine/internal/config"

	"github.com/zalando/go-keyring"
)

const (
	// Service groups the app's secrets in the OS keychain.
	KeyringService = "leadhunt"
)

var ErrNotFound = errors.New("secret not found (set it in the keychain or via env)")

func Get(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	v, err := keyring.Get(KeyringService, account)
	if err != nil || strings.TrimSpace(v) == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func Set(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return strings.ToLower(u.Host)
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

// CRMKeyringAccount names the keychain entry holding the CRM secret: the
// Odoo password, the REST API token, or the webhook Authorization header.
func CRMKeyringAccount(c config.CRM) string {
	return fmt.Sprintf("leadhunt:crm:%s:%s@%s", strings.ToLower(c.Type), c.Username, hostOf(c.URL))
}

func IMAPKeyringAccount(m config.MailSource) string {
	return fmt.Sprintf("leadhunt:imap:%s@%s", m.Username, m.IMAPHost)
}

// crmSecret points at the CRM field the keychain secret fills in.
func crmSecret(c *config.CRM) *string {
	switch strings.ToLower(c.Type) {
	case "odoo":
		return &c.Password
	case "hubspot", "salesforce", "zoho":
		return &c.Token
	default:
		return &c.AuthHeader
	}
}

func SetCRMSecret(c config.CRM, value string) error {
	return Set(CRMKeyringAccount(c), value)
}

// Resolve fills secrets the config and environment left empty from the
// keychain. Lookups that fail leave the field empty; client construction
// reports what is missing.
func Resolve(cfg config.Config) config.Config {
	if dst := crmSecret(&cfg.CRM); *dst == "" && cfg.CRM.Enabled {
		if v, err := Get(CRMKeyringAccount(cfg.CRM)); err == nil {
			*dst = v
		} else if cfg.CRM.Type != "webhook" && cfg.CRM.Type != "" {
			log.Printf("[secrets] crm secret not in keychain account=%q", CRMKeyringAccount(cfg.CRM))
		}
	}
	if cfg.Source.Type == "mail" && cfg.Source.Mail.Password == "" {
		if v, err := Get(IMAPKeyringAccount(cfg.Source.Mail)); err == nil {
			cfg.Source.Mail.Password = v
		}
	}
	return cfg
}
