package secrets

import (
	"testing"

	"leadhunt-engine/internal/config"

	"github.com/zalando/go-keyring"
)

func TestResolveFillsFromKeychain(t *testing.T) {
	keyring.MockInit()

	cfg := config.Default()
	cfg.CRM.Enabled = true
	cfg.CRM.Type = "odoo"
	cfg.CRM.URL = "https://odoo.example.com"
	cfg.CRM.Username = "admin"
	cfg.Source.Type = "mail"
	cfg.Source.Mail.Username = "leads@example.com"
	cfg.Source.Mail.IMAPHost = "imap.example.com"

	if err := SetCRMSecret(cfg.CRM, "odoo-pw"); err != nil {
		t.Fatal(err)
	}
	if err := Set(IMAPKeyringAccount(cfg.Source.Mail), "imap-pw"); err != nil {
		t.Fatal(err)
	}

	got := Resolve(cfg)
	if got.CRM.Password != "odoo-pw" || got.Source.Mail.Password != "imap-pw" {
		t.Fatalf("resolved crm=%q imap=%q", got.CRM.Password, got.Source.Mail.Password)
	}
	if cfg.CRM.Password != "" {
		t.Fatal("Resolve must not mutate its input")
	}
}

func TestResolveKeepsExplicitSecret(t *testing.T) {
	keyring.MockInit()

	cfg := config.Default()
	cfg.CRM.Enabled = true
	cfg.CRM.Type = "hubspot"
	cfg.CRM.Token = "from-env"
	_ = SetCRMSecret(cfg.CRM, "from-keychain")

	if got := Resolve(cfg); got.CRM.Token != "from-env" {
		t.Fatalf("token = %q", got.CRM.Token)
	}
}

func TestGetMissing(t *testing.T) {
	keyring.MockInit()
	if _, err := Get("leadhunt:nothing"); err != ErrNotFound {
		t.Fatalf("err = %v", err)
	}
	if err := Set("", "x"); err == nil {
		t.Fatal("empty account must be rejected")
	}
}
