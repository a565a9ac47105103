package delivery

import (
	"time"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/domain"
)

func sampleLead() domain.Lead {
	return domain.Lead{
		Name:         "Acme LLC",
		Category:     "Chartered Accountants",
		Phone:        domain.Some("+971 4 555 0101"),
		Email:        domain.Some("info@acme.ae"),
		Address:      "Office 4, Deira, Dubai",
		Priority:     domain.PriorityHigh,
		QualityScore: 8,
		Source:       domain.DefaultSource,
		SearchTerm:   "accountants dubai",
		CapturedAt:   time.Date(2025, 2, 3, 4, 5, 6, 789000000, time.UTC),
	}
}

func crmConfig(typ, url string) config.CRM {
	c := config.Default().CRM
	c.Enabled = true
	c.Type = typ
	c.URL = url
	c.TimeoutSec = 5
	return c
}
