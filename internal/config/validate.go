package config

import (
	"fmt"
	"net/url"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err folds the errors into one error value, or nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return fmt.Errorf("config validation failed:\n- %s", strings.Join(v.Errors, "\n- "))
}

var crmTypes = map[string]bool{
	"webhook":    true,
	"odoo":       true,
	"hubspot":    true,
	"salesforce": true,
	"zoho":       true,
}

// NormalizeAndValidate returns a normalized copy together with the problems found.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.Source = normalizeSource(out.Source)
	if len(out.ExtraSources) > 0 {
		extras := make([]Source, len(out.ExtraSources))
		for i, s := range out.ExtraSources {
			extras[i] = normalizeSource(s)
		}
		out.ExtraSources = extras
	}
	out.Session.SearchTerms = trimList(out.Session.SearchTerms)
	out.Scoring.GenericCategories = trimList(out.Scoring.GenericCategories)
	out.CRM.Type = strings.ToLower(strings.TrimSpace(out.CRM.Type))
	out.CRM.URL = strings.TrimSpace(out.CRM.URL)

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	// session
	if out.Session.DurationMinutes <= 0 {
		res.addErr("session.duration_minutes must be > 0")
	}
	if len(out.Session.SearchTerms) == 0 && out.Source.Type != "mail" {
		res.addErr("session.search_terms must have at least 1 term")
	}
	if out.Session.PauseBetweenTermsSec < 0 || out.Session.PauseBetweenLeadsSec < 0 {
		res.addErr("session pauses cannot be negative")
	}
	if strings.TrimSpace(out.Session.OutputDir) == "" {
		res.addErr("session.output_dir is required")
	}

	// source
	validateSource("source", out.Source, &res)
	for i, s := range out.ExtraSources {
		validateSource(fmt.Sprintf("extra_sources[%d]", i), s, &res)
	}

	// crm
	if out.CRM.Enabled {
		if !crmTypes[out.CRM.Type] {
			res.addErr("crm.type %q is not supported", out.CRM.Type)
		}
		if out.CRM.URL == "" {
			if out.CRM.Type != "hubspot" && out.CRM.Type != "zoho" { // these have public API hosts
				res.addErr("crm.url is required when crm.enabled=true")
			}
		} else if u, err := url.Parse(out.CRM.URL); err != nil || u.Host == "" {
			if out.CRM.Type != "odoo" { // odoo accepts a bare host
				res.addErr("crm.url %q is not an absolute URL", out.CRM.URL)
			}
		}
		if out.CRM.Type == "odoo" {
			if strings.TrimSpace(out.CRM.DB) == "" {
				res.addErr("crm.db is required when crm.type=odoo")
			}
			if strings.TrimSpace(out.CRM.Username) == "" {
				res.addErr("crm.username is required when crm.type=odoo")
			}
		}
		if !out.Push.RealTime && !out.Push.BatchAtEnd {
			res.addWarn("crm is enabled but neither push.real_time nor push.batch_at_end is set; nothing will be delivered")
		}
	}

	// push
	if out.Push.MaxRetries <= 0 {
		res.addErr("push.max_retries must be > 0")
	} else if out.Push.MaxRetries > 10 {
		res.addWarn("push.max_retries is high (%d); a dead CRM will stall the session", out.Push.MaxRetries)
	}
	if out.Push.RetryDelaySeconds < 0 {
		res.addErr("push.retry_delay_seconds cannot be negative")
	}

	// scoring
	if out.Scoring.Base < 1 || out.Scoring.Base > 10 {
		res.addErr("scoring.base must be 1..10")
	}
	for name, w := range map[string]int{
		"phone_weight":    out.Scoring.PhoneWeight,
		"website_weight":  out.Scoring.WebsiteWeight,
		"email_weight":    out.Scoring.EmailWeight,
		"category_weight": out.Scoring.CategoryWeight,
	} {
		if w < 0 {
			res.addErr("scoring.%s cannot be negative", name)
		}
	}

	if out.Schedule.IntervalMinutes < 0 {
		res.addErr("schedule.interval_minutes cannot be negative")
	} else if out.Schedule.IntervalMinutes > 0 && out.Schedule.IntervalMinutes < out.Session.DurationMinutes {
		res.addWarn("schedule.interval_minutes (%d) is shorter than session.duration_minutes (%d); runs will be skipped while one is active",
			out.Schedule.IntervalMinutes, out.Session.DurationMinutes)
	}

	return out, res
}

func trimList(xs []string) []string {
	seen := map[string]bool{}
	var ys []string
	for _, x := range xs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		key := strings.ToLower(x)
		if seen[key] {
			continue
		}
		seen[key] = true
		ys = append(ys, x)
	}
	return ys
}

func normalizeSource(s Source) Source {
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))
	s.Mail.SearchSubjectAny = trimList(s.Mail.SearchSubjectAny)
	return s
}

func validateSource(prefix string, s Source, res *Validation) {
	switch s.Type {
	case "file":
		if strings.TrimSpace(s.Path) == "" {
			res.addErr("%s.path is required when type=file", prefix)
		}
	case "html":
		if !strings.Contains(s.HTML.URLTemplate, "{query}") {
			res.addErr("%s.html.url_template must contain {query}", prefix)
		}
		if strings.TrimSpace(s.HTML.Listing) == "" {
			res.addErr("%s.html.listing selector is required", prefix)
		}
		if s.HTML.Fields["Name"] == "" {
			res.addErr("%s.html.fields must map Name to a selector", prefix)
		}
	case "mail":
		if strings.TrimSpace(s.Mail.IMAPHost) == "" {
			res.addErr("%s.mail.imap_host is required when type=mail", prefix)
		}
		if strings.TrimSpace(s.Mail.Username) == "" {
			res.addErr("%s.mail.username is required when type=mail", prefix)
		}
		if len(s.Mail.SearchSubjectAny) == 0 {
			res.addWarn("%s.mail.search_subject_any is empty; every unseen message is treated as a lead", prefix)
		}
	default:
		res.addErr("%s.type must be one of file, html, mail (got %q)", prefix, s.Type)
	}
}
