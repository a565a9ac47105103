// engine/internal/config/config.go
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Scoring struct {
	Base              int      `yaml:"base" json:"base"`
	PhoneWeight       int      `yaml:"phone_weight" json:"phone_weight"`
	WebsiteWeight     int      `yaml:"website_weight" json:"website_weight"`
	EmailWeight       int      `yaml:"email_weight" json:"email_weight"`
	CategoryWeight    int      `yaml:"category_weight" json:"category_weight"`
	GenericCategories []string `yaml:"generic_categories" json:"generic_categories"`
}

type HTMLSource struct {
	URLTemplate string            `yaml:"url_template" json:"url_template"` // {query} is replaced
	Listing     string            `yaml:"listing" json:"listing"`           // selector of one listing
	Fields      map[string]string `yaml:"fields" json:"fields"`             // raw key -> selector
	UserAgent   string            `yaml:"user_agent" json:"user_agent"`
}

type MailSource struct {
	IMAPHost         string   `yaml:"imap_host" json:"imap_host"`
	IMAPPort         int      `yaml:"imap_port" json:"imap_port"`
	Username         string   `yaml:"username" json:"username"`
	Password         string   `yaml:"password,omitempty" json:"-"`
	Mailbox          string   `yaml:"mailbox" json:"mailbox"`
	SearchSubjectAny []string `yaml:"search_subject_any" json:"search_subject_any"`
	MaxMessages      int      `yaml:"max_messages" json:"max_messages"`
}

type Source struct {
	Type string     `yaml:"type" json:"type"` // file | html | mail
	Path string     `yaml:"path" json:"path"` // file source: file or directory
	HTML HTMLSource `yaml:"html" json:"html"`
	Mail MailSource `yaml:"mail" json:"mail"`
}

type CRM struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Type       string `yaml:"type" json:"type"` // webhook | odoo | hubspot | salesforce | zoho
	URL        string `yaml:"url" json:"url"`
	AuthHeader string `yaml:"auth_header,omitempty" json:"-"`
	DB         string `yaml:"db" json:"db"`
	Username   string `yaml:"username" json:"username"`
	Password   string `yaml:"password,omitempty" json:"-"`
	Token      string `yaml:"token,omitempty" json:"-"`
	City       string `yaml:"city" json:"city"`
	Country    string `yaml:"country" json:"country"`
	LeadType   string `yaml:"lead_type" json:"lead_type"`
	TimeoutSec int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

type Push struct {
	RealTime          bool    `yaml:"real_time" json:"real_time"`
	BatchAtEnd        bool    `yaml:"batch_at_end" json:"batch_at_end"`
	MaxRetries        int     `yaml:"max_retries" json:"max_retries"`
	RetryOnFailure    bool    `yaml:"retry_on_failure" json:"retry_on_failure"`
	RetryDelaySeconds float64 `yaml:"retry_delay_seconds" json:"retry_delay_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
}

type Session struct {
	DurationMinutes      int      `yaml:"duration_minutes" json:"duration_minutes"`
	SearchTerms          []string `yaml:"search_terms" json:"search_terms"`
	PauseBetweenTermsSec float64  `yaml:"pause_between_terms_seconds" json:"pause_between_terms_seconds"`
	PauseBetweenLeadsSec float64  `yaml:"pause_between_leads_seconds" json:"pause_between_leads_seconds"`
	OutputDir            string   `yaml:"output_dir" json:"output_dir"`
	FilePrefix           string   `yaml:"file_prefix" json:"file_prefix"`
	WriteXLSX            bool     `yaml:"write_xlsx" json:"write_xlsx"`
	DataSource           string   `yaml:"data_source" json:"data_source"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Session Session `yaml:"session" json:"session"`
	Source  Source  `yaml:"source" json:"source"`
	// ExtraSources are searched alongside Source for every term.
	ExtraSources []Source `yaml:"extra_sources,omitempty" json:"extra_sources,omitempty"`
	CRM     CRM     `yaml:"crm" json:"crm"`
	Push    Push    `yaml:"push" json:"push"`
	Scoring Scoring `yaml:"scoring" json:"scoring"`

	Schedule struct {
		IntervalMinutes int `yaml:"interval_minutes" json:"interval_minutes"` // 0 = manual only
	} `yaml:"schedule" json:"schedule"`
}

// Default returns the settings used for anything the YAML leaves out.
func Default() Config {
	var cfg Config
	cfg.App.Port = 38472
	cfg.Session.DurationMinutes = 60
	cfg.Session.PauseBetweenTermsSec = 3
	cfg.Session.PauseBetweenLeadsSec = 1
	cfg.Session.OutputDir = "results"
	cfg.Session.FilePrefix = "fresh-dubai-businesses"
	cfg.Session.DataSource = "Google Maps Scraper"
	cfg.Source.Type = "file"
	cfg.CRM.Type = "webhook"
	cfg.CRM.City = "Dubai"
	cfg.CRM.Country = "United Arab Emirates"
	cfg.CRM.LeadType = "opportunity"
	cfg.CRM.TimeoutSec = 30
	cfg.Push.RealTime = true
	cfg.Push.BatchAtEnd = false
	cfg.Push.MaxRetries = 3
	cfg.Push.RetryOnFailure = true
	cfg.Push.RetryDelaySeconds = 2
	cfg.Push.RequestsPerSecond = 3
	cfg.Scoring = Scoring{
		Base:              4,
		PhoneWeight:       2,
		WebsiteWeight:     2,
		EmailWeight:       1,
		CategoryWeight:    1,
		GenericCategories: []string{"Business Services", "N/A"},
	}
	return cfg
}

func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func seconds(f float64) time.Duration {
	if f <= 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func (s Session) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

func (s Session) TermPause() time.Duration { return seconds(s.PauseBetweenTermsSec) }

func (s Session) LeadPause() time.Duration { return seconds(s.PauseBetweenLeadsSec) }

func (p Push) RetryDelay() time.Duration { return seconds(p.RetryDelaySeconds) }

func (c CRM) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}
