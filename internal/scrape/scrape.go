package scrape

import (
	"fmt"

	"leadhunt-engine/internal/config"
	email_scrape "leadhunt-engine/internal/scrape/email"
	"leadhunt-engine/internal/scrape/filesource"
	"leadhunt-engine/internal/scrape/htmlsource"
	"leadhunt-engine/internal/scrape/types"
	"leadhunt-engine/internal/scrape/util"
)

// NewSource builds the source selected by cfg.Type.
func NewSource(cfg config.Source, limiter *util.HostLimiter) (types.Source, error) {
	switch cfg.Type {
	case "", "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("source.path is required for file sources")
		}
		return filesource.New(cfg.Path), nil
	case "html":
		return htmlsource.New(cfg.HTML, limiter), nil
	case "mail":
		return email_scrape.New(cfg.Mail), nil
	}
	return nil, fmt.Errorf("unknown source type %q", cfg.Type)
}

// NewSources builds primary plus any extra sources. A single source is
// returned as is; more are wrapped in a Multi.
func NewSources(primary config.Source, extra []config.Source, limiter *util.HostLimiter) (types.Source, error) {
	first, err := NewSource(primary, limiter)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return first, nil
	}
	m := &Multi{Sources: []types.Source{first}}
	for i, c := range extra {
		s, err := NewSource(c, limiter)
		if err != nil {
			return nil, fmt.Errorf("extra source %d: %w", i, err)
		}
		m.Sources = append(m.Sources, s)
	}
	return m, nil
}
