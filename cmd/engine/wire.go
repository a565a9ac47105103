package main

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync/atomic"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/delivery"
	"leadhunt-engine/internal/events"
	"leadhunt-engine/internal/normalize"
	"leadhunt-engine/internal/rank"
	"leadhunt-engine/internal/scrape"
	"leadhunt-engine/internal/scrape/filesource"
	"leadhunt-engine/internal/scrape/types"
	"leadhunt-engine/internal/scrape/util"
	"leadhunt-engine/internal/secrets"
	"leadhunt-engine/internal/session"
)

// engine builds per-run pipelines from the current config.
type engine struct {
	dataDir string
	db      *sql.DB
	hub     *events.Hub
	cfgVal  *atomic.Value // stores config.Config
}

// current returns the running config with secrets filled in from the
// keychain.
func (e *engine) current() config.Config {
	return secrets.Resolve(e.cfgVal.Load().(config.Config))
}

func (e *engine) underDataDir(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.dataDir, p)
}

func limiterFor(cfg config.Config) *util.HostLimiter {
	return util.NewHostLimiter(cfg.Push.RequestsPerSecond, 1)
}

func (e *engine) crmClient(ctx context.Context, cfg config.Config, limiter *util.HostLimiter) (delivery.Client, error) {
	if !cfg.CRM.Enabled {
		return nil, delivery.ErrDisabled
	}
	return delivery.New(ctx, cfg.CRM, limiter)
}

// driver assembles a session around src. limiter is shared with the
// source so listing sites and the CRM are paced by one set of buckets.
func (e *engine) driver(ctx context.Context, cfg config.Config, src types.Source, limiter *util.HostLimiter) (*session.Driver, error) {
	var client delivery.Client
	if cfg.CRM.Enabled {
		c, err := e.crmClient(ctx, cfg, limiter)
		if err != nil {
			return nil, err
		}
		client = c
	}

	opts := session.OptionsFromConfig(cfg)
	opts.OutputDir = e.underDataDir(opts.OutputDir)

	scorer := rank.NewContactScorer(rank.WeightsFromConfig(cfg.Scoring))
	return &session.Driver{
		Source:     src,
		Normalizer: normalize.New(scorer, cfg.Session.DataSource),
		Client:     client,
		Retry:      delivery.RetryPolicyFromConfig(cfg.Push),
		Ledger:     e.db,
		Hub:        e.hub,
		Opts:       opts,
	}, nil
}

// newSession is the session.Factory behind /session/run, the scheduler
// and -run.
func (e *engine) newSession(ctx context.Context) (*session.Driver, error) {
	cfg := e.current()
	limiter := limiterFor(cfg)
	src, err := scrape.NewSources(cfg.Source, cfg.ExtraSources, limiter)
	if err != nil {
		return nil, err
	}
	return e.driver(ctx, cfg, src, limiter)
}

// newImport runs every record under path through the pipeline once.
func (e *engine) newImport(path string) session.Factory {
	return func(ctx context.Context) (*session.Driver, error) {
		cfg := e.current()
		d, err := e.driver(ctx, cfg, filesource.New(path), limiterFor(cfg))
		if err != nil {
			return nil, err
		}
		d.Opts.Terms = []string{""}
		d.Opts.SinglePass = true
		d.Opts.TermPause, d.Opts.LeadPause = 0, 0
		d.Opts.FilePrefix = "imported-leads"
		return d, nil
	}
}

func (e *engine) redeliver(ctx context.Context) (session.RedeliverResult, error) {
	cfg := e.current()
	client, err := e.crmClient(ctx, cfg, limiterFor(cfg))
	if err != nil {
		return session.RedeliverResult{}, err
	}
	return session.Redeliver(ctx, e.db, client, delivery.RetryPolicyFromConfig(cfg.Push), e.hub, 0)
}
