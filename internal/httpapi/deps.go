package httpapi

import (
	"context"
	"database/sql"
	"sync/atomic"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/events"
	"leadhunt-engine/internal/session"
)

type Deps struct {
	DB *sql.DB

	Hub *events.Hub

	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	Sessions *session.Manager

	// Redeliver pushes failed ledger leads again (inject for testability).
	Redeliver func(ctx context.Context) (session.RedeliverResult, error)
}
