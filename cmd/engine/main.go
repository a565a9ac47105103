package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/delivery"
	"leadhunt-engine/internal/events"
	"leadhunt-engine/internal/httpapi"
	"leadhunt-engine/internal/scheduler"
	"leadhunt-engine/internal/session"
	"leadhunt-engine/internal/store"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env is optional; real env vars win
	_ = godotenv.Load()

	runOnce := flag.Bool("run", false, "run one session and exit")
	importPath := flag.String("import", "", "push historical lead files (csv, json, ndjson) from a file or directory and exit")
	redeliver := flag.Bool("redeliver", false, "push failed and pending ledger leads again and exit")
	stats := flag.Bool("stats", false, "print ledger and CRM counts and exit")
	flag.Parse()

	// Engine data dir: use env if provided (the desktop shell passes one), else local folder.
	dataDir := os.Getenv("LEADHUNT_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	lock := flock.New(filepath.Join(dataDir, "leadhunt.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("lock data dir: %v", err)
	}
	if !locked {
		log.Fatalf("another engine is already using %s", dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	// Load config and keep it reloadable
	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		cfg, err := config.Load(userCfgPath)
		if err != nil {
			return cfg, err
		}
		config.OverlayEnv(&cfg)
		cfg, vr := config.NormalizeAndValidate(cfg)
		for _, w := range vr.Warnings {
			log.Printf("[config] warning: %s", w)
		}
		return cfg, vr.Err()
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	cfgVal.Store(cfg)

	dbPath := filepath.Join(dataDir, "leadhunt.db")
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("open ledger %s: %v", dbPath, err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &engine{dataDir: dataDir, db: db.Pool, hub: events.NewHub(), cfgVal: &cfgVal}

	// A CRM that cannot be built from its settings is fatal in every mode.
	if cfg.CRM.Enabled {
		cctx, cancel := context.WithTimeout(ctx, cfg.CRM.Timeout())
		_, err := app.crmClient(cctx, app.current(), limiterFor(cfg))
		cancel()
		var cerr *delivery.ConfigError
		if errors.As(err, &cerr) {
			log.Fatalf("crm config: %v", err)
		}
		if err != nil {
			log.Printf("[engine] crm not reachable yet: %v", err)
		}
	}

	switch {
	case *importPath != "":
		st, err := session.NewManager(app.newImport(*importPath)).RunSync(ctx)
		exitWith(st, err)
	case *runOnce:
		st, err := session.NewManager(app.newSession).RunSync(ctx)
		exitWith(st, err)
	case *redeliver:
		res, err := app.redeliver(ctx)
		printJSON(res)
		if err != nil {
			log.Fatalf("redeliver: %v", err)
		}
	case *stats:
		if err := printStats(ctx, app); err != nil {
			log.Fatalf("stats: %v", err)
		}
	default:
		if err := serve(ctx, stop, app, userCfgPath, loadCfg); err != nil {
			log.Fatal(err)
		}
	}
}

func serve(ctx context.Context, stop context.CancelFunc, app *engine, userCfgPath string, loadCfg func() (config.Config, error)) error {
	cfg := app.cfgVal.Load().(config.Config)
	sessions := session.NewManager(app.newSession)

	mux := httpapi.NewMux(httpapi.Deps{
		DB:          app.db,
		Hub:         app.hub,
		CfgVal:      app.cfgVal,
		UserCfgPath: userCfgPath,
		LoadCfg:     loadCfg,
		Sessions:    sessions,
		Redeliver: func(ctx context.Context) (res session.RedeliverResult, err error) {
			err = sessions.Exclusive(ctx, func(ctx context.Context) error {
				res, err = app.redeliver(ctx)
				return err
			})
			return res, err
		},
	})

	token := os.Getenv("LEADHUNT_SHUTDOWN_TOKEN")
	if token == "" {
		t, err := randomToken(16)
		if err != nil {
			return err
		}
		token = t
	}
	mux.HandleFunc("/shutdown", shutdownHandler(token, stop))

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("engine listening on http://%s (db=%s)", addr, filepath.Join(app.dataDir, "leadhunt.db"))
	fmt.Printf("SHUTDOWN_TOKEN=%s\n", token)

	srv := &http.Server{
		Handler:           httpapi.Chain(mux, httpapi.Recover, httpapi.RequestID, httpapi.AccessLog, httpapi.Cors),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if sessions.Stop() {
			log.Printf("[engine] interrupted running session")
		}
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if every := time.Duration(cfg.Schedule.IntervalMinutes) * time.Minute; every > 0 {
		g.Go(func() error {
			scheduler.Every(gctx, every, "schedule", false, func(ctx context.Context) error {
				_, err := sessions.RunSync(ctx)
				if errors.Is(err, session.ErrAlreadyRunning) {
					return fmt.Errorf("%w: a session is already running", scheduler.ErrSkipped)
				}
				return err
			})
			return nil
		})
	}
	g.Go(func() error {
		scheduler.Every(gctx, 24*time.Hour, "cleanup", true, func(ctx context.Context) error {
			n, err := store.CleanupOldLeads(app.db)
			if n > 0 {
				log.Printf("[cleanup] removed %d delivered leads", n)
			}
			return err
		})
		return nil
	})
	return g.Wait()
}

func exitWith(st session.Status, err error) {
	printJSON(st)
	if err != nil {
		log.Fatalf("session: %v", err)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printStats(ctx context.Context, app *engine) error {
	counts, err := store.CountByStatus(ctx, app.db)
	if err != nil {
		return err
	}
	out := map[string]any{"ledger": counts}

	cfg := app.current()
	if client, err := app.crmClient(ctx, cfg, limiterFor(cfg)); err == nil {
		if o, ok := client.(*delivery.Odoo); ok {
			n, err := o.Stats(ctx, time.Now().AddDate(0, 0, -1))
			if err != nil {
				return fmt.Errorf("odoo stats: %w", err)
			}
			out["crmLeadsYesterday"] = n
		}
	}
	printJSON(out)
	return nil
}
