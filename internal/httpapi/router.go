package httpapi

import "net/http"

// NewMux returns the raw mux so main() can still attach /shutdown (needs srv+token).
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: HealthHandler{Sessions: d.Sessions}.Health,
	}))

	// Leads
	lh := LeadsHandler{DB: d.DB, Hub: d.Hub, Redeliver: d.Redeliver}
	mux.HandleFunc("/leads", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.List,
	}))
	mux.HandleFunc("/leads/failed", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.Failed,
	}))
	mux.HandleFunc("/leads/redeliver", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: lh.RedeliverAll,
	}))
	mux.HandleFunc("/leads/", methodMux(map[string]http.HandlerFunc{
		http.MethodDelete: lh.DeleteByPath, // expects /leads/{id}
	}))

	// Sessions
	sh := SessionHandler{DB: d.DB, Sessions: d.Sessions}
	mux.HandleFunc("/session/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.Status,
	}))
	mux.HandleFunc("/session/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.Run,
	}))
	mux.HandleFunc("/session/stop", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.Stop,
	}))
	mux.HandleFunc("/sessions", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.History,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
		Hub:         d.Hub,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sec := SecretsHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/secrets/imap", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sec.SetIMAPPassword,
	}))
	mux.HandleFunc("/api/secrets/crm", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sec.SetCRMSecret,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	// Ledger maintenance
	dh := DBHandler{DB: d.DB, Sessions: d.Sessions}
	mux.HandleFunc("/db/stats", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: dh.Stats,
	}))
	mux.Handle("/db/checkpoint", LocalOnly(methodMux(map[string]http.HandlerFunc{
		http.MethodPost: dh.Checkpoint,
	})))

	return mux
}
