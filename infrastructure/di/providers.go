package di

import (
	"net/http"

	"funnel-backend/application/ports"
	"funnel-backend/application/session"
	domainconfig "funnel-backend/domain/config"
	"funnel-backend/infrastructure/config"
	"funnel-backend/infrastructure/persistence/httpapi"
	"funnel-backend/infrastructure/persistence/memory"
	"funnel-backend/interfaces/http/rest"
	ws "funnel-backend/interfaces/websocket"
	"funnel-backend/pkg/auth"
	"funnel-backend/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Limits   *config.LimitsWatcher
	Metrics  *observability.Collector
	Registry *session.Registry
	Hub      *ws.Hub
	Handler  http.Handler
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, err
	}

	return logger, nil
}

// ProvideLimitsWatcher creates the hot-reloading limits source. An
// empty LIMITS_FILE serves the built-in defaults without watching.
func ProvideLimitsWatcher(cfg *config.Config, logger *zap.Logger) (*config.LimitsWatcher, error) {
	return config.NewLimitsWatcher(cfg.LimitsFile, logger)
}

// ProvideDomainConfig resolves canvas behavior knobs for the current
// environment, then applies the file-sourced limits on top.
func ProvideDomainConfig(cfg *config.Config, limits *config.LimitsWatcher) *domainconfig.DomainConfig {
	dc := domainconfig.LoadDomainConfig(cfg.Environment)
	current := limits.Current()
	dc.FreeTierLimit = current.FreeTierLimit
	if current.SaveDebounce > 0 {
		dc.SaveDebounce = current.SaveDebounce
	}
	return dc
}

// ProvideMetricsCollector creates the Prometheus collector, or nil
// when metrics are disabled
func ProvideMetricsCollector(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector("funnel")
}

// ProvideJWTValidator creates the token validator
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
	})
}

// Stores bundles the persistence ports so one backend serves all
// three together.
type Stores struct {
	Snapshots ports.SnapshotStore
	Memos     ports.MemoStore
	Todos     ports.TodoCounter
}

// ProvideStores selects the persistence backend. Without a configured
// persistence service everything runs in memory, which is the local
// development mode.
func ProvideStores(cfg *config.Config, logger *zap.Logger) Stores {
	if cfg.PersistenceBaseURL == "" {
		logger.Info("No persistence service configured, using in-memory store")
		store := memory.NewStore()
		return Stores{Snapshots: store, Memos: store, Todos: store}
	}

	client := httpapi.NewClient(cfg.PersistenceBaseURL, cfg.PersistenceAPIKey, cfg.PersistenceTimeout, logger)
	stores := Stores{Snapshots: client, Memos: client, Todos: client}

	// Todos may live on a separate service from canvas persistence.
	if cfg.TodoServiceBaseURL != "" && cfg.TodoServiceBaseURL != cfg.PersistenceBaseURL {
		stores.Todos = httpapi.NewClient(cfg.TodoServiceBaseURL, cfg.PersistenceAPIKey, cfg.PersistenceTimeout, logger)
	}
	return stores
}

// ProvideRegistry creates the session registry. The quota limit is
// read through the watcher so limits file edits apply to open
// sessions without a restart.
func ProvideRegistry(
	stores Stores,
	dc *domainconfig.DomainConfig,
	limits *config.LimitsWatcher,
	metrics *observability.Collector,
	logger *zap.Logger,
) *session.Registry {
	return session.NewRegistry(
		stores.Snapshots,
		stores.Memos,
		stores.Todos,
		dc,
		limits.FreeTierLimit,
		metrics,
		logger,
	)
}

// ProvideHub creates the websocket hub and connects it to the session
// registry so save outcomes reach connected clients.
func ProvideHub(registry *session.Registry, logger *zap.Logger) *ws.Hub {
	hub := ws.NewHub(logger)
	registry.SetNotifier(hub)
	return hub
}

// ProvideHandler builds the HTTP surface
func ProvideHandler(
	registry *session.Registry,
	hub *ws.Hub,
	validator *auth.JWTValidator,
	metrics *observability.Collector,
	logger *zap.Logger,
) http.Handler {
	return rest.NewRouter(registry, hub, validator, metrics, logger).Setup()
}
