package platform

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/txn2/arnav-platform/pkg/audit"
	auditpg "github.com/txn2/arnav-platform/pkg/audit/postgres"
	"github.com/txn2/arnav-platform/pkg/auth"
	"github.com/txn2/arnav-platform/pkg/guidance"
	"github.com/txn2/arnav-platform/pkg/latency"
	"github.com/txn2/arnav-platform/pkg/monitoring"
	"github.com/txn2/arnav-platform/pkg/pathstore"
	pathpg "github.com/txn2/arnav-platform/pkg/pathstore/postgres"
	"github.com/txn2/arnav-platform/pkg/planner"
	"github.com/txn2/arnav-platform/pkg/power"
	"github.com/txn2/arnav-platform/pkg/session"
	"github.com/txn2/arnav-platform/pkg/vision"

	// Postgres driver, registered for database/sql.
	_ "github.com/lib/pq"
)

// Platform is the main platform facade. It owns the session registry, the
// path planner, the collaborators, and the navigation engine built on them.
type Platform struct {
	config    *Config
	log       *slog.Logger
	lifecycle *Lifecycle

	db    *sql.DB
	ownDB bool

	// Core components
	registry session.Registry
	monitor  *latency.Monitor
	powerCtl *power.Controller

	// Collaborators
	visionProc  vision.Processor
	guidanceGen guidance.Generator
	pathRepo    pathstore.Repository
	hooks       monitoring.Hooks

	// Audit and auth
	auditLogger   audit.Logger
	authenticator auth.Authenticator

	engine *Engine

	cleanupCancel context.CancelFunc
	cleanupDone   chan struct{}
}

// New creates a new platform instance.
func New(opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := options.Config.Validate(); err != nil {
		return nil, err
	}

	log := options.Logger
	if log == nil {
		log = slog.Default()
	}

	p := &Platform{
		config:    options.Config,
		log:       log,
		lifecycle: NewLifecycle(log),
	}

	// Initialize components
	if err := p.initializeComponents(options); err != nil {
		return nil, fmt.Errorf("initializing components: %w", err)
	}

	return p, nil
}

// initializeComponents initializes all platform components.
func (p *Platform) initializeComponents(opts *Options) error {
	if err := p.initDatabase(opts); err != nil {
		return err
	}
	p.initCore(opts)
	p.initCollaborators(opts)
	if err := p.initAuth(opts); err != nil {
		return err
	}
	p.finalizeSetup()
	return nil
}

// initDatabase opens the database connection when a DSN is configured.
func (p *Platform) initDatabase(opts *Options) error {
	if opts.DB != nil {
		p.db = opts.DB
		return nil
	}
	if p.config.Database.DSN == "" {
		return nil
	}

	db, err := sql.Open("postgres", p.config.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(p.config.Database.MaxOpenConns)
	p.db = db
	p.ownDB = true
	return nil
}

// initCore initializes the registry, latency monitor, and power controller.
func (p *Platform) initCore(opts *Options) {
	if opts.Registry != nil {
		p.registry = opts.Registry
	} else {
		p.registry = session.NewMemoryRegistry(p.config.Sessions.MaxActive)
	}

	if opts.LatencyMonitor != nil {
		p.monitor = opts.LatencyMonitor
	} else {
		p.monitor = latency.NewMonitor(p.config.Latency.Window)
	}

	p.powerCtl = power.NewController(p.config.Power.LowBatteryThreshold)

	if opts.MonitoringHooks != nil {
		p.hooks = opts.MonitoringHooks
	} else {
		p.hooks = monitoring.NewLatencyHooks(p.monitor)
	}
}

// initCollaborators initializes vision, guidance, path store, and audit.
func (p *Platform) initCollaborators(opts *Options) {
	if opts.VisionProcessor != nil {
		p.visionProc = opts.VisionProcessor
	} else {
		p.visionProc = vision.NewNoopProcessor()
	}

	if opts.GuidanceGenerator != nil {
		p.guidanceGen = opts.GuidanceGenerator
	} else {
		p.guidanceGen = guidance.NewNoopGenerator()
	}

	switch {
	case opts.PathRepository != nil:
		p.pathRepo = opts.PathRepository
	case p.db != nil:
		p.pathRepo = pathpg.New(p.db)
	default:
		p.pathRepo = pathstore.NewMemoryRepository()
	}

	switch {
	case opts.AuditLogger != nil:
		p.auditLogger = opts.AuditLogger
	case !p.config.Audit.Enabled:
		p.auditLogger = audit.NewNopLogger()
	case p.db != nil:
		store := auditpg.New(p.db, auditpg.Config{
			RetentionDays: p.config.Audit.RetentionDays,
		})
		store.StartRetention()
		p.auditLogger = store
	default:
		p.auditLogger = audit.NewSlogLogger(p.log)
	}
}

// initAuth builds the authenticator from config unless one was injected.
// With nothing enabled the platform runs unauthenticated.
func (p *Platform) initAuth(opts *Options) error {
	if opts.Authenticator != nil {
		p.authenticator = opts.Authenticator
		return nil
	}

	var authenticators []auth.Authenticator

	if p.config.Auth.JWT.Enabled {
		key, err := base64.StdEncoding.DecodeString(p.config.Auth.JWT.SigningKey)
		if err != nil {
			return fmt.Errorf("decoding JWT signing key: %w", err)
		}
		jwtAuth, err := auth.NewJWTAuthenticator(auth.JWTConfig{
			Issuer:     p.config.Auth.JWT.Issuer,
			SigningKey: key,
		})
		if err != nil {
			return fmt.Errorf("creating JWT authenticator: %w", err)
		}
		authenticators = append(authenticators, jwtAuth)
	}

	if p.config.Auth.APIKeys.Enabled {
		keys := make([]auth.APIKey, 0, len(p.config.Auth.APIKeys.Keys))
		for _, k := range p.config.Auth.APIKeys.Keys {
			keys = append(keys, auth.APIKey{
				Key:     k.Key,
				KeyHash: k.KeyHash,
				Name:    k.Name,
				Roles:   k.Roles,
			})
		}
		authenticators = append(authenticators, auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{Keys: keys}))
	}

	if len(authenticators) == 0 {
		p.authenticator = nil
		return nil
	}
	p.authenticator = auth.NewMultiAuthenticator(authenticators...)
	return nil
}

// finalizeSetup builds the engine and registers shutdown hooks.
func (p *Platform) finalizeSetup() {
	p.engine = NewEngine(EngineConfig{
		Registry: p.registry,
		Planner: planner.Config{
			CellSize:      p.config.Planner.CellSize,
			MaxExpansions: p.config.Planner.MaxExpansions,
			BoundsMargin:  p.config.Planner.BoundsMargin,
		},
		Monitor:     p.monitor,
		Power:       p.powerCtl,
		Vision:      p.visionProc,
		Guidance:    p.guidanceGen,
		Repository:  p.pathRepo,
		Hooks:       p.hooks,
		IdleTimeout: p.config.Sessions.IdleTimeout,
		Logger:      p.log,
	})

	if runner, ok := p.registry.(cleanupRunner); ok {
		p.lifecycle.Append(Hook{
			OnStart: func(_ context.Context) error {
				runner.StartCleanupRoutine(
					p.config.Sessions.CleanupInterval,
					p.config.Sessions.IdleTimeout,
					p.onSessionsExpired,
				)
				return nil
			},
			OnStop: func(_ context.Context) error {
				runner.Shutdown()
				return nil
			},
		})
		return
	}

	p.lifecycle.Append(Hook{
		OnStart: func(_ context.Context) error {
			p.startCleanupRoutine()
			return nil
		},
		OnStop: func(_ context.Context) error {
			p.stopCleanupRoutine()
			return nil
		},
	})
}

// cleanupRunner is implemented by registries that ship their own idle-sweep
// routine, such as session.MemoryRegistry.
type cleanupRunner interface {
	StartCleanupRoutine(interval, idleThreshold time.Duration, onRemoved func([]string))
	Shutdown()
}

// onSessionsExpired releases per-session monitoring after a registry sweep.
func (p *Platform) onSessionsExpired(ids []string) {
	ctx := context.Background()
	for _, id := range ids {
		p.engine.releaseMonitoring(ctx, id)
	}
	p.log.Info("expired sessions removed", "count", len(ids))
}

// startCleanupRoutine sweeps expired sessions through the engine for
// registries without a routine of their own.
func (p *Platform) startCleanupRoutine() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cleanupCancel = cancel
	p.cleanupDone = make(chan struct{})

	interval := p.config.Sessions.CleanupInterval
	go func() {
		defer close(p.cleanupDone)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := p.engine.CleanupExpiredSessions(ctx)
				if len(removed) > 0 {
					p.log.Info("expired sessions removed",
						"count", len(removed))
				}
			}
		}
	}()
}

// stopCleanupRoutine stops the sweep goroutine and waits for it to exit.
func (p *Platform) stopCleanupRoutine() {
	if p.cleanupCancel != nil {
		p.cleanupCancel()
		<-p.cleanupDone
		p.cleanupCancel = nil
	}
}

// Start starts the platform.
func (p *Platform) Start(ctx context.Context) error {
	return p.lifecycle.Start(ctx)
}

// Stop stops the platform.
func (p *Platform) Stop(ctx context.Context) error {
	return p.lifecycle.Stop(ctx)
}

// Engine returns the navigation session engine.
func (p *Platform) Engine() *Engine {
	return p.engine
}

// Config returns the platform configuration.
func (p *Platform) Config() *Config {
	return p.config
}

// DB returns the database connection, nil when none is configured.
func (p *Platform) DB() *sql.DB {
	return p.db
}

// Registry returns the session registry.
func (p *Platform) Registry() session.Registry {
	return p.registry
}

// LatencyMonitor returns the latency monitor.
func (p *Platform) LatencyMonitor() *latency.Monitor {
	return p.monitor
}

// PathRepository returns the navigation path repository.
func (p *Platform) PathRepository() pathstore.Repository {
	return p.pathRepo
}

// AuditLogger returns the audit logger.
func (p *Platform) AuditLogger() audit.Logger {
	return p.auditLogger
}

// Authenticator returns the authenticator, nil when auth is disabled.
func (p *Platform) Authenticator() auth.Authenticator {
	return p.authenticator
}

// Lifecycle returns the lifecycle manager.
func (p *Platform) Lifecycle() *Lifecycle {
	return p.lifecycle
}

// closeResource closes a resource and appends any error.
func closeResource(errs *[]error, closer Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		*errs = append(*errs, err)
	}
}

// Close closes all platform resources.
func (p *Platform) Close() error {
	p.stopCleanupRoutine()

	if runner, ok := p.registry.(cleanupRunner); ok {
		runner.Shutdown()
	}

	var errs []error
	closeResource(&errs, p.visionProc)
	closeResource(&errs, p.guidanceGen)
	closeResource(&errs, p.pathRepo)
	closeResource(&errs, p.auditLogger)

	if p.ownDB && p.db != nil {
		closeResource(&errs, p.db)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing platform: %v", errs)
	}
	return nil
}
