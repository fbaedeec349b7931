package platform

import (
	"database/sql"
	"log/slog"

	"github.com/txn2/arnav-platform/pkg/audit"
	"github.com/txn2/arnav-platform/pkg/auth"
	"github.com/txn2/arnav-platform/pkg/guidance"
	"github.com/txn2/arnav-platform/pkg/latency"
	"github.com/txn2/arnav-platform/pkg/monitoring"
	"github.com/txn2/arnav-platform/pkg/pathstore"
	"github.com/txn2/arnav-platform/pkg/session"
	"github.com/txn2/arnav-platform/pkg/vision"
)

// Options configures the platform.
type Options struct {
	// Config is the platform configuration.
	Config *Config

	// Database connection (optional, will be created from config if not provided).
	DB *sql.DB

	// Registry (optional, will be created from config if not provided).
	Registry session.Registry

	// VisionProcessor (optional, Noop if not provided).
	VisionProcessor vision.Processor

	// GuidanceGenerator (optional, Noop if not provided).
	GuidanceGenerator guidance.Generator

	// PathRepository (optional, will be created from config if not provided).
	PathRepository pathstore.Repository

	// MonitoringHooks (optional, latency-backed hooks if not provided).
	MonitoringHooks monitoring.Hooks

	// LatencyMonitor (optional, will be created from config if not provided).
	LatencyMonitor *latency.Monitor

	// AuditLogger (optional, will be created from config if not provided).
	AuditLogger audit.Logger

	// Authenticator (optional, will be created from config if not provided).
	Authenticator auth.Authenticator

	// Logger (optional, slog.Default if not provided).
	Logger *slog.Logger
}

// Option is a functional option for configuring the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithDB sets the database connection.
func WithDB(db *sql.DB) Option {
	return func(o *Options) {
		o.DB = db
	}
}

// WithRegistry sets the session registry.
func WithRegistry(reg session.Registry) Option {
	return func(o *Options) {
		o.Registry = reg
	}
}

// WithVisionProcessor sets the video analysis collaborator.
func WithVisionProcessor(proc vision.Processor) Option {
	return func(o *Options) {
		o.VisionProcessor = proc
	}
}

// WithGuidanceGenerator sets the AR guidance collaborator.
func WithGuidanceGenerator(gen guidance.Generator) Option {
	return func(o *Options) {
		o.GuidanceGenerator = gen
	}
}

// WithPathRepository sets the navigation path repository.
func WithPathRepository(repo pathstore.Repository) Option {
	return func(o *Options) {
		o.PathRepository = repo
	}
}

// WithMonitoringHooks sets the per-session monitoring hooks.
func WithMonitoringHooks(hooks monitoring.Hooks) Option {
	return func(o *Options) {
		o.MonitoringHooks = hooks
	}
}

// WithLatencyMonitor sets the latency monitor.
func WithLatencyMonitor(m *latency.Monitor) Option {
	return func(o *Options) {
		o.LatencyMonitor = m
	}
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(logger audit.Logger) Option {
	return func(o *Options) {
		o.AuditLogger = logger
	}
}

// WithAuthenticator sets the authenticator.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(o *Options) {
		o.Authenticator = a
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = log
	}
}
