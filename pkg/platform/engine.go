package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/txn2/arnav-platform/pkg/guidance"
	"github.com/txn2/arnav-platform/pkg/latency"
	"github.com/txn2/arnav-platform/pkg/monitoring"
	"github.com/txn2/arnav-platform/pkg/nav"
	"github.com/txn2/arnav-platform/pkg/pathstore"
	"github.com/txn2/arnav-platform/pkg/planner"
	"github.com/txn2/arnav-platform/pkg/power"
	"github.com/txn2/arnav-platform/pkg/session"
	"github.com/txn2/arnav-platform/pkg/vision"
)

// Engine coordinates the session registry, the route planner, the latency
// monitor, the power controller, and the external collaborators. Registry
// state is the single source of truth; the engine never mutates it except
// through registry methods, and collaborator calls never run under
// registry locks.
type Engine struct {
	registry   session.Registry
	plannerCfg planner.Config
	monitor    *latency.Monitor
	power      *power.Controller
	vision     vision.Processor
	guidance   guidance.Generator
	repo       pathstore.Repository
	hooks      monitoring.Hooks

	idleTimeout time.Duration
	log         *slog.Logger
}

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	Registry    session.Registry
	Planner     planner.Config
	Monitor     *latency.Monitor
	Power       *power.Controller
	Vision      vision.Processor
	Guidance    guidance.Generator
	Repository  pathstore.Repository
	Hooks       monitoring.Hooks
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

// NewEngine creates an engine, applying defaults for absent collaborators.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Registry == nil {
		cfg.Registry = session.NewMemoryRegistry(session.DefaultMaxActive)
	}
	if cfg.Monitor == nil {
		cfg.Monitor = latency.NewMonitor(latency.DefaultWindow)
	}
	if cfg.Power == nil {
		cfg.Power = power.NewController(power.DefaultLowBatteryThreshold)
	}
	if cfg.Vision == nil {
		cfg.Vision = vision.NewNoopProcessor()
	}
	if cfg.Guidance == nil {
		cfg.Guidance = guidance.NewNoopGenerator()
	}
	if cfg.Repository == nil {
		cfg.Repository = pathstore.NewMemoryRepository()
	}
	if cfg.Hooks == nil {
		cfg.Hooks = monitoring.NewLatencyHooks(cfg.Monitor)
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = session.DefaultIdleThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		registry:    cfg.Registry,
		plannerCfg:  cfg.Planner,
		monitor:     cfg.Monitor,
		power:       cfg.Power,
		vision:      cfg.Vision,
		guidance:    cfg.Guidance,
		repo:        cfg.Repository,
		hooks:       cfg.Hooks,
		idleTimeout: cfg.IdleTimeout,
		log:         cfg.Logger,
	}
}

// CreateSession admits a new session and prepares its monitoring. Hook
// failure is logged and never rolls back the admitted session.
func (e *Engine) CreateSession(ctx context.Context, id string, userID int64, device nav.DeviceInfo) (*session.Session, error) {
	sess, err := e.registry.Create(ctx, id, userID, device)
	if err != nil {
		return nil, err
	}

	if err := e.hooks.Initialize(ctx, id); err != nil {
		e.log.Warn("monitoring setup failed, session continues",
			"session_id", id, "error", err)
	}

	e.log.Info("session created",
		"session_id", id, "user_id", userID, "active", e.registry.Count())
	return sess, nil
}

// GetSession returns a snapshot of the session.
func (e *Engine) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return e.registry.Get(ctx, id)
}

// ProcessVideoStream runs the vision collaborator over a frame batch.
func (e *Engine) ProcessVideoStream(ctx context.Context, frames []vision.Frame) (*vision.AnalysisResult, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("empty frame batch: %w", nav.ErrInvalidArgument)
	}

	result, err := e.vision.AnalyzeFrames(ctx, frames)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", nav.ErrVideoProcessing, err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("%w: analysis produced no usable result", nav.ErrVideoProcessing)
	}
	return result, nil
}

// GenerateARGuidance builds the AR guidance layer for an analyzed scene.
func (e *Engine) GenerateARGuidance(ctx context.Context, analysis *vision.AnalysisResult) (*guidance.Guidance, error) {
	if analysis == nil {
		return nil, fmt.Errorf("nil analysis: %w", nav.ErrInvalidArgument)
	}

	g, err := e.guidance.Generate(ctx, analysis)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", nav.ErrARGeneration, err)
	}
	if !g.Valid() {
		return nil, fmt.Errorf("%w: generator produced no overlays", nav.ErrARGeneration)
	}
	return g, nil
}

// AdjustPathInRealTime replans the session's route from the reported
// position to the existing destination, derives distance and time, merges
// obstacle info, and commits: the repository save happens first, and the
// registry only reflects the new path after the save succeeds. The
// processing duration is recorded as a latency sample.
func (e *Engine) AdjustPathInRealTime(ctx context.Context, sessionID string, changes nav.EnvironmentChanges) (*nav.NavigationPath, error) {
	started := time.Now()

	sess, err := e.registry.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	current := sess.CurrentPath
	if current == nil || len(current.Points) == 0 {
		return nil, fmt.Errorf("%w: session %q has no current path", nav.ErrPathAdjustment, sessionID)
	}
	dest, _ := current.Destination()

	cfg := e.plannerCfg
	if sess.PowerMode == nav.PowerModeSaving {
		cfg.MaxWaypoints = e.power.SettingsFor(sess.PowerMode).MaxWaypoints
	}
	result := planner.New(cfg).FindPath(changes.Position(), dest, changes)

	adjusted := current.Clone()
	adjusted.Points = result.Points
	adjusted.DistanceEstimate = nav.PathDistance(result.Points)
	if result.Unreachable {
		adjusted.EstimatedTime = nav.UnreachableTime
	} else {
		adjusted.EstimatedTime = nav.TravelTime(
			adjusted.DistanceEstimate,
			changes.NavigationSpeed,
			changes.SpeedAdjustmentFactor,
		)
	}
	adjusted.ObstacleInfo = nav.MergeObstacleInfo(current.ObstacleInfo, changes.NewObstacles)
	adjusted.Version++
	adjusted.UpdatedAt = time.Now()

	// Persist before the registry sees the new path. A failed save leaves
	// the session's current path untouched.
	if err := e.repo.Save(ctx, adjusted); err != nil {
		return nil, fmt.Errorf("%w: persisting adjusted path: %w", nav.ErrPathAdjustment, err)
	}
	if err := e.registry.UpdatePath(ctx, sessionID, adjusted); err != nil {
		return nil, fmt.Errorf("%w: %w", nav.ErrPathAdjustment, err)
	}

	elapsed := time.Since(started)
	e.monitor.Record(sessionID, elapsed)
	e.log.Debug("path adjusted",
		"session_id", sessionID,
		"version", adjusted.Version,
		"waypoints", len(adjusted.Points),
		"unreachable", result.Unreachable,
		"elapsed", elapsed)

	return adjusted, nil
}

// SetPath installs a path on the session, persisting it first.
func (e *Engine) SetPath(ctx context.Context, sessionID string, path *nav.NavigationPath) error {
	if path == nil || len(path.Points) == 0 {
		return fmt.Errorf("path with no points: %w", nav.ErrInvalidArgument)
	}
	if err := e.repo.Save(ctx, path); err != nil {
		return fmt.Errorf("%w: persisting path: %w", nav.ErrPathAdjustment, err)
	}
	return e.registry.UpdatePath(ctx, sessionID, path)
}

// OptimizationResult reports the power decision applied to a session.
type OptimizationResult struct {
	SessionID    string         `json:"session_id"`
	BatteryLevel int            `json:"battery_level"`
	Mode         nav.PowerMode  `json:"mode"`
	Settings     power.Settings `json:"settings"`
}

// OptimizeDevicePerformance applies a power mode to the session. An
// explicit mode wins; with no mode the battery level decides.
func (e *Engine) OptimizeDevicePerformance(ctx context.Context, sessionID string, batteryLevel int, mode nav.PowerMode) (*OptimizationResult, error) {
	if batteryLevel < 0 || batteryLevel > 100 {
		return nil, fmt.Errorf("battery level %d: %w", batteryLevel, nav.ErrInvalidArgument)
	}

	var decision power.Decision
	switch {
	case mode != "":
		if !mode.Valid() {
			return nil, fmt.Errorf("power mode %q: %w", mode, nav.ErrInvalidArgument)
		}
		decision = power.Decision{Mode: mode, Settings: e.power.SettingsFor(mode)}
	default:
		decision = e.power.Decide(batteryLevel)
	}
	if err := e.registry.SetPowerMode(ctx, sessionID, decision.Mode, decision.Settings.SettingsMap()); err != nil {
		if nav.IsRoutine(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", nav.ErrOptimization, err)
	}

	e.log.Info("device performance optimized",
		"session_id", sessionID, "battery", batteryLevel, "mode", decision.Mode)
	return &OptimizationResult{
		SessionID:    sessionID,
		BatteryLevel: batteryLevel,
		Mode:         decision.Mode,
		Settings:     decision.Settings,
	}, nil
}

// CloseSession removes the session and releases its monitoring. It returns
// false, not an error, when the session did not exist.
func (e *Engine) CloseSession(ctx context.Context, sessionID string) bool {
	if !e.registry.Close(ctx, sessionID) {
		return false
	}
	e.releaseMonitoring(ctx, sessionID)
	e.log.Info("session closed",
		"session_id", sessionID, "active", e.registry.Count())
	return true
}

// LatencyReport is the current latency posture of one session.
type LatencyReport struct {
	SessionID        string        `json:"session_id"`
	Latency          time.Duration `json:"latency"`
	MeetsRequirement bool          `json:"meets_requirement"`
	Message          string        `json:"message"`
}

// MonitorResponseLatency reports the session's rolling latency against the
// real-time budget.
func (e *Engine) MonitorResponseLatency(ctx context.Context, sessionID string) (*LatencyReport, error) {
	if _, err := e.registry.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	current, err := e.monitor.Current(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", nav.ErrLatencyMonitoring, err)
	}

	meets := e.monitor.MeetsRequirement(current)
	msg := "latency within real-time requirement"
	if !meets {
		msg = fmt.Sprintf("latency %s exceeds the %s budget", current, latency.Threshold)
	}
	return &LatencyReport{
		SessionID:        sessionID,
		Latency:          current,
		MeetsRequirement: meets,
		Message:          msg,
	}, nil
}

// CleanupExpiredSessions removes idle sessions and releases their
// monitoring, returning the removed ids.
func (e *Engine) CleanupExpiredSessions(ctx context.Context) []string {
	removed := e.registry.CleanupExpired(ctx, e.idleTimeout)
	for _, id := range removed {
		e.releaseMonitoring(ctx, id)
	}
	if len(removed) > 0 {
		e.log.Info("expired sessions cleaned up",
			"count", len(removed), "active", e.registry.Count())
	}
	return removed
}

// SessionCount returns the active session count.
func (e *Engine) SessionCount() int {
	return e.registry.Count()
}

// ActiveSessionIDs returns a snapshot of active session ids.
func (e *Engine) ActiveSessionIDs() []string {
	return e.registry.ListIDs()
}

// IdleTimeout returns the configured idle expiry threshold.
func (e *Engine) IdleTimeout() time.Duration {
	return e.idleTimeout
}

// releaseMonitoring drops per-session monitoring state, best effort.
func (e *Engine) releaseMonitoring(ctx context.Context, sessionID string) {
	if err := e.hooks.Cleanup(ctx, sessionID); err != nil {
		e.log.Warn("monitoring cleanup failed",
			"session_id", sessionID, "error", err)
	}
	e.monitor.Remove(sessionID)
}
