// Package api exposes the navigation platform over a REST surface with an
// SSE event stream per session.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/txn2/arnav-platform/pkg/audit"
	"github.com/txn2/arnav-platform/pkg/auth"
	"github.com/txn2/arnav-platform/pkg/nav"
	"github.com/txn2/arnav-platform/pkg/pathstore"
	"github.com/txn2/arnav-platform/pkg/platform"
	"github.com/txn2/arnav-platform/pkg/vision"
)

// Handler provides the navigation REST API.
type Handler struct {
	mux        *http.ServeMux
	engine     *platform.Engine
	paths      pathstore.Repository
	auditor    audit.Logger
	hub        *Hub
	maxActive  int
	authMiddle func(http.Handler) http.Handler
	log        *slog.Logger
}

// Config wires the handler's collaborators.
type Config struct {
	Engine         *platform.Engine
	PathRepository pathstore.Repository
	AuditLogger    audit.Logger
	MaxActive      int
	AuthMiddleware func(http.Handler) http.Handler
	Logger         *slog.Logger
}

// NewHandler creates the navigation API handler.
func NewHandler(cfg Config) *Handler {
	if cfg.AuditLogger == nil {
		cfg.AuditLogger = audit.NewNopLogger()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &Handler{
		mux:        http.NewServeMux(),
		engine:     cfg.Engine,
		paths:      cfg.PathRepository,
		auditor:    cfg.AuditLogger,
		hub:        NewHub(cfg.Logger),
		maxActive:  cfg.MaxActive,
		authMiddle: cfg.AuthMiddleware,
		log:        cfg.Logger,
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.authMiddle != nil {
		h.authMiddle(h.mux).ServeHTTP(w, r)
		return
	}
	h.mux.ServeHTTP(w, r)
}

// Hub returns the SSE hub so other layers can publish session events.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// registerRoutes registers all navigation API routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("POST /api/v1/navigation/sessions", h.createSession)
	h.mux.HandleFunc("GET /api/v1/navigation/sessions", h.listSessions)
	h.mux.HandleFunc("GET /api/v1/navigation/sessions/stats", h.sessionStats)
	h.mux.HandleFunc("GET /api/v1/navigation/sessions/{id}", h.getSession)
	h.mux.HandleFunc("DELETE /api/v1/navigation/sessions/{id}", h.closeSession)
	h.mux.HandleFunc("POST /api/v1/navigation/sessions/{id}/path", h.setPath)
	h.mux.HandleFunc("POST /api/v1/navigation/sessions/{id}/path/adjust", h.adjustPath)
	h.mux.HandleFunc("POST /api/v1/navigation/sessions/{id}/power", h.optimizePower)
	h.mux.HandleFunc("GET /api/v1/navigation/sessions/{id}/latency", h.sessionLatency)
	h.mux.HandleFunc("GET /api/v1/navigation/sessions/{id}/stream", h.streamSession)
	h.mux.HandleFunc("POST /api/v1/navigation/video/analyze", h.analyzeVideo)
	h.mux.HandleFunc("POST /api/v1/navigation/guidance", h.generateGuidance)
	h.mux.HandleFunc("POST /api/v1/navigation/cleanup", h.cleanup)
	h.mux.HandleFunc("GET /api/v1/navigation/paths", h.queryPaths)
}

type createSessionRequest struct {
	SessionID string         `json:"session_id"`
	UserID    int64          `json:"user_id"`
	Device    nav.DeviceInfo `json:"device"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	sess, err := h.engine.CreateSession(r.Context(), req.SessionID, req.UserID, req.Device)
	h.recordAudit(r, "create_session", req.SessionID, map[string]any{
		"user_id": req.UserID,
		"device":  req.Device.Model,
	}, started, err)
	if err != nil {
		writeNavError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) listSessions(w http.ResponseWriter, _ *http.Request) {
	ids := h.engine.ActiveSessionIDs()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(ids),
		"session_ids": ids,
	})
}

func (h *Handler) sessionStats(w http.ResponseWriter, _ *http.Request) {
	active := h.engine.SessionCount()
	stats := map[string]any{
		"active": active,
		"max":    h.maxActive,
	}
	if h.maxActive > 0 {
		stats["available"] = h.maxActive - active
		stats["utilization"] = float64(active) / float64(h.maxActive)
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.engine.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeNavError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id := r.PathValue("id")

	closed := h.engine.CloseSession(r.Context(), id)
	var err error
	if !closed {
		err = nav.ErrSessionNotFound
	}
	h.recordAudit(r, "close_session", id, nil, started, err)
	if !closed {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	h.hub.DropSession(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setPath(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id := r.PathValue("id")

	var path nav.NavigationPath
	if err := json.NewDecoder(r.Body).Decode(&path); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if path.ID == "" {
		path.ID = uuid.NewString()
	}
	if path.Status == "" {
		path.Status = nav.PathStatusActive
	}
	if path.Version == 0 {
		path.Version = 1
	}
	now := time.Now()
	if path.CreatedAt.IsZero() {
		path.CreatedAt = now
	}
	path.UpdatedAt = now

	err := h.engine.SetPath(r.Context(), id, &path)
	h.recordAudit(r, "set_path", id, map[string]any{
		"path_id":   path.ID,
		"waypoints": len(path.Points),
	}, started, err)
	if err != nil {
		writeNavError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &path)
}

func (h *Handler) adjustPath(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id := r.PathValue("id")

	var changes nav.EnvironmentChanges
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	adjusted, err := h.engine.AdjustPathInRealTime(r.Context(), id, changes)
	h.recordAudit(r, "adjust_path", id, map[string]any{
		"obstacles": len(changes.NewObstacles),
	}, started, err)
	if err != nil {
		writeNavError(w, err)
		return
	}

	h.hub.Publish(id, EventNavigationUpdate, adjusted)
	writeJSON(w, http.StatusOK, adjusted)
}

type optimizePowerRequest struct {
	BatteryLevel int           `json:"battery_level"`
	Mode         nav.PowerMode `json:"mode,omitempty"`
}

func (h *Handler) optimizePower(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id := r.PathValue("id")

	var req optimizePowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.engine.OptimizeDevicePerformance(r.Context(), id, req.BatteryLevel, req.Mode)
	h.recordAudit(r, "optimize_power", id, map[string]any{
		"battery_level": req.BatteryLevel,
		"mode":          string(req.Mode),
	}, started, err)
	if err != nil {
		writeNavError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) sessionLatency(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.MonitorResponseLatency(r.Context(), r.PathValue("id"))
	if err != nil {
		writeNavError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":        report.SessionID,
		"latency_ms":        report.Latency.Milliseconds(),
		"meets_requirement": report.MeetsRequirement,
		"message":           report.Message,
	})
}

// streamSession serves the session's event stream over SSE.
func (h *Handler) streamSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.engine.GetSession(r.Context(), id); err != nil {
		writeNavError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := h.hub.Register(id)
	defer h.hub.Unregister(client)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-client.Send:
			if !open {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, event.Data)
			flusher.Flush()
		}
	}
}

type analyzeVideoRequest struct {
	Frames []vision.Frame `json:"frames"`
}

func (h *Handler) analyzeVideo(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req analyzeVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.engine.ProcessVideoStream(r.Context(), req.Frames)
	h.recordAudit(r, "analyze_video", "", map[string]any{
		"frames": len(req.Frames),
	}, started, err)
	if err != nil {
		writeNavError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) generateGuidance(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var analysis vision.AnalysisResult
	if err := json.NewDecoder(r.Body).Decode(&analysis); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	g, err := h.engine.GenerateARGuidance(r.Context(), &analysis)
	h.recordAudit(r, "generate_guidance", "", nil, started, err)
	if err != nil {
		writeNavError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *Handler) cleanup(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	removed := h.engine.CleanupExpiredSessions(r.Context())
	for _, id := range removed {
		h.hub.DropSession(id)
	}
	h.recordAudit(r, "cleanup_sessions", "", map[string]any{
		"removed": len(removed),
	}, started, nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"removed":     len(removed),
		"session_ids": removed,
	})
}

// queryPaths serves persisted navigation paths by user, status, or venue.
func (h *Handler) queryPaths(w http.ResponseWriter, r *http.Request) {
	if h.paths == nil {
		writeError(w, http.StatusNotFound, "path store not configured")
		return
	}

	q := r.URL.Query()
	switch {
	case q.Get("user_id") != "":
		var userID int64
		if _, err := fmt.Sscan(q.Get("user_id"), &userID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		paths, err := h.paths.ByUser(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "querying paths failed")
			return
		}
		writeJSON(w, http.StatusOK, paths)

	case q.Get("status") != "":
		paths, err := h.paths.ByStatus(r.Context(), nav.PathStatus(q.Get("status")))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "querying paths failed")
			return
		}
		writeJSON(w, http.StatusOK, paths)

	case q.Get("venue_id") != "":
		var venueID int64
		if _, err := fmt.Sscan(q.Get("venue_id"), &venueID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid venue_id")
			return
		}
		path, err := h.paths.LatestByVenue(r.Context(), venueID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "querying paths failed")
			return
		}
		if path == nil {
			writeError(w, http.StatusNotFound, "no path for venue")
			return
		}
		writeJSON(w, http.StatusOK, path)

	default:
		writeError(w, http.StatusBadRequest, "user_id, status, or venue_id query is required")
	}
}

// recordAudit logs one operation to the audit trail, best effort.
func (h *Handler) recordAudit(r *http.Request, op, sessionID string, params map[string]any, started time.Time, opErr error) {
	event := audit.NewEvent(op).
		WithRequestID(requestID(r)).
		WithParameters(params)

	userID := ""
	if u := auth.GetUser(r.Context()); u != nil {
		userID = u.UserID
	}
	event.WithSession(sessionID, userID)

	errMsg := ""
	if opErr != nil {
		errMsg = opErr.Error()
	}
	event.WithResult(opErr == nil, errMsg, time.Since(started).Milliseconds())

	if err := h.auditor.Log(r.Context(), *event); err != nil {
		h.log.Warn("audit log failed", "operation", op, "error", err)
	}
}

// requestID returns the client-supplied request id or generates one.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// writeNavError maps a navigation error onto an HTTP status.
func writeNavError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// statusFor maps the error taxonomy onto HTTP statuses. Routine conditions
// get 4xx; anything else is an internal failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, nav.ErrSessionLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, nav.ErrSessionConflict):
		return http.StatusConflict
	case errors.Is(err, nav.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, nav.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
