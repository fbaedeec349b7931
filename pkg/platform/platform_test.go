package platform

import (
	"context"
	"encoding/base64"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/arnav-platform/pkg/audit"
	"github.com/txn2/arnav-platform/pkg/nav"
	"github.com/txn2/arnav-platform/pkg/pathstore"
	"github.com/txn2/arnav-platform/pkg/session"
)

func testConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func newTestPlatform(t *testing.T, opts ...Option) *Platform {
	t.Helper()
	opts = append([]Option{
		WithConfig(testConfig()),
		WithLogger(slog.New(slog.DiscardHandler)),
	}, opts...)

	p, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config is required")
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Sessions.MaxActive = -1

	_, err := New(WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sessions.max_active")
}

func TestNew_DefaultComponents(t *testing.T) {
	p := newTestPlatform(t)

	assert.NotNil(t, p.Engine())
	assert.NotNil(t, p.Registry())
	assert.NotNil(t, p.LatencyMonitor())
	assert.IsType(t, &pathstore.MemoryRepository{}, p.PathRepository())
	assert.IsType(t, &audit.NopLogger{}, p.AuditLogger())
	assert.Nil(t, p.Authenticator(), "no auth configured means unauthenticated")
	assert.Nil(t, p.DB())
}

func TestNew_AuditEnabledWithoutDatabaseUsesSlog(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true

	p := newTestPlatform(t, WithConfig(cfg))
	assert.IsType(t, &audit.SlogLogger{}, p.AuditLogger())
}

func TestNew_BuildsAuthenticatorFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.APIKeys.Enabled = true
	cfg.Auth.APIKeys.Keys = []APIKeyDef{
		{Key: "test-key", Name: "ci", Roles: []string{"operator"}},
	}

	p := newTestPlatform(t, WithConfig(cfg))
	require.NotNil(t, p.Authenticator())
}

func TestNew_DecodesJWTSigningKey(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWT.Enabled = true
	cfg.Auth.JWT.Issuer = "https://issuer.example.com"
	cfg.Auth.JWT.SigningKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))

	p := newTestPlatform(t, WithConfig(cfg))
	require.NotNil(t, p.Authenticator())
}

func TestNew_RejectsMalformedJWTSigningKey(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWT.Enabled = true
	cfg.Auth.JWT.Issuer = "https://issuer.example.com"
	cfg.Auth.JWT.SigningKey = "not base64!"

	_, err := New(WithConfig(cfg), WithLogger(slog.New(slog.DiscardHandler)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding JWT signing key")
}

func TestNew_InjectedComponentsWin(t *testing.T) {
	reg := session.NewMemoryRegistry(3)
	repo := pathstore.NewMemoryRepository()

	p := newTestPlatform(t,
		WithRegistry(reg),
		WithPathRepository(repo),
	)

	assert.Same(t, repo, p.PathRepository())
	_, err := p.Engine().CreateSession(context.Background(), "s1", 1, nav.DeviceInfo{})
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Count())
}

func TestPlatform_StartRunsCleanupRoutine(t *testing.T) {
	cfg := testConfig()
	cfg.Sessions.IdleTimeout = time.Millisecond
	cfg.Sessions.CleanupInterval = 10 * time.Millisecond

	p := newTestPlatform(t, WithConfig(cfg))
	ctx := context.Background()

	_, err := p.Engine().CreateSession(ctx, "stale", 1, nav.DeviceInfo{})
	require.NoError(t, err)

	require.NoError(t, p.Start(ctx))
	defer func() { require.NoError(t, p.Stop(ctx)) }()

	require.Eventually(t, func() bool {
		return p.Engine().SessionCount() == 0
	}, time.Second, 10*time.Millisecond, "idle session should be swept")
}

// recordingHooks records which sessions had monitoring released.
type recordingHooks struct {
	mu      sync.Mutex
	cleaned []string
}

func (*recordingHooks) Initialize(_ context.Context, _ string) error { return nil }

func (h *recordingHooks) Cleanup(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleaned = append(h.cleaned, id)
	return nil
}

func (h *recordingHooks) cleanedIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.cleaned...)
}

func TestPlatform_SweepReleasesMonitoring(t *testing.T) {
	cfg := testConfig()
	cfg.Sessions.IdleTimeout = time.Millisecond
	cfg.Sessions.CleanupInterval = 10 * time.Millisecond

	hooks := &recordingHooks{}
	p := newTestPlatform(t, WithConfig(cfg), WithMonitoringHooks(hooks))
	ctx := context.Background()

	_, err := p.Engine().CreateSession(ctx, "stale", 1, nav.DeviceInfo{})
	require.NoError(t, err)

	require.NoError(t, p.Start(ctx))
	defer func() { require.NoError(t, p.Stop(ctx)) }()

	require.Eventually(t, func() bool {
		for _, id := range hooks.cleanedIDs() {
			if id == "stale" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond, "sweep should release the session's monitoring")
}

func TestPlatform_StopIsIdempotent(t *testing.T) {
	p := newTestPlatform(t)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	require.NoError(t, p.Stop(ctx))
	require.NoError(t, p.Stop(ctx))
}

func TestPlatform_Close(t *testing.T) {
	p, err := New(
		WithConfig(testConfig()),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
