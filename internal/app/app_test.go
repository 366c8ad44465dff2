package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/locallm/internal/adapter/health"
	"github.com/thushan/locallm/internal/config"
	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/internal/logger"
)

func newTestApp(t *testing.T, baseURL string) *Application {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.BaseURL = baseURL
	cfg.Client.RetryAttempts = 0
	cfg.Health.Enabled = false

	a := New(cfg, logger.NewDiscard())
	t.Cleanup(a.Stop)
	return a
}

func TestNew_WiresComponents(t *testing.T) {
	a := newTestApp(t, "http://localhost:1234")

	assert.NotNil(t, a.Client())
	assert.NotNil(t, a.Degradation())
	assert.NotNil(t, a.Errors())
	assert.NotNil(t, a.Monitor())
	assert.Equal(t, "http://localhost:1234", a.Client().BaseURL())
	assert.False(t, a.StartTime().IsZero())

	for _, f := range domain.AllFeatures {
		assert.Equal(t, domain.StateAvailable, a.Degradation().State(f), f)
	}
}

func TestNewChat_UsesChatDefaults(t *testing.T) {
	a := newTestApp(t, "http://localhost:1234")
	a.Config().Chat.DefaultModel = "qwen"

	first := a.NewChat()
	second := a.NewChat()
	assert.Equal(t, "qwen", first.Session().Model())
	assert.NotEqual(t, first.Session().ID(), second.Session().ID())
}

func TestStart_HealthDisabledLeavesMonitorIdle(t *testing.T) {
	a := newTestApp(t, "http://localhost:1234")

	require.NoError(t, a.Start(context.Background()))
	assert.False(t, a.Monitor().IsRunning())
}

func TestEnableHealth_StartsMonitorAndFeedsStates(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	a := newTestApp(t, url)
	a.EnableHealth(time.Hour)
	assert.Equal(t, time.Hour, a.Monitor().Interval())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	assert.True(t, a.Monitor().IsRunning())

	require.Eventually(t, func() bool {
		return a.Degradation().State(domain.FeatureConnection) == domain.StateUnavailable
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.StateUnavailable, a.Degradation().State(domain.FeatureChat))
}

func TestHealthCheck_HungServerGoesOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Server.BaseURL = server.URL
	cfg.Client.Timeout = 30 * time.Second
	cfg.Health.Enabled = false
	cfg.Health.Timeout = 200 * time.Millisecond

	a := New(cfg, logger.NewDiscard())
	defer a.Stop()

	result := a.Monitor().Check(context.Background())

	assert.Equal(t, health.StatusOffline, result.Status)
	assert.Equal(t, domain.CodeConnectionTimeout, domain.WrapUnknown(result.Err).Code)
	assert.Equal(t, domain.StateUnavailable, a.Degradation().State(domain.FeatureConnection))
	assert.Equal(t, domain.StateUnavailable, a.Degradation().State(domain.FeatureChat))
}

func TestStop_Idempotent(t *testing.T) {
	a := newTestApp(t, "http://localhost:1234")
	require.NoError(t, a.Start(context.Background()))

	a.Stop()
	assert.NotPanics(t, a.Stop)
}
