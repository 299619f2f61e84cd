package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/apilog/internal/apilog/api"
	"github.com/edgecomet/apilog/internal/apilog/metrics"
	"github.com/edgecomet/apilog/internal/apilog/registry"
	"github.com/edgecomet/apilog/internal/common/config"
	"github.com/edgecomet/apilog/internal/common/httputil"
)

func testConfig(t *testing.T, mutate func(cfg *config.GatewayConfig)) *config.GatewayConfig {
	t.Helper()
	cfg := &config.GatewayConfig{}
	config.ApplyDefaults(cfg)
	cfg.EventLogging.Path = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func testMetrics() *metrics.Metrics {
	return metrics.NewMetricsWithRegistry("apilog_test", prometheus.NewRegistry(), zap.NewNop())
}

func off() *bool {
	b := false
	return &b
}

func TestBuildEventLog_Defaults(t *testing.T) {
	cfg := testConfig(t, nil)

	result, err := buildEventLog(cfg, testMetrics(), zap.NewNop())
	require.NoError(t, err)
	defer result.Close()

	assert.False(t, result.options.NoDefaults)
	assert.Equal(t, registry.SinkSet{}, result.options.Requests)
	assert.Equal(t, registry.SinkSet{}, result.options.Responses)
	assert.Nil(t, result.options.Errors.Disc)
	assert.Nil(t, result.stream)
	assert.Nil(t, result.redis)
	assert.Equal(t, cfg.EventLogging.Context, result.config.Context)
	assert.NotNil(t, result.config.ConsoleLogger)
}

func TestBuildEventLog_Exclude(t *testing.T) {
	cfg := testConfig(t, func(cfg *config.GatewayConfig) {
		cfg.EventLogging.Exclude = []string{"*Password*"}
	})

	result, err := buildEventLog(cfg, testMetrics(), zap.NewNop())
	require.NoError(t, err)
	defer result.Close()

	assert.Equal(t, []string{"*Password*"}, result.options.Exclude)
}

func TestBuildEventLog_AllDisabled(t *testing.T) {
	cfg := testConfig(t, func(cfg *config.GatewayConfig) {
		cfg.EventLogging.Console = off()
		cfg.EventLogging.Disc = off()
	})

	result, err := buildEventLog(cfg, testMetrics(), zap.NewNop())
	require.NoError(t, err)
	defer result.Close()

	assert.True(t, result.options.NoDefaults)
	assert.Equal(t, registry.SinkSet{}, result.options.Requests)
	assert.Equal(t, registry.SinkSet{}, result.options.Responses)
}

func TestBuildEventLog_ErrorsLog(t *testing.T) {
	cfg := testConfig(t, func(cfg *config.GatewayConfig) {
		cfg.EventLogging.Errors.Enabled = true
	})

	result, err := buildEventLog(cfg, testMetrics(), zap.NewNop())
	require.NoError(t, err)
	defer result.Close()

	require.NotNil(t, result.options.Errors.Disc)
	assert.Nil(t, result.options.Errors.Console)
	assert.NoError(t, result.options.Errors.Disc.Close())
}

func TestBuildEventLog_Stream(t *testing.T) {
	cfg := testConfig(t, func(cfg *config.GatewayConfig) {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = ":9091"
		cfg.EventLogging.Stream.Enabled = true
		cfg.EventLogging.Disc = off()
	})

	result, err := buildEventLog(cfg, testMetrics(), zap.NewNop())
	require.NoError(t, err)
	defer result.Close()

	assert.True(t, result.options.NoDefaults)
	require.NotNil(t, result.stream)
	assert.Same(t, result.stream, result.options.Requests.Stream)
	assert.Equal(t, result.options.Requests, result.options.Responses)
	assert.NotNil(t, result.options.Requests.Console)
	assert.Nil(t, result.options.Requests.Disc)
	assert.Nil(t, result.options.Requests.Network)

	require.NoError(t, closeSinks(result.options.Requests))
}

func TestBuildEventLog_Network(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := testConfig(t, func(cfg *config.GatewayConfig) {
		cfg.Redis.Addr = mr.Addr()
		cfg.EventLogging.Network.Enabled = true
		cfg.EventLogging.Console = off()
	})

	result, err := buildEventLog(cfg, testMetrics(), zap.NewNop())
	require.NoError(t, err)

	require.NotNil(t, result.redis)
	require.NotNil(t, result.options.Requests.Network)
	assert.NotNil(t, result.options.Requests.Disc)
	assert.Nil(t, result.options.Requests.Console)

	require.NoError(t, closeSinks(result.options.Requests))
	assert.NoError(t, result.Close())
}

func TestBuildEventLog_NetworkUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t, func(cfg *config.GatewayConfig) {
		cfg.Redis.Addr = addr
		cfg.EventLogging.Network.Enabled = true
	})

	result, err := buildEventLog(cfg, testMetrics(), zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "failed to create network sink")
}

func TestBuildEventLog_RegistryWritesDisc(t *testing.T) {
	cfg := testConfig(t, func(cfg *config.GatewayConfig) {
		cfg.EventLogging.Console = off()
		cfg.EventLogging.Errors.Enabled = true
	})

	result, err := buildEventLog(cfg, testMetrics(), zap.NewNop())
	require.NoError(t, err)
	defer result.Close()

	apiObj := api.New(zap.NewNop())
	apiObj.SetHandler(api.DeleteUser, func(ctx *fasthttp.RequestCtx) {
		httputil.JSONError(ctx, "user not found", fasthttp.StatusNotFound)
	})

	r, err := registry.New(apiObj, result.config, result.options, testMetrics(), zap.NewNop())
	require.NoError(t, err)

	var req fasthttp.Request
	req.Header.SetMethod(fasthttp.MethodDelete)
	req.SetRequestURI("/users")
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	apiObj.Handler()(ctx)
	require.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	require.NoError(t, r.Close())

	all, err := os.ReadFile(filepath.Join(cfg.EventLogging.Path, "default.log"))
	require.NoError(t, err)
	assert.Contains(t, string(all), "DeleteUserRequest")
	assert.Contains(t, string(all), "DeleteUserResponse")

	failed, err := os.ReadFile(filepath.Join(cfg.EventLogging.Path, "default.errors.log"))
	require.NoError(t, err)
	assert.Contains(t, string(failed), "DeleteUserResponse")
	assert.NotContains(t, string(failed), "DeleteUserRequest")
}
