package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/reexport/pkg/observability"
)

func TestInit_NoEndpointGivesNoopProviders(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogWriter = &logs

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	ctx, span := providers.Tracer.Start(context.Background(), "generate.Run")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	counter, err := providers.Meter.Int64Counter("reexport.runs.total")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	providers.Logger.InfoContext(ctx, "file written", "output", "prelude_expose_gen.go")
	assert.Contains(t, logs.String(), "output=prelude_expose_gen.go")
	assert.NotContains(t, logs.String(), "trace_id")

	require.NoError(t, providers.Shutdown(context.Background()))
	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestDefaultConfig_TagsLogsWithServiceAndMode(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()

	assert.Equal(t, observability.ModeCLI, cfg.Mode)
	assert.Nil(t, cfg.LogWriter)
	assert.Zero(t, cfg.SampleRatio)
	assert.False(t, cfg.DebugTrace)
	assert.False(t, cfg.LogJSON)
	assert.Empty(t, cfg.OTLPEndpoint)
	assert.Equal(t, 5, cfg.ShutdownTimeoutSec)

	var logs bytes.Buffer

	cfg.LogWriter = &logs

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	providers.Logger.Info("helper expanded", "helper", "expose")
	providers.Logger.Debug("below the default level")

	assert.Contains(t, logs.String(), "service=reexport")
	assert.Contains(t, logs.String(), "mode=cli")
	assert.NotContains(t, logs.String(), "version=")
	assert.NotContains(t, logs.String(), "below the default level")

	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_MCPModeWritesJSON(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.Mode = observability.ModeMCP
	cfg.LogJSON = true
	cfg.LogWriter = &logs

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	providers.Logger.Info("tool called", "mcp.tool", "reexport_expand")

	var record map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &record))
	assert.Equal(t, "mcp", record["mode"])
	assert.Equal(t, "reexport_expand", record["mcp.tool"])

	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestBuildResource(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = "v0.4.0"
	cfg.Environment = "ci"
	cfg.Mode = observability.ModeMCP

	res, err := observability.BuildResource(cfg)
	require.NoError(t, err)

	got := make(map[string]string)
	for _, attr := range res.Attributes() {
		got[string(attr.Key)] = attr.Value.AsString()
	}

	assert.Equal(t, "reexport", got["service.name"])
	assert.Equal(t, "v0.4.0", got["service.version"])
	assert.Equal(t, "ci", got["deployment.environment"])
	assert.Equal(t, "mcp", got["app.mode"])

	res, err = observability.BuildResource(observability.Config{ServiceName: "reexport"})
	require.NoError(t, err)

	for _, attr := range res.Attributes() {
		assert.NotEqual(t, "app.mode", string(attr.Key))
		assert.NotEqual(t, "service.version", string(attr.Key))
	}
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	tests := map[string]map[string]string{
		"":                           nil,
		"invalid":                    nil,
		"authorization=Bearer x":     {"authorization": "Bearer x"},
		"a=1,b=2":                    {"a": "1", "b": "2"},
		" a = 1 , broken , b = 2 ":   {"a": "1", "b": "2"},
		"x-team=tools,x-team=infra":  {"x-team": "infra"},
		"x-token=abc=def,x-tenant=7": {"x-token": "abc=def", "x-tenant": "7"},
	}

	for raw, want := range tests {
		assert.Equal(t, want, observability.ParseOTLPHeaders(raw), "%q", raw)
	}
}

// Sampler tests set process environment, so they cannot run in parallel.
func TestSelectSampler(t *testing.T) {
	tests := []struct {
		name    string
		sampler string
		arg     string
		debug   bool
		ratio   float64
		sampled bool
	}{
		{name: "default", sampled: true},
		{name: "config ratio", ratio: 1, sampled: true},
		{name: "always_on", sampler: "always_on", sampled: true},
		{name: "always_off", sampler: "always_off"},
		{name: "traceidratio full", sampler: "traceidratio", arg: "1.0", sampled: true},
		{name: "traceidratio zero", sampler: "traceidratio", arg: "0"},
		{name: "traceidratio bad arg", sampler: "traceidratio", arg: "most", sampled: true},
		{name: "parentbased_always_off", sampler: "parentbased_always_off"},
		{name: "parentbased_traceidratio", sampler: "parentbased_traceidratio", arg: "1", sampled: true},
		{name: "unknown name", sampler: "sometimes", sampled: true},
		{name: "debug wins over env", sampler: "always_off", debug: true, sampled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_TRACES_SAMPLER", tt.sampler)
			t.Setenv("OTEL_TRACES_SAMPLER_ARG", tt.arg)

			cfg := observability.DefaultConfig()
			cfg.DebugTrace = tt.debug
			cfg.SampleRatio = tt.ratio

			assert.Equal(t, tt.sampled, observability.SampledRootSpan(cfg))
		})
	}
}
