package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatsExtractor(t *testing.T) {
	e, err := NewStatsExtractor(nil)
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Nil(t, e.Extract(context.Background(), []byte(`{}`)))

	_, err = NewStatsExtractor(map[string]string{"colour": "$.x"})
	assert.Error(t, err)
}

func TestStatsExtractor_OllamaTimings(t *testing.T) {
	e, err := NewStatsExtractor(map[string]string{
		MetricEvalCount:        "$.eval_count",
		MetricEvalDurationNs:   "$.eval_duration",
		MetricPromptDurationNs: "$.prompt_eval_duration",
		MetricStopReason:       "$.done_reason",
	})
	require.NoError(t, err)

	body := []byte(`{"eval_count":100,"eval_duration":2000000000,"prompt_eval_duration":250000000,"done_reason":"stop"}`)
	stats := e.Extract(context.Background(), body)
	require.NotNil(t, stats)

	assert.InDelta(t, 50.0, stats.TokensPerSecond, 0.001)
	assert.InDelta(t, 2.0, stats.GenerationTime, 0.001)
	assert.InDelta(t, 0.25, stats.TimeToFirstToken, 0.001)
	assert.Equal(t, "stop", stats.StopReason)
}

func TestStatsExtractor_NoMatch(t *testing.T) {
	e, err := NewStatsExtractor(map[string]string{MetricTokensPerSecond: "$.timings.tps"})
	require.NoError(t, err)

	assert.Nil(t, e.Extract(context.Background(), []byte(`{"other":1}`)))
	assert.Nil(t, e.Extract(context.Background(), []byte(`not json`)))
}
