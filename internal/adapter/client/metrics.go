package client

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/PaesslerAG/jsonpath"

	"github.com/thushan/locallm/internal/core/domain"
)

// Fields a metrics path can be configured for. The *_ns and count fields are
// Ollama style raw timings that get converted into the LM Studio shape.
const (
	MetricTokensPerSecond  = "tokens_per_second"
	MetricTimeToFirstToken = "time_to_first_token"
	MetricGenerationTime   = "generation_time"
	MetricStopReason       = "stop_reason"
	MetricEvalCount        = "eval_count"
	MetricEvalDurationNs   = "eval_duration_ns"
	MetricPromptDurationNs = "prompt_duration_ns"
)

var knownMetrics = map[string]struct{}{
	MetricTokensPerSecond:  {},
	MetricTimeToFirstToken: {},
	MetricGenerationTime:   {},
	MetricStopReason:       {},
	MetricEvalCount:        {},
	MetricEvalDurationNs:   {},
	MetricPromptDurationNs: {},
}

type compiledPath struct {
	eval  func(context.Context, interface{}) (interface{}, error)
	field string
	path  string
}

// StatsExtractor pulls performance stats out of response bodies for servers
// that don't send LM Studio's stats block
type StatsExtractor struct {
	paths []compiledPath
}

// NewStatsExtractor compiles the configured JSONPath expressions, nil when none are set
func NewStatsExtractor(paths map[string]string) (*StatsExtractor, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	fields := make([]string, 0, len(paths))
	for field := range paths {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	e := &StatsExtractor{paths: make([]compiledPath, 0, len(paths))}
	for _, field := range fields {
		path := paths[field]
		if path == "" {
			continue
		}
		if _, ok := knownMetrics[field]; !ok {
			return nil, fmt.Errorf("unknown metrics field %q", field)
		}
		compiled, err := jsonpath.New(path)
		if err != nil {
			return nil, fmt.Errorf("invalid JSONPath for %s: %s - %w", field, path, err)
		}
		e.paths = append(e.paths, compiledPath{field: field, path: path, eval: compiled})
	}
	return e, nil
}

// Extract evaluates every path against body, nil when nothing matched
func (e *StatsExtractor) Extract(ctx context.Context, body []byte) *domain.PerformanceStats {
	if e == nil || len(e.paths) == 0 || len(body) == 0 {
		return nil
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}

	raw := make(map[string]interface{}, len(e.paths))
	for _, p := range e.paths {
		if v, err := p.eval(ctx, doc); err == nil {
			raw[p.field] = v
		}
	}

	stats := &domain.PerformanceStats{}
	if v, ok := getFloat(raw, MetricTokensPerSecond); ok {
		stats.TokensPerSecond = v
	}
	if v, ok := getFloat(raw, MetricTimeToFirstToken); ok {
		stats.TimeToFirstToken = v
	}
	if v, ok := getFloat(raw, MetricGenerationTime); ok {
		stats.GenerationTime = v
	}
	if v, ok := raw[MetricStopReason].(string); ok {
		stats.StopReason = v
	}

	if stats.TimeToFirstToken == 0 {
		if ns, ok := getFloat(raw, MetricPromptDurationNs); ok {
			stats.TimeToFirstToken = ns / 1e9
		}
	}
	if ns, ok := getFloat(raw, MetricEvalDurationNs); ok && ns > 0 {
		if stats.GenerationTime == 0 {
			stats.GenerationTime = ns / 1e9
		}
		if count, ok := getFloat(raw, MetricEvalCount); ok && stats.TokensPerSecond == 0 {
			stats.TokensPerSecond = math.Round(count/(ns/1e9)*100) / 100
		}
	}

	if stats.IsZero() {
		return nil
	}
	return stats
}

func getFloat(values map[string]interface{}, key string) (float64, bool) {
	switch v := values[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
