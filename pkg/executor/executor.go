package executor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/graphmind/codegraph/pkg/errs"
	"github.com/graphmind/codegraph/pkg/log"
	"github.com/graphmind/codegraph/pkg/metrics"
	"github.com/graphmind/codegraph/pkg/tools"
	"github.com/graphmind/codegraph/pkg/trace"
	"github.com/graphmind/codegraph/pkg/types"
)

// ToolError wraps a tool's own internal failure (storage, embedding) so
// callers can distinguish it from a dispatch/validation protocol error.
type ToolError struct {
	ToolName string
	Message  string
	Err      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q: %s", e.ToolName, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Config controls result-size limiting and caching.
type Config struct {
	ContextWindowTokens int
	CacheCapacity       int
}

// DefaultConfig returns a zero context window (falls back to
// DefaultMaxResultBytes) and the default cache capacity.
func DefaultConfig() Config {
	return Config{CacheCapacity: DefaultCacheCapacity}
}

// Executor dispatches tool calls against a catalogue, enforcing schema
// defaults, caching, and result-size limiting.
type Executor struct {
	catalogue *tools.Catalogue
	cache     *Cache
	maxBytes  int
}

// New builds an Executor over the given catalogue.
func New(catalogue *tools.Catalogue, cfg Config) (*Executor, error) {
	cache, err := NewCache(cfg.CacheCapacity)
	if err != nil {
		return nil, err
	}
	return &Executor{
		catalogue: catalogue,
		cache:     cache,
		maxBytes:  MaxResultBytes(cfg.ContextWindowTokens),
	}, nil
}

// Invoke dispatches one tool call: lookup, schema defaulting, cache
// lookup, execution, truncation, and cache population, in that order.
func (ex *Executor) Invoke(ctx context.Context, projectID, toolName string, snapshotID types.SnapshotID, params map[string]any) (*tools.Result, error) {
	tool, err := ex.catalogue.Lookup(toolName)
	if err != nil {
		return nil, errs.Schema("executor.Invoke", fmt.Sprintf("unknown tool %q", toolName))
	}

	resolved, err := tool.Schema().ApplyDefaults("executor.Invoke", params)
	if err != nil {
		return nil, err
	}

	timer := metrics.NewTimer()
	logger := log.WithToolName(toolName)

	if cached, ok := ex.cache.Get(projectID, toolName, resolved); ok {
		timer.ObserveDurationVec(metrics.ToolDispatchDuration, toolName)
		metrics.ToolDispatchTotal.WithLabelValues(toolName, "cache_hit").Inc()
		return &tools.Result{Tool: toolName, Parameters: resolved, Result: cached}, nil
	}

	raw, err := trace.WrapResult(ctx, "tools.Execute", func(ctx context.Context) (any, error) {
		return tool.Execute(ctx, ex.catalogue, snapshotID, resolved)
	}, attribute.String("tool", toolName))
	if err != nil {
		metrics.ToolDispatchTotal.WithLabelValues(toolName, "error").Inc()
		logger.Error().Err(err).Msg("tool execution failed")
		return nil, &ToolError{ToolName: toolName, Message: err.Error(), Err: err}
	}

	truncatedResult := truncateResult(toolName, raw, ex.maxBytes)
	ex.cache.Put(projectID, toolName, resolved, truncatedResult)

	timer.ObserveDurationVec(metrics.ToolDispatchDuration, toolName)
	metrics.ToolDispatchTotal.WithLabelValues(toolName, "success").Inc()

	return &tools.Result{Tool: toolName, Parameters: resolved, Result: truncatedResult}, nil
}

// ClearCache implements clear_cache().
func (ex *Executor) ClearCache() { ex.cache.Clear() }

// CacheStats implements housekeeper.CacheStatsLogger.
func (ex *Executor) CacheStats() (hits, misses, evictions int64) { return ex.cache.Stats() }

// Cache exposes the underlying result cache, e.g. for wiring directly into
// a Housekeeper (which only needs the Stats() method).
func (ex *Executor) Cache() *Cache { return ex.cache }

// Catalogue exposes the underlying tool catalogue, e.g. so
// pkg/orchestrator can resolve node ids surfaced in tool results back to
// their source file_path.
func (ex *Executor) Catalogue() *tools.Catalogue { return ex.catalogue }

// Names returns every dispatchable tool name.
func (ex *Executor) Names() []string { return ex.catalogue.Names() }
