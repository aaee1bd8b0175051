package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Record describes one search_tools or execute_tool invocation.
type Record struct {
	EndpointUUID string
	ToolName     string
	Method       string // JSON-RPC method; the gateway always sets "tools/call"
	Duration     time.Duration
	IsError      bool
	ErrorMessage string          `json:"error_message,omitempty"`
	Params       json.RawMessage `json:"params,omitempty"`
}

// Logger writes one structured slog record per call, with parameter
// redaction. It is a logging sink, not a queryable trail: dashboards
// and time-series stats are a UI concern and out of scope here.
type Logger struct {
	log   *slog.Logger
	hints []string
}

// NewLogger creates an audit Logger. hints are additional redaction key
// substrings beyond the built-in globalRedactPatterns (e.g. namespace-
// specific secret field names).
func NewLogger(log *slog.Logger, hints ...string) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{log: log.With("component", "audit"), hints: hints}
}

// Record redacts sensitive parameters and emits the record as a
// structured log line at Info (success) or Warn (error) level.
func (l *Logger) Record(ctx context.Context, rec Record) {
	params := Redact(rec.Params, l.hints)

	attrs := []any{
		"endpoint_uuid", rec.EndpointUUID,
		"tool_name", rec.ToolName,
		"method", rec.Method,
		"duration_ms", rec.Duration.Milliseconds(),
		"is_error", rec.IsError,
	}
	if len(params) > 0 {
		attrs = append(attrs, "params", json.RawMessage(params))
	}

	if rec.IsError {
		attrs = append(attrs, "error", rec.ErrorMessage)
		l.log.WarnContext(ctx, "tool call", attrs...)
		return
	}
	l.log.InfoContext(ctx, "tool call", attrs...)
}
