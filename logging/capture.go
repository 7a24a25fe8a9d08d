package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RunIDKey is the attribute that ties a log record to a pipeline run.
const RunIDKey = "run_id"

// LogEntry represents a single log record with structured data.
type LogEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"` // "debug", "info", "warn", "error"
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RunCapture collects log records per pipeline run. A record belongs to a run
// when its logger carries a run_id attribute, added with logger.With.
//
// Entries for at most maxRuns runs are retained; the oldest run is evicted first.
type RunCapture struct {
	min     slog.Level
	maxRuns int

	mu    sync.Mutex
	order []string
	logs  map[string][]LogEntry
}

// NewRunCapture creates a capture that keeps records at or above level.
func NewRunCapture(level slog.Level, maxRuns int) *RunCapture {
	return &RunCapture{
		min:     level,
		maxRuns: max(maxRuns, 1),
		logs:    make(map[string][]LogEntry),
	}
}

// Wrap returns a handler that captures run records and passes every record
// through to underlying.
func (c *RunCapture) Wrap(underlying slog.Handler) slog.Handler {
	return &captureHandler{underlying: underlying, capture: c}
}

// Take returns and forgets the entries recorded for runID.
func (c *RunCapture) Take(runID string) []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.logs[runID]
	delete(c.logs, runID)
	for i, id := range c.order {
		if id == runID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return entries
}

func (c *RunCapture) add(runID string, entry LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.logs[runID]; !ok {
		c.order = append(c.order, runID)
		if len(c.order) > c.maxRuns {
			delete(c.logs, c.order[0])
			c.order = c.order[1:]
		}
	}
	c.logs[runID] = append(c.logs[runID], entry)
}

// captureHandler wraps an slog.Handler to capture run records while passing them through.
type captureHandler struct {
	underlying slog.Handler
	capture    *RunCapture
	runID      string
	attrs      []slog.Attr
}

func (h *captureHandler) capturing(level slog.Level) bool {
	return h.runID != "" && level >= h.capture.min
}

// Enabled reports true for captured levels even when the underlying handler
// filters them; Handle still applies the underlying filter for output.
func (h *captureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.capturing(level) || h.underlying.Enabled(ctx, level)
}

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.capturing(r.Level) {
		entry := LogEntry{
			Time:       r.Time,
			Level:      r.Level.String(),
			Message:    r.Message,
			Attributes: make(map[string]any, r.NumAttrs()+len(h.attrs)),
		}
		for _, attr := range h.attrs {
			if attr.Key != RunIDKey {
				entry.Attributes[attr.Key] = resolveValue(attr.Value)
			}
		}
		r.Attrs(func(a slog.Attr) bool {
			entry.Attributes[a.Key] = resolveValue(a.Value)
			return true
		})
		h.capture.add(h.runID, entry)
	}

	if !h.underlying.Enabled(ctx, r.Level) {
		return nil
	}
	return h.underlying.Handle(ctx, r)
}

// WithAttrs must return a captureHandler so capturing survives .With() chains.
func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &captureHandler{
		underlying: h.underlying.WithAttrs(attrs),
		capture:    h.capture,
		runID:      h.runID,
		attrs:      append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
	for _, a := range attrs {
		if a.Key == RunIDKey {
			next.runID = a.Value.Resolve().String()
		}
	}
	return next
}

// WithGroup must return a captureHandler so capturing survives .With() chains.
// Attributes added inside a group are captured without the group prefix.
func (h *captureHandler) WithGroup(name string) slog.Handler {
	return &captureHandler{
		underlying: h.underlying.WithGroup(name),
		capture:    h.capture,
		runID:      h.runID,
		attrs:      h.attrs,
	}
}

// resolveValue converts a slog.Value to a JSON-serializable value.
func resolveValue(v slog.Value) any {
	v = v.Resolve()

	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time()
	case slog.KindGroup:
		attrs := v.Group()
		group := make(map[string]any, len(attrs))
		for _, attr := range attrs {
			group[attr.Key] = resolveValue(attr.Value)
		}
		return group
	default:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	}
}
