// Package tools implements the exposed retrieval operations.
package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/talklens/talklens/agent"
	"github.com/talklens/talklens/embed"
	"github.com/talklens/talklens/metrics"
	"github.com/talklens/talklens/retrieval"
	"github.com/talklens/talklens/session"
)

const (
	defaultK = 10
	maxK     = 50
)

// Runtime carries the shared dependencies of every tool: the session
// resource cache, the embedding services and observability. The engine is
// built lazily because the session opens its driver on first use.
type Runtime struct {
	session      *session.Session
	embedText    embed.Service
	embedVideo   embed.Service
	stageTimeout time.Duration
	metrics      *metrics.PrometheusExporter
	logger       *slog.Logger

	mu     sync.Mutex
	engine *retrieval.Engine
}

// NewRuntime wires a tool runtime. metrics may be nil; embedVideo may be
// nil when the video space is not served.
func NewRuntime(sess *session.Session, embedText, embedVideo embed.Service, stageTimeout time.Duration, exporter *metrics.PrometheusExporter, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		session:      sess,
		embedText:    embedText,
		embedVideo:   embedVideo,
		stageTimeout: stageTimeout,
		metrics:      exporter,
		logger:       logger,
	}
}

func (r *Runtime) engineFor(ctx context.Context) (*retrieval.Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine != nil {
		return r.engine, nil
	}
	st, err := r.session.Store(ctx)
	if err != nil {
		return nil, err
	}
	r.engine = retrieval.NewEngine(st, r.session, r.embedText, r.embedVideo, r.stageTimeout, r.logger)
	return r.engine, nil
}

// run executes one tool body and renders the envelope. Failures are
// classified, recorded, and applied to the session invalidation policy;
// the envelope is the tool's return value either way.
func (r *Runtime) run(ctx context.Context, toolName string, fn func(ctx context.Context, eng *retrieval.Engine) (any, error)) (string, error) {
	start := time.Now()
	engine, err := r.engineFor(ctx)
	if err == nil {
		var data any
		data, err = fn(ctx, engine)
		if err == nil {
			out, merr := agent.OK(data)
			if merr != nil {
				return "", merr
			}
			if r.metrics != nil {
				r.metrics.RecordToolCall(toolName, time.Since(start), "")
			}
			return out, nil
		}
	}

	kind := retrieval.Classify(err)
	r.logger.ErrorContext(ctx, "tool failed",
		"tool", toolName, "error_kind", string(kind), "elapsed", time.Since(start), "error", err)
	if r.metrics != nil {
		r.metrics.RecordToolCall(toolName, time.Since(start), string(kind))
	}
	// Connection-level failures discard the cached driver; everything
	// else leaves the session intact.
	r.session.InvalidateOn(err)
	return agent.Fail(err), nil
}

// decode parses a tool input. A syntactically broken input is a
// validation failure, reported before anything touches the store.
func decode(inputJSON string, v any) error {
	if inputJSON == "" {
		inputJSON = "{}"
	}
	dec := json.NewDecoder(strings.NewReader(inputJSON))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return retrieval.WrapE(err, retrieval.KindValidation, "malformed tool input")
	}
	return nil
}

// clampK normalizes a requested result count into [1, maxK].
func clampK(k int) int {
	if k <= 0 {
		return defaultK
	}
	if k > maxK {
		return maxK
	}
	return k
}

// parseDate accepts YYYY, YYYY-MM or YYYY-MM-DD. End dates extend to the
// end of the named period so "2024" covers the whole year.
func parseDate(s string, endOfPeriod bool) (time.Time, error) {
	layouts := []string{"2006-01-02", "2006-01", "2006"}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if endOfPeriod {
			switch layout {
			case "2006":
				t = t.AddDate(1, 0, 0).Add(-time.Second)
			case "2006-01":
				t = t.AddDate(0, 1, 0).Add(-time.Second)
			default:
				t = t.AddDate(0, 0, 1).Add(-time.Second)
			}
		}
		return t.UTC(), nil
	}
	return time.Time{}, retrieval.E(retrieval.KindValidation, "invalid date %q, expected YYYY, YYYY-MM or YYYY-MM-DD", s)
}
