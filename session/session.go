// Package session owns the per-session resource cache: one lazily opened
// store connection and one lazily built index handle per descriptor set.
// A session is exclusively owned by its caller and never shared, which
// removes connection contention by construction.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/talklens/talklens/internal/profile"
	"github.com/talklens/talklens/metrics"
	"github.com/talklens/talklens/retrieval"
	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/store/db"
	"github.com/talklens/talklens/vector"
)

// Session caches the driver connection and index handles for one caller.
// All entities behind it are a frozen snapshot; handles stay valid for
// the session's lifetime unless Invalidate discards them.
type Session struct {
	id      string
	profile *profile.Profile
	metrics *metrics.PrometheusExporter
	logger  *slog.Logger

	mu      sync.Mutex
	store   *store.Store
	indexes map[string]vector.Index
}

// New creates an empty session. Nothing is opened until first use.
// metrics may be nil.
func New(profile *profile.Profile, exporter *metrics.PrometheusExporter, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if exporter != nil {
		exporter.SessionOpened()
	}
	return &Session{
		id:      shortuuid.New(),
		profile: profile,
		metrics: exporter,
		logger:  logger,
		indexes: map[string]vector.Index{},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Store returns the cached store, opening the driver on first call. A
// connection-level failure maps to the upstream-unavailable kind so the
// caller knows invalidation applies.
func (s *Session) Store(ctx context.Context) (*store.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeLocked(ctx)
}

func (s *Session) storeLocked(ctx context.Context) (*store.Store, error) {
	if s.store != nil {
		return s.store, nil
	}
	driver, err := db.NewDBDriver(s.profile)
	if err != nil {
		return nil, errors.Wrap(err, "create driver")
	}
	if err := driver.Ping(ctx); err != nil {
		_ = driver.Close()
		// The raw error carries connection details; it stays in logs and
		// the error chain, never in the classified message.
		s.logger.ErrorContext(ctx, "driver ping failed",
			"session_id", s.id, "driver", s.profile.Driver, "error", err)
		return nil, retrieval.WrapE(err, retrieval.KindUpstreamUnavailable, "store connection unavailable")
	}
	s.store = store.New(driver, s.profile)
	s.logger.InfoContext(ctx, "session driver opened", "session_id", s.id, "driver", s.profile.Driver)
	return s.store, nil
}

// Index returns the index handle for one descriptor set, building it on
// first use. Drivers that can push probes down (pgvector) are bridged
// directly; everything else gets an in-process snapshot index.
func (s *Session) Index(ctx context.Context, set string) (vector.Index, error) {
	if _, ok := vector.Spaces[set]; !ok {
		return nil, errors.Wrapf(vector.ErrIndexNotFound, "set %q", set)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[set]; ok {
		return idx, nil
	}

	st, err := s.storeLocked(ctx)
	if err != nil {
		return nil, err
	}

	var idx vector.Index
	if searcher, ok := st.GetDriver().(vector.Searcher); ok {
		idx, err = vector.NewPushdown(set, searcher)
	} else {
		idx, err = vector.NewMemory(ctx, st.GetDriver(), set)
	}
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		idx = &observedIndex{inner: idx, metrics: s.metrics}
	}
	s.indexes[set] = idx
	s.logger.InfoContext(ctx, "session index ready", "session_id", s.id, "set", set)
	return idx, nil
}

// Invalidate discards the cached connection and index handles. The next
// call reopens them. Request failures do not invalidate the session; the
// caller invokes this only for the upstream-unavailable kind.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("close driver during invalidate", "session_id", s.id, "error", err)
		}
		s.store = nil
	}
	s.indexes = map[string]vector.Index{}
}

// InvalidateOn applies the invalidation policy for one request error.
func (s *Session) InvalidateOn(err error) {
	if retrieval.Classify(err) == retrieval.KindUpstreamUnavailable {
		s.logger.Warn("invalidating session resources", "session_id", s.id, "error", err)
		s.Invalidate()
	}
}

// Close releases all session resources.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SessionClosed()
		s.metrics = nil
	}
	s.indexes = map[string]vector.Index{}
	if s.store != nil {
		err := s.store.Close()
		s.store = nil
		return err
	}
	return nil
}

// observedIndex wraps an index with probe latency metrics.
type observedIndex struct {
	inner   vector.Index
	metrics *metrics.PrometheusExporter
}

func (o *observedIndex) Set() string { return o.inner.Set() }

func (o *observedIndex) KNN(ctx context.Context, query []float32, k int, candidates map[string]struct{}) ([]vector.Match, error) {
	start := time.Now()
	matches, err := o.inner.KNN(ctx, query, k, candidates)
	o.metrics.RecordProbe(o.inner.Set(), time.Since(start))
	return matches, err
}
