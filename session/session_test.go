package session

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talklens/talklens/internal/profile"
	"github.com/talklens/talklens/retrieval"
	"github.com/talklens/talklens/vector"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sess := New(&profile.Profile{Driver: "memory"}, nil, logger)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestSessionStoreIsCached(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()

	first, err := sess.Store(ctx)
	require.NoError(t, err)
	second, err := sess.Store(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestSessionIndexIsCachedPerSet(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()

	meta, err := sess.Index(ctx, vector.SetTalkMeta)
	require.NoError(t, err)
	again, err := sess.Index(ctx, vector.SetTalkMeta)
	require.NoError(t, err)
	assert.Same(t, meta, again)

	video, err := sess.Index(ctx, vector.SetVideo)
	require.NoError(t, err)
	assert.NotSame(t, meta, video)
	assert.Equal(t, vector.SetVideo, video.Set())
}

func TestSessionIndexUnknownSet(t *testing.T) {
	sess := newTestSession(t)

	_, err := sess.Index(context.Background(), "ds_bogus_v1")
	require.Error(t, err)
	assert.ErrorIs(t, err, vector.ErrIndexNotFound)
}

func TestSessionUnknownDriverFails(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sess := New(&profile.Profile{Driver: "oracle"}, nil, logger)
	defer func() { _ = sess.Close() }()

	_, err := sess.Store(context.Background())
	require.Error(t, err)
}

func TestSessionPingFailureRedactsConnectionDetails(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	// Port 1 is never serving postgres; the ping fails at dial time.
	sess := New(&profile.Profile{
		Driver: "postgres",
		DSN:    "postgres://talklens@127.0.0.1:1/talklens?sslmode=disable&connect_timeout=1",
	}, nil, logger)
	defer func() { _ = sess.Close() }()

	_, err := sess.Store(context.Background())
	require.Error(t, err)

	var engineErr *retrieval.Error
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, retrieval.KindUpstreamUnavailable, engineErr.Kind)
	assert.Equal(t, "store connection unavailable", engineErr.Msg)
	assert.NotContains(t, engineErr.Msg, "127.0.0.1")
}

func TestInvalidateDiscardsHandles(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()

	before, err := sess.Store(ctx)
	require.NoError(t, err)
	idxBefore, err := sess.Index(ctx, vector.SetTalkMeta)
	require.NoError(t, err)

	sess.Invalidate()

	after, err := sess.Store(ctx)
	require.NoError(t, err)
	idxAfter, err := sess.Index(ctx, vector.SetTalkMeta)
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.NotSame(t, idxBefore, idxAfter)
}

func TestInvalidateOnPolicy(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()

	before, err := sess.Store(ctx)
	require.NoError(t, err)

	// Request-level failures leave the session intact.
	for _, err := range []error{
		retrieval.E(retrieval.KindValidation, "bad k"),
		retrieval.E(retrieval.KindNotFound, "talk missing"),
		errors.New("unclassified"),
		nil,
	} {
		sess.InvalidateOn(err)
	}
	same, err := sess.Store(ctx)
	require.NoError(t, err)
	assert.Same(t, before, same)

	// Connection-level failures rebuild on the next call.
	sess.InvalidateOn(errors.Wrap(retrieval.ErrUpstreamUnavailable, "ping"))
	after, err := sess.Store(ctx)
	require.NoError(t, err)
	assert.NotSame(t, before, after)
}

func TestSessionIDsAreUnique(t *testing.T) {
	a := newTestSession(t)
	b := newTestSession(t)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
