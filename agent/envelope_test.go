package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talklens/talklens/retrieval"
	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/vector"
)

func TestOKEnvelope(t *testing.T) {
	out, err := OK(map[string]int{"totalFound": 3})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, StatusOK, env.Status)
	assert.Empty(t, env.ErrorKind)
	assert.JSONEq(t, `{"totalFound":3}`, string(env.Data))
}

func TestFailKeepsEngineErrorMessage(t *testing.T) {
	err := retrieval.E(retrieval.KindValidation, "k_neighbors must be positive")
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(Fail(err)), &env))

	assert.Equal(t, StatusError, env.Status)
	assert.Equal(t, string(retrieval.KindValidation), env.ErrorKind)
	assert.Equal(t, "k_neighbors must be positive", env.Message)
}

func TestFailRedactsRawUpstreamErrors(t *testing.T) {
	err := errors.Wrap(retrieval.ErrUpstreamUnavailable, "dial tcp 10.0.0.5:5432: connect: connection refused")

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(Fail(err)), &env))
	assert.Equal(t, string(retrieval.KindUpstreamUnavailable), env.ErrorKind)
	assert.Equal(t, "store connection unavailable", env.Message)
	assert.NotContains(t, env.Message, "10.0.0.5", "connection details never reach the caller")
}

func TestFailRedactsClassifiedConnectionFailure(t *testing.T) {
	// The session wraps ping failures into an engine error whose message
	// is already canned; the dial error stays in the cause chain only.
	ping := errors.New("dial tcp db.internal:5432: connect: no route to host")
	err := retrieval.WrapE(ping, retrieval.KindUpstreamUnavailable, "store connection unavailable")

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(Fail(err)), &env))
	assert.Equal(t, string(retrieval.KindUpstreamUnavailable), env.ErrorKind)
	assert.Equal(t, "store connection unavailable", env.Message)
	assert.NotContains(t, env.Message, "db.internal")
	assert.Contains(t, err.Error(), "db.internal", "the chain keeps the detail for logs")
}

func TestFailUnclassifiedErrorIsInternal(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(Fail(errors.New("slice index out of range"))), &env))

	assert.Equal(t, StatusError, env.Status)
	assert.Equal(t, string(retrieval.KindInternal), env.ErrorKind)
	assert.Equal(t, "internal error", env.Message)
}

func TestFailCannedMessagesPerKind(t *testing.T) {
	// Sentinel errors carry no caller-safe text of their own; Fail
	// substitutes the canned line for their kind.
	cases := []struct {
		err  error
		kind retrieval.Kind
		want string
	}{
		{errors.Wrap(vector.ErrIndexNotFound, "set ds_bogus_v1"), retrieval.KindIndexNotFound, "unknown descriptor set"},
		{errors.Wrap(vector.ErrDimensionMismatch, "got 512, want 768"), retrieval.KindDimensionMismatch, "query vector dimension does not match the descriptor set"},
		{errors.Wrap(store.ErrTraversalDepthExceeded, "4 hops"), retrieval.KindTraversalDepthExceeded, "graph traversal exceeded the hop cap"},
		{context.DeadlineExceeded, retrieval.KindUpstreamTimeout, "store or index call exceeded its deadline"},
	}
	for _, tc := range cases {
		var env Envelope
		require.NoError(t, json.Unmarshal([]byte(Fail(tc.err)), &env))
		assert.Equal(t, string(tc.kind), env.ErrorKind)
		assert.Equal(t, tc.want, env.Message, string(tc.kind))
	}
}
