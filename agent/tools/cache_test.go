package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talklens/talklens/agent"
)

func TestResultCachePutGet(t *testing.T) {
	c := NewResultCache(10, nil)

	_, ok := c.Get("search", `{"q":"a"}`)
	assert.False(t, ok)

	c.Put("search", `{"q":"a"}`, `{"status":"ok"}`)
	out, ok := c.Get("search", `{"q":"a"}`)
	require.True(t, ok)
	assert.Equal(t, `{"status":"ok"}`, out)

	// Same input under a different tool name is a distinct key.
	_, ok = c.Get("other", `{"q":"a"}`)
	assert.False(t, ok)
}

func TestResultCacheTTLExpiry(t *testing.T) {
	c := NewResultCache(10, nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	c.Put("search", "in", "out")
	_, ok := c.Get("search", "in")
	assert.True(t, ok)

	now = base.Add(defaultResultTTL + time.Second)
	_, ok = c.Get("search", "in")
	assert.False(t, ok, "expired entries are dropped on read")
}

func TestResultCacheZeroTTLDisablesTool(t *testing.T) {
	c := NewResultCache(10, nil)
	c.SetTTL("volatile", 0)

	c.Put("volatile", "in", "out")
	_, ok := c.Get("volatile", "in")
	assert.False(t, ok)

	// Other tools keep the default TTL.
	c.Put("search", "in", "out")
	_, ok = c.Get("search", "in")
	assert.True(t, ok)
}

func TestResultCacheLRUEviction(t *testing.T) {
	c := NewResultCache(2, nil)

	c.Put("t", "a", "1")
	c.Put("t", "b", "2")
	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get("t", "a")
	require.True(t, ok)

	c.Put("t", "c", "3")

	_, ok = c.Get("t", "a")
	assert.True(t, ok)
	_, ok = c.Get("t", "b")
	assert.False(t, ok)
	_, ok = c.Get("t", "c")
	assert.True(t, ok)
}

func TestResultCachePurge(t *testing.T) {
	c := NewResultCache(10, nil)
	c.Put("t", "a", "1")
	c.Purge()
	_, ok := c.Get("t", "a")
	assert.False(t, ok)
}

// scriptedTool replays canned envelopes and counts invocations.
type scriptedTool struct {
	name    string
	outputs []string
	calls   int
}

func (s *scriptedTool) Name() string                       { return s.name }
func (s *scriptedTool) Description() string                { return "scripted" }
func (s *scriptedTool) Parameters() map[string]interface{} { return map[string]interface{}{"type": "object"} }

func (s *scriptedTool) Run(context.Context, string) (string, error) {
	i := s.calls
	if i >= len(s.outputs) {
		i = len(s.outputs) - 1
	}
	s.calls++
	return s.outputs[i], nil
}

func TestCachedServesRepeatCallsFromCache(t *testing.T) {
	inner := &scriptedTool{name: "t", outputs: []string{`{"status":"ok","data":{}}`}}
	tool := Cached(inner, NewResultCache(10, nil))

	for i := 0; i < 3; i++ {
		out, err := tool.Run(context.Background(), `{"q":"a"}`)
		require.NoError(t, err)
		assert.Equal(t, `{"status":"ok","data":{}}`, out)
	}
	assert.Equal(t, 1, inner.calls)
}

func TestCachedSkipsErrorEnvelopes(t *testing.T) {
	inner := &scriptedTool{name: "t", outputs: []string{
		`{"status":"error","errorKind":"UPSTREAM_UNAVAILABLE"}`,
		`{"status":"ok","data":{}}`,
	}}
	tool := Cached(inner, NewResultCache(10, nil))
	ctx := context.Background()

	out, err := tool.Run(ctx, "in")
	require.NoError(t, err)
	assert.Contains(t, out, agent.StatusError)

	// The failure was not cached, so the retry reaches the tool and its
	// ok envelope is what sticks.
	out, err = tool.Run(ctx, "in")
	require.NoError(t, err)
	assert.Contains(t, out, `"status":"ok"`)
	assert.Equal(t, 2, inner.calls)

	_, err = tool.Run(ctx, "in")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedNilCacheIsPassthrough(t *testing.T) {
	inner := &scriptedTool{name: "t", outputs: []string{`{"status":"ok"}`}}
	tool := Cached(inner, nil)
	for i := 0; i < 2; i++ {
		_, err := tool.Run(context.Background(), "in")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inner.calls)
}
