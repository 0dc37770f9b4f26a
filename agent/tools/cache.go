package tools

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/talklens/talklens/agent"
	"github.com/talklens/talklens/metrics"
)

// ResultCache caches tool envelopes keyed by SHA-256 of the input.
// Safe because every tool is a read against a frozen snapshot: the same
// input always yields the same envelope until the session is rebuilt.
type ResultCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lruList    *list.List
	maxEntries int
	ttlMap     map[string]time.Duration
	metrics    *metrics.PrometheusExporter
	now        func() time.Time
}

type cacheEntry struct {
	key        string
	output     string
	expiration time.Time
}

// defaultResultTTL applies to tools without an explicit TTL override.
const defaultResultTTL = 5 * time.Minute

// NewResultCache creates a result cache. metrics may be nil.
func NewResultCache(maxEntries int, exporter *metrics.PrometheusExporter) *ResultCache {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &ResultCache{
		entries:    make(map[string]*list.Element),
		lruList:    list.New(),
		maxEntries: maxEntries,
		ttlMap:     make(map[string]time.Duration),
		metrics:    exporter,
		now:        time.Now,
	}
}

// SetTTL overrides the TTL for one tool. Zero disables caching for it.
func (c *ResultCache) SetTTL(toolName string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttlMap[toolName] = ttl
}

func (c *ResultCache) ttlFor(toolName string) time.Duration {
	if ttl, ok := c.ttlMap[toolName]; ok {
		return ttl
	}
	return defaultResultTTL
}

func cacheKey(toolName, input string) string {
	hash := sha256.Sum256([]byte(input))
	return toolName + ":" + hex.EncodeToString(hash[:])
}

// Get returns a live cached envelope.
func (c *ResultCache) Get(toolName, input string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[cacheKey(toolName, input)]
	if !ok {
		c.record(false)
		return "", false
	}
	entry := elem.Value.(*cacheEntry)
	if c.now().After(entry.expiration) {
		c.lruList.Remove(elem)
		delete(c.entries, entry.key)
		c.record(false)
		return "", false
	}
	c.lruList.MoveToFront(elem)
	c.record(true)
	return entry.output, true
}

// Put stores an envelope, evicting the oldest entry past capacity.
func (c *ResultCache) Put(toolName, input, output string) {
	ttl := c.ttlFor(toolName)
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(toolName, input)
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.output = output
		entry.expiration = c.now().Add(ttl)
		c.lruList.MoveToFront(elem)
		return
	}

	elem := c.lruList.PushFront(&cacheEntry{key: key, output: output, expiration: c.now().Add(ttl)})
	c.entries[key] = elem

	for len(c.entries) > c.maxEntries {
		oldest := c.lruList.Back()
		if oldest == nil {
			break
		}
		c.lruList.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Purge drops every entry.
func (c *ResultCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lruList.Init()
}

func (c *ResultCache) record(hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.RecordCacheHit("tool_result")
	} else {
		c.metrics.RecordCacheMiss("tool_result")
	}
}

// Cached wraps a tool with the result cache. Error envelopes are not
// cached so transient failures retry on the next call.
func Cached(tool agent.ToolWithSchema, cache *ResultCache) agent.ToolWithSchema {
	if cache == nil {
		return tool
	}
	return &cachedTool{ToolWithSchema: tool, cache: cache}
}

type cachedTool struct {
	agent.ToolWithSchema
	cache *ResultCache
}

func (t *cachedTool) Run(ctx context.Context, inputJSON string) (string, error) {
	if out, ok := t.cache.Get(t.Name(), inputJSON); ok {
		return out, nil
	}
	out, err := t.ToolWithSchema.Run(ctx, inputJSON)
	if err == nil && isOKEnvelope(out) {
		t.cache.Put(t.Name(), inputJSON, out)
	}
	return out, err
}

func isOKEnvelope(out string) bool {
	var env agent.Envelope
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		return false
	}
	return env.Status == agent.StatusOK
}
