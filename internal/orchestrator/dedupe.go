package orchestrator

import (
	"sync"
	"time"

	"github.com/supportstack/conversation-core/internal/model"
)

// replyCache is a thread-safe TTL cache of already-produced replies, keyed
// by (conversation key, client message id). Replaying an already-processed
// turn returns the cached reply instead of duplicating state changes.
type replyCache struct {
	mu      sync.RWMutex
	entries map[string]replyEntry
	ttl     time.Duration
	done    chan struct{}
	closed  bool
}

type replyEntry struct {
	reply   *model.TurnReply
	created time.Time
}

// newReplyCache creates a cache with the given TTL. A background goroutine
// periodically removes expired entries.
func newReplyCache(ttl time.Duration) *replyCache {
	c := &replyCache{
		entries: make(map[string]replyEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns the cached reply for a key, if present and unexpired.
func (c *replyCache) Get(key string) (*model.TurnReply, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Since(e.created) >= c.ttl {
		return nil, false
	}
	return e.reply, true
}

// Put stores a reply under a key.
func (c *replyCache) Put(key string, reply *model.TurnReply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = replyEntry{reply: reply, created: time.Now()}
}

func (c *replyCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, e := range c.entries {
				if now.Sub(e.created) >= c.ttl {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (c *replyCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
