// Package roster holds the live chatter roster shared between the sync worker
// and the overlay. Every access goes through one mutex.
package roster

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultEvictionWindow is how long a chatter stays cached after it was last
	// seen in a roster page.
	DefaultEvictionWindow = 30 * time.Minute

	// DefaultEvictionBatch caps how many stale entries are removed per lock hold.
	DefaultEvictionBatch = 32
)

// Entry is the cached metadata for one chatter. A nil DisplayName means the
// name has not been resolved yet.
type Entry struct {
	Login       string
	DisplayName *string
	LastSeen    time.Time
}

// Resolved reports whether the display name has been looked up.
func (e Entry) Resolved() bool {
	return e.DisplayName != nil
}

// Name returns the display name when resolved, the login otherwise.
func (e Entry) Name() string {
	if e.DisplayName != nil {
		return *e.DisplayName
	}
	return e.Login
}

func (e *Entry) clone() Entry {
	out := Entry{Login: e.Login, LastSeen: e.LastSeen}
	if e.DisplayName != nil {
		name := *e.DisplayName
		out.DisplayName = &name
	}
	return out
}

// Cache maps logins (case-insensitively) to entries.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry

	// sorted key order, rebuilt lazily after the key set changes
	keys      []string
	keysDirty bool

	broadcasterID string
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

func key(login string) string {
	return strings.ToLower(login)
}

// Touch inserts every login not yet cached and stamps LastSeen = now on all of
// them. Cached display names are kept. It returns how many entries were new.
func (c *Cache) Touch(logins []string, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, login := range logins {
		if login == "" {
			continue
		}
		k := key(login)
		if e, ok := c.entries[k]; ok {
			e.LastSeen = now
			continue
		}
		c.entries[k] = &Entry{Login: login, LastSeen: now}
		added++
	}
	if added > 0 {
		c.keysDirty = true
	}
	return added
}

// Evict removes every entry whose LastSeen is more than window before now.
// Removal happens in batches of at most batch keys, each under its own lock
// hold; after a batch the scan restarts from the beginning and the loop ends
// once a scan finds fewer than batch stale entries.
func (c *Cache) Evict(now time.Time, window time.Duration, batch int) int {
	if batch <= 0 {
		batch = DefaultEvictionBatch
	}

	stale := make([]string, 0, batch)
	removed := 0
	for {
		stale = stale[:0]

		c.mu.Lock()
		for k, e := range c.entries {
			if now.Sub(e.LastSeen) > window {
				stale = append(stale, k)
				if len(stale) == batch {
					break
				}
			}
		}
		for _, k := range stale {
			delete(c.entries, k)
		}
		if len(stale) > 0 {
			c.keysDirty = true
		}
		c.mu.Unlock()

		removed += len(stale)
		if len(stale) < batch {
			return removed
		}
	}
}

// Unresolved returns up to limit logins whose display name is still nil,
// skipping any login present in skip.
func (c *Cache) Unresolved(limit int, skip map[string]struct{}) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, min(limit, len(c.entries)))
	for k, e := range c.entries {
		if len(out) >= limit {
			break
		}
		if e.DisplayName != nil {
			continue
		}
		if _, ok := skip[k]; ok {
			continue
		}
		out = append(out, e.Login)
	}
	return out
}

// SetDisplayName stores the resolved name for login. It leaves LastSeen
// untouched and returns false when the login is no longer cached.
func (c *Cache) SetDisplayName(login, displayName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key(login)]
	if !ok {
		return false
	}
	e.DisplayName = &displayName
	return true
}

// Len returns the number of cached chatters.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Get returns a copy of the entry for login.
func (c *Cache) Get(login string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key(login)]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Keys returns the cached keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sortedKeysLocked()...)
}

// NameAt maps an arbitrary, stable per-entity index onto the current key set:
// the entry at position index mod Len of the sorted keys. Negative indexes
// wrap the same way. ok is false when the cache is empty.
func (c *Cache) NameAt(index int) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.sortedKeysLocked()
	n := len(keys)
	if n == 0 {
		return Entry{}, false
	}
	i := ((index % n) + n) % n
	return c.entries[keys[i]].clone(), true
}

// Snapshot copies every entry, ordered by key.
func (c *Cache) Snapshot() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.sortedKeysLocked()
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.entries[k].clone())
	}
	return out
}

// BroadcasterID returns the last known broadcaster id, "" if none.
func (c *Cache) BroadcasterID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broadcasterID
}

// SetBroadcasterID records the broadcaster id resolved by the sync worker.
func (c *Cache) SetBroadcasterID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcasterID = id
}

func (c *Cache) sortedKeysLocked() []string {
	if c.keysDirty || len(c.keys) != len(c.entries) {
		c.keys = c.keys[:0]
		for k := range c.entries {
			c.keys = append(c.keys, k)
		}
		sort.Strings(c.keys)
		c.keysDirty = false
	}
	return c.keys
}
