package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

// AudioCache keeps synthesized WAV audio in memory and, optionally, on
// disk. Keys are sha256(profile + ":" + text), so changing voice or
// prosody misses instead of replaying stale audio.
//
// The disk directory is always read when set. New entries are written to
// it only when persist is true. The memory tier holds at most max
// entries and evicts the oldest first.
type AudioCache struct {
	profile string
	dir     string
	persist bool
	max     int
	log     *logger.Logger

	mu      sync.RWMutex
	entries map[string][]byte
	order   []string // insertion order for eviction
	hits    int64
	misses  int64
}

// NewAudioCache creates a cache for audio produced with the given
// synthesizer profile.
func NewAudioCache(profile, dir string, persist bool, log *logger.Logger) *AudioCache {
	c := &AudioCache{
		profile: profile,
		dir:     dir,
		persist: persist,
		max:     256,
		log:     log,
		entries: make(map[string][]byte),
	}
	if dir != "" && persist {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("cache: creating %s: %v", dir, err)
		}
	}
	return c
}

// Get returns cached audio for text from memory, then disk.
func (c *AudioCache) Get(text string) ([]byte, bool) {
	key := c.key(text)

	c.mu.Lock()
	data, ok := c.entries[key]
	if ok {
		c.hits++
	}
	c.mu.Unlock()
	if ok {
		return data, true
	}

	if c.dir != "" {
		if data, err := os.ReadFile(c.path(key)); err == nil {
			c.mu.Lock()
			c.hits++
			c.storeLocked(key, data)
			c.mu.Unlock()
			c.log.Debug("cache hit (disk): %s", truncate(text, 40))
			return data, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores audio for text.
func (c *AudioCache) Put(text string, audio []byte) {
	key := c.key(text)

	c.mu.Lock()
	c.storeLocked(key, audio)
	c.mu.Unlock()

	if c.dir != "" && c.persist {
		if err := os.WriteFile(c.path(key), audio, 0o644); err != nil {
			c.log.Error("cache: disk write %s: %v", key[:12], err)
		}
	}
}

// Has reports whether text is cached in either tier without counting a
// hit or miss.
func (c *AudioCache) Has(text string) bool {
	key := c.key(text)

	c.mu.RLock()
	_, ok := c.entries[key]
	c.mu.RUnlock()
	if ok || c.dir == "" {
		return ok
	}
	_, err := os.Stat(c.path(key))
	return err == nil
}

// Len returns the number of in-memory entries.
func (c *AudioCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *AudioCache) storeLocked(key string, audio []byte) {
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = audio
	for len(c.order) > c.max {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
}

func (c *AudioCache) key(text string) string {
	h := sha256.Sum256([]byte(c.profile + ":" + text))
	return hex.EncodeToString(h[:])
}

func (c *AudioCache) path(key string) string {
	return filepath.Join(c.dir, key+".wav")
}
