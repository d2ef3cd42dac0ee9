package signature

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"

	"github.com/hurttlocker/slotfill/internal/model"
)

// Cache memoizes signatures per unchanged descriptor. Safe for concurrent use.
// Collaborators that re-scan a document on every mutation hit it repeatedly
// with the same descriptors.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]model.SlotSignature
	max     int
}

// NewCache creates a cache holding at most max signatures. max <= 0 means
// unbounded. When full, the cache is cleared rather than evicting one entry.
func NewCache(max int) *Cache {
	return &Cache{entries: make(map[string]model.SlotSignature), max: max}
}

// Build returns the cached signature for slot, building it on a miss.
func (c *Cache) Build(slot model.SlotDescriptor) model.SlotSignature {
	key := Fingerprint(slot)

	c.mu.RLock()
	sig, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return sig
	}

	sig = Build(slot)
	c.mu.Lock()
	if c.max > 0 && len(c.entries) >= c.max {
		c.entries = make(map[string]model.SlotSignature, c.max)
	}
	c.entries[key] = sig
	c.mu.Unlock()
	return sig
}

// Len reports the number of cached signatures.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Fingerprint computes SHA-256 over every descriptor field. Attributes are
// hashed in key order so map iteration order never changes the result.
func Fingerprint(slot model.SlotDescriptor) string {
	h := sha256.New()
	for _, part := range []string{slot.ID, slot.Name, slot.DeclaredType, slot.Label, slot.Context, slot.PlaceholderText} {
		h.Write([]byte(part))
		h.Write([]byte{0}) // separator
	}
	keys := make([]string, 0, len(slot.RawAttributes))
	for k := range slot.RawAttributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(slot.RawAttributes[k]))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
