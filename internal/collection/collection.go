// Package collection keeps the ordered list of compressed images offered to
// the user for preview, removal and bulk export.
package collection

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"

	"photo-shrinker-go/internal/compressor"
)

// Entry is one compressed image held for export.
type Entry struct {
	ID        string
	Name      string
	Data      []byte
	Size      int64
	Quality   int
	Scale     float64
	Width     int
	Height    int
	AddedAt   time.Time
	OverLimit bool
}

// Collection is an insertion-ordered, concurrency-safe set of entries.
type Collection struct {
	mu      sync.RWMutex
	entries []Entry
}

// New returns an empty collection.
func New() *Collection {
	return &Collection{}
}

// Add appends img and returns the stored entry.
func (c *Collection) Add(img *compressor.EncodedImage) Entry {
	e := Entry{
		ID:        uuid.NewString(),
		Name:      img.Name,
		Data:      img.Data,
		Size:      img.Size,
		Quality:   img.Quality,
		Scale:     img.Scale,
		Width:     img.Width,
		Height:    img.Height,
		AddedAt:   time.Now(),
		OverLimit: !img.WithinBudget,
	}

	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
	return e
}

// Remove deletes every entry whose payload equals data and reports how many
// were removed. The order and IDs of the remaining entries are unchanged.
func (c *Collection) Remove(data []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.entries[:0]
	removed := 0
	for _, e := range c.entries {
		if bytes.Equal(e.Data, data) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(c.entries); i++ {
		c.entries[i] = Entry{}
	}
	c.entries = kept
	return removed
}

// RemoveID looks up the entry by ID and removes it by payload.
func (c *Collection) RemoveID(id string) (int, bool) {
	e, ok := c.Get(id)
	if !ok {
		return 0, false
	}
	return c.Remove(e.Data), true
}

// Get returns the entry with the given ID.
func (c *Collection) Get(id string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// List returns a copy of all entries in insertion order.
func (c *Collection) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of entries.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TotalSize returns the combined payload size.
func (c *Collection) TotalSize() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, e := range c.entries {
		total += e.Size
	}
	return total
}

// Clear removes all entries.
func (c *Collection) Clear() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}
