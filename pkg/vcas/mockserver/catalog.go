// Package mockserver implements a standalone VCAS channel server for
// offline development: the same wire codec as the real instrument
// network, a generated channel catalog, and independently scheduled
// randomized updates pushed to subscribed clients.
package mockserver

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Descriptor is one catalog entry. The structure of the catalog is
// immutable after server start; only Val mutates, under the catalog
// lock, on its channel's own schedule.
type Descriptor struct {
	Type  string // rw, ro or ex
	Units string
	Descr string
	Val   string
	Host  string
	Port  string
}

// Catalog is the mock server's channel set: a flat name-to-descriptor
// mapping plus the sorted name list served for ChannelsList.
type Catalog struct {
	mu      sync.RWMutex
	names   []string
	entries map[string]*Descriptor

	// snapshotVals keeps the real collected value per channel, when a
	// snapshot was loaded, so regeneration can add noise around it.
	snapshotVals map[string]string
}

// NewCatalog builds a catalog from descriptors keyed by channel name.
// Initial values are generated for entries with an empty Val.
func NewCatalog(entries map[string]*Descriptor) *Catalog {
	names := make([]string, 0, len(entries))
	for name, d := range entries {
		names = append(names, name)
		if d.Val == "" {
			d.Val = generateFallbackValue(d.Units)
		}
	}
	sort.Strings(names)
	return &Catalog{
		names:        names,
		entries:      entries,
		snapshotVals: make(map[string]string),
	}
}

// BuildCatalog loads the snapshot file when a path is given and it
// parses, otherwise falls back to the built-in taxonomy.
func BuildCatalog(snapshotPath, host, port string, logger *zap.Logger) *Catalog {
	if snapshotPath != "" {
		snap, err := LoadSnapshot(snapshotPath)
		if err != nil {
			logger.Warn("snapshot load failed, using fallback taxonomy",
				zap.String("path", snapshotPath), zap.Error(err))
		} else {
			logger.Info("catalog built from snapshot",
				zap.String("path", snapshotPath), zap.Int("channels", snap.ChannelCount()))
			return snap.Catalog(host, port)
		}
	}

	cat := fallbackCatalog(host, port)
	logger.Info("catalog built from fallback taxonomy", zap.Int("channels", cat.Len()))
	return cat
}

// Len returns the number of channels.
func (c *Catalog) Len() int {
	return len(c.names)
}

// Names returns the sorted channel name list.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Has reports whether a channel exists.
func (c *Catalog) Has(name string) bool {
	_, ok := c.entries[name]
	return ok
}

// Get returns a copy of a channel's descriptor with its current value.
func (c *Catalog) Get(name string) (Descriptor, bool) {
	d, ok := c.entries[name]
	if !ok {
		return Descriptor{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *d, true
}

// Value returns a channel's current value.
func (c *Catalog) Value(name string) (string, bool) {
	d, ok := c.entries[name]
	if !ok {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return d.Val, true
}

// SetValue overwrites a channel's value with a caller-supplied literal.
func (c *Catalog) SetValue(name, value string) bool {
	d, ok := c.entries[name]
	if !ok {
		return false
	}
	c.mu.Lock()
	d.Val = value
	c.mu.Unlock()
	return true
}

// Regenerate replaces a channel's value with a freshly generated one:
// noise around the snapshot value when one was collected, else the unit
// heuristic. Returns the new value.
func (c *Catalog) Regenerate(name string) (string, bool) {
	d, ok := c.entries[name]
	if !ok {
		return "", false
	}
	val := generateRealisticValue(c.snapshotVals[name], d.Units)
	c.mu.Lock()
	d.Val = val
	c.mu.Unlock()
	return val, true
}
