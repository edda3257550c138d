// Package matrix caches the pairwise road table of a candidate's node set.
package matrix

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"trip-planner/internal/distance"
	"trip-planner/internal/models"
	"trip-planner/internal/observability"
)

// Cache holds the table built for the last requested node set. The table is
// rebuilt only when node names or locations change.
type Cache struct {
	provider distance.MatrixProvider

	mu          sync.Mutex
	nodes       map[string]models.Coordinates
	fingerprint uint64
	table       models.Matrix
}

// State is the serializable content of a Cache
type State struct {
	Nodes map[string]models.Coordinates `json:"nodes"`
	Table models.Matrix                 `json:"table"`
}

func NewCache(provider distance.MatrixProvider) *Cache {
	return &Cache{provider: provider}
}

// Fingerprint hashes a node set, names and locations alike
func Fingerprint(nodes map[string]models.Coordinates) uint64 {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	h := fnv.New64a()
	for _, name := range names {
		loc := nodes[name]
		fmt.Fprintf(h, "%s|%.7f|%.7f;", name, loc.Lat, loc.Lng)
	}
	return h.Sum64()
}

// Matrix returns the table for exactly the given nodes. The returned table is
// owned by the cache and must not be modified.
func (c *Cache) Matrix(ctx context.Context, nodes map[string]models.Coordinates) (models.Matrix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fp := Fingerprint(nodes)
	if c.table != nil && fp == c.fingerprint {
		observability.MatrixCacheHits.Inc()
		return c.table, nil
	}

	log.WithField("nodes", len(nodes)).Debug("[MATRIX] Node set changed, fetching table")
	table, err := c.provider.Matrix(ctx, nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch matrix: %w", err)
	}
	observability.MatrixFetches.Inc()

	c.nodes = copyNodes(nodes)
	c.fingerprint = fp
	c.table = table
	return c.table, nil
}

// Crop removes rows and columns of the given names in place and shrinks the
// cached node set to match, so the next Matrix call for the remaining nodes
// is served without a fetch.
func (c *Cache) Crop(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.table == nil {
		return
	}
	for _, name := range names {
		delete(c.table, name)
		delete(c.nodes, name)
	}
	for _, row := range c.table {
		for _, name := range names {
			delete(row, name)
		}
	}
	c.fingerprint = Fingerprint(c.nodes)
}

// Nodes returns a copy of the cached node set
func (c *Cache) Nodes() map[string]models.Coordinates {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyNodes(c.nodes)
}

// Table returns the cached table, nil before the first fetch
func (c *Cache) Table() models.Matrix {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table
}

// Reset drops the cached table
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = nil
	c.table = nil
	c.fingerprint = 0
}

// Snapshot returns a deep copy of the cache content
func (c *Cache) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Nodes: copyNodes(c.nodes), Table: c.table.Clone()}
}

// Restore replaces the cache content with a snapshot
func (c *Cache) Restore(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = copyNodes(s.Nodes)
	c.table = s.Table.Clone()
	c.fingerprint = Fingerprint(c.nodes)
}

func copyNodes(nodes map[string]models.Coordinates) map[string]models.Coordinates {
	if nodes == nil {
		return nil
	}
	out := make(map[string]models.Coordinates, len(nodes))
	for k, v := range nodes {
		out[k] = v
	}
	return out
}
