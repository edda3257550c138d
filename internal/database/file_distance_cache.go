package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"trip-planner/internal/models"
)

// FileDistanceCacheData represents the structure of the cache file
type FileDistanceCacheData struct {
	Entries []models.DistanceCacheEntry `json:"entries"`
}

// FileDistanceCache keeps distance pairs in a JSON file, indexed by rounded coordinate pair
type FileDistanceCache struct {
	filePath string
	data     *FileDistanceCacheData
	index    map[string]int
	mu       sync.RWMutex
}

// NewFileDistanceCache opens (or creates) the cache file; an empty path selects ~/.trip-planner/cache/distances.json
func NewFileDistanceCache(filePath string) (*FileDistanceCache, error) {
	if filePath == "" {
		var err error
		filePath, err = GetDistanceCachePath()
		if err != nil {
			return nil, fmt.Errorf("failed to get cache file path: %w", err)
		}
	}
	log.Infof("Using distance cache file: %s", filePath)

	cache := &FileDistanceCache{
		filePath: filePath,
		data:     &FileDistanceCacheData{Entries: []models.DistanceCacheEntry{}},
		index:    make(map[string]int),
	}

	if err := cache.load(); err != nil {
		return nil, err
	}

	return cache, nil
}

func (c *FileDistanceCache) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveUnlocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	if err := json.Unmarshal(data, c.data); err != nil {
		return fmt.Errorf("failed to parse cache file: %w", err)
	}
	if c.data.Entries == nil {
		c.data.Entries = []models.DistanceCacheEntry{}
	}

	c.rebuildIndex()

	log.Infof("Loaded distance cache: %d entries", len(c.data.Entries))
	return nil
}

func (c *FileDistanceCache) saveUnlocked() error {
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	tmpFile := c.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}

	if err := os.Rename(tmpFile, c.filePath); err != nil {
		return fmt.Errorf("failed to rename temp cache file: %w", err)
	}

	return nil
}

func (c *FileDistanceCache) Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, ok := c.index[MakeCacheKey(origin, dest)]
	if !ok {
		return nil, nil
	}
	// Copy so callers cannot modify cache data without the lock
	entryCopy := c.data.Entries[idx]
	return &entryCopy, nil
}

func (c *FileDistanceCache) Set(ctx context.Context, entry *models.DistanceCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.putUnlocked(*entry)
	return c.saveUnlocked()
}

func (c *FileDistanceCache) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range entries {
		c.putUnlocked(entry)
	}
	return c.saveUnlocked()
}

func (c *FileDistanceCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data.Entries = []models.DistanceCacheEntry{}
	c.index = make(map[string]int)
	return c.saveUnlocked()
}

// Count returns the number of cached pairs
func (c *FileDistanceCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data.Entries)
}

func (c *FileDistanceCache) putUnlocked(entry models.DistanceCacheEntry) {
	key := MakeCacheKey(entry.Origin, entry.Destination)
	if idx, ok := c.index[key]; ok {
		c.data.Entries[idx] = entry
		return
	}
	c.data.Entries = append(c.data.Entries, entry)
	c.index[key] = len(c.data.Entries) - 1
}

// MakeCacheKey creates a unique key for a coordinate pair
func MakeCacheKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f",
		models.RoundCoordinate(origin.Lat), models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat), models.RoundCoordinate(dest.Lng))
}

// rebuildIndex creates the index map from the current entries slice.
// Must be called with the mutex already held.
func (c *FileDistanceCache) rebuildIndex() {
	c.index = make(map[string]int, len(c.data.Entries))
	for i := range c.data.Entries {
		c.index[MakeCacheKey(c.data.Entries[i].Origin, c.data.Entries[i].Destination)] = i
	}
}
