package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"trip-planner/internal/models"
)

func TestRedisCacheKeyUsesPrefixAndRounding(t *testing.T) {
	cache := NewRedisDistanceCache("127.0.0.1:1", "", "dist", 0)
	defer cache.Close()

	key := cache.key(models.Coordinates{Lat: 1.2345674, Lng: 2}, models.Coordinates{Lat: 3, Lng: 4})

	assert.Equal(t, "dist:1.23457,2.00000->3.00000,4.00000", key)
}

func TestRedisCacheUnreachableServerReturnsError(t *testing.T) {
	cache := NewRedisDistanceCache("127.0.0.1:1", "", "dist", time.Minute)
	defer cache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	entry, err := cache.Get(ctx, models.Coordinates{}, models.Coordinates{Lat: 1})
	assert.Error(t, err)
	assert.Nil(t, entry)

	assert.NoError(t, cache.SetBatch(ctx, nil))
}
