package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/suteetoe/thing-service/internal/model"
	"github.com/suteetoe/thing-service/pkg/cache"
	"github.com/suteetoe/thing-service/pkg/logger"
	"go.uber.org/zap"
)

// CachedThingRepository keeps single Things in a cache in front of another
// ThingRepository. Cache failures are logged and fall through to the store.
type CachedThingRepository struct {
	ThingRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedThingRepository caches Find results of next in c for ttl
func NewCachedThingRepository(next ThingRepository, c cache.Cache, ttl time.Duration) *CachedThingRepository {
	return &CachedThingRepository{ThingRepository: next, cache: c, ttl: ttl}
}

func thingKey(id uint) string {
	return fmt.Sprintf("things/%d", id)
}

// Find serves from the cache when possible
func (r *CachedThingRepository) Find(ctx context.Context, id uint) (*model.Thing, error) {
	log := logger.FromContext(ctx)
	key := thingKey(id)

	data, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		var thing model.Thing
		if err := json.Unmarshal(data, &thing); err == nil {
			return &thing, nil
		}
		log.Warn("Discarding undecodable cache entry", zap.String("key", key))
	}

	thing, err := r.ThingRepository.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(thing); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
			log.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return thing, nil
}

// Update invalidates the cached entry after a successful save
func (r *CachedThingRepository) Update(ctx context.Context, id uint, attrs model.ThingAttributes) (*model.Thing, error) {
	thing, err := r.ThingRepository.Update(ctx, id, attrs)
	if err == nil {
		r.invalidate(ctx, id)
	}
	return thing, err
}

// Delete invalidates the cached entry
func (r *CachedThingRepository) Delete(ctx context.Context, id uint) error {
	if err := r.ThingRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *CachedThingRepository) invalidate(ctx context.Context, id uint) {
	if err := r.cache.Delete(ctx, thingKey(id)); err != nil {
		logger.FromContext(ctx).Warn("Cache invalidation failed", zap.Uint("id", id), zap.Error(err))
	}
}
