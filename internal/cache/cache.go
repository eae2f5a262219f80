// Package cache provides read-through caching for job and generation
// reads on top of Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/budajoliwia/PetMagic/pkg/models"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Job Cache Operations

// SetJob caches a job record. Jobs in flight change status, so callers
// use a short TTL.
func (c *Cache) SetJob(ctx context.Context, job *models.Job, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	key := fmt.Sprintf("job:%s", job.ID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetJob retrieves a job from cache; (nil, nil) on a miss.
func (c *Cache) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	key := fmt.Sprintf("job:%s", jobID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get job from cache: %w", err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// DeleteJob removes a job from cache
func (c *Cache) DeleteJob(ctx context.Context, jobID string) error {
	key := fmt.Sprintf("job:%s", jobID)
	return c.client.Del(ctx, key).Err()
}

// Generation Cache Operations

// SetGenerations caches a user's generation list
func (c *Cache) SetGenerations(ctx context.Context, userID string, gens []*models.Generation, ttl time.Duration) error {
	data, err := json.Marshal(gens)
	if err != nil {
		return fmt.Errorf("failed to marshal generations: %w", err)
	}

	key := fmt.Sprintf("generations:%s", userID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetGenerations retrieves a user's generation list from cache; (nil, nil)
// on a miss.
func (c *Cache) GetGenerations(ctx context.Context, userID string) ([]*models.Generation, error) {
	key := fmt.Sprintf("generations:%s", userID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get generations from cache: %w", err)
	}

	var gens []*models.Generation
	if err := json.Unmarshal(data, &gens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal generations: %w", err)
	}

	return gens, nil
}

// InvalidateGenerations drops a user's cached generation list after a
// write (new generation, favorite toggle).
func (c *Cache) InvalidateGenerations(ctx context.Context, userID string) error {
	key := fmt.Sprintf("generations:%s", userID)
	return c.client.Del(ctx, key).Err()
}

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
