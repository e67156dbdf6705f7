package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openstreamhub/streamgate/pkg/models"
)

// Cache provides caching and session storage using Redis
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

// Playback Session Operations

// SetSession stores a playback session. The TTL bounds how long an
// abandoned session survives; every save refreshes it.
func (c *Cache) SetSession(ctx context.Context, session *models.PlaybackSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key := fmt.Sprintf("session:%s", session.ID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetSession retrieves a playback session. Returns (nil, nil) on a miss.
func (c *Cache) GetSession(ctx context.Context, sessionID string) (*models.PlaybackSession, error) {
	key := fmt.Sprintf("session:%s", sessionID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Miss
		}
		return nil, fmt.Errorf("failed to get session from cache: %w", err)
	}

	var session models.PlaybackSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// DeleteSession removes a playback session
func (c *Cache) DeleteSession(ctx context.Context, sessionID string) error {
	key := fmt.Sprintf("session:%s", sessionID)
	return c.client.Del(ctx, key).Err()
}

// Entitlement Snapshot Operations

// SetEntitlements caches a viewer's resolved entitlements for one piece of
// content. Short TTL: a rental purchase must become visible quickly.
func (c *Cache) SetEntitlements(ctx context.Context, viewerID, mediaID string, ent models.Entitlements, ttl time.Duration) error {
	data, err := json.Marshal(ent)
	if err != nil {
		return fmt.Errorf("failed to marshal entitlements: %w", err)
	}

	key := fmt.Sprintf("entitlements:%s:%s", viewerID, mediaID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetEntitlements retrieves cached entitlements. The bool reports a hit.
func (c *Cache) GetEntitlements(ctx context.Context, viewerID, mediaID string) (models.Entitlements, bool, error) {
	key := fmt.Sprintf("entitlements:%s:%s", viewerID, mediaID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return models.Entitlements{}, false, nil
		}
		return models.Entitlements{}, false, fmt.Errorf("failed to get entitlements from cache: %w", err)
	}

	var ent models.Entitlements
	if err := json.Unmarshal(data, &ent); err != nil {
		return models.Entitlements{}, false, fmt.Errorf("failed to unmarshal entitlements: %w", err)
	}

	return ent, true, nil
}

// DeleteEntitlements invalidates the cached snapshot, e.g. after a rental
// purchase.
func (c *Cache) DeleteEntitlements(ctx context.Context, viewerID, mediaID string) error {
	key := fmt.Sprintf("entitlements:%s:%s", viewerID, mediaID)
	return c.client.Del(ctx, key).Err()
}

// View Counter Operations

// IncrementViewCount increments a per-content view counter
func (c *Cache) IncrementViewCount(ctx context.Context, mediaID string) (int64, error) {
	key := fmt.Sprintf("views:%s", mediaID)
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment view count: %w", err)
	}
	return count, nil
}

// GetViewCount retrieves a per-content view counter
func (c *Cache) GetViewCount(ctx context.Context, mediaID string) (int64, error) {
	key := fmt.Sprintf("views:%s", mediaID)
	count, err := c.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}

// IncrementDailyStat bumps a per-day counter used by the analytics worker.
// Counters expire after 90 days.
func (c *Cache) IncrementDailyStat(ctx context.Context, stat string, day time.Time) (int64, error) {
	key := fmt.Sprintf("stats:%s:%s", stat, day.UTC().Format("2006-01-02"))
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment daily stat: %w", err)
	}
	c.client.Expire(ctx, key, 90*24*time.Hour)
	return count, nil
}

// GetDailyStat reads a per-day counter, zero when unset
func (c *Cache) GetDailyStat(ctx context.Context, stat string, day time.Time) (int64, error) {
	key := fmt.Sprintf("stats:%s:%s", stat, day.UTC().Format("2006-01-02"))
	count, err := c.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}

// Settings Cache Operations

// SetSettings caches the site settings row
func (c *Cache) SetSettings(ctx context.Context, settings *models.SiteSettings, ttl time.Duration) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return c.client.Set(ctx, "settings:site", data, ttl).Err()
}

// GetSettings retrieves the cached site settings. Returns (nil, nil) on a
// miss.
func (c *Cache) GetSettings(ctx context.Context) (*models.SiteSettings, error) {
	data, err := c.client.Get(ctx, "settings:site").Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settings from cache: %w", err)
	}

	var settings models.SiteSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	return &settings, nil
}

// DeleteSettings invalidates the cached settings after an admin update
func (c *Cache) DeleteSettings(ctx context.Context) error {
	return c.client.Del(ctx, "settings:site").Err()
}

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
