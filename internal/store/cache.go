package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"loan-workers/internal/common/logger"
	"loan-workers/internal/models"
	"loan-workers/internal/pipeline"
)

// StatusCache holds the latest status of each application in Redis.
type StatusCache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

func NewStatusCache(client redis.Cmdable, ttl time.Duration, prefix string) *StatusCache {
	if prefix == "" {
		prefix = "loan"
	}
	return &StatusCache{
		client: client,
		ttl:    ttl,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (c *StatusCache) key(applicationID string) string {
	return fmt.Sprintf("%s:status:%s", c.prefix, applicationID)
}

// Get returns the cached status. A miss is (nil, false, nil).
func (c *StatusCache) Get(ctx context.Context, applicationID string) (*models.ApplicationStatus, bool, error) {
	raw, err := c.client.Get(ctx, c.key(applicationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	var st models.ApplicationStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return &st, true, nil
}

func (c *StatusCache) Set(ctx context.Context, st *models.ApplicationStatus) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.key(st.ApplicationID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *StatusCache) Invalidate(ctx context.Context, applicationID string) error {
	if err := c.client.Del(ctx, c.key(applicationID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Save writes the result's status so lookups right after a run hit the cache.
func (c *StatusCache) Save(ctx context.Context, applicationID string, result pipeline.Result) error {
	st := &models.ApplicationStatus{
		ApplicationID: applicationID,
		Status:        string(result.Status),
		FinalDecision: string(result.FinalDecision),
		ErrorMessage:  result.ErrorMessage,
		UpdatedAt:     c.now(),
	}
	if result.Document != nil {
		st.DocumentURL = result.Document.URL
	}
	return c.Set(ctx, st)
}

// StatusSource is the authoritative store behind the cache.
type StatusSource interface {
	GetStatus(ctx context.Context, applicationID string) (*models.ApplicationStatus, error)
}

// CachedStatusReader serves status lookups cache-aside. Cache failures are
// logged and fall through to the source.
type CachedStatusReader struct {
	source StatusSource
	cache  *StatusCache
	logger logger.Logger
}

func NewCachedStatusReader(source StatusSource, cache *StatusCache, log logger.Logger) *CachedStatusReader {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &CachedStatusReader{source: source, cache: cache, logger: log}
}

// GetStatus returns the status and whether it came from the cache.
func (r *CachedStatusReader) GetStatus(ctx context.Context, applicationID string) (*models.ApplicationStatus, bool, error) {
	if r.cache != nil {
		st, ok, err := r.cache.Get(ctx, applicationID)
		if err != nil {
			r.logger.Warn("status cache read failed", map[string]interface{}{
				"applicationId": applicationID,
				"error":         err.Error(),
			})
		} else if ok {
			return st, true, nil
		}
	}

	st, err := r.source.GetStatus(ctx, applicationID)
	if err != nil {
		return nil, false, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, st); err != nil {
			r.logger.Warn("status cache write failed", map[string]interface{}{
				"applicationId": applicationID,
				"error":         err.Error(),
			})
		}
	}
	return st, false, nil
}
