package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wikimind/internal/common/database"
)

// Cache is the key/value store behind CachedSource.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// CachedSource remembers resolved texts. Only successes are stored, and a failing cache never
// fails a resolution.
type CachedSource struct {
	next   Source
	cache  Cache
	ttl    time.Duration
	prefix string
	logger Logger
}

func NewCachedSource(next Source, cache Cache, ttl time.Duration, prefix string, log Logger) *CachedSource {
	return &CachedSource{next: next, cache: cache, ttl: ttl, prefix: prefix, logger: log}
}

func (c *CachedSource) key(title, languageCode string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, strings.ToLower(languageCode), strings.ToLower(strings.TrimSpace(title)))
}

func (c *CachedSource) Resolve(ctx context.Context, title, languageCode string) (string, error) {
	key := c.key(title, languageCode)

	text, err := c.cache.Get(ctx, key)
	switch {
	case err == nil && text != "":
		return text, nil
	case err != nil && !errors.Is(err, database.ErrCacheMiss):
		c.logger.Warn("knowledge cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	text, err = c.next.Resolve(ctx, title, languageCode)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(ctx, key, text, c.ttl); err != nil {
		c.logger.Warn("knowledge cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return text, nil
}
