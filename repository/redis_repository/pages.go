package redis_repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/groundchat/models"
)

const DefaultKeyPrefix = "page:"

// redisPageRepository implements PageRepository using Redis
type redisPageRepository struct {
	client    redis.Cmdable
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

func (r redisPageRepository) SavePage(ctx context.Context, identity string, content models.ExtractedContent) error {
	entry := models.CacheEntry{Key: identity, Value: content, WrittenAt: r.now().UTC()}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.keyPrefix+identity, data, r.ttl).Err()
}

func (r redisPageRepository) GetPage(ctx context.Context, identity string) (models.ExtractedContent, error) {
	val, err := r.client.Get(ctx, r.keyPrefix+identity).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.ExtractedContent{}, models.ErrPageNotFound
		}
		return models.ExtractedContent{}, err
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return models.ExtractedContent{}, fmt.Errorf("decode cached page %s: %w", identity, err)
	}
	return entry.Value, nil
}

// NewRedisPageRepository stores pages under keyPrefix+identity. A zero ttl stores without expiry.
func NewRedisPageRepository(client redis.Cmdable, keyPrefix string, ttl time.Duration) *redisPageRepository {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &redisPageRepository{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		now:       time.Now,
	}
}
