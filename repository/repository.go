package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/groundchat/config"
	"github.com/mohammad-safakhou/groundchat/models"
	"github.com/mohammad-safakhou/groundchat/repository/memory_repository"
	"github.com/mohammad-safakhou/groundchat/repository/redis_repository"
)

// PageRepository stores extracted page content keyed by resource identity.
// GetPage returns models.ErrPageNotFound on a miss.
type PageRepository interface {
	GetPage(ctx context.Context, identity string) (models.ExtractedContent, error)
	SavePage(ctx context.Context, identity string, content models.ExtractedContent) error
}

type RepoType string

const (
	RepoTypeRedis  RepoType = "redis"
	RepoTypeMemory RepoType = "memory"
)

// NewPageRepository builds the configured backend. client is only used for redis.
func NewPageRepository(cfg config.CacheConfig, client *redis.Client) (PageRepository, error) {
	switch RepoType(cfg.Backend) {
	case RepoTypeRedis:
		if client == nil {
			return nil, fmt.Errorf("redis page repository requires a redis client")
		}
		return redis_repository.NewRedisPageRepository(client, cfg.KeyPrefix, cfg.TTL), nil
	case RepoTypeMemory:
		return memory_repository.NewPageRepository(cfg.TTL), nil
	}
	return nil, fmt.Errorf("invalid repository type: %s", cfg.Backend)
}
