package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/groundchat/config"
	"github.com/mohammad-safakhou/groundchat/internal/answer"
	"github.com/mohammad-safakhou/groundchat/internal/classify"
	"github.com/mohammad-safakhou/groundchat/internal/fetch"
	"github.com/mohammad-safakhou/groundchat/internal/logger"
	"github.com/mohammad-safakhou/groundchat/internal/pipeline"
	"github.com/mohammad-safakhou/groundchat/internal/ratelimit"
	"github.com/mohammad-safakhou/groundchat/internal/runtime"
	"github.com/mohammad-safakhou/groundchat/provider"
	"github.com/mohammad-safakhou/groundchat/repository"
	"github.com/mohammad-safakhou/groundchat/repository/redis_repository"
	"github.com/mohammad-safakhou/groundchat/tools/web_fetch"
)

// app holds the wired collaborators shared by serve and ask.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *runtime.Telemetry
	redis     *redis.Client
	pipeline  *pipeline.Pipeline
}

func buildApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.General.LogLevel, cfg.General.LogFormat)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: log}

	a.telemetry, err = runtime.SetupTelemetry(ctx, cfg.Telemetry, runtime.TelemetryOptions{ServiceVersion: Version})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	if cfg.UsesRedis() {
		a.redis, err = redis_repository.Conn(ctx, cfg.Storage.Redis)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
	}

	var counter ratelimit.CounterStore = ratelimit.NewMemoryCounter(nil)
	if cfg.RateLimit.Store == "redis" {
		counter = ratelimit.NewRedisCounter(a.redis)
	}
	limiter := ratelimit.New(counter, cfg.RateLimit.Quota, cfg.RateLimit.Window, log,
		ratelimit.WithKeyPrefix(cfg.RateLimit.KeyPrefix))

	cache, err := repository.NewPageRepository(cfg.Cache, a.redis)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	renderer, err := web_fetch.NewRenderer(web_fetch.RendererType(cfg.Fetcher.Type), web_fetch.Options{
		Timeout:   cfg.Fetcher.Timeout,
		Grace:     cfg.Fetcher.Grace,
		UserAgent: cfg.Fetcher.UserAgent,
		Headless:  cfg.Fetcher.Headless,
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	fetcher := fetch.New(renderer, classify.New(cfg.Classifier.Signatures), cfg.Fetcher.MaxChars, log)

	generator, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.pipeline = pipeline.New(pipeline.Deps{
		Limiter:  limiter,
		Cache:    cache,
		Fetcher:  fetcher,
		Answerer: answer.New(generator, log),
		Logger:   log,
	})
	return a, nil
}

func (a *app) Close(ctx context.Context) {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close", zap.Error(err))
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown", zap.Error(err))
	}
	_ = a.logger.Sync()
}
