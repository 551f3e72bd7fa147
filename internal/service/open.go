package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/autoprice/resale-engine/internal/artifact"
	"github.com/autoprice/resale-engine/internal/cache"
	"github.com/autoprice/resale-engine/internal/config"
	"github.com/autoprice/resale-engine/internal/events"
	"github.com/autoprice/resale-engine/internal/observability"
	"github.com/autoprice/resale-engine/internal/storage"
)

// Runtime is a predictor with every backing resource it opened.
type Runtime struct {
	Predictor *Predictor
	closers   []func() error
}

// Close releases the backing resources in reverse opening order.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open loads the artifact bundle and connects the cache, history store and
// event publisher named by cfg. A bundle that fails to load is fatal; the
// publisher degrades to a no-op when it cannot connect.
func Open(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Runtime, error) {
	bundle, err := artifact.Load(cfg.Artifacts.Manifest)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("version", bundle.Version).
		Str("manifest", cfg.Artifacts.Manifest).
		Msg("Artifacts loaded")

	rt := &Runtime{}

	var c cache.Client
	switch cfg.Cache.Driver {
	case "redis":
		rc, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		c = rc
	default:
		c = cache.NewMemoryClient(cfg.Cache.MaxEntries)
	}
	rt.closers = append(rt.closers, c.Close)

	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("open history: %w", err)
	}
	rt.closers = append(rt.closers, db.Close)

	var pub events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		np, err := events.NewNATSPublisher(cfg.Events.URL, cfg.Events.Subject)
		if err != nil {
			logger.Warn().Err(err).Str("url", cfg.Events.URL).Msg("Event publishing disabled")
		} else {
			pub = np
			rt.closers = append(rt.closers, np.Close)
		}
	}

	rt.Predictor = NewPredictor(bundle, c, storage.NewPredictionRepository(db), pub, logger, Options{
		CacheTTL:  cfg.Cache.TTL,
		Workers:   cfg.Batch.Workers,
		ChunkSize: cfg.Batch.ChunkSize,
		Timeout:   cfg.Batch.Timeout,
		MaxRows:   cfg.Batch.MaxRows,
	})

	logger.Info().
		Str("cache", cfg.Cache.Driver).
		Str("database", cfg.Database.Driver).
		Bool("events", cfg.Events.Enabled).
		Msg("Prediction service ready")

	return rt, nil
}
