package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lostlink/matcher/internal/config"
	"github.com/lostlink/matcher/internal/db"
	"github.com/lostlink/matcher/internal/db/memory"
	dbRedis "github.com/lostlink/matcher/internal/db/redis"
	"github.com/lostlink/matcher/internal/domain"
	"github.com/lostlink/matcher/internal/domain/boost"
	"github.com/lostlink/matcher/internal/domain/match"
	"github.com/lostlink/matcher/internal/metrics"
	"github.com/lostlink/matcher/internal/repository/embcache"
	itemrepo "github.com/lostlink/matcher/internal/repository/item"
	openaiEmb "github.com/lostlink/matcher/internal/transport/openai"
	"github.com/lostlink/matcher/internal/usecase/dispatch"
	embeddinguc "github.com/lostlink/matcher/internal/usecase/embedding"
	healthuc "github.com/lostlink/matcher/internal/usecase/health"
	"github.com/lostlink/matcher/internal/usecase/matching"
)

// app is the composition root shared by the serve and match commands.
type app struct {
	store      db.Store
	items      *itemrepo.Repo
	matcher    *matching.Service
	dispatcher *dispatch.Dispatcher
	health     *healthuc.Service
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	store, err := openStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterMatchingMetrics()

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	embedder := buildEmbedder(base, cfg.Embedding, store, logger)

	items := itemrepo.New(store)
	svc := matching.New(
		items,
		embedder,
		boost.New(cfg.Matching.Boost()),
		match.NewClassifier(*cfg.Matching.Threshold),
		matching.NewLinker(items, cfg.Matching.LinkRetries),
	)

	return &app{
		store:      store,
		items:      items,
		matcher:    svc,
		dispatcher: dispatch.New(svc, cfg.Matching.Workers, cfg.Matching.RunTimeout(), logger),
		health:     healthuc.New(store, base),
	}, nil
}

// close drains in-flight runs, then releases the store.
func (a *app) close(ctx context.Context) error {
	err := a.dispatcher.Close(ctx)
	a.store.Close()
	return err
}

func openStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverRedis, config.DriverValkey:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:         cfg.Addrs,
			Username:      cfg.Username,
			Password:      cfg.Password,
			DB:            cfg.DB,
			UpdateRetries: cfg.UpdateRetries,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// buildEmbedder assembles the decorator chain: provider -> cache -> instrumented.
func buildEmbedder(
	base domain.Embedder,
	cfg config.EmbeddingConfig,
	store db.Store,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if cfg.Cache.Enabled {
		model := cfg.Model
		if model == "" {
			model = openaiEmb.DefaultModel
		}
		embedder = embcache.New(base, store, embcache.Options{
			Model:      model,
			Dimensions: cfg.Dimensions,
			TTL:        time.Duration(cfg.Cache.TTLSec) * time.Second,
			Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	return embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Provider, cfg.Model, cfg.Dimensions,
		time.Duration(cfg.TimeoutSec)*time.Second, logger,
	)
}
