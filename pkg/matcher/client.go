package matcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lostlink/matcher/internal/db"
	"github.com/lostlink/matcher/internal/db/memory"
	dbRedis "github.com/lostlink/matcher/internal/db/redis"
	"github.com/lostlink/matcher/internal/domain"
	"github.com/lostlink/matcher/internal/domain/boost"
	domitem "github.com/lostlink/matcher/internal/domain/item"
	"github.com/lostlink/matcher/internal/domain/match"
	itemrepo "github.com/lostlink/matcher/internal/repository/item"
	healthuc "github.com/lostlink/matcher/internal/usecase/health"
	"github.com/lostlink/matcher/internal/usecase/matching"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultLinkRetries      = 3
)

// Internal interfaces, swapped in tests.
type itemStore interface {
	Create(ctx context.Context, it *domitem.Item) error
	Get(ctx context.Context, id string) (domitem.Item, error)
}

type matchRunner interface {
	Run(ctx context.Context, itemID string) (matching.Result, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the embedded matcher entry point. Safe for concurrent use.
type Client struct {
	store     db.Store
	items     itemStore
	runner    matchRunner
	healthSvc healthUseCase
	obs       *observer
	now       func() time.Time
}

// New creates a Client and connects to the store.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		threshold:   match.DefaultThreshold,
		boosts:      boost.DefaultConfig(),
		linkRetries: defaultLinkRetries,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("matcher: store required (use WithRedis, WithValkey or WithMemory)")
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("matcher: store not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return wireClient(store, cfg, obs), nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("matcher: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("matcher: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) *Client {
	var emb domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		emb = &embedderAdapter{inner: cfg.embedder}
	}

	items := itemrepo.New(store)
	runner := matching.New(
		items,
		emb,
		boost.New(cfg.boosts),
		match.NewClassifier(cfg.threshold),
		matching.NewLinker(items, cfg.linkRetries),
	)

	return &Client{
		store:     store,
		items:     items,
		runner:    runner,
		healthSvc: healthuc.New(store, nil),
		obs:       obs,
		now:       time.Now,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Report stores a new lost or found report. It does not run matching; call Match.
func (c *Client) Report(ctx context.Context, r Report) (_ Item, err error) {
	start := time.Now()
	defer func() { c.obs.observe("report", start, err) }()

	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	it, err := domitem.New(id, domitem.Kind(r.Kind), domitem.Details{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Location:    r.Location,
		OccurredAt:  r.Date,
	}, c.now())
	if err != nil {
		return Item{}, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	if err = c.items.Create(ctx, &it); err != nil {
		return Item{}, err
	}
	return itemFromDomain(&it), nil
}

// Get returns a stored item with its current matches.
func (c *Client) Get(ctx context.Context, id string) (_ Item, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get", start, err) }()

	it, err := c.items.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	return itemFromDomain(&it), nil
}

// Match runs matching for an item: it is embedded, scored against every embedded
// report of the opposite kind, and each accepted counterpart is linked back.
// Re-running is safe and never duplicates links.
func (c *Client) Match(ctx context.Context, id string) (_ MatchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("match", start, err) }()

	res, err := c.runner.Run(ctx, id)
	if err != nil {
		return MatchResult{}, err
	}
	return MatchResult{
		ItemID:       res.ItemID,
		Matches:      matchesFromDomain(res.Matches),
		Candidates:   res.Candidates,
		Linked:       res.Linked,
		LinkFailures: res.LinkFailures,
	}, nil
}

// Health checks the store.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{Status: string(report.Status), Checks: checks}
}

func itemFromDomain(it *domitem.Item) Item {
	d := it.Details()
	return Item{
		ID:          it.ID(),
		Kind:        Kind(it.Kind()),
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Location:    d.Location,
		Date:        d.OccurredAt,
		CreatedAt:   it.CreatedAt(),
		Embedded:    it.HasEmbedding(),
		Matches:     matchesFromDomain(it.Matches()),
	}
}

func matchesFromDomain(ms domitem.Matches) []Match {
	out := make([]Match, len(ms))
	for i, m := range ms {
		out[i] = Match{ItemID: m.TargetID, Title: m.DisplayTitle, Score: m.Score, Reasons: m.Reasons}
	}
	return out
}
