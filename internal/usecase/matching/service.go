// Package matching runs the item-matching pipeline: embed, score, classify, link.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lostlink/matcher/internal/domain"
	"github.com/lostlink/matcher/internal/domain/boost"
	domitem "github.com/lostlink/matcher/internal/domain/item"
	"github.com/lostlink/matcher/internal/domain/match"
	"github.com/lostlink/matcher/internal/domain/similarity"
	"github.com/lostlink/matcher/internal/logger"
	"github.com/lostlink/matcher/internal/metrics"
)

// Result summarizes one matching run.
type Result struct {
	ItemID       string
	Matches      domitem.Matches
	Candidates   int
	Linked       int
	LinkFailures int
}

// Service orchestrates a matching run for one item.
type Service struct {
	repo       Repository
	embedder   Embedder
	boosts     *boost.Engine
	classifier *match.Classifier
	linker     *Linker
	now        func() time.Time
}

// New creates a matching service.
func New(repo Repository, embedder Embedder, boosts *boost.Engine, classifier *match.Classifier, linker *Linker) *Service {
	return &Service{
		repo:       repo,
		embedder:   embedder,
		boosts:     boosts,
		classifier: classifier,
		linker:     linker,
		now:        time.Now,
	}
}

// Run embeds the item, scores it against every embedded item of the opposite
// kind, stores the accepted matches and links each counterpart back.
//
// Failures before the item's own matches are written abort the run. Counterpart
// link failures are logged and counted in Result.LinkFailures only.
// Running twice for the same item produces the same list and no duplicate links.
func (s *Service) Run(ctx context.Context, itemID string) (Result, error) {
	start := s.now()
	ctx, log := logger.WithFields(ctx, zap.String("item_id", itemID))

	res, err := s.run(ctx, log, itemID)

	metrics.MatchRunDuration.Observe(s.now().Sub(start).Seconds())
	metrics.MatchRunsTotal.WithLabelValues(runStatus(err)).Inc()

	if err != nil {
		log.Warn("match_run_failed", zap.Duration("duration", s.now().Sub(start)), zap.Error(err))
		return Result{}, err
	}

	log.Info("match_run_completed",
		zap.Int("candidates", res.Candidates),
		zap.Int("matches", len(res.Matches)),
		zap.Int("linked", res.Linked),
		zap.Int("link_failures", res.LinkFailures),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return res, nil
}

func (s *Service) run(ctx context.Context, log *zap.Logger, itemID string) (Result, error) {
	it, err := s.repo.Get(ctx, itemID)
	if err != nil {
		return Result{}, fmt.Errorf("get item %s: %w", itemID, err)
	}
	log.Info("match_run_started", zap.String("kind", string(it.Kind())))

	emb, err := s.embedder.Embed(ctx, domitem.EmbeddingText(&it))
	if err != nil {
		return Result{}, fmt.Errorf("embed item %s: %w", itemID, err)
	}
	it.SetEmbedding(emb.Embedding)
	if err := s.repo.SetEmbedding(ctx, &it); err != nil {
		return Result{}, fmt.Errorf("store embedding %s: %w", itemID, asStoreWrite(err))
	}

	candidates, err := s.repo.Candidates(ctx, it.Kind().Opposite())
	if err != nil {
		return Result{}, fmt.Errorf("load candidates for %s: %w", itemID, err)
	}
	metrics.MatchCandidates.Observe(float64(len(candidates)))

	scored := s.score(log, &it, candidates)
	matches := s.classifier.Classify(scored)

	if err := s.repo.SetMatches(ctx, itemID, matches); err != nil {
		return Result{}, fmt.Errorf("store matches %s: %w", itemID, asStoreWrite(err))
	}
	metrics.MatchesFoundTotal.Add(float64(len(matches)))

	res := Result{ItemID: itemID, Matches: matches, Candidates: len(candidates)}
	for _, m := range matches {
		back := domitem.MatchEntry{
			TargetID:     itemID,
			DisplayTitle: it.Title(),
			Score:        m.Score,
			Reasons:      m.Reasons,
		}
		added, err := s.linker.Link(ctx, m.TargetID, back)
		if err != nil {
			res.LinkFailures++
			metrics.MatchLinkFailuresTotal.Inc()
			log.Warn("Counterpart link failed", zap.String("target_id", m.TargetID), zap.Error(err))
			continue
		}
		if added {
			res.Linked++
		}
	}
	return res, nil
}

// score computes cosine plus boosts for every candidate other than it.
// A candidate whose vector cannot be compared is skipped.
func (s *Service) score(log *zap.Logger, it *domitem.Item, candidates []domitem.Item) []match.Scored {
	scored := make([]match.Scored, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if c.ID() == it.ID() {
			continue
		}
		base, err := similarity.Cosine(it.Embedding(), c.Embedding())
		if err != nil {
			metrics.MatchScoreErrorsTotal.Inc()
			log.Warn("Skipping unscorable candidate", zap.String("candidate_id", c.ID()), zap.Error(err))
			continue
		}
		b := s.boosts.Apply(it, c, base)
		scored = append(scored, match.Scored{Candidate: c, Score: b.Score, Reasons: b.Reasons})
	}
	return scored
}

func asStoreWrite(err error) error {
	if errors.Is(err, domain.ErrStoreWrite) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreWrite, err)
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrItemNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrEmbeddingProviderError), errors.Is(err, domain.ErrVectorDimMismatch):
		return "embedding_error"
	case errors.Is(err, domain.ErrStoreWrite):
		return "store_error"
	default:
		return "error"
	}
}
