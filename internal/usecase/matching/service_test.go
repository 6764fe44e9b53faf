package matching

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/lostlink/matcher/internal/db/memory"
	"github.com/lostlink/matcher/internal/domain"
	"github.com/lostlink/matcher/internal/domain/boost"
	domitem "github.com/lostlink/matcher/internal/domain/item"
	"github.com/lostlink/matcher/internal/domain/match"
	repoitem "github.com/lostlink/matcher/internal/repository/item"
)

// --- Fakes ---

// fakeEmbedder returns the vector registered for the title found in the text.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	f.calls++
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	for title, v := range f.vectors {
		if strings.HasPrefix(text, "Title: "+title+" Description:") {
			return domain.EmbeddingResult{Embedding: v, TotalTokens: 5}, nil
		}
	}
	return domain.EmbeddingResult{}, errors.New("no vector for " + text)
}

// faultyRepo overrides selected repository calls.
type faultyRepo struct {
	Repository
	setMatchesErr error
	appendErr     map[string]error
	appendCalls   int
}

func (f *faultyRepo) SetMatches(ctx context.Context, id string, ms domitem.Matches) error {
	if f.setMatchesErr != nil {
		return f.setMatchesErr
	}
	return f.Repository.SetMatches(ctx, id, ms)
}

func (f *faultyRepo) AppendMatch(ctx context.Context, targetID string, e domitem.MatchEntry) (bool, error) {
	f.appendCalls++
	if err := f.appendErr[targetID]; err != nil {
		return false, err
	}
	return f.Repository.AppendMatch(ctx, targetID, e)
}

type fixture struct {
	repo     *repoitem.Repo
	embedder *fakeEmbedder
}

func newFixture() *fixture {
	return &fixture{
		repo:     repoitem.New(memory.NewStore()),
		embedder: &fakeEmbedder{vectors: map[string][]float32{}},
	}
}

func (f *fixture) service(repo Repository) *Service {
	return New(repo, f.embedder, boost.New(boost.DefaultConfig()),
		match.NewClassifier(match.DefaultThreshold), NewLinker(repo, 3))
}

// put stores an item; a non-nil vec makes it an embedded candidate.
func (f *fixture) put(t *testing.T, id string, kind domitem.Kind, d domitem.Details, vec []float32) {
	t.Helper()
	it, err := domitem.New(id, kind, d, time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new item %s: %v", id, err)
	}
	if vec != nil {
		it.SetEmbedding(vec)
	}
	if err := f.repo.Create(context.Background(), &it); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
}

func (f *fixture) get(t *testing.T, id string) domitem.Item {
	t.Helper()
	it, err := f.repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return it
}

var (
	calculatorFound = domitem.Details{
		Title:       "Gray Calculator",
		Description: "Found a TI-84 on a table.",
		Category:    "Electronics",
		Location:    "Library",
		OccurredAt:  "2025-01-10",
	}
	calculatorLost = domitem.Details{
		Title:       "TI-84 Plus Calculator",
		Description: "Gray TI-84 Plus calculator. Lost it in the library.",
		Category:    "Electronics",
		Location:    "Library",
		OccurredAt:  "2025-01-09",
	}
	umbrellaLost = domitem.Details{
		Title:       "Red Umbrella",
		Description: "Folding umbrella with wooden handle",
		Category:    "Accessories",
		Location:    "Train station",
		OccurredAt:  "2024-06-01",
	}
)

// --- Scenarios ---

func TestRun_AllBoostsFire(t *testing.T) {
	f := newFixture()
	f.put(t, "lost-1", domitem.KindLost, calculatorLost, []float32{1, 0, 0})
	f.put(t, "found-1", domitem.KindFound, calculatorFound, nil)
	f.embedder.vectors["Gray Calculator"] = []float32{1, 0, 0}

	res, err := f.service(f.repo).Run(context.Background(), "found-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(res.Matches))
	}
	m := res.Matches[0]
	if m.TargetID != "lost-1" || m.DisplayTitle != "TI-84 Plus Calculator" {
		t.Errorf("unexpected entry: %+v", m)
	}
	want := []string{boost.ReasonLocation, boost.ReasonCategory, boost.ReasonDate, boost.ReasonDescription}
	if !slices.Equal(m.Reasons, want) {
		t.Errorf("reasons = %v, want %v", m.Reasons, want)
	}
	if math.Abs(m.Score-1.18) > 1e-9 {
		t.Errorf("score = %v, want 1.18", m.Score)
	}
	if res.Linked != 1 || res.LinkFailures != 0 || res.Candidates != 1 {
		t.Errorf("unexpected result counters: %+v", res)
	}

	stored := f.get(t, "found-1")
	if !stored.HasEmbedding() {
		t.Error("embedding was not persisted")
	}
	if len(stored.Matches()) != 1 || stored.Matches()[0].TargetID != "lost-1" {
		t.Errorf("stored matches = %+v", stored.Matches())
	}
}

func TestRun_CounterpartSeesMirrorEntry(t *testing.T) {
	f := newFixture()
	f.put(t, "lost-1", domitem.KindLost, calculatorLost, []float32{1, 0, 0})
	f.put(t, "found-1", domitem.KindFound, calculatorFound, nil)
	f.embedder.vectors["Gray Calculator"] = []float32{1, 0, 0}

	res, err := f.service(f.repo).Run(context.Background(), "found-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	counterpart := f.get(t, "lost-1")
	if len(counterpart.Matches()) != 1 {
		t.Fatalf("expected 1 back-link, got %d", len(counterpart.Matches()))
	}
	back := counterpart.Matches()[0]
	if back.TargetID != "found-1" || back.DisplayTitle != "Gray Calculator" {
		t.Errorf("unexpected back-link: %+v", back)
	}
	if back.Score != res.Matches[0].Score {
		t.Errorf("back-link score %v != forward score %v", back.Score, res.Matches[0].Score)
	}
	if !slices.Equal(back.Reasons, res.Matches[0].Reasons) {
		t.Errorf("back-link reasons %v != forward reasons %v", back.Reasons, res.Matches[0].Reasons)
	}
}

func TestRun_UnrelatedItemsScoreOnBaseOnly(t *testing.T) {
	f := newFixture()
	f.put(t, "lost-1", domitem.KindLost, umbrellaLost, []float32{0, 1, 0})
	f.put(t, "found-1", domitem.KindFound, calculatorFound, nil)
	// cosine([1,1,0],[0,1,0]) ~ 0.707 < 0.82
	f.embedder.vectors["Gray Calculator"] = []float32{1, 1, 0}

	res, err := f.service(f.repo).Run(context.Background(), "found-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Matches) != 0 {
		t.Fatalf("expected no matches, got %+v", res.Matches)
	}

	stored := f.get(t, "found-1")
	if stored.Matches() == nil || len(stored.Matches()) != 0 {
		t.Errorf("expected empty stored match list, got %v", stored.Matches())
	}
	if len(f.get(t, "lost-1").Matches()) != 0 {
		t.Error("unrelated counterpart was linked")
	}
}

func TestRun_BaseAloneAboveThreshold(t *testing.T) {
	f := newFixture()
	f.put(t, "lost-1", domitem.KindLost, umbrellaLost, []float32{1, 0})
	f.put(t, "found-1", domitem.KindFound, calculatorFound, nil)
	f.embedder.vectors["Gray Calculator"] = []float32{1, 0}

	res, err := f.service(f.repo).Run(context.Background(), "found-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Matches) != 1 || len(res.Matches[0].Reasons) != 0 || res.Matches[0].Score != 1 {
		t.Fatalf("expected one reasonless match at 1.0, got %+v", res.Matches)
	}
}

func TestRun_SameKindNeverCandidate(t *testing.T) {
	f := newFixture()
	twin := calculatorFound
	twin.Title = "Gray Calculator twin"
	f.put(t, "found-0", domitem.KindFound, twin, []float32{1, 0, 0})
	f.put(t, "found-1", domitem.KindFound, calculatorFound, nil)
	f.embedder.vectors["Gray Calculator"] = []float32{1, 0, 0}

	res, err := f.service(f.repo).Run(context.Background(), "found-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Candidates != 0 || len(res.Matches) != 0 {
		t.Errorf("same-kind item leaked into candidates: %+v", res)
	}
	if len(f.get(t, "found-0").Matches()) != 0 {
		t.Error("same-kind item was linked")
	}
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture()
	f.put(t, "lost-1", domitem.KindLost, calculatorLost, []float32{1, 0, 0})
	f.put(t, "found-1", domitem.KindFound, calculatorFound, nil)
	f.embedder.vectors["Gray Calculator"] = []float32{1, 0, 0}
	svc := f.service(f.repo)

	first, err := svc.Run(context.Background(), "found-1")
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := svc.Run(context.Background(), "found-1")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if len(second.Matches) != len(first.Matches) || second.Matches[0].TargetID != first.Matches[0].TargetID {
		t.Errorf("re-run changed matches: %+v vs %+v", first.Matches, second.Matches)
	}
	if second.Linked != 0 {
		t.Errorf("re-run linked %d counterparts again", second.Linked)
	}
	if n := len(f.get(t, "lost-1").Matches()); n != 1 {
		t.Errorf("counterpart has %d entries, want 1", n)
	}
}

func TestRun_ItemNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.service(f.repo).Run(context.Background(), "missing")
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if f.embedder.calls != 0 {
		t.Error("embedder called for a missing item")
	}
}

func TestRun_EmbeddingFailureWritesNothing(t *testing.T) {
	f := newFixture()
	f.put(t, "lost-1", domitem.KindLost, calculatorLost, []float32{1, 0, 0})
	f.put(t, "found-1", domitem.KindFound, calculatorFound, nil)
	f.embedder.err = domain.ErrEmbeddingProviderError

	_, err := f.service(f.repo).Run(context.Background(), "found-1")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if f.get(t, "found-1").HasEmbedding() {
		t.Error("embedding written after provider failure")
	}
	if len(f.get(t, "lost-1").Matches()) != 0 {
		t.Error("counterpart modified after provider failure")
	}
	cands, _ := f.repo.Candidates(context.Background(), domitem.KindFound)
	if len(cands) != 0 {
		t.Error("failed item was indexed as a candidate")
	}
}

func TestRun_DegenerateCandidateSkipped(t *testing.T) {
	f := newFixture()
	f.put(t, "lost-0", domitem.KindLost, umbrellaLost, []float32{0, 0, 0})
	f.put(t, "lost-1", domitem.KindLost, calculatorLost, []float32{1, 0, 0})
	f.put(t, "found-1", domitem.KindFound, calculatorFound, nil)
	f.embedder.vectors["Gray Calculator"] = []float32{1, 0, 0}

	res, err := f.service(f.repo).Run(context.Background(), "found-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Candidates != 2 || len(res.Matches) != 1 || res.Matches[0].TargetID != "lost-1" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRun_LinkFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	other := calculatorLost
	other.Title = "Calculator TI-84"
	f.put(t, "lost-1", domitem.KindLost, calculatorLost, []float32{1, 0, 0})
	f.put(t, "lost-2", domitem.KindLost, other, []float32{1, 0.1, 0})
	f.put(t, "found-1", domitem.KindFound, calculatorFound, nil)
	f.embedder.vectors["Gray Calculator"] = []float32{1, 0, 0}

	repo := &faultyRepo{
		Repository: f.repo,
		appendErr:  map[string]error{"lost-1": domain.ErrStoreWrite},
	}
	res, err := f.service(repo).Run(context.Background(), "found-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Matches) != 2 || res.Linked != 1 || res.LinkFailures != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(f.get(t, "found-1").Matches()) != 2 {
		t.Error("new item's matches lost after link failure")
	}
	if len(f.get(t, "lost-2").Matches()) != 1 {
		t.Error("healthy counterpart was not linked")
	}
	// 3 attempts on the failing target, 1 on the healthy one
	if repo.appendCalls != 4 {
		t.Errorf("append calls = %d, want 4", repo.appendCalls)
	}
}

func TestRun_SetMatchesFailureAborts(t *testing.T) {
	f := newFixture()
	f.put(t, "lost-1", domitem.KindLost, calculatorLost, []float32{1, 0, 0})
	f.put(t, "found-1", domitem.KindFound, calculatorFound, nil)
	f.embedder.vectors["Gray Calculator"] = []float32{1, 0, 0}

	repo := &faultyRepo{Repository: f.repo, setMatchesErr: errors.New("connection reset")}
	_, err := f.service(repo).Run(context.Background(), "found-1")
	if !errors.Is(err, domain.ErrStoreWrite) {
		t.Fatalf("expected ErrStoreWrite, got %v", err)
	}
	if repo.appendCalls != 0 {
		t.Error("counterparts linked after the item's own write failed")
	}
}

func TestRun_CounterpartListStaysSorted(t *testing.T) {
	f := newFixture()
	f.put(t, "lost-1", domitem.KindLost, calculatorLost, []float32{1, 0, 0})
	f.put(t, "found-1", domitem.KindFound, calculatorFound, nil)
	f.embedder.vectors["Gray Calculator"] = []float32{1, 0, 0}

	ctx := context.Background()
	_ = f.repo.SetMatches(ctx, "lost-1", domitem.Matches{
		{TargetID: "found-hi", DisplayTitle: "hi", Score: 1.5, Reasons: []string{}},
		{TargetID: "found-lo", DisplayTitle: "lo", Score: 0.85, Reasons: []string{}},
	})

	if _, err := f.service(f.repo).Run(ctx, "found-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ids := []string{}
	for _, m := range f.get(t, "lost-1").Matches() {
		ids = append(ids, m.TargetID)
	}
	if !slices.Equal(ids, []string{"found-hi", "found-1", "found-lo"}) {
		t.Errorf("counterpart order = %v", ids)
	}
}
