package item

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lostlink/matcher/internal/db"
	"github.com/lostlink/matcher/internal/db/memory"
	"github.com/lostlink/matcher/internal/domain"
	domitem "github.com/lostlink/matcher/internal/domain/item"
)

// failingStore wraps the memory store and fails selected operations.
type failingStore struct {
	*memory.Store
	hsetErr    error
	hupdateErr error
}

func (f *failingStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if f.hsetErr != nil {
		return f.hsetErr
	}
	return f.Store.HSet(ctx, key, fields)
}

func (f *failingStore) HUpdate(ctx context.Context, key, field string, fn db.UpdateFunc) error {
	if f.hupdateErr != nil {
		return f.hupdateErr
	}
	return f.Store.HUpdate(ctx, key, field, fn)
}

func newItem(t *testing.T, id string, kind domitem.Kind, title string) domitem.Item {
	t.Helper()
	it, err := domitem.New(id, kind, domitem.Details{
		Title:       title,
		Description: "Black leather wallet",
		Category:    "Wallets",
		Location:    "Library",
		OccurredAt:  "2024-03-01",
	}, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new item: %v", err)
	}
	return it
}

func TestCreateGet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	r := New(memory.NewStore())
	it := newItem(t, "a", domitem.KindLost, "Wallet")

	if err := r.Create(ctx, &it); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := r.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Kind() != domitem.KindLost || got.Details() != it.Details() {
		t.Errorf("round trip mismatch: %+v", got.Details())
	}
	if !got.CreatedAt().Equal(it.CreatedAt()) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt(), it.CreatedAt())
	}
	if got.HasEmbedding() {
		t.Error("fresh item must have no embedding")
	}
	if got.Matches() == nil || len(got.Matches()) != 0 {
		t.Errorf("expected empty matches, got %v", got.Matches())
	}
}

func TestCreate_Duplicate(t *testing.T) {
	ctx := context.Background()
	r := New(memory.NewStore())
	it := newItem(t, "a", domitem.KindLost, "Wallet")
	_ = r.Create(ctx, &it)

	if err := r.Create(ctx, &it); !errors.Is(err, domain.ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	r := New(memory.NewStore())
	if _, err := r.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestSetEmbedding_IndexesCandidate(t *testing.T) {
	ctx := context.Background()
	r := New(memory.NewStore())

	lost := newItem(t, "l1", domitem.KindLost, "Wallet")
	found := newItem(t, "f1", domitem.KindFound, "Wallet")
	bare := newItem(t, "f2", domitem.KindFound, "Keys")
	for _, it := range []*domitem.Item{&lost, &found, &bare} {
		if err := r.Create(ctx, it); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	vec := []float32{0.25, -1.5, 3}
	found.SetEmbedding(vec)
	if err := r.SetEmbedding(ctx, &found); err != nil {
		t.Fatalf("SetEmbedding: %v", err)
	}

	cands, err := r.Candidates(ctx, domitem.KindFound)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(cands) != 1 || cands[0].ID() != "f1" {
		t.Fatalf("expected only f1, got %d candidates", len(cands))
	}
	got := cands[0].Embedding()
	for i := range vec {
		if got[i] != vec[i] {
			t.Fatalf("embedding[%d] = %v, want %v", i, got[i], vec[i])
		}
	}

	if lostCands, _ := r.Candidates(ctx, domitem.KindLost); len(lostCands) != 0 {
		t.Errorf("expected no Lost candidates, got %d", len(lostCands))
	}
}

func TestCandidates_SkipsVanishedRows(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	r := New(s)

	it := newItem(t, "f1", domitem.KindFound, "Wallet")
	it.SetEmbedding([]float32{1, 0})
	_ = r.Create(ctx, &it)
	_ = s.SAdd(ctx, embeddedIndexKey(domitem.KindFound), "ghost")

	cands, err := r.Candidates(ctx, domitem.KindFound)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(cands) != 1 {
		t.Errorf("expected 1 candidate, got %d", len(cands))
	}
}

func TestSetMatches_OnlyTouchesMatches(t *testing.T) {
	ctx := context.Background()
	r := New(memory.NewStore())
	it := newItem(t, "a", domitem.KindLost, "Wallet")
	it.SetEmbedding([]float32{1, 2})
	_ = r.Create(ctx, &it)

	ms := domitem.Matches{{TargetID: "b", DisplayTitle: "Found wallet", Score: 0.91, Reasons: []string{"Location match"}}}
	if err := r.SetMatches(ctx, "a", ms); err != nil {
		t.Fatalf("SetMatches: %v", err)
	}

	got, _ := r.Get(ctx, "a")
	if len(got.Matches()) != 1 || got.Matches()[0].TargetID != "b" || got.Matches()[0].Score != 0.91 {
		t.Errorf("unexpected matches: %+v", got.Matches())
	}
	if got.Title() != "Wallet" || !got.HasEmbedding() {
		t.Error("SetMatches modified other fields")
	}
}

func TestSetMatches_StoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	r := New(&failingStore{Store: memory.NewStore(), hsetErr: boom})

	err := r.SetMatches(context.Background(), "a", domitem.Matches{})
	if !errors.Is(err, domain.ErrStoreWrite) || !errors.Is(err, boom) {
		t.Errorf("expected ErrStoreWrite wrapping cause, got %v", err)
	}
}

func TestAppendMatch(t *testing.T) {
	ctx := context.Background()
	r := New(memory.NewStore())
	target := newItem(t, "t", domitem.KindFound, "Wallet")
	_ = r.Create(ctx, &target)

	low := domitem.MatchEntry{TargetID: "x", DisplayTitle: "X", Score: 0.83, Reasons: []string{}}
	high := domitem.MatchEntry{TargetID: "y", DisplayTitle: "Y", Score: 0.95, Reasons: []string{"Close date"}}

	for _, e := range []domitem.MatchEntry{low, high} {
		added, err := r.AppendMatch(ctx, "t", e)
		if err != nil || !added {
			t.Fatalf("AppendMatch(%s) = %v, %v", e.TargetID, added, err)
		}
	}

	added, err := r.AppendMatch(ctx, "t", domitem.MatchEntry{TargetID: "x", Score: 0.99})
	if err != nil || added {
		t.Fatalf("duplicate AppendMatch = %v, %v; want false, nil", added, err)
	}

	got, _ := r.Get(ctx, "t")
	ms := got.Matches()
	if len(ms) != 2 || ms[0].TargetID != "y" || ms[1].TargetID != "x" || ms[1].Score != 0.83 {
		t.Errorf("unexpected matches: %+v", ms)
	}
}

func TestAppendMatch_MissingTarget(t *testing.T) {
	r := New(memory.NewStore())
	_, err := r.AppendMatch(context.Background(), "gone", domitem.MatchEntry{TargetID: "x"})
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestAppendMatch_Conflict(t *testing.T) {
	r := New(&failingStore{Store: memory.NewStore(), hupdateErr: db.ErrTxConflict})
	_, err := r.AppendMatch(context.Background(), "t", domitem.MatchEntry{TargetID: "x"})
	if !errors.Is(err, domain.ErrStoreWrite) || !errors.Is(err, db.ErrTxConflict) {
		t.Errorf("expected ErrStoreWrite wrapping ErrTxConflict, got %v", err)
	}
}

func TestAppendMatch_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	r := New(memory.NewStore())
	target := newItem(t, "t", domitem.KindFound, "Wallet")
	_ = r.Create(ctx, &target)

	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.AppendMatch(ctx, "t", domitem.MatchEntry{TargetID: id, Score: 0.82 + float64(i)/100})
		}()
	}
	wg.Wait()

	got, _ := r.Get(ctx, "t")
	if len(got.Matches()) != len(ids) {
		t.Fatalf("lost updates: %d of %d entries", len(got.Matches()), len(ids))
	}
	for i := 1; i < len(got.Matches()); i++ {
		if got.Matches()[i-1].Score < got.Matches()[i].Score {
			t.Fatal("matches not sorted descending")
		}
	}
}

func TestDecodeMatches_StoredShape(t *testing.T) {
	ms, err := decodeMatches(`[{"id":"b","title":"Gray calculator","score":0.88,"reasons":["Location match"]}]`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ms) != 1 || ms[0].TargetID != "b" || ms[0].DisplayTitle != "Gray calculator" || ms[0].Score != 0.88 {
		t.Errorf("unexpected entry: %+v", ms)
	}

	raw, _ := encodeMatches(domitem.Matches{{TargetID: "b", DisplayTitle: "T", Score: 0.9}})
	if raw != `[{"id":"b","title":"T","score":0.9,"reasons":[]}]` {
		t.Errorf("unexpected encoding: %s", raw)
	}
}

func TestBytesToVector_Invalid(t *testing.T) {
	if _, err := bytesToVector("abc"); err == nil {
		t.Error("expected error for truncated vector")
	}
}
