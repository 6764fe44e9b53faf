package matcher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// titleEmbedder returns the vector registered for the report title.
type titleEmbedder struct {
	vectors map[string][]float32
}

func (e *titleEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	for title, v := range e.vectors {
		if strings.HasPrefix(text, "Title: "+title+" Description:") {
			return EmbeddingResult{Embedding: v, TotalTokens: 4}, nil
		}
	}
	return EmbeddingResult{}, errors.New("unexpected text " + text)
}

func newMemoryClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	emb := &titleEmbedder{vectors: map[string][]float32{
		"Black wallet": {1, 0, 0},
		"Wallet found": {0.95, 0.312, 0},
		"Umbrella":     {0, 1, 0},
	}}
	c, err := New(context.Background(), append([]Option{WithMemory(), WithEmbedder(emb)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNew_NoStore(t *testing.T) {
	if _, err := New(context.Background()); err == nil {
		t.Fatal("expected error when no store is configured")
	}
}

func TestCreateStore_UnknownDriver(t *testing.T) {
	if _, err := createStore(&clientConfig{driver: "bolt"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestClient_ReportAndMatch(t *testing.T) {
	ctx := context.Background()
	c := newMemoryClient(t)

	found, err := c.Report(ctx, Report{Kind: Found, Title: "Wallet found", Location: "Library"})
	if err != nil {
		t.Fatalf("Report found: %v", err)
	}
	umbrella, err := c.Report(ctx, Report{Kind: Found, Title: "Umbrella"})
	if err != nil {
		t.Fatalf("Report umbrella: %v", err)
	}
	for _, id := range []string{found.ID, umbrella.ID} {
		if _, err := c.Match(ctx, id); err != nil {
			t.Fatalf("Match %s: %v", id, err)
		}
	}

	lost, err := c.Report(ctx, Report{Kind: Lost, Title: "Black wallet", Location: "Library"})
	if err != nil {
		t.Fatalf("Report lost: %v", err)
	}
	if lost.ID == "" || lost.Embedded || len(lost.Matches) != 0 {
		t.Fatalf("unexpected new item: %+v", lost)
	}

	res, err := c.Match(ctx, lost.ID)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res.Candidates != 2 || len(res.Matches) != 1 || res.Matches[0].ItemID != found.ID {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Linked != 1 {
		t.Errorf("linked = %d, want 1", res.Linked)
	}

	counterpart, err := c.Get(ctx, found.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(counterpart.Matches) != 1 || counterpart.Matches[0].ItemID != lost.ID ||
		counterpart.Matches[0].Title != "Black wallet" {
		t.Errorf("counterpart matches = %+v", counterpart.Matches)
	}

	again, err := c.Match(ctx, lost.ID)
	if err != nil {
		t.Fatalf("second Match: %v", err)
	}
	if again.Linked != 0 {
		t.Errorf("re-run linked %d entries, want 0", again.Linked)
	}
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	c := newMemoryClient(t)

	if _, err := c.Report(ctx, Report{Kind: "Stolen", Title: "Bike"}); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("invalid kind: got %v", err)
	}
	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Get missing: got %v", err)
	}
	if _, err := c.Match(ctx, "missing"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Match missing: got %v", err)
	}

	_, _ = c.Report(ctx, Report{ID: "dup", Kind: Lost, Title: "Black wallet"})
	if _, err := c.Report(ctx, Report{ID: "dup", Kind: Lost, Title: "Black wallet"}); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("duplicate id: got %v", err)
	}
}

func TestClient_MatchWithoutEmbedder(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, WithMemory())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	it, err := c.Report(ctx, Report{Kind: Lost, Title: "Keys"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if _, err := c.Match(ctx, it.ID); !errors.Is(err, ErrEmbeddingProviderError) {
		t.Errorf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestClient_ThresholdOption(t *testing.T) {
	ctx := context.Background()
	c := newMemoryClient(t, WithThreshold(0.99), WithBonuses(0, 0, 0, 0))

	found, _ := c.Report(ctx, Report{Kind: Found, Title: "Wallet found"})
	_, _ = c.Match(ctx, found.ID)
	lost, _ := c.Report(ctx, Report{Kind: Lost, Title: "Black wallet"})

	res, err := c.Match(ctx, lost.ID)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(res.Matches) != 0 {
		t.Errorf("expected no matches above 0.99, got %+v", res.Matches)
	}
}

func TestClient_HealthAndPing(t *testing.T) {
	c := newMemoryClient(t)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	h := c.Health(context.Background())
	if h.Status != "ok" || h.Checks["database"] != "ok" {
		t.Errorf("unexpected health: %+v", h)
	}
}

func TestClient_PrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newMemoryClient(t, WithPrometheus(reg))

	_ = c.Ping(context.Background())
	_, _ = c.Get(context.Background(), "missing")

	if got := testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("ping", "ok")); got != 1 {
		t.Errorf("ping ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("get", "error")); got != 1 {
		t.Errorf("get error = %v, want 1", got)
	}

	// A second client on the same registry reuses the collectors.
	c2 := newMemoryClient(t, WithPrometheus(reg))
	if c2.obs.metrics.operations != c.obs.metrics.operations {
		t.Error("expected collectors to be reused")
	}
}

func TestObserver_Nil(t *testing.T) {
	var o *observer
	o.observe("noop", time.Time{}, errors.New("ignored"))
}
