// Package item stores lost-and-found reports as Redis hashes.
package item

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/lostlink/matcher/internal/db"
	"github.com/lostlink/matcher/internal/domain"
	domitem "github.com/lostlink/matcher/internal/domain/item"
)

// store is the consumer interface for items (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	HUpdate(ctx context.Context, key, field string, fn db.UpdateFunc) error
}

// Repo implements the item repositories of the matching and HTTP layers.
type Repo struct {
	store store
}

// New creates an item repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Create stores a new item. Storing an existing ID fails with ErrInvalidItem.
func (r *Repo) Create(ctx context.Context, it *domitem.Item) error {
	key := itemKey(it.ID())

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if exists {
		return fmt.Errorf("item %s already exists: %w", it.ID(), domain.ErrInvalidItem)
	}

	fields, err := buildHashFields(it)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w: %w", key, domain.ErrStoreWrite, err)
	}
	if it.HasEmbedding() {
		if err := r.store.SAdd(ctx, embeddedIndexKey(it.Kind()), it.ID()); err != nil {
			return fmt.Errorf("index %s: %w: %w", it.ID(), domain.ErrStoreWrite, err)
		}
	}
	return nil
}

// Get returns an item by ID.
func (r *Repo) Get(ctx context.Context, id string) (domitem.Item, error) {
	key := itemKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domitem.Item{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domitem.Item{}, domain.ErrItemNotFound
	}
	return parseHashFields(id, m)
}

// SetEmbedding writes the vector and adds the item to its kind's candidate index.
func (r *Repo) SetEmbedding(ctx context.Context, it *domitem.Item) error {
	key := itemKey(it.ID())
	if err := r.store.HSet(ctx, key, map[string]string{fieldEmbedding: vectorToBytes(it.Embedding())}); err != nil {
		return fmt.Errorf("hset %s embedding: %w: %w", key, domain.ErrStoreWrite, err)
	}
	if err := r.store.SAdd(ctx, embeddedIndexKey(it.Kind()), it.ID()); err != nil {
		return fmt.Errorf("index %s: %w: %w", it.ID(), domain.ErrStoreWrite, err)
	}
	return nil
}

// SetMatches replaces the item's match list. No other field is touched.
func (r *Repo) SetMatches(ctx context.Context, id string, matches domitem.Matches) error {
	key := itemKey(id)
	data, err := encodeMatches(matches)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, key, map[string]string{fieldMatches: data}); err != nil {
		return fmt.Errorf("hset %s matches: %w: %w", key, domain.ErrStoreWrite, err)
	}
	return nil
}

// Candidates returns every embedded item of the given kind, ordered by ID.
// Index entries whose hash vanished, changed kind or lost its vector are skipped.
func (r *Repo) Candidates(ctx context.Context, kind domitem.Kind) ([]domitem.Item, error) {
	ids, err := r.store.SMembers(ctx, embeddedIndexKey(kind))
	if err != nil {
		return nil, fmt.Errorf("candidates %s: %w", kind, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	slices.Sort(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = itemKey(id)
	}
	rows, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("candidates %s: %w", kind, err)
	}

	out := make([]domitem.Item, 0, len(rows))
	for i, m := range rows {
		if len(m) == 0 {
			continue
		}
		it, err := parseHashFields(ids[i], m)
		if err != nil || it.Kind() != kind || !it.HasEmbedding() {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// AppendMatch atomically inserts entry into the target's match list, keeping it sorted.
// It reports false when an entry for entry.TargetID was already present.
func (r *Repo) AppendMatch(ctx context.Context, targetID string, entry domitem.MatchEntry) (bool, error) {
	key := itemKey(targetID)
	var added bool

	err := r.store.HUpdate(ctx, key, fieldMatches, func(current string) (string, bool, error) {
		existing, err := decodeMatches(current)
		if err != nil {
			return "", false, err
		}
		next, ok := existing.WithEntry(entry)
		added = ok
		if !ok {
			return "", false, nil
		}
		data, err := encodeMatches(next)
		return data, err == nil, err
	})
	switch {
	case err == nil:
		return added, nil
	case errors.Is(err, db.ErrKeyNotFound):
		return false, domain.ErrItemNotFound
	default:
		return false, fmt.Errorf("append match %s: %w: %w", key, domain.ErrStoreWrite, err)
	}
}

func itemKey(id string) string {
	return domain.KeyPrefix + "item:" + id
}

func embeddedIndexKey(kind domitem.Kind) string {
	return domain.KeyPrefix + "embedded:" + string(kind)
}
