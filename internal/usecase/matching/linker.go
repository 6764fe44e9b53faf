package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lostlink/matcher/internal/domain"
	domitem "github.com/lostlink/matcher/internal/domain/item"
)

// Linker records the reverse edge on a counterpart's match list.
// Updates to the same target are serialized in-process; the store's
// compare-and-set guards against writers in other processes.
type Linker struct {
	repo     Repository
	attempts int
	locks    keyedMutex
}

// NewLinker creates a linker. attempts < 1 means a single attempt.
func NewLinker(repo Repository, attempts int) *Linker {
	if attempts < 1 {
		attempts = 1
	}
	return &Linker{repo: repo, attempts: attempts}
}

// Link appends entry to targetID's matches. It reports false when the target
// already held an entry for entry.TargetID. A missing target is not retried.
func (l *Linker) Link(ctx context.Context, targetID string, entry domitem.MatchEntry) (bool, error) {
	unlock := l.locks.lock(targetID)
	defer unlock()

	var err error
	for range l.attempts {
		if err = ctx.Err(); err != nil {
			break
		}
		var added bool
		added, err = l.repo.AppendMatch(ctx, targetID, entry)
		if err == nil {
			return added, nil
		}
		if errors.Is(err, domain.ErrItemNotFound) {
			break
		}
	}
	return false, fmt.Errorf("link %s -> %s: %w", targetID, entry.TargetID, err)
}

// keyedMutex hands out one mutex per key and drops it once nobody holds it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
