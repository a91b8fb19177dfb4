package memory

import (
	"context"
	"sync"
)

// keyedLocks hands out one context-aware mutex per id.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[int64]chan struct{}
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[int64]chan struct{})}
}

func (k *keyedLocks) lock(ctx context.Context, id int64) (func(), error) {
	k.mu.Lock()
	ch, ok := k.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		k.locks[id] = ch
	}
	k.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
