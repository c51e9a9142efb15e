package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"khabiteq-backend/storage"
)

// SelectionRegistry hands out one loaded SelectionCache per owner.
type SelectionRegistry struct {
	factory storage.Factory
	logger  *zap.Logger
	loads   singleflight.Group
	now     func() time.Time

	mu     sync.Mutex
	caches map[string]*trackedSelection
}

type trackedSelection struct {
	cache    *SelectionCache
	lastUsed time.Time
}

func NewSelectionRegistry(factory storage.Factory, logger *zap.Logger) *SelectionRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionRegistry{
		factory: factory,
		logger:  logger,
		now:     time.Now,
		caches:  make(map[string]*trackedSelection),
	}
}

func (r *SelectionRegistry) lookup(ownerID string) (*SelectionCache, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.caches[ownerID]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.cache, true
}

// Get returns the owner's cache, loading it from storage on first use. Loads
// run outside the registry lock and concurrent loads of one owner share a
// single read. A cache whose load failed is not kept, so the next call retries.
func (r *SelectionRegistry) Get(ctx context.Context, ownerID string) (*SelectionCache, error) {
	if c, ok := r.lookup(ownerID); ok {
		return c, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := r.loads.DoChan(ownerID, func() (any, error) {
		if c, ok := r.lookup(ownerID); ok {
			return c, nil
		}
		c := NewSelectionCache(r.factory(ownerID), r.logger.With(zap.String("owner", ownerID)))
		if err := c.Load(loadCtx); err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.caches[ownerID] = &trackedSelection{cache: c, lastUsed: r.now()}
		r.mu.Unlock()
		return c, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*SelectionCache), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Forget drops the in-memory cache for an owner. Stored values are untouched.
func (r *SelectionRegistry) Forget(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caches, ownerID)
}

// EvictIdle forgets caches not used for maxIdle and reports how many went.
func (r *SelectionRegistry) EvictIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	n := 0
	for owner, e := range r.caches {
		if e.lastUsed.Before(cutoff) {
			delete(r.caches, owner)
			n++
		}
	}
	return n
}
