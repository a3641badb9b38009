package taskstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/IDGHIM/TaskFlow/domain"
)

// DefaultOwner is used when requests carry no identity.
const DefaultOwner = "local"

// Registry hands out one Store per owner, creating it on first use.
type Registry struct {
	cfg Config

	mu      sync.Mutex
	stores  map[string]*Store
	loading map[string]*pendingStore
}

// pendingStore is an owner whose initial state is being loaded. Concurrent
// callers for the same owner wait on done and share the result.
type pendingStore struct {
	done  chan struct{}
	store *Store
	err   error
}

// NewRegistry creates an empty registry sharing cfg between its stores.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:     cfg.withDefaults(),
		stores:  make(map[string]*Store),
		loading: make(map[string]*pendingStore),
	}
}

// Get returns the store of owner. A new store is restored from the persister
// when one is configured and holds data, seeded with the demo tasks when
// SeedDemo is set, and empty otherwise. The persister is called without
// holding the registry lock, at most once per owner at a time.
func (r *Registry) Get(ctx context.Context, owner string) (*Store, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		owner = DefaultOwner
	}

	r.mu.Lock()
	if s, ok := r.stores[owner]; ok {
		r.mu.Unlock()
		return s, nil
	}
	if p, ok := r.loading[owner]; ok {
		r.mu.Unlock()
		select {
		case <-p.done:
			return p.store, p.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p := &pendingStore{done: make(chan struct{})}
	r.loading[owner] = p
	r.mu.Unlock()

	initial, source, err := r.initialState(ctx, owner)

	r.mu.Lock()
	delete(r.loading, owner)
	if err == nil {
		p.store = New(owner, initial, r.cfg)
		r.stores[owner] = p.store
	}
	p.err = err
	r.mu.Unlock()
	close(p.done)

	if err != nil {
		return nil, err
	}
	r.cfg.Metrics.storeAdded()
	r.cfg.Logger.WithFields(log.Fields{"owner": owner, "source": source, "tasks": len(initial.Tasks)}).Info("task list opened")
	return p.store, nil
}

func (r *Registry) initialState(ctx context.Context, owner string) (domain.State, string, error) {
	if r.cfg.Persister != nil {
		st, found, err := r.cfg.Persister.Load(ctx, owner)
		if err != nil {
			return domain.State{}, "", fmt.Errorf("load task list %s: %w", owner, err)
		}
		if found {
			return st, "persisted", nil
		}
	}
	if r.cfg.SeedDemo {
		return domain.NewState(domain.DemoTasks()), "demo", nil
	}
	return domain.NewState(nil), "empty", nil
}

// Len returns the number of open stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
