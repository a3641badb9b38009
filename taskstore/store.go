package taskstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/IDGHIM/TaskFlow/domain"
)

const defaultPersistTimeout = 5 * time.Second

// Config carries the collaborators shared by every store. Only Clock is
// required; everything else is optional.
type Config struct {
	Clock          Clock
	Persister      Persister
	Publisher      Publisher
	Metrics        *Metrics
	Logger         *log.Logger
	PersistTimeout time.Duration
	SeedDemo       bool
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = RealClock{}
	}
	if c.Logger == nil {
		c.Logger = log.StandardLogger()
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = defaultPersistTimeout
	}
	return c
}

// Store owns the task list of a single owner. Writers are serialized; readers
// load the latest immutable snapshot without locking, so a read always
// observes the result of some prefix of the applied commands.
type Store struct {
	owner string
	cfg   Config

	mu    sync.Mutex
	state atomic.Pointer[domain.State]

	subsMu sync.Mutex
	subs   map[chan struct{}]struct{}
}

// New creates a store for owner starting from initial.
func New(owner string, initial domain.State, cfg Config) *Store {
	s := &Store{
		owner: owner,
		cfg:   cfg.withDefaults(),
		subs:  make(map[chan struct{}]struct{}),
	}
	initial = domain.NewState(initial.Tasks).WithNextID(initial.NextID)
	s.state.Store(&initial)
	return s
}

// Owner returns the identifier of the list owner.
func (s *Store) Owner() string { return s.owner }

// Snapshot returns the current state.
func (s *Store) Snapshot() domain.State {
	return *s.state.Load()
}

// View projects the current state for q using today's date from the clock.
func (s *Store) View(q domain.Query) domain.View {
	return domain.Project(s.Snapshot(), q, Today(s.cfg.Clock))
}

// Counts aggregates the current task list.
func (s *Store) Counts() domain.Counts {
	return domain.Count(s.Snapshot().Tasks)
}

// Dispatch applies cmd. Persistence and publishing happen before Dispatch
// returns and in the same order as the commands; their failures are logged
// and never undo the in-memory change.
func (s *Store) Dispatch(ctx context.Context, cmd domain.Command) domain.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := domain.Apply(s.Snapshot(), cmd)
	s.cfg.Metrics.observeCommand(cmd.Type(), out)
	logger := s.cfg.Logger.WithFields(log.Fields{"owner": s.owner, "command": cmd.Type()})
	if !out.Changed {
		logger.Debug("command had no effect")
		return out
	}

	next := out.State
	s.state.Store(&next)
	logger.WithField("events", len(out.Events)).Debug("command applied")

	if len(out.Events) > 0 {
		s.persist(ctx, next)
		s.publish(ctx, out.Events)
	}
	s.notify()
	return out
}

func (s *Store) persist(ctx context.Context, state domain.State) {
	if s.cfg.Persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PersistTimeout)
	defer cancel()
	if err := s.cfg.Persister.Save(ctx, s.owner, state); err != nil {
		s.cfg.Metrics.persistFailed()
		s.cfg.Logger.WithError(err).WithField("owner", s.owner).Error("failed to persist task list")
	}
}

func (s *Store) publish(ctx context.Context, events []domain.Event) {
	if s.cfg.Publisher == nil {
		return
	}
	batch := make([]Event, 0, len(events))
	for _, ev := range events {
		batch = append(batch, newEvent(uuid.NewString(), s.owner, ev))
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PersistTimeout)
	defer cancel()
	if err := s.cfg.Publisher.Publish(ctx, batch); err != nil {
		s.cfg.Metrics.publishFailed()
		s.cfg.Logger.WithError(err).WithFields(log.Fields{"owner": s.owner, "count": len(batch)}).Error("failed to publish task events")
	}
}

// Subscribe registers for change notifications. The returned channel receives
// a value after each effective command; notifications coalesce when the
// subscriber lags. Call cancel to unsubscribe.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()
	return ch, func() {
		s.subsMu.Lock()
		delete(s.subs, ch)
		s.subsMu.Unlock()
	}
}

func (s *Store) notify() {
	s.subsMu.Lock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.subsMu.Unlock()
}
