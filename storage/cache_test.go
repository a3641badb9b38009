package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/IDGHIM/TaskFlow/domain"
	"github.com/IDGHIM/TaskFlow/taskstore"
)

type stubPersister struct {
	loadFn func(ctx context.Context, owner string) (domain.State, bool, error)
	saveFn func(ctx context.Context, owner string, st domain.State) error
}

func (s *stubPersister) Load(ctx context.Context, owner string) (domain.State, bool, error) {
	if s.loadFn == nil {
		return domain.State{}, false, errors.New("unexpected Load call")
	}
	return s.loadFn(ctx, owner)
}

func (s *stubPersister) Save(ctx context.Context, owner string, st domain.State) error {
	if s.saveFn == nil {
		return errors.New("unexpected Save call")
	}
	return s.saveFn(ctx, owner, st)
}

func quietLogger() *log.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheLoadMissThenHit(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	expected := domain.NewState(domain.DemoTasks())

	var calls int
	cache := NewCache(&stubPersister{
		loadFn: func(ctx context.Context, owner string) (domain.State, bool, error) {
			calls++
			if owner != "user-1" {
				t.Fatalf("unexpected owner: %s", owner)
			}
			return expected, true, nil
		},
	}, client, time.Minute)

	st, found, err := cache.Load(ctx, "user-1")
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if !reflect.DeepEqual(st.Tasks, expected.Tasks) {
		t.Fatalf("unexpected tasks: %#v", st.Tasks)
	}
	if ttl := mr.TTL(tasksCacheKey("user-1")); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	cached, _, err := cache.Load(ctx, "user-1")
	if err != nil {
		t.Fatalf("load cached: %v", err)
	}
	if !reflect.DeepEqual(cached.Tasks, expected.Tasks) || cached.NextID != 4 {
		t.Fatalf("unexpected cached state: %#v", cached)
	}
	if calls != 1 {
		t.Fatalf("expected cached load to avoid base, calls=%d", calls)
	}
}

func TestCacheWithoutBaseIsPrimaryStore(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	cache := NewCache(nil, client, time.Minute)

	if _, found, err := cache.Load(ctx, "u"); err != nil || found {
		t.Fatalf("expected empty store, found=%v err=%v", found, err)
	}

	st := domain.NewState([]domain.Task{{ID: 7, Text: "Ship it", Priority: domain.PriorityLow, Category: domain.CategoryWork}}).WithNextID(12)
	if err := cache.Save(ctx, "u", st); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL(tasksCacheKey("u")); ttl != 0 {
		t.Fatalf("primary entries must not expire, ttl=%v", ttl)
	}

	got, found, err := cache.Load(ctx, "u")
	if err != nil || !found {
		t.Fatalf("reload: found=%v err=%v", found, err)
	}
	if !reflect.DeepEqual(got.Tasks, st.Tasks) || got.NextID != 12 {
		t.Fatalf("unexpected state: %#v", got)
	}
}

func TestCacheWithoutBaseReportsRedisErrors(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	cache := NewCache(nil, client, 0)

	st := domain.NewState([]domain.Task{{ID: 7, Text: "precious", Priority: domain.PriorityHigh, Category: domain.CategoryWork}}).WithNextID(12)
	if err := cache.Save(ctx, "u", st); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.SetError("LOADING Redis is loading the dataset in memory")
	if _, found, err := cache.Load(ctx, "u"); err == nil || found {
		t.Fatalf("expected redis error, found=%v err=%v", found, err)
	}

	reg := taskstore.NewRegistry(taskstore.Config{Persister: cache, SeedDemo: true, Logger: quietLogger()})
	if _, err := reg.Get(ctx, "u"); err == nil {
		t.Fatal("expected registry to fail instead of seeding demo tasks")
	}
	if reg.Len() != 0 {
		t.Fatalf("no store should be opened during the outage, got %d", reg.Len())
	}

	mr.SetError("")
	store, err := reg.Get(ctx, "u")
	if err != nil {
		t.Fatalf("get after recovery: %v", err)
	}
	if !reflect.DeepEqual(store.Snapshot().Tasks, st.Tasks) {
		t.Fatalf("expected persisted tasks, got %#v", store.Snapshot().Tasks)
	}
	out := store.Dispatch(ctx, domain.AddTask{Text: "new"})
	if !out.Changed || out.State.Tasks[0].ID != 12 {
		t.Fatalf("expected id 12 after restore, got %+v", out.State.Tasks)
	}
}

func TestCacheRedisErrorFallsBackToBase(t *testing.T) {
	mr, client := newRedis(t)
	cache := NewCache(&stubPersister{
		loadFn: func(ctx context.Context, owner string) (domain.State, bool, error) {
			return domain.NewState(domain.DemoTasks()), true, nil
		},
	}, client, time.Minute)

	mr.SetError("LOADING Redis is loading the dataset in memory")
	st, found, err := cache.Load(context.Background(), "u")
	if err != nil || !found || len(st.Tasks) != 3 {
		t.Fatalf("expected base state, got found=%v err=%v tasks=%d", found, err, len(st.Tasks))
	}
}

func TestCacheSaveFailureEvicts(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	if err := mr.Set(tasksCacheKey("u"), `{"tasks":[],"nextId":1}`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cache := NewCache(&stubPersister{
		saveFn: func(ctx context.Context, owner string, st domain.State) error {
			return errors.New("table unavailable")
		},
	}, client, time.Minute)

	if err := cache.Save(ctx, "u", domain.NewState(nil)); err == nil {
		t.Fatal("expected save error")
	}
	if mr.Exists(tasksCacheKey("u")) {
		t.Fatal("expected cache entry to be evicted")
	}
}

func TestCacheCorruptEntryFallsBack(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	if err := mr.Set(tasksCacheKey("u"), "not-json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cache := NewCache(&stubPersister{
		loadFn: func(ctx context.Context, owner string) (domain.State, bool, error) {
			return domain.NewState(domain.DemoTasks()), true, nil
		},
	}, client, time.Minute)

	st, found, err := cache.Load(ctx, "u")
	if err != nil || !found || len(st.Tasks) != 3 {
		t.Fatalf("expected base state, got found=%v err=%v tasks=%d", found, err, len(st.Tasks))
	}
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		conn     string
		addr     string
		password string
		tls      bool
	}{
		{name: "url", conn: "redis://:secret@localhost:6379/0", addr: "localhost:6379", password: "secret"},
		{name: "azure style", conn: "cache.example.net:6380,password=pw,ssl=True,abortConnect=False", addr: "cache.example.net:6380", password: "pw", tls: true},
		{name: "bare host", conn: "localhost:6379", addr: "localhost:6379"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := RedisOptions(tt.conn)
			if opts.Addr != tt.addr {
				t.Fatalf("addr = %q, want %q", opts.Addr, tt.addr)
			}
			if opts.Password != tt.password {
				t.Fatalf("password = %q, want %q", opts.Password, tt.password)
			}
			if (opts.TLSConfig != nil) != tt.tls {
				t.Fatalf("tls = %v, want %v", opts.TLSConfig != nil, tt.tls)
			}
		})
	}
}
