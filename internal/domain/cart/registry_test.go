package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type registryFixture struct {
	storage *memStorage
	remote  *fakeRemote
	merge   bool
	created int
	mu      sync.Mutex
}

func (f *registryFixture) factory(sessionID string) *Engine {
	f.mu.Lock()
	f.created++
	f.mu.Unlock()
	local := NewLocalStore(f.storage, sessionID, time.Hour, quietLogger())
	return NewEngine(sessionID, local, f.remote, Options{Logger: quietLogger(), MergeOnLogin: f.merge})
}

func newRegistryFixture() (*registryFixture, *Registry) {
	f := &registryFixture{storage: newMemStorage(), remote: newFakeRemote()}
	return f, NewRegistry(f.factory, time.Minute, quietLogger())
}

func TestRegistry_RequiresSession(t *testing.T) {
	_, registry := newRegistryFixture()

	_, err := registry.Acquire(context.Background(), "", Principal{})
	if !errors.Is(err, ErrSessionRequired) {
		t.Errorf("expected ErrSessionRequired, got %v", err)
	}
}

func TestRegistry_ReusesEngine(t *testing.T) {
	ctx := context.Background()
	f, registry := newRegistryFixture()

	first, err := registry.Acquire(ctx, "s1", Principal{})
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	second, _ := registry.Acquire(ctx, "s1", Principal{})
	other, _ := registry.Acquire(ctx, "s2", Principal{})

	if first != second {
		t.Error("expected the same engine for one session")
	}
	if first == other {
		t.Error("expected distinct engines for distinct sessions")
	}
	if f.created != 2 || registry.Len() != 2 {
		t.Errorf("expected 2 engines, created %d, live %d", f.created, registry.Len())
	}
}

func TestRegistry_ConcurrentFirstAcquire(t *testing.T) {
	ctx := context.Background()
	f, registry := newRegistryFixture()

	engines := make([]*Engine, 16)
	var wg sync.WaitGroup
	for i := range engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engines[i], _ = registry.Acquire(ctx, "s1", Principal{})
		}(i)
	}
	wg.Wait()

	for _, e := range engines[1:] {
		if e != engines[0] {
			t.Fatal("expected every caller to receive the same engine")
		}
	}
	if f.created != 1 {
		t.Errorf("expected one engine to be built, got %d", f.created)
	}
}

func TestRegistry_AppliesAuthentication(t *testing.T) {
	ctx := context.Background()
	f, registry := newRegistryFixture()

	engine, _ := registry.Acquire(ctx, "s1", Principal{})
	if engine.State() != StateAnonymous {
		t.Fatalf("expected anonymous engine, got %s", engine.State())
	}

	registry.Acquire(ctx, "s1", Principal{UserID: "42"})
	if engine.State() != StateAuthenticated {
		t.Errorf("expected authenticated engine, got %s", engine.State())
	}
	if f.remote.callCount("fetch") != 1 {
		t.Errorf("expected one remote load on login, got %d", f.remote.callCount("fetch"))
	}
}

func TestRegistry_PrincipalChangeReloads(t *testing.T) {
	ctx := context.Background()
	f, registry := newRegistryFixture()

	registry.Acquire(ctx, "s1", Principal{UserID: "42"})
	registry.Acquire(ctx, "s1", Principal{UserID: "42"})
	if got := f.remote.callCount("fetch"); got != 1 {
		t.Fatalf("expected a single load for the same user, got %d", got)
	}

	registry.Acquire(ctx, "s1", Principal{UserID: "43"})
	if got := f.remote.callCount("fetch"); got != 2 {
		t.Errorf("expected a reload for a different user, got %d fetches", got)
	}
}

func TestRegistry_ReleaseAndSweep(t *testing.T) {
	ctx := context.Background()
	_, registry := newRegistryFixture()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	registry.now = func() time.Time { return now }

	registry.Acquire(ctx, "old", Principal{})
	now = start.Add(50 * time.Second)
	registry.Acquire(ctx, "fresh", Principal{})
	registry.Acquire(ctx, "gone", Principal{})

	registry.Release("gone")
	if registry.Len() != 2 {
		t.Fatalf("expected 2 live sessions after release, got %d", registry.Len())
	}

	if evicted := registry.Sweep(start.Add(90 * time.Second)); evicted != 1 {
		t.Errorf("expected 1 idle session evicted, got %d", evicted)
	}
	if registry.Len() != 1 {
		t.Errorf("expected 1 live session, got %d", registry.Len())
	}
}

func TestRegistry_EngineSurvivesEviction(t *testing.T) {
	ctx := context.Background()
	_, registry := newRegistryFixture()

	engine, _ := registry.Acquire(ctx, "s1", Principal{})
	engine.Add(ctx, AddInput{Product: Product{ID: "x"}, Quantity: 2})
	registry.Release("s1")

	fresh, _ := registry.Acquire(ctx, "s1", Principal{})
	if fresh == engine {
		t.Fatal("expected a new engine after release")
	}
	if items := fresh.Items(); len(items) != 1 || items[0].Quantity != 2 {
		t.Errorf("expected the local cart to be reloaded, got %+v", items)
	}
}

func TestRegistry_MergesLocalCartAfterEviction(t *testing.T) {
	ctx := context.Background()
	f, registry := newRegistryFixture()
	f.merge = true
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return start }

	engine, _ := registry.Acquire(ctx, "s1", Principal{})
	engine.Add(ctx, AddInput{Product: Product{ID: "x"}, Quantity: 2})
	if evicted := registry.Sweep(start.Add(time.Hour)); evicted != 1 {
		t.Fatalf("expected the anonymous session to be evicted, got %d", evicted)
	}

	engine, _ = registry.Acquire(ctx, "s1", Principal{UserID: "7"})
	if f.remote.callCount("add") != 1 {
		t.Fatalf("expected the stored cart to be pushed once, got %d adds", f.remote.callCount("add"))
	}
	if items := engine.Items(); len(items) != 1 || items[0].Quantity != 2 || items[0].ID != "srv-1" {
		t.Errorf("expected the merged remote line, got %+v", items)
	}
	if f.storage.has(LocalKey("s1")) {
		t.Error("expected the local blob to be cleared after the merge")
	}

	registry.Release("s1")
	registry.Acquire(ctx, "s1", Principal{UserID: "7"})
	if f.remote.callCount("add") != 1 {
		t.Errorf("expected no second push for a merged cart, got %d adds", f.remote.callCount("add"))
	}
}

func TestRegistry_LoginAfterEvictionWithoutMergeKeepsLocalCart(t *testing.T) {
	ctx := context.Background()
	f, registry := newRegistryFixture()

	engine, _ := registry.Acquire(ctx, "s1", Principal{})
	engine.Add(ctx, AddInput{Product: Product{ID: "x"}, Quantity: 2})
	registry.Release("s1")

	registry.Acquire(ctx, "s1", Principal{UserID: "7"})
	if f.remote.callCount("add") != 0 {
		t.Error("expected no push with login merge disabled")
	}
	if !f.storage.has(LocalKey("s1")) {
		t.Error("expected the anonymous blob to be kept")
	}
}
