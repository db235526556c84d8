package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/domain/cart"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestClient_GetMissing(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Get(context.Background(), "cart:session:none")
	if !errors.Is(err, cart.ErrNotStored) {
		t.Errorf("expected cart.ErrNotStored, got %v", err)
	}
}

func TestClient_SetGetDel(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	if err := client.Set(ctx, "k", []byte(`[]`), time.Hour); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := client.Get(ctx, "k")
	if err != nil || got != "[]" {
		t.Fatalf("expected [] got %q (%v)", got, err)
	}
	if ttl := mr.TTL("k"); ttl != time.Hour {
		t.Errorf("expected ttl 1h, got %s", ttl)
	}

	if err := client.Del(ctx, "k"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if mr.Exists("k") {
		t.Error("expected key to be deleted")
	}
}

func TestClient_Expiry(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	if err := client.Set(ctx, "k", []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := client.Get(ctx, "k"); !errors.Is(err, cart.ErrNotStored) {
		t.Errorf("expected expired key to be absent, got %v", err)
	}
}

func TestClient_BacksLocalStore(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)
	store := cart.NewLocalStore(client, "s1", time.Hour, nil)

	items := cart.Cart{{ID: "a", Product: cart.Product{ID: "7"}, Quantity: 2}}
	if err := store.Save(ctx, items); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !mr.Exists("cart:session:s1") {
		t.Fatal("expected blob under the session key")
	}

	loaded := store.Load(ctx)
	if len(loaded) != 1 || loaded[0].Quantity != 2 {
		t.Errorf("unexpected loaded cart %+v", loaded)
	}
}

func TestClient_Health(t *testing.T) {
	client, mr := newTestClient(t)

	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("expected healthy redis, got %v", err)
	}
	mr.Close()
	if err := client.Health(context.Background()); err == nil {
		t.Error("expected health check to fail after redis stops")
	}
}

// unreachableRemote fails every call with the context's error, as the commerce
// client does once a request deadline has passed.
type unreachableRemote struct{}

func (unreachableRemote) Fetch(ctx context.Context) (cart.Cart, error) {
	return nil, ctx.Err()
}

func (unreachableRemote) Add(ctx context.Context, _ cart.AddRequest) (cart.AddResponse, error) {
	return cart.AddResponse{}, ctx.Err()
}

func (unreachableRemote) Remove(ctx context.Context, _ string) error {
	return ctx.Err()
}

func (unreachableRemote) UpdateQuantity(ctx context.Context, _ string, _ int) error {
	return ctx.Err()
}

func (unreachableRemote) Clear(ctx context.Context) error {
	return ctx.Err()
}

func TestClient_LocalFallbackAfterRequestCancelled(t *testing.T) {
	client, _ := newTestClient(t)
	logger, hook := test.NewNullLogger()
	store := cart.NewLocalStore(client, "s1", time.Hour, logger)
	engine := cart.NewEngine("s1", store, unreachableRemote{}, cart.Options{Logger: logger})

	engine.SetAuthenticated(context.Background(), false)
	engine.Add(context.Background(), cart.AddInput{Product: cart.Product{ID: "x"}, Quantity: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine.SetAuthenticated(ctx, true)
	if items := engine.Items(); len(items) != 1 {
		t.Fatalf("expected the stored cart after a cancelled authenticated load, got %+v", items)
	}

	result := engine.Add(ctx, cart.AddInput{Product: cart.Product{ID: "y"}, Quantity: 1})
	if !result.Success || result.Source != cart.SourceLocal {
		t.Fatalf("expected a local add, got %+v", result)
	}
	if stored := store.Load(context.Background()); len(stored) != 2 {
		t.Errorf("expected both lines in redis, got %+v", stored)
	}

	for _, entry := range hook.AllEntries() {
		if entry.Message == "Failed to persist local cart" {
			t.Errorf("unexpected persist failure: %v", entry.Data)
		}
	}
}
