package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

var errRemoteDown = errors.New("commerce api unavailable")

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// memStorage is an in-memory Storage. Like redis it fails calls made on a
// finished context.
type memStorage struct {
	mu     sync.Mutex
	blobs  map[string]string
	getErr error
}

func newMemStorage() *memStorage {
	return &memStorage{blobs: make(map[string]string)}
}

func (m *memStorage) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.blobs[key]
	if !ok {
		return "", ErrNotStored
	}
	return v, nil
}

func (m *memStorage) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	m.blobs[key] = string(value)
	return nil
}

func (m *memStorage) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(m.blobs, key)
	return nil
}

func (m *memStorage) cart(t *testing.T, key string) Cart {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var items Cart
	if blob, ok := m.blobs[key]; ok {
		if err := json.Unmarshal([]byte(blob), &items); err != nil {
			t.Fatalf("stored blob is not a cart: %v", err)
		}
	}
	return items
}

func (m *memStorage) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok
}

// fakeRemote mimics the commerce API cart. Products registered in catalog
// supply stock and prices to stored lines.
type fakeRemote struct {
	mu       sync.Mutex
	items    Cart
	catalog  map[string]Product
	err      error
	fetchErr error
	addErr   map[string]error
	nextID   int
	calls    []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{catalog: make(map[string]Product), addErr: make(map[string]error)}
}

func (f *fakeRemote) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeRemote) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == prefix {
			n++
		}
	}
	return n
}

func (f *fakeRemote) Fetch(context.Context) (Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("fetch")
	if f.err != nil {
		return nil, f.err
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.items.Clone(), nil
}

func (f *fakeRemote) Add(_ context.Context, req AddRequest) (AddResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("add")
	if f.err != nil {
		return AddResponse{}, f.err
	}
	if err := f.addErr[req.ProductID]; err != nil {
		return AddResponse{}, err
	}

	product, ok := f.catalog[req.ProductID]
	if !ok {
		product = Product{ID: ID(req.ProductID)}
	}
	stock := product.EffectiveStock()

	if idx := f.items.FindByIdentity(req.ProductID, req.SelectedColor, req.SelectedSize); idx >= 0 {
		quantity := f.items[idx].Quantity + req.Quantity
		if quantity > stock {
			return AddResponse{Rejection: StockMessage(stock)}, nil
		}
		f.items[idx].Quantity = quantity
		return AddResponse{IsUpdate: true}, nil
	}

	if req.Quantity > stock {
		return AddResponse{Rejection: StockMessage(stock)}, nil
	}
	f.nextID++
	f.items = append(f.items, CartItem{
		ID:            ID(fmt.Sprintf("srv-%d", f.nextID)),
		Product:       product,
		Quantity:      req.Quantity,
		SelectedColor: req.SelectedColor,
		SelectedSize:  req.SelectedSize,
		BlouseOption:  req.BlouseOption,
		Price:         req.Price,
	})
	return AddResponse{}, nil
}

func (f *fakeRemote) Remove(_ context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("remove")
	if f.err != nil {
		return f.err
	}
	if idx := f.items.FindByID(itemID); idx >= 0 {
		f.items = append(f.items[:idx], f.items[idx+1:]...)
	}
	return nil
}

func (f *fakeRemote) UpdateQuantity(_ context.Context, itemID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update")
	if f.err != nil {
		return f.err
	}
	if idx := f.items.FindByID(itemID); idx >= 0 {
		f.items[idx].Quantity = quantity
	}
	return nil
}

func (f *fakeRemote) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("clear")
	if f.err != nil {
		return f.err
	}
	f.items = nil
	return nil
}

// recordingObserver collects fallbacks
type recordingObserver struct {
	mu        sync.Mutex
	fallbacks []Fallback
}

func (o *recordingObserver) RemoteFallback(_ context.Context, fb Fallback) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallbacks = append(o.fallbacks, fb)
}

func (o *recordingObserver) operations() []Operation {
	o.mu.Lock()
	defer o.mu.Unlock()
	ops := make([]Operation, len(o.fallbacks))
	for i, fb := range o.fallbacks {
		ops[i] = fb.Operation
	}
	return ops
}

type harness struct {
	storage  *memStorage
	local    *LocalStore
	remote   *fakeRemote
	observer *recordingObserver
	engine   *Engine
}

func newHarness(mergeOnLogin bool) *harness {
	h := &harness{
		storage:  newMemStorage(),
		remote:   newFakeRemote(),
		observer: &recordingObserver{},
	}
	h.local = NewLocalStore(h.storage, "sess-1", time.Hour, quietLogger())
	h.engine = NewEngine("sess-1", h.local, h.remote, Options{
		Logger:       quietLogger(),
		Observer:     h.observer,
		MergeOnLogin: mergeOnLogin,
	})
	return h
}
