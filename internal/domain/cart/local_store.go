// internal/domain/cart/local_store.go
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNotStored is returned by a Storage when no blob exists under a key
var ErrNotStored = errors.New("cart: nothing stored under key")

// Storage is the key-value backend of the local cart store
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// LocalKey returns the storage key holding a session's cart blob
func LocalKey(sessionID string) string {
	return fmt.Sprintf("cart:session:%s", sessionID)
}

// LocalStore persists a whole cart as one JSON array blob
type LocalStore struct {
	storage Storage
	key     string
	ttl     time.Duration
	logger  logrus.FieldLogger
}

// NewLocalStore creates a local store for a session
func NewLocalStore(storage Storage, sessionID string, ttl time.Duration, logger logrus.FieldLogger) *LocalStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LocalStore{
		storage: storage,
		key:     LocalKey(sessionID),
		ttl:     ttl,
		logger:  logger.WithField("cart_key", LocalKey(sessionID)),
	}
}

// Key returns the storage key of this store
func (s *LocalStore) Key() string {
	return s.key
}

// Load reads the stored cart. A missing or unreadable blob yields an empty
// cart; this never fails.
func (s *LocalStore) Load(ctx context.Context) Cart {
	items, err := s.Read(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read local cart, starting empty")
		return Cart{}
	}
	return items
}

// Read returns the stored cart, or an error when the storage could not be
// read. A missing or corrupt blob is an empty cart.
func (s *LocalStore) Read(ctx context.Context) (Cart, error) {
	data, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, ErrNotStored) {
		return Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read local cart: %w", err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(data), &rows); err != nil {
		s.logger.WithError(err).Warn("Local cart blob is corrupt, starting empty")
		return Cart{}, nil
	}

	items := make(Cart, 0, len(rows))
	for i, row := range rows {
		var item CartItem
		if err := json.Unmarshal(row, &item); err != nil {
			s.logger.WithError(err).WithField("index", i).Warn("Skipping unreadable local cart line")
			continue
		}
		if item.Product.ID == "" {
			s.logger.WithField("index", i).Warn("Skipping local cart line without product")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Save replaces the stored blob with the given cart
func (s *LocalStore) Save(ctx context.Context, items Cart) error {
	if items == nil {
		items = Cart{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode local cart: %w", err)
	}
	if err := s.storage.Set(ctx, s.key, data, s.ttl); err != nil {
		return fmt.Errorf("failed to save local cart: %w", err)
	}
	return nil
}

// Clear removes the stored blob
func (s *LocalStore) Clear(ctx context.Context) error {
	if err := s.storage.Del(ctx, s.key); err != nil {
		return fmt.Errorf("failed to clear local cart: %w", err)
	}
	return nil
}
