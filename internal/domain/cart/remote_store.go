// internal/domain/cart/remote_store.go
package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RemoteStore is the commerce API's cart, authoritative for authenticated sessions
type RemoteStore interface {
	Fetch(ctx context.Context) (Cart, error)
	Add(ctx context.Context, req AddRequest) (AddResponse, error)
	Remove(ctx context.Context, itemID string) error
	UpdateQuantity(ctx context.Context, itemID string, quantity int) error
	Clear(ctx context.Context) error
}

// AddRequest is the payload sent to the remote add endpoint
type AddRequest struct {
	ProductID     string          `json:"product_id"`
	Quantity      int             `json:"quantity"`
	SelectedColor string          `json:"selected_color"`
	SelectedSize  string          `json:"selected_size"`
	BlouseOption  string          `json:"blouse_option"`
	Price         decimal.Decimal `json:"price"`
}

// AddResponse is the server's verdict on an add. IsUpdate reports whether the
// server merged into an existing line; Rejection carries a stock refusal.
type AddResponse struct {
	IsUpdate  bool
	Rejection string
}

// Operation names a cart operation for diagnostics
type Operation string

const (
	OperationLoad   Operation = "load"
	OperationAdd    Operation = "add"
	OperationRemove Operation = "remove"
	OperationUpdate Operation = "update_quantity"
	OperationClear  Operation = "clear"
	OperationMerge  Operation = "merge"
)

// Fallback describes a remote failure that the engine absorbed locally
type Fallback struct {
	SessionID  string
	Operation  Operation
	ItemID     string
	ProductID  string
	Err        error
	OccurredAt time.Time
}

// FallbackObserver is notified whenever the local store stands in for the remote one
type FallbackObserver interface {
	RemoteFallback(ctx context.Context, fb Fallback)
}

type nopObserver struct{}

func (nopObserver) RemoteFallback(context.Context, Fallback) {}
