// internal/infrastructure/commerce/rows.go
package commerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/varalakshmimaha/Mahafashion-sub000/internal/domain/cart"
)

// rowRef holds the parts of a server row that CartItem does not decode itself
type rowRef struct {
	Product   json.RawMessage `json:"product"`
	ProductID cart.ID         `json:"product_id"`
	CreatedAt string          `json:"created_at"`
}

// decodeRows accepts a bare JSON array or an envelope with a data or items array
func decodeRows(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	var rows []json.RawMessage
	if body[0] == '[' {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}

	var envelope struct {
		Data  json.RawMessage   `json:"data"`
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Data) > 0 && envelope.Data[0] == '[' {
		if err := json.Unmarshal(envelope.Data, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	if len(envelope.Data) > 0 && envelope.Data[0] == '{' {
		return decodeRows(envelope.Data)
	}
	return envelope.Items, nil
}

// transformRow converts one server row into a cart item. ok is false when the
// row references no product at all.
func transformRow(raw json.RawMessage) (cart.CartItem, bool, error) {
	var ref rowRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return cart.CartItem{}, false, fmt.Errorf("error decoding row: %w", err)
	}

	hasProduct := len(ref.Product) > 0 && string(ref.Product) != "null"
	if !hasProduct && ref.ProductID == "" {
		return cart.CartItem{}, false, nil
	}

	var item cart.CartItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return cart.CartItem{}, false, fmt.Errorf("error decoding cart item: %w", err)
	}
	if item.Product.ID == "" {
		item.Product.ID = ref.ProductID
	}
	if item.Product.ID == "" {
		return cart.CartItem{}, false, nil
	}

	if item.AddedAt.IsZero() && ref.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, ref.CreatedAt); err == nil {
			item.AddedAt = t
		}
	}
	return item, true, nil
}
