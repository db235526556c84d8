// internal/domain/cart/entity.go
package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnknownStock is the stock used for clamping when a product snapshot carries none
const UnknownStock = 999

// User-facing messages returned by engine operations
const (
	MessageAdded           = "Added to cart"
	MessageQuantityUpdated = "Cart quantity updated"
	MessageRemoved         = "Item removed from cart"
	MessageCleared         = "Cart cleared"
	MessageNothingToDo     = "Cart unchanged"
)

// StockMessage is the rejection shown when a requested quantity exceeds stock
func StockMessage(stock int) string {
	return fmt.Sprintf("Only %d items available in stock", stock)
}

// ID is an identifier that may arrive as a JSON string or number
type ID string

// UnmarshalJSON accepts "42", 42 and null
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the id as a plain string
func (id ID) String() string {
	return string(id)
}

// Product is the denormalized product snapshot owned by a cart line
type Product struct {
	ID              ID              `json:"id"`
	Name            string          `json:"name"`
	Images          json.RawMessage `json:"images,omitempty"`
	Price           decimal.Decimal `json:"price"`
	FinalPrice      decimal.Decimal `json:"final_price"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	StockQuantity   int             `json:"stock_quantity"`
}

// UnmarshalJSON tolerates stock quantities serialized as strings
func (p *Product) UnmarshalJSON(data []byte) error {
	type alias Product
	aux := struct {
		*alias
		StockQuantity json.RawMessage `json:"stock_quantity"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	stock, ok := parseCount(aux.StockQuantity)
	if !ok || stock < 0 {
		stock = 0
	}
	p.StockQuantity = stock
	return nil
}

// EffectiveStock returns the stock used for clamping, UnknownStock when none is known
func (p Product) EffectiveStock() int {
	if p.StockQuantity > 0 {
		return p.StockQuantity
	}
	return UnknownStock
}

// CartItem is a single purchasable line in a cart
type CartItem struct {
	ID              ID              `json:"id"`
	Product         Product         `json:"product"`
	Quantity        int             `json:"quantity"`
	SelectedColor   string          `json:"selected_color"`
	SelectedSize    string          `json:"selected_size"`
	BlouseOption    string          `json:"blouse_option"`
	Price           decimal.Decimal `json:"price"`
	VariantID       ID              `json:"variant_id,omitempty"`
	VariantPrice    decimal.Decimal `json:"variant_price"`
	VariantMRP      decimal.Decimal `json:"variant_mrp"`
	VariantDiscount decimal.Decimal `json:"variant_discount"`
	AddedAt         time.Time       `json:"added_at"`
	// Pending marks a line added locally that the commerce API has not seen
	Pending         bool            `json:"pending,omitempty"`
}

// UnmarshalJSON coerces quantity to a positive integer. Older blobs stored
// quantities as concatenated strings such as "11".
func (i *CartItem) UnmarshalJSON(data []byte) error {
	type alias CartItem
	aux := struct {
		*alias
		Quantity json.RawMessage `json:"quantity"`
	}{alias: (*alias)(i)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	quantity, ok := parseCount(aux.Quantity)
	if !ok || quantity < 1 {
		quantity = 1
	}
	i.Quantity = quantity
	return nil
}

// Cart is the ordered list of lines visible to the shopper
type Cart []CartItem

// Clone returns an independent copy of the cart
func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// FindByID returns the index of the line with the given id, or -1
func (c Cart) FindByID(id string) int {
	if id == "" {
		return -1
	}
	for i := range c {
		if c[i].ID.String() == id {
			return i
		}
	}
	return -1
}

// FindByIdentity returns the index of the line matching the identity triple, or -1
func (c Cart) FindByIdentity(productID, color, size string) int {
	for i := range c {
		if Matches(c[i], productID, color, size) {
			return i
		}
	}
	return -1
}

// Resolve finds a line by exact id first and, when a variant selector was
// supplied, falls back to identity matching against the id as product id.
func (c Cart) Resolve(id string, color, size *string) int {
	if idx := c.FindByID(id); idx >= 0 {
		return idx
	}
	if color == nil && size == nil {
		return -1
	}
	return c.FindByIdentity(id, deref(color), deref(size))
}

// State is the authentication state that selects the authoritative store
type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "AUTHENTICATED"
	default:
		return "ANONYMOUS"
	}
}

// Outcome classifies what an operation did to the cart
type Outcome string

const (
	OutcomeAdded    Outcome = "added"
	OutcomeUpdated  Outcome = "updated"
	OutcomeRemoved  Outcome = "removed"
	OutcomeCleared  Outcome = "cleared"
	OutcomeRejected Outcome = "rejected"
	OutcomeNoop     Outcome = "noop"
)

// Source names the store that applied an operation
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Result is the shopper-facing outcome of an engine operation
type Result struct {
	Success bool    `json:"success"`
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
	Source  Source  `json:"source"`
}

// AddInput describes an add-to-cart action
type AddInput struct {
	Product      Product
	Quantity     int
	Color        string
	BlouseOption string
	Size         string
	Price        decimal.Decimal
}

func (in AddInput) quantity() int {
	if in.Quantity < 1 {
		return 1
	}
	return in.Quantity
}

// parseCount reads a JSON number or numeric string as an integer
func parseCount(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(s)
	}

	if n, err := strconv.Atoi(text); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return int(f), true
	}
	return 0, false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
