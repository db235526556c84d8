// internal/domain/cart/identity.go
package cart

import "strings"

// Key is the normalized (product, color, size) identity of a cart line
type Key struct {
	ProductID string
	Color     string
	Size      string
}

// Normalize folds a variant selector for comparison. Unset and empty both
// normalize to the empty string.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NewKey builds the identity key for a product and variant selection
func NewKey(productID, color, size string) Key {
	return Key{
		ProductID: productID,
		Color:     Normalize(color),
		Size:      Normalize(size),
	}
}

// KeyOf returns the identity key of an existing line
func KeyOf(item CartItem) Key {
	return NewKey(item.Product.ID.String(), item.SelectedColor, item.SelectedSize)
}

// Matches reports whether item is the same purchasable variant as the given
// product, color and size. Blouse option and price are not part of the identity,
// so lines differing only in those merge.
func Matches(item CartItem, productID, color, size string) bool {
	return KeyOf(item) == NewKey(productID, color, size)
}
