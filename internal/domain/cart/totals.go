// internal/domain/cart/totals.go
package cart

import "github.com/shopspring/decimal"

// Totals represents the derived totals of a cart
type Totals struct {
	ItemCount         int             `json:"item_count"` // Number of distinct lines
	CartCount         int             `json:"cart_count"` // Sum of all quantities
	TotalMRP          decimal.Decimal `json:"total_mrp"`
	TotalSellingPrice decimal.Decimal `json:"total_selling_price"`
	TotalDiscount     decimal.Decimal `json:"total_discount"`
}

// ResolveUnitPrice picks the first non-zero of the explicit price, final price,
// discounted price and list price of a product.
func ResolveUnitPrice(price decimal.Decimal, p Product) decimal.Decimal {
	return firstNonZero(price, p.FinalPrice, p.DiscountedPrice, p.Price)
}

// UnitPrice returns the unit selling price of a line
func UnitPrice(item CartItem) decimal.Decimal {
	return ResolveUnitPrice(item.Price, item.Product)
}

// MRP returns the unit maximum retail price of a line, preferring the variant MRP
func MRP(item CartItem) decimal.Decimal {
	return firstNonZero(item.VariantMRP, item.Product.Price)
}

// LineSellingPrice returns unit price times quantity
func LineSellingPrice(item CartItem) decimal.Decimal {
	return UnitPrice(item).Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// LineMRP returns unit MRP times quantity
func LineMRP(item CartItem) decimal.Decimal {
	return MRP(item).Mul(decimal.NewFromInt(int64(item.Quantity)))
}

// CartTotalSellingPrice sums the selling price of every line
func CartTotalSellingPrice(items Cart) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(LineSellingPrice(item))
	}
	return total
}

// CartTotalMRP sums the MRP of every line
func CartTotalMRP(items Cart) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(LineMRP(item))
	}
	return total
}

// CartDiscount is the MRP total minus the selling total, never negative
func CartDiscount(items Cart) decimal.Decimal {
	discount := CartTotalMRP(items).Sub(CartTotalSellingPrice(items))
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

// CartCount is the sum of quantities, not the number of lines
func CartCount(items Cart) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

// ComputeTotals bundles every derived total for a cart
func ComputeTotals(items Cart) Totals {
	return Totals{
		ItemCount:         len(items),
		CartCount:         CartCount(items),
		TotalMRP:          CartTotalMRP(items),
		TotalSellingPrice: CartTotalSellingPrice(items),
		TotalDiscount:     CartDiscount(items),
	}
}

func firstNonZero(values ...decimal.Decimal) decimal.Decimal {
	for _, v := range values {
		if !v.IsZero() {
			return v
		}
	}
	return decimal.Zero
}
