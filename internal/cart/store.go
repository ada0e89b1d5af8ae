// Package cart holds the shopping cart stores. A Store is created once by the
// service and shared by checkout, the CLI and the MCP server.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/go-ports/storefront/internal/models"
)

var (
	// ErrStockExceeded is returned when a quantity would exceed product stock.
	ErrStockExceeded = errors.New("quantity exceeds available stock")
	// ErrInvalidQuantity is returned when adding fewer than one unit.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrLineNotFound is returned when updating a product that is not in the cart.
	ErrLineNotFound = errors.New("product is not in the cart")
)

// Store is the cart contract shared by the local and server-synced carts.
// Read accessors never block on the network.
type Store interface {
	// Load (re)reads the authoritative cart.
	Load(ctx context.Context) error
	AddItem(ctx context.Context, productID int64, qty int) error
	// UpdateQuantity with qty <= 0 behaves like RemoveItem.
	UpdateQuantity(ctx context.Context, productID int64, qty int) error
	// RemoveItem is a no-op for products not in the cart.
	RemoveItem(ctx context.Context, productID int64) error
	Clear(ctx context.Context) error

	Lines() []models.CartLine
	TotalItems() int
	TotalAmount() decimal.Decimal
	Snapshot() *models.Cart
}

// Catalog resolves product details for the local cart.
type Catalog interface {
	Product(ctx context.Context, id int64) (*models.Product, error)
}

// ---------------------------------------------------------------------------
// Pure line transitions shared by both stores
// ---------------------------------------------------------------------------

func stockError(p *models.Product, want int) error {
	if !p.IsAvailable {
		return fmt.Errorf("%w: %s is unavailable", ErrStockExceeded, p.Name)
	}
	return fmt.Errorf("%w: %d requested, %d in stock for %s", ErrStockExceeded, want, p.Stock, p.Name)
}

// addLine returns lines with qty more units of p. p replaces any older snapshot.
func addLine(lines []models.CartLine, p *models.Product, qty int) []models.CartLine {
	out := make([]models.CartLine, len(lines), len(lines)+1)
	copy(out, lines)
	for i := range out {
		if out[i].Product.ID == p.ID {
			out[i].Product = *p
			out[i].Quantity += qty
			return out
		}
	}
	return append(out, models.CartLine{Product: *p, Quantity: qty})
}

// setQuantity returns lines with the quantity at idx replaced.
func setQuantity(lines []models.CartLine, idx, qty int) []models.CartLine {
	out := make([]models.CartLine, len(lines))
	copy(out, lines)
	out[idx].Quantity = qty
	return out
}

// removeLine returns lines without the entry at idx.
func removeLine(lines []models.CartLine, idx int) []models.CartLine {
	out := make([]models.CartLine, 0, len(lines)-1)
	out = append(out, lines[:idx]...)
	return append(out, lines[idx+1:]...)
}
