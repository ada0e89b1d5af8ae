// Package models defines the core data types for the storefront client.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultOrderMessage is used when the server confirms an order without a message.
const DefaultOrderMessage = "Order placed successfully!"

// Product is a catalog item as served by the commerce API.
// It is immutable from the client's perspective and always fetched fresh.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Image       string          `json:"image,omitempty"`
	Description string          `json:"description,omitempty"`
	IsAvailable bool            `json:"is_available"`
	StoreID     int64           `json:"store,omitempty"`
	StoreName   string          `json:"store_name,omitempty"`
}

// InStock reports whether at least one unit can be ordered.
func (p *Product) InStock() bool {
	return p.IsAvailable && p.Stock > 0
}

// Store is a seller whose products can be browsed.
type Store struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Address     string `json:"address,omitempty"`
	Image       string `json:"image,omitempty"`
}

// CartLine is one product-quantity pairing within a cart.
type CartLine struct {
	ID       int64           `json:"id,omitempty"` // server line id; 0 for local carts
	Product  Product         `json:"product"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// ComputeSubtotal returns price × quantity for the line.
func (l *CartLine) ComputeSubtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the wire and in-memory shape of a shopping cart.
type Cart struct {
	Items       []CartLine      `json:"items"`
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewCart builds a Cart from lines, deriving subtotals and totals.
func NewCart(lines []CartLine) *Cart {
	c := &Cart{Items: make([]CartLine, 0, len(lines))}
	for _, l := range lines {
		l.Subtotal = l.ComputeSubtotal()
		c.Items = append(c.Items, l)
	}
	c.Recalculate()
	return c
}

// Recalculate refreshes TotalItems and TotalAmount from the lines.
func (c *Cart) Recalculate() {
	c.TotalItems = 0
	c.TotalAmount = decimal.Zero
	for _, l := range c.Items {
		c.TotalItems += l.Quantity
		c.TotalAmount = c.TotalAmount.Add(l.Subtotal)
	}
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Clone returns a deep copy of the cart.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return &Cart{TotalAmount: decimal.Zero}
	}
	out := *c
	out.Items = make([]CartLine, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}

// IndexOf returns the position of the line for productID, or -1.
func (c *Cart) IndexOf(productID int64) int {
	for i, l := range c.Items {
		if l.Product.ID == productID {
			return i
		}
	}
	return -1
}

// OrderItem is a product reference inside an order payload. Price is
// server-authoritative and never sent.
type OrderItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// GuestOrderRequest is the payload for POST /orders/create/.
type GuestOrderRequest struct {
	GuestName       string      `json:"guest_name"`
	GuestEmail      string      `json:"guest_email"`
	ShippingAddress string      `json:"shipping_address"`
	Phone           string      `json:"phone"`
	Notes           string      `json:"notes"`
	Items           []OrderItem `json:"items"`
}

// ItemsFromCart snapshots product ids and quantities from cart lines.
func ItemsFromCart(c *Cart) []OrderItem {
	if c == nil {
		return make([]OrderItem, 0)
	}
	items := make([]OrderItem, 0, len(c.Items))
	for _, l := range c.Items {
		items = append(items, OrderItem{ProductID: l.Product.ID, Quantity: l.Quantity})
	}
	return items
}

// OrderResult is returned by a successful order submission. An order may be
// split per originating store, so there can be several ids.
type OrderResult struct {
	Message  string
	OrderIDs []string
}

// FirstOrderID returns the first created order id, or "N/A".
func (r *OrderResult) FirstOrderID() string {
	if r == nil || len(r.OrderIDs) == 0 {
		return "N/A"
	}
	return r.OrderIDs[0]
}

// OrderRecord is a locally kept summary of a submitted order.
type OrderRecord struct {
	SubmissionID string
	OrderIDs     []string
	Message      string
	GuestName    string
	GuestEmail   string // masked before storage
	ItemCount    int
	TotalAmount  decimal.Decimal
	ReceiptPath  string
	CreatedAt    time.Time
}

// NewOrderRecord stamps a new submission id and creation time.
func NewOrderRecord(req *GuestOrderRequest, result *OrderResult, cart *Cart) *OrderRecord {
	rec := &OrderRecord{
		SubmissionID: uuid.NewString(),
		GuestName:    req.GuestName,
		GuestEmail:   req.GuestEmail,
		CreatedAt:    time.Now().UTC(),
		TotalAmount:  decimal.Zero,
	}
	if result != nil {
		rec.Message = result.Message
		rec.OrderIDs = result.OrderIDs
	}
	if cart != nil {
		rec.ItemCount = cart.TotalItems
		rec.TotalAmount = cart.TotalAmount
	}
	return rec
}
