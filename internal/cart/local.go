package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/go-ports/storefront/internal/models"
)

var _ Store = (*LocalStore)(nil)

// LinePersister saves the local cart between runs.
type LinePersister interface {
	CartLines() ([]models.CartLine, error)
	ReplaceCartLines(lines []models.CartLine) error
}

// LocalStore is a client-side cart. It enforces the stock cap itself and
// writes every mutation through to the persister before it becomes visible.
type LocalStore struct {
	mu      sync.Mutex
	catalog Catalog
	persist LinePersister
	cart    *models.Cart
}

// NewLocalStore returns an empty LocalStore. Call Load to read persisted lines.
func NewLocalStore(catalog Catalog, persist LinePersister) *LocalStore {
	return &LocalStore{
		catalog: catalog,
		persist: persist,
		cart:    models.NewCart(nil),
	}
}

// Load reads the persisted lines.
func (s *LocalStore) Load(_ context.Context) error {
	lines, err := s.persist.CartLines()
	if err != nil {
		return fmt.Errorf("cart.Load: %w", err)
	}
	s.mu.Lock()
	s.cart = models.NewCart(lines)
	s.mu.Unlock()
	return nil
}

// AddItem adds qty units of productID, fetching a fresh product snapshot.
func (s *LocalStore) AddItem(ctx context.Context, productID int64, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	p, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return fmt.Errorf("cart.AddItem: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	want := qty
	if idx := s.cart.IndexOf(productID); idx >= 0 {
		want += s.cart.Items[idx].Quantity
	}
	if !p.IsAvailable || want > p.Stock {
		return stockError(p, want)
	}
	return s.commit(addLine(s.cart.Items, p, qty))
}

// UpdateQuantity replaces the quantity of an existing line.
func (s *LocalStore) UpdateQuantity(_ context.Context, productID int64, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.cart.IndexOf(productID)
	if qty <= 0 {
		if idx < 0 {
			return nil
		}
		return s.commit(removeLine(s.cart.Items, idx))
	}
	if idx < 0 {
		return fmt.Errorf("%w: product %d", ErrLineNotFound, productID)
	}
	if p := &s.cart.Items[idx].Product; qty > p.Stock {
		return stockError(p, qty)
	}
	return s.commit(setQuantity(s.cart.Items, idx, qty))
}

// RemoveItem deletes the line for productID if present.
func (s *LocalStore) RemoveItem(_ context.Context, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.cart.IndexOf(productID)
	if idx < 0 {
		return nil
	}
	return s.commit(removeLine(s.cart.Items, idx))
}

// Clear empties the cart.
func (s *LocalStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(nil)
}

// commit persists lines and then swaps them in. Callers hold s.mu.
func (s *LocalStore) commit(lines []models.CartLine) error {
	if err := s.persist.ReplaceCartLines(lines); err != nil {
		return fmt.Errorf("cart: persist: %w", err)
	}
	s.cart = models.NewCart(lines)
	return nil
}

func (s *LocalStore) Lines() []models.CartLine { return s.Snapshot().Items }

func (s *LocalStore) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.TotalItems
}

func (s *LocalStore) TotalAmount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.TotalAmount
}

// Snapshot returns a copy of the current cart.
func (s *LocalStore) Snapshot() *models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}
