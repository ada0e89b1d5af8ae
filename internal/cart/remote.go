package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/go-ports/storefront/internal/models"
)

var _ Store = (*RemoteStore)(nil)

// CartAPI is the server side of the cart.
type CartAPI interface {
	Cart(ctx context.Context) (*models.Cart, error)
	AddToCart(ctx context.Context, productID int64, qty int) error
	UpdateCartItem(ctx context.Context, productID int64, qty int) error
	RemoveCartItem(ctx context.Context, productID int64) error
	ClearCart(ctx context.Context) error
}

// RemoteStore mirrors the server cart. Mutations are echoed on the mirror
// immediately, sent to the server, and reconciled with a full reload.
//
// The mirror is always the last confirmed server cart with the echoes of the
// mutations still in flight replayed on top. A failed mutation drops its own
// echo and the mirror is rebuilt, so it never rolls back to a state holding
// another mutation's unconfirmed change. Reloads are numbered when they start
// and only a reload newer than the last applied one replaces the confirmed
// cart, so a slow response never overwrites a later one.
type RemoteStore struct {
	mu        sync.Mutex
	api       CartAPI
	cart      *models.Cart
	confirmed *models.Cart
	pending   []pendingOp
	seq       uint64
	reloads   uint64
	applied   uint64
}

type pendingOp struct {
	seq  uint64
	echo func(*models.Cart) (*models.Cart, error)
}

// NewRemoteStore returns a RemoteStore with an empty mirror.
func NewRemoteStore(api CartAPI) *RemoteStore {
	return &RemoteStore{api: api, cart: models.NewCart(nil), confirmed: models.NewCart(nil)}
}

// Load replaces the confirmed cart with the server cart.
func (s *RemoteStore) Load(ctx context.Context) error {
	return s.reload(ctx)
}

func (s *RemoteStore) reload(ctx context.Context) error {
	s.mu.Lock()
	s.reloads++
	mine := s.reloads
	s.mu.Unlock()

	fresh, err := s.api.Cart(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if mine > s.applied {
		s.applied = mine
		s.confirmed = fresh
		s.rebuildLocked()
	}
	s.mu.Unlock()
	return nil
}

// AddItem adds qty units. A product already in the mirror is echoed at once;
// a new product appears after the reload. Stock is enforced by the server.
func (s *RemoteStore) AddItem(ctx context.Context, productID int64, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	return s.mutate(ctx,
		func(c *models.Cart) (*models.Cart, error) {
			idx := c.IndexOf(productID)
			if idx < 0 {
				return c, nil
			}
			return models.NewCart(setQuantity(c.Items, idx, c.Items[idx].Quantity+qty)), nil
		},
		func(ctx context.Context) error { return s.api.AddToCart(ctx, productID, qty) },
	)
}

// UpdateQuantity replaces the quantity of a line, or removes it when qty <= 0.
func (s *RemoteStore) UpdateQuantity(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return s.RemoveItem(ctx, productID)
	}
	return s.mutate(ctx,
		func(c *models.Cart) (*models.Cart, error) {
			idx := c.IndexOf(productID)
			if idx < 0 {
				return nil, fmt.Errorf("%w: product %d", ErrLineNotFound, productID)
			}
			if p := &c.Items[idx].Product; qty > p.Stock {
				return nil, stockError(p, qty)
			}
			return models.NewCart(setQuantity(c.Items, idx, qty)), nil
		},
		func(ctx context.Context) error { return s.api.UpdateCartItem(ctx, productID, qty) },
	)
}

// RemoveItem deletes a line. Products missing from the mirror are skipped
// without a request.
func (s *RemoteStore) RemoveItem(ctx context.Context, productID int64) error {
	s.mu.Lock()
	present := s.cart.IndexOf(productID) >= 0
	s.mu.Unlock()
	if !present {
		return nil
	}
	return s.mutate(ctx,
		func(c *models.Cart) (*models.Cart, error) {
			idx := c.IndexOf(productID)
			if idx < 0 {
				return c, nil
			}
			return models.NewCart(removeLine(c.Items, idx)), nil
		},
		func(ctx context.Context) error { return s.api.RemoveCartItem(ctx, productID) },
	)
}

// Clear empties the server cart.
func (s *RemoteStore) Clear(ctx context.Context) error {
	return s.mutate(ctx,
		func(*models.Cart) (*models.Cart, error) { return models.NewCart(nil), nil },
		s.api.ClearCart,
	)
}

// mutate runs one echo/send/reload cycle. echo works on a private copy and
// may reject the mutation before anything is sent.
func (s *RemoteStore) mutate(
	ctx context.Context,
	echo func(*models.Cart) (*models.Cart, error),
	send func(context.Context) error,
) error {
	s.mu.Lock()
	next, err := echo(s.cart.Clone())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.seq++
	mine := s.seq
	s.pending = append(s.pending, pendingOp{seq: mine, echo: echo})
	s.cart = next
	s.mu.Unlock()

	sendErr := send(ctx)

	// Once sent, the change belongs to the server cart and is no longer
	// replayed.
	s.mu.Lock()
	s.dropLocked(mine)
	if sendErr != nil {
		s.rebuildLocked()
	}
	s.mu.Unlock()
	if sendErr != nil {
		return sendErr
	}

	if err := s.reload(ctx); err != nil {
		s.mu.Lock()
		s.rebuildLocked()
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *RemoteStore) dropLocked(seq uint64) {
	for i, op := range s.pending {
		if op.seq == seq {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			return
		}
	}
}

// rebuildLocked recomputes the mirror from the confirmed cart and the
// pending echoes. Echoes that no longer apply are skipped.
func (s *RemoteStore) rebuildLocked() {
	c := s.confirmed.Clone()
	for _, op := range s.pending {
		if next, err := op.echo(c.Clone()); err == nil {
			c = next
		}
	}
	s.cart = c
}

func (s *RemoteStore) Lines() []models.CartLine { return s.Snapshot().Items }

func (s *RemoteStore) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.TotalItems
}

func (s *RemoteStore) TotalAmount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.TotalAmount
}

// Snapshot returns a copy of the mirror.
func (s *RemoteStore) Snapshot() *models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}
