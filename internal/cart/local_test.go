package cart_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/go-ports/storefront/internal/cart"
	"github.com/go-ports/storefront/internal/db"
	"github.com/go-ports/storefront/internal/models"
)

// cartEquals compares carts holding decimal amounts by value.
var cartEquals = qt.CmpEquals(cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }))

type fakeCatalog map[int64]models.Product

func (f fakeCatalog) Product(_ context.Context, id int64) (*models.Product, error) {
	p, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("failed to fetch product: HTTP 404")
	}
	return &p, nil
}

func catalog() fakeCatalog {
	return fakeCatalog{
		1: {ID: 1, Name: "A", Price: decimal.NewFromInt(10), Stock: 5, IsAvailable: true},
		2: {ID: 2, Name: "B", Price: decimal.NewFromInt(5), Stock: 3, IsAvailable: true},
		3: {ID: 3, Name: "C", Price: decimal.RequireFromString("2.75"), Stock: 10, IsAvailable: true},
		4: {ID: 4, Name: "Gone", Price: decimal.NewFromInt(1), Stock: 10, IsAvailable: false},
	}
}

type failingPersister struct{ fail bool }

func (f *failingPersister) CartLines() ([]models.CartLine, error) { return nil, nil }

func (f *failingPersister) ReplaceCartLines([]models.CartLine) error {
	if f.fail {
		return errors.New("disk full")
	}
	return nil
}

func openStore(t *testing.T) (*cart.LocalStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	s := cart.NewLocalStore(catalog(), d)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s, path
}

// ---------------------------------------------------------------------------
// Totals and basic operations
// ---------------------------------------------------------------------------

func TestLocalStore_HappyPath(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	c.Run("two products produce the expected totals", func(c *qt.C) {
		s, _ := openStore(t)
		c.Assert(s.AddItem(ctx, 1, 2), qt.IsNil)
		c.Assert(s.AddItem(ctx, 2, 1), qt.IsNil)
		c.Assert(s.TotalItems(), qt.Equals, 3)
		c.Assert(s.TotalAmount().Equal(decimal.RequireFromString("25.00")), qt.IsTrue)
	})

	c.Run("adding a present product increments without a duplicate line", func(c *qt.C) {
		s, _ := openStore(t)
		c.Assert(s.AddItem(ctx, 1, 1), qt.IsNil)
		c.Assert(s.AddItem(ctx, 1, 2), qt.IsNil)
		lines := s.Lines()
		c.Assert(lines, qt.HasLen, 1)
		c.Assert(lines[0].Quantity, qt.Equals, 3)
	})

	c.Run("update to zero equals remove", func(c *qt.C) {
		a, _ := openStore(t)
		b, _ := openStore(t)
		for _, s := range []*cart.LocalStore{a, b} {
			c.Assert(s.AddItem(ctx, 1, 2), qt.IsNil)
			c.Assert(s.AddItem(ctx, 3, 1), qt.IsNil)
		}
		c.Assert(a.UpdateQuantity(ctx, 1, 0), qt.IsNil)
		c.Assert(b.RemoveItem(ctx, 1), qt.IsNil)
		c.Assert(a.Snapshot(), cartEquals, b.Snapshot())
	})

	c.Run("removing an absent product leaves the cart unchanged", func(c *qt.C) {
		s, _ := openStore(t)
		c.Assert(s.AddItem(ctx, 2, 2), qt.IsNil)
		before := s.Snapshot()
		c.Assert(s.RemoveItem(ctx, 99), qt.IsNil)
		c.Assert(s.Snapshot(), cartEquals, before)
	})

	c.Run("clear zeroes every total", func(c *qt.C) {
		s, _ := openStore(t)
		c.Assert(s.AddItem(ctx, 1, 1), qt.IsNil)
		c.Assert(s.AddItem(ctx, 3, 4), qt.IsNil)
		c.Assert(s.Clear(ctx), qt.IsNil)
		c.Assert(s.TotalItems(), qt.Equals, 0)
		c.Assert(s.TotalAmount().IsZero(), qt.IsTrue)
		c.Assert(s.Lines(), qt.HasLen, 0)
	})

	c.Run("update within stock replaces the quantity", func(c *qt.C) {
		s, _ := openStore(t)
		c.Assert(s.AddItem(ctx, 1, 1), qt.IsNil)
		c.Assert(s.UpdateQuantity(ctx, 1, 5), qt.IsNil)
		c.Assert(s.TotalItems(), qt.Equals, 5)
		c.Assert(s.TotalAmount().Equal(decimal.NewFromInt(50)), qt.IsTrue)
	})
}

func TestLocalStore_FailurePath(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	c.Run("adding past stock is rejected without change", func(c *qt.C) {
		s, _ := openStore(t)
		c.Assert(s.AddItem(ctx, 2, 2), qt.IsNil)
		err := s.AddItem(ctx, 2, 2)
		c.Assert(err, qt.ErrorIs, cart.ErrStockExceeded)
		c.Assert(s.TotalItems(), qt.Equals, 2)
	})

	c.Run("unavailable product is rejected", func(c *qt.C) {
		s, _ := openStore(t)
		c.Assert(s.AddItem(ctx, 4, 1), qt.ErrorIs, cart.ErrStockExceeded)
		c.Assert(s.Lines(), qt.HasLen, 0)
	})

	c.Run("non-positive add quantity is rejected", func(c *qt.C) {
		s, _ := openStore(t)
		c.Assert(s.AddItem(ctx, 1, 0), qt.ErrorIs, cart.ErrInvalidQuantity)
	})

	c.Run("unknown product surfaces the catalog error", func(c *qt.C) {
		s, _ := openStore(t)
		c.Assert(s.AddItem(ctx, 42, 1), qt.ErrorMatches, "cart.AddItem: failed to fetch product: HTTP 404")
	})

	c.Run("update above stock is a no-op", func(c *qt.C) {
		s, _ := openStore(t)
		c.Assert(s.AddItem(ctx, 2, 1), qt.IsNil)
		c.Assert(s.UpdateQuantity(ctx, 2, 4), qt.ErrorIs, cart.ErrStockExceeded)
		c.Assert(s.TotalItems(), qt.Equals, 1)
	})

	c.Run("update of a product not in the cart", func(c *qt.C) {
		s, _ := openStore(t)
		c.Assert(s.UpdateQuantity(ctx, 1, 2), qt.ErrorIs, cart.ErrLineNotFound)
	})

	c.Run("failed persistence keeps the previous state", func(c *qt.C) {
		p := &failingPersister{}
		s := cart.NewLocalStore(catalog(), p)
		c.Assert(s.AddItem(ctx, 1, 1), qt.IsNil)
		p.fail = true
		c.Assert(s.AddItem(ctx, 1, 1), qt.ErrorMatches, "cart: persist: disk full")
		c.Assert(s.Clear(ctx), qt.IsNotNil)
		c.Assert(s.TotalItems(), qt.Equals, 1)
	})
}

func TestLocalStore_SurvivesReopen(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	s, path := openStore(t)
	c.Assert(s.AddItem(ctx, 3, 2), qt.IsNil)
	c.Assert(s.AddItem(ctx, 1, 1), qt.IsNil)
	want := s.Snapshot()

	d, err := db.Open(path)
	c.Assert(err, qt.IsNil)
	defer d.Close()
	reopened := cart.NewLocalStore(catalog(), d)
	c.Assert(reopened.Load(ctx), qt.IsNil)
	c.Assert(reopened.TotalItems(), qt.Equals, want.TotalItems)
	c.Assert(reopened.TotalAmount().Equal(want.TotalAmount), qt.IsTrue)
	c.Assert(reopened.Lines()[0].Product.ID, qt.Equals, int64(3))
	c.Assert(reopened.Lines()[1].Product.ID, qt.Equals, int64(1))
}

// TestLocalStore_RandomSequences drives random operation sequences and checks
// the line and total invariants after every step.
func TestLocalStore_RandomSequences(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 20; round++ {
		s := cart.NewLocalStore(catalog(), &failingPersister{})
		for step := 0; step < 40; step++ {
			id := int64(rng.Intn(4) + 1)
			switch rng.Intn(4) {
			case 0, 1:
				_ = s.AddItem(ctx, id, rng.Intn(4)+1)
			case 2:
				_ = s.UpdateQuantity(ctx, id, rng.Intn(7)-1)
			case 3:
				_ = s.RemoveItem(ctx, id)
			}

			snap := s.Snapshot()
			seen := map[int64]bool{}
			sum := decimal.Zero
			items := 0
			for _, l := range snap.Items {
				c.Assert(seen[l.Product.ID], qt.IsFalse, qt.Commentf("duplicate line for %d", l.Product.ID))
				seen[l.Product.ID] = true
				c.Assert(l.Quantity > 0, qt.IsTrue)
				c.Assert(l.Quantity <= l.Product.Stock, qt.IsTrue)
				sum = sum.Add(l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
				items += l.Quantity
			}
			c.Assert(snap.TotalAmount.Equal(sum), qt.IsTrue)
			c.Assert(snap.TotalItems, qt.Equals, items)
		}
	}
}
