package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/shopspring/decimal"

	"github.com/go-ports/storefront/internal/api"
	"github.com/go-ports/storefront/internal/api/apitest"
	"github.com/go-ports/storefront/internal/cart"
	"github.com/go-ports/storefront/internal/checkout"
	"github.com/go-ports/storefront/internal/models"
	"github.com/go-ports/storefront/internal/search"
	"github.com/go-ports/storefront/internal/service"
)

func catalog() ([]models.Product, []models.Store) {
	products := []models.Product{
		{ID: 1, Name: "Green Tea", Description: "loose leaf", Price: decimal.RequireFromString("4.50"), Stock: 5, IsAvailable: true, StoreID: 1},
		{ID: 2, Name: "Mug", Description: "for tea", Price: decimal.NewFromInt(9), Stock: 2, IsAvailable: true, StoreID: 2},
		{ID: 3, Name: "Kettle", Price: decimal.NewFromInt(30), Stock: 4, IsAvailable: false, StoreID: 2},
	}
	stores := []models.Store{
		{ID: 1, Name: "Leaf & Co"},
		{ID: 2, Name: "Crockery"},
	}
	return products, stores
}

// newHome writes a config.yaml pointing at srv and returns the home dir.
func newHome(c *qt.C, srv *apitest.Server, mode string) string {
	c.Setenv("SHOP_API_BASE_URL", "")
	c.Setenv("SHOP_CART_MODE", "")
	c.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	home := c.TempDir()
	cfg := fmt.Sprintf("api:\n  base_url: %s\n  timeout: 5s\ncart:\n  mode: %s\n", srv.BaseURL(), mode)
	c.Assert(os.WriteFile(filepath.Join(home, "config.yaml"), []byte(cfg), 0o600), qt.IsNil)
	return home
}

func open(c *qt.C, home string) *service.Service {
	svc, err := service.New(home)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = svc.Close() })
	return svc
}

func validForm() checkout.Form {
	return checkout.Form{
		GuestName:       "Ann Lee",
		GuestEmail:      "ann@example.com",
		ShippingAddress: "12 Harbour Road",
		Phone:           "0901234567",
	}
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

func TestCatalog_HappyPath(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	srv := apitest.New(catalog())
	defer srv.Close()
	srv.SetOwner(7, 2)
	svc := open(c, newHome(c, srv, "server"))

	c.Run("all products", func(c *qt.C) {
		got, err := svc.Products(ctx, 0, search.Options{})
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.HasLen, 3)
	})

	c.Run("search ranks name matches first", func(c *qt.C) {
		got, err := svc.Products(ctx, 0, search.Options{Term: "tea"})
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.HasLen, 2)
		c.Assert(got[0].Name, qt.Equals, "Green Tea")
		c.Assert(got[1].Name, qt.Equals, "Mug")
	})

	c.Run("store products", func(c *qt.C) {
		got, err := svc.Products(ctx, 2, search.Options{InStockOnly: true})
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.HasLen, 1)
		c.Assert(got[0].Name, qt.Equals, "Mug")
	})

	c.Run("product detail", func(c *qt.C) {
		p, err := svc.Product(ctx, 1)
		c.Assert(err, qt.IsNil)
		c.Assert(p.Price.StringFixed(2), qt.Equals, "4.50")
	})

	c.Run("user stores", func(c *qt.C) {
		got, err := svc.Stores(ctx, 7)
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.HasLen, 1)
		c.Assert(got[0].Name, qt.Equals, "Crockery")
	})
}

func TestProduct_FailurePath(t *testing.T) {
	c := qt.New(t)

	srv := apitest.New(catalog())
	defer srv.Close()
	svc := open(c, newHome(c, srv, "server"))

	_, err := svc.Product(context.Background(), 99)
	c.Assert(err, qt.ErrorMatches, "failed to fetch product: HTTP 404.*")
	c.Assert(api.IsKind(err, api.KindRejected), qt.IsTrue)
}

// ---------------------------------------------------------------------------
// Cart
// ---------------------------------------------------------------------------

func TestServerCart_HappyPath(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	srv := apitest.New(catalog())
	defer srv.Close()
	home := newHome(c, srv, "server")
	svc := open(c, home)

	_, err := svc.AddToCart(ctx, 1, 2)
	c.Assert(err, qt.IsNil)
	got, err := svc.AddToCart(ctx, 2, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(got.TotalItems, qt.Equals, 3)
	c.Assert(got.TotalAmount.StringFixed(2), qt.Equals, "18.00")

	c.Run("session survives a new process", func(c *qt.C) {
		again := open(c, home)
		cart, err := again.Cart(ctx)
		c.Assert(err, qt.IsNil)
		c.Assert(cart.Items, qt.HasLen, 2)
		c.Assert(cart.TotalItems, qt.Equals, 3)
	})

	c.Run("update to zero removes", func(c *qt.C) {
		got, err := svc.UpdateCartItem(ctx, 1, 0)
		c.Assert(err, qt.IsNil)
		c.Assert(got.Items, qt.HasLen, 1)
		c.Assert(got.Items[0].Product.ID, qt.Equals, int64(2))
	})

	c.Run("remove is idempotent", func(c *qt.C) {
		_, err := svc.RemoveCartItem(ctx, 2)
		c.Assert(err, qt.IsNil)
		got, err := svc.RemoveCartItem(ctx, 2)
		c.Assert(err, qt.IsNil)
		c.Assert(got.IsEmpty(), qt.IsTrue)
	})
}

func TestServerCart_FailurePath(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	srv := apitest.New(catalog())
	defer srv.Close()
	svc := open(c, newHome(c, srv, "server"))

	_, err := svc.AddToCart(ctx, 2, 1)
	c.Assert(err, qt.IsNil)

	_, err = svc.AddToCart(ctx, 2, 5)
	var apiErr *api.Error
	c.Assert(errors.As(err, &apiErr), qt.IsTrue)
	c.Assert(apiErr.Kind, qt.Equals, api.KindRejected)
	c.Assert(apiErr.Message, qt.Contains, "Not enough stock")

	got, err := svc.Cart(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(got.TotalItems, qt.Equals, 1)
}

func TestLocalCart_HappyPath(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	srv := apitest.New(catalog())
	defer srv.Close()
	home := newHome(c, srv, "local")
	svc := open(c, home)

	_, err := svc.AddToCart(ctx, 1, 2)
	c.Assert(err, qt.IsNil)
	_, err = svc.AddToCart(ctx, 1, 1)
	c.Assert(err, qt.IsNil)

	_, err = svc.AddToCart(ctx, 3, 1)
	c.Assert(err, qt.ErrorIs, cart.ErrStockExceeded)

	again := open(c, home)
	got, err := again.Cart(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Items, qt.HasLen, 1)
	c.Assert(got.Items[0].Quantity, qt.Equals, 3)
	c.Assert(got.TotalAmount.StringFixed(2), qt.Equals, "13.50")
}

// ---------------------------------------------------------------------------
// Checkout
// ---------------------------------------------------------------------------

func TestCheckout_HappyPath(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	srv := apitest.New(catalog())
	defer srv.Close()
	svc := open(c, newHome(c, srv, "server"))

	_, err := svc.AddToCart(ctx, 1, 2)
	c.Assert(err, qt.IsNil)
	_, err = svc.AddToCart(ctx, 2, 1)
	c.Assert(err, qt.IsNil)

	res, err := svc.Checkout(ctx, validForm())
	c.Assert(err, qt.IsNil)
	c.Assert(res.Result.Message, qt.Equals, "Order placed successfully!")
	c.Assert(res.Result.OrderIDs, qt.DeepEquals, []string{"101", "102"})
	c.Assert(res.Result.FirstOrderID(), qt.Equals, "101")

	c.Assert(srv.OrderCount(), qt.Equals, 1)
	c.Assert(srv.Orders[0].Items, qt.DeepEquals, []models.OrderItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	})
	c.Assert(srv.Orders[0].Notes, qt.Equals, "")

	got, err := svc.Cart(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(got.IsEmpty(), qt.IsTrue)

	orders, err := svc.Orders(0)
	c.Assert(err, qt.IsNil)
	c.Assert(orders, qt.HasLen, 1)
	c.Assert(orders[0].GuestEmail, qt.Equals, "a**@example.com")
	c.Assert(orders[0].ItemCount, qt.Equals, 3)
	c.Assert(orders[0].TotalAmount.StringFixed(2), qt.Equals, "18.00")
	c.Assert(orders[0].ReceiptPath, qt.Equals, res.Record.ReceiptPath)

	data, err := os.ReadFile(res.Record.ReceiptPath)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Contains, "**Order:** 101")
	c.Assert(string(data), qt.Not(qt.Contains), "ann@example.com")
}

func TestCheckout_FailurePath(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	c.Run("validation blocks the request", func(c *qt.C) {
		srv := apitest.New(catalog())
		defer srv.Close()
		svc := open(c, newHome(c, srv, "server"))
		_, err := svc.AddToCart(ctx, 1, 1)
		c.Assert(err, qt.IsNil)

		f := validForm()
		f.GuestEmail = "foo"
		_, err = svc.Checkout(ctx, f)
		var verr *checkout.ValidationError
		c.Assert(errors.As(err, &verr), qt.IsTrue)
		c.Assert(verr.Fields[checkout.FieldEmail], qt.Equals, "Email is invalid")
		c.Assert(srv.OrderCount(), qt.Equals, 0)
	})

	c.Run("server error keeps the cart", func(c *qt.C) {
		srv := apitest.New(catalog())
		defer srv.Close()
		srv.OrderStatus = 503
		svc := open(c, newHome(c, srv, "server"))
		_, err := svc.AddToCart(ctx, 1, 1)
		c.Assert(err, qt.IsNil)

		_, err = svc.Checkout(ctx, validForm())
		c.Assert(api.IsRetryable(err), qt.IsTrue)

		got, err := svc.Cart(ctx)
		c.Assert(err, qt.IsNil)
		c.Assert(got.TotalItems, qt.Equals, 1)
		n, err := svc.OrderCount()
		c.Assert(err, qt.IsNil)
		c.Assert(n, qt.Equals, 0)
	})

	c.Run("empty cart", func(c *qt.C) {
		srv := apitest.New(catalog())
		defer srv.Close()
		svc := open(c, newHome(c, srv, "server"))
		_, err := svc.Checkout(ctx, validForm())
		c.Assert(err, qt.ErrorIs, checkout.ErrEmptyCart)
	})
}

func TestNew_FailurePath(t *testing.T) {
	c := qt.New(t)

	c.Setenv("SHOP_CART_MODE", "")
	home := t.TempDir()
	c.Assert(os.WriteFile(filepath.Join(home, "config.yaml"), []byte("cart:\n  mode: offline\n"), 0o600), qt.IsNil)
	_, err := service.New(home)
	c.Assert(err, qt.ErrorMatches, `service.New: load config: config: unknown cart mode "offline".*`)
}
