package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"

	"github.com/go-ports/storefront/internal/api/apitest"
	"github.com/go-ports/storefront/internal/checkers"
	internalmcp "github.com/go-ports/storefront/internal/mcp"
	"github.com/go-ports/storefront/internal/models"
	"github.com/go-ports/storefront/internal/service"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newAPI(c *qt.C) *apitest.Server {
	srv := apitest.New([]models.Product{
		{ID: 1, Name: "Green Tea", Price: decimal.RequireFromString("4.50"), Stock: 5, IsAvailable: true, StoreID: 1},
		{ID: 2, Name: "Mug", Price: decimal.NewFromInt(9), Stock: 2, IsAvailable: true, StoreID: 2},
	}, []models.Store{{ID: 1, Name: "Leaf & Co"}, {ID: 2, Name: "Crockery"}})
	c.Cleanup(srv.Close)
	return srv
}

// newMCPClient returns a started, initialized in-process client backed by a
// fresh service whose API points at srv.
func newMCPClient(c *qt.C, srv *apitest.Server) *mcpclient.Client {
	c.TB.Helper()

	c.Setenv("SHOP_API_BASE_URL", srv.BaseURL())
	c.Setenv("SHOP_CART_MODE", "server")
	c.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	svc, err := service.New(c.TB.TempDir())
	c.Assert(err, qt.IsNil)
	c.TB.Cleanup(func() { _ = svc.Close() })

	cl, err := mcpclient.NewInProcessClient(internalmcp.NewServer(svc))
	c.Assert(err, qt.IsNil)
	c.TB.Cleanup(func() { _ = cl.Close() })

	c.Assert(cl.Start(context.Background()), qt.IsNil)

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "shop-test", Version: "0.0.1"}
	_, err = cl.Initialize(context.Background(), initReq)
	c.Assert(err, qt.IsNil)

	return cl
}

// callTool invokes the named tool and returns the first text content and
// whether the result was flagged as an error.
func callTool(c *qt.C, cl *mcpclient.Client, name string, args map[string]any) (string, bool) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := cl.CallTool(context.Background(), req)
	c.Assert(err, qt.IsNil)
	c.Assert(result.Content, qt.HasLen, 1)

	tc, ok := mcp.AsTextContent(result.Content[0])
	c.Assert(ok, qt.IsTrue)
	return tc.Text, result.IsError
}

// ---------------------------------------------------------------------------
// ListTools
// ---------------------------------------------------------------------------

func TestMCPListTools_HappyPath(t *testing.T) {
	c := qt.New(t)
	cl := newMCPClient(c, newAPI(c))

	result, err := cl.ListTools(context.Background(), mcp.ListToolsRequest{})
	c.Assert(err, qt.IsNil)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	for _, want := range []string{
		"shop_products", "shop_product", "shop_stores", "shop_cart",
		"shop_cart_add", "shop_cart_update", "shop_cart_remove", "shop_cart_clear",
		"shop_checkout", "shop_orders",
	} {
		c.Assert(names, qt.Contains, want)
	}
	c.Assert(names, qt.HasLen, 10)
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

func TestMCPCatalog_HappyPath(t *testing.T) {
	c := qt.New(t)
	cl := newMCPClient(c, newAPI(c))

	text, isErr := callTool(c, cl, "shop_products", map[string]any{"search": "tea"})
	c.Assert(isErr, qt.IsFalse)
	c.Assert(text, checkers.JSONPathEquals("$[*].name"), []any{"Green Tea"})
	c.Assert(text, checkers.JSONPathEquals("$[0].price"), "4.50")

	text, isErr = callTool(c, cl, "shop_product", map[string]any{"product_id": 2})
	c.Assert(isErr, qt.IsFalse)
	c.Assert(text, checkers.JSONPathEquals("$.name"), "Mug")

	text, isErr = callTool(c, cl, "shop_stores", map[string]any{})
	c.Assert(isErr, qt.IsFalse)
	c.Assert(text, checkers.JSONPathEquals("$[*].name"), []any{"Leaf & Co", "Crockery"})
}

// ---------------------------------------------------------------------------
// Cart and checkout
// ---------------------------------------------------------------------------

func TestMCPCartCheckout_HappyPath(t *testing.T) {
	c := qt.New(t)
	srv := newAPI(c)
	cl := newMCPClient(c, srv)

	_, isErr := callTool(c, cl, "shop_cart_add", map[string]any{"product_id": 1, "quantity": 2})
	c.Assert(isErr, qt.IsFalse)
	text, isErr := callTool(c, cl, "shop_cart_add", map[string]any{"product_id": 2})
	c.Assert(isErr, qt.IsFalse)
	c.Assert(text, checkers.JSONPathEquals("$.total_items"), float64(3))
	c.Assert(text, checkers.JSONPathEquals("$.total_amount"), "18.00")

	text, _ = callTool(c, cl, "shop_cart_update", map[string]any{"product_id": 2, "quantity": 2})
	c.Assert(text, checkers.JSONPathEquals("$.total_items"), float64(4))

	text, _ = callTool(c, cl, "shop_cart_remove", map[string]any{"product_id": 2})
	c.Assert(text, checkers.JSONPathEquals("$.items[*].product_id"), []any{float64(1)})

	text, isErr = callTool(c, cl, "shop_checkout", map[string]any{
		"guest_name":       "Ann Lee",
		"guest_email":      "ann@example.com",
		"shipping_address": "12 Harbour Road",
		"phone":            "0901234567",
	})
	c.Assert(isErr, qt.IsFalse)
	c.Assert(text, checkers.JSONPathEquals("$.message"), "Order placed successfully!")
	c.Assert(text, checkers.JSONPathEquals("$.order_id"), "101")
	c.Assert(srv.OrderCount(), qt.Equals, 1)

	text, _ = callTool(c, cl, "shop_cart", map[string]any{})
	c.Assert(text, checkers.JSONPathEquals("$.total_items"), float64(0))

	text, isErr = callTool(c, cl, "shop_orders", map[string]any{})
	c.Assert(isErr, qt.IsFalse)
	var orders []map[string]any
	c.Assert(json.Unmarshal([]byte(text), &orders), qt.IsNil)
	c.Assert(orders, qt.HasLen, 1)
	c.Assert(orders[0]["email"], qt.Equals, "a**@example.com")
	c.Assert(orders[0]["total"], qt.Equals, "9.00")
}

func TestMCPCheckout_FailurePath(t *testing.T) {
	c := qt.New(t)

	c.Run("validation errors per field", func(c *qt.C) {
		srv := newAPI(c)
		cl := newMCPClient(c, srv)
		_, isErr := callTool(c, cl, "shop_cart_add", map[string]any{"product_id": 1})
		c.Assert(isErr, qt.IsFalse)

		text, isErr := callTool(c, cl, "shop_checkout", map[string]any{
			"guest_name":       "Ann",
			"guest_email":      "foo",
			"shipping_address": "12 Harbour Road",
			"phone":            "12345",
		})
		c.Assert(isErr, qt.IsTrue)
		c.Assert(text, checkers.JSONPathEquals("$.fields.guest_email"), "Email is invalid")
		c.Assert(text, checkers.JSONPathEquals("$.fields.phone"), "Enter a valid phone number")
		c.Assert(srv.OrderCount(), qt.Equals, 0)
	})

	c.Run("server failure is retryable", func(c *qt.C) {
		srv := newAPI(c)
		srv.OrderStatus = 500
		cl := newMCPClient(c, srv)
		_, _ = callTool(c, cl, "shop_cart_add", map[string]any{"product_id": 1})

		text, isErr := callTool(c, cl, "shop_checkout", map[string]any{
			"guest_name":       "Ann",
			"guest_email":      "a@b.co",
			"shipping_address": "12 Harbour Road",
			"phone":            "0901234567",
		})
		c.Assert(isErr, qt.IsTrue)
		c.Assert(text, qt.Matches, `failed to create order: HTTP 500.*\(temporary, retry may succeed\)`)

		cart, _ := callTool(c, cl, "shop_cart", map[string]any{})
		c.Assert(cart, checkers.JSONPathEquals("$.total_items"), float64(1))
	})

	c.Run("stock exceeded", func(c *qt.C) {
		cl := newMCPClient(c, newAPI(c))
		text, isErr := callTool(c, cl, "shop_cart_add", map[string]any{"product_id": 2, "quantity": 3})
		c.Assert(isErr, qt.IsTrue)
		c.Assert(text, qt.Matches, "failed to add to cart: HTTP 400.*Not enough stock.*")
	})
}

func TestMCPCallTool_FailurePath(t *testing.T) {
	c := qt.New(t)
	cl := newMCPClient(c, newAPI(c))

	c.Run("unknown tool name returns error", func(c *qt.C) {
		req := mcp.CallToolRequest{}
		req.Params.Name = "nonexistent_tool"
		req.Params.Arguments = make(map[string]any)

		_, err := cl.CallTool(context.Background(), req)
		c.Assert(err, qt.IsNotNil)
	})
}

func TestServe_FailurePath(t *testing.T) {
	c := qt.New(t)

	c.Setenv("SHOP_CART_MODE", "")
	home := t.TempDir()
	c.Assert(os.WriteFile(filepath.Join(home, "config.yaml"), []byte("api:\n  timeout: nope\n"), 0o600), qt.IsNil)
	err := internalmcp.Serve(context.Background(), home)
	c.Assert(err, qt.ErrorMatches, fmt.Sprintf("mcp: init service: %s.*", "service.New: load config"))
}
