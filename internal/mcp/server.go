// Package mcp provides the stdio MCP server exposing storefront tools to agents.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/shopspring/decimal"

	"github.com/go-ports/storefront/internal/api"
	"github.com/go-ports/storefront/internal/buildinfo"
	"github.com/go-ports/storefront/internal/checkout"
	"github.com/go-ports/storefront/internal/models"
	"github.com/go-ports/storefront/internal/search"
	"github.com/go-ports/storefront/internal/service"
)

const checkoutDescription = `Place a guest order for everything in the cart. Payment is cash on delivery.
The order is sent once per call; if the call fails with a network error the order may still have been created, so check shop_orders before retrying.
On invalid input the result lists an error per field and no order is sent.`

const descriptionLimit = 120

// NewServer creates and registers all shop tools on a new MCP server.
func NewServer(svc *service.Service) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("storefront", buildinfo.Version)
	registerTools(s, svc)
	return s
}

// Serve starts the stdio MCP server, blocking until stdin closes.
func Serve(_ context.Context, shopHome string) error {
	svc, err := service.New(shopHome)
	if err != nil {
		return fmt.Errorf("mcp: init service: %w", err)
	}
	defer svc.Close()

	return mcpserver.ServeStdio(NewServer(svc))
}

func registerTools(s *mcpserver.MCPServer, svc *service.Service) {
	s.AddTool(mcp.NewTool("shop_products",
		mcp.WithDescription("List products, optionally for one store, filtered by a search term."),
		mcp.WithNumber("store_id", mcp.Description("Only products of this store.")),
		mcp.WithString("search", mcp.Description("Case-insensitive match on name or description.")),
		mcp.WithBoolean("in_stock", mcp.Description("Hide unavailable and sold-out products.")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleProducts(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("shop_product",
		mcp.WithDescription("Show one product."),
		mcp.WithNumber("product_id", mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, err := svc.Product(ctx, int64(req.GetInt("product_id", 0)))
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(productPayload(p, false))
	})

	s.AddTool(mcp.NewTool("shop_stores",
		mcp.WithDescription("List stores, or the stores owned by one user."),
		mcp.WithNumber("user_id", mcp.Description("Owner user id.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stores, err := svc.Stores(ctx, int64(req.GetInt("user_id", 0)))
		if err != nil {
			return errorResult(err), nil
		}
		if stores == nil {
			stores = make([]models.Store, 0)
		}
		return jsonResult(stores)
	})

	s.AddTool(mcp.NewTool("shop_cart",
		mcp.WithDescription("Show the cart lines and totals."),
	), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return cartResult(svc.Cart(ctx))
	})

	s.AddTool(mcp.NewTool("shop_cart_add",
		mcp.WithDescription("Add units of a product to the cart. Adding a product already in the cart increases its quantity."),
		mcp.WithNumber("product_id", mcp.Required()),
		mcp.WithNumber("quantity", mcp.Description("Units to add (default 1)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return cartResult(svc.AddToCart(ctx, int64(req.GetInt("product_id", 0)), req.GetInt("quantity", 1)))
	})

	s.AddTool(mcp.NewTool("shop_cart_update",
		mcp.WithDescription("Set the quantity of a cart line. Zero or less removes the line."),
		mcp.WithNumber("product_id", mcp.Required()),
		mcp.WithNumber("quantity", mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return cartResult(svc.UpdateCartItem(ctx, int64(req.GetInt("product_id", 0)), req.GetInt("quantity", 0)))
	})

	s.AddTool(mcp.NewTool("shop_cart_remove",
		mcp.WithDescription("Remove a product from the cart."),
		mcp.WithNumber("product_id", mcp.Required()),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return cartResult(svc.RemoveCartItem(ctx, int64(req.GetInt("product_id", 0))))
	})

	s.AddTool(mcp.NewTool("shop_cart_clear",
		mcp.WithDescription("Remove every line from the cart."),
	), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return cartResult(svc.ClearCart(ctx))
	})

	s.AddTool(mcp.NewTool("shop_checkout",
		mcp.WithDescription(checkoutDescription),
		mcp.WithString(checkout.FieldName, mcp.Required()),
		mcp.WithString(checkout.FieldEmail, mcp.Required()),
		mcp.WithString(checkout.FieldAddress, mcp.Required()),
		mcp.WithString(checkout.FieldPhone, mcp.Required()),
		mcp.WithString(checkout.FieldNotes, mcp.Description("Delivery notes.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCheckout(ctx, svc, req)
	})

	s.AddTool(mcp.NewTool("shop_orders",
		mcp.WithDescription("List orders placed from this machine, newest first."),
		mcp.WithNumber("limit", mcp.Description("Max orders (default 10)")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleOrders(svc, req)
	})
}

// ---------------------------------------------------------------------------
// Tool handlers
// ---------------------------------------------------------------------------

func handleProducts(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	if limit <= 0 {
		limit = 20
	}
	products, err := svc.Products(ctx, int64(req.GetInt("store_id", 0)), search.Options{
		Term:        req.GetString("search", ""),
		InStockOnly: req.GetBool("in_stock", false),
		Limit:       limit,
	})
	if err != nil {
		return errorResult(err), nil
	}
	out := make([]map[string]any, 0, len(products))
	for i := range products {
		out = append(out, productPayload(&products[i], true))
	}
	return jsonResult(out)
}

func handleCheckout(ctx context.Context, svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	form := checkout.Form{
		GuestName:       req.GetString(checkout.FieldName, ""),
		GuestEmail:      req.GetString(checkout.FieldEmail, ""),
		ShippingAddress: req.GetString(checkout.FieldAddress, ""),
		Phone:           req.GetString(checkout.FieldPhone, ""),
		Notes:           req.GetString(checkout.FieldNotes, ""),
	}
	res, err := svc.Checkout(ctx, form)
	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		b, _ := json.Marshal(map[string]any{"error": "invalid checkout form", "fields": verr.Fields})
		return mcp.NewToolResultError(string(b)), nil
	case err != nil:
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{
		"message":    res.Result.Message,
		"order_id":   res.Result.FirstOrderID(),
		"order_ids":  res.Result.OrderIDs,
		"submission": res.Record.SubmissionID,
		"total":      money(res.Record.TotalAmount),
		"items":      res.Record.ItemCount,
	})
}

func handleOrders(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	orders, err := svc.Orders(limit)
	if err != nil {
		return errorResult(err), nil
	}
	out := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		out = append(out, map[string]any{
			"submission": o.SubmissionID,
			"order_ids":  o.OrderIDs,
			"guest":      o.GuestName,
			"email":      o.GuestEmail,
			"items":      o.ItemCount,
			"total":      money(o.TotalAmount),
			"date":       o.CreatedAt.Format("Jan 02"),
		})
	}
	return jsonResult(out)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func cartResult(c *models.Cart, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(cartPayload(c))
}

// errorResult reports err as a tool error, noting when a retry may succeed.
func errorResult(err error) *mcp.CallToolResult {
	msg := err.Error()
	if api.IsRetryable(err) {
		msg += " (temporary, retry may succeed)"
	}
	return mcp.NewToolResultError(msg)
}

func cartPayload(c *models.Cart) map[string]any {
	lines := make([]map[string]any, 0, len(c.Items))
	for _, l := range c.Items {
		lines = append(lines, map[string]any{
			"product_id": l.Product.ID,
			"name":       l.Product.Name,
			"price":      money(l.Product.Price),
			"quantity":   l.Quantity,
			"subtotal":   money(l.Subtotal),
		})
	}
	return map[string]any{
		"items":        lines,
		"total_items":  c.TotalItems,
		"total_amount": money(c.TotalAmount),
	}
}

func productPayload(p *models.Product, short bool) map[string]any {
	desc := p.Description
	if short {
		desc = truncate(desc, descriptionLimit)
	}
	out := map[string]any{
		"id":           p.ID,
		"name":         p.Name,
		"price":        money(p.Price),
		"stock":        p.Stock,
		"is_available": p.IsAvailable,
		"description":  desc,
	}
	if p.StoreName != "" {
		out["store"] = p.StoreName
	}
	if !short && p.Image != "" {
		out["image"] = p.Image
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return s
}
