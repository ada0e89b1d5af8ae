// Package api is the HTTP client for the remote commerce API.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yalp/jsonpath"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/go-ports/storefront/internal/buildinfo"
	"github.com/go-ports/storefront/internal/models"
)

const defaultTimeout = 30 * time.Second

// Client issues one HTTP request per domain operation. Mutating requests
// carry a CSRF token when one can be obtained, and session cookies travel
// through the configured cookie jar.
type Client struct {
	BaseURL string
	client  *http.Client
}

// Option customizes a Client.
type Option func(*http.Client)

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(hc *http.Client) {
		if d > 0 {
			hc.Timeout = d
		}
	}
}

// WithCookieJar installs the jar holding session cookies.
func WithCookieJar(jar http.CookieJar) Option {
	return func(hc *http.Client) { hc.Jar = jar }
}

// WithTransport replaces the base transport. It is still wrapped for tracing.
func WithTransport(rt http.RoundTripper) Option {
	return func(hc *http.Client) { hc.Transport = otelhttp.NewTransport(rt) }
}

// New returns a Client for baseURL with trailing slashes removed.
func New(baseURL string, opts ...Option) *Client {
	hc := &http.Client{
		Timeout:   defaultTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	for _, opt := range opts {
		opt(hc)
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
	}
}

func (c *Client) url(format string, args ...any) string {
	return c.BaseURL + fmt.Sprintf(format, args...)
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	headers := map[string]string{"User-Agent": buildinfo.UserAgent()}
	return doJSON(ctx, c.client, op, http.MethodGet, c.BaseURL+path, headers, nil, out)
}

// mutate sends a state-changing request. The CSRF token is best effort.
func (c *Client) mutate(ctx context.Context, op, method, path string, body, out any) error {
	headers := map[string]string{"User-Agent": buildinfo.UserAgent()}
	token, err := c.CSRFToken(ctx)
	if err != nil {
		slog.Warn("api: proceeding without csrf token", "op", op, "err", err)
	} else if token != "" {
		headers["X-CSRFToken"] = token
	}
	return doJSON(ctx, c.client, op, method, c.BaseURL+path, headers, body, out)
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// Products lists every product.
func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := c.get(ctx, "fetch products", "/products/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Product fetches a single product by id.
func (c *Client) Product(ctx context.Context, id int64) (*models.Product, error) {
	var out models.Product
	if err := c.get(ctx, "fetch product", fmt.Sprintf("/products/%d/", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stores lists every store.
func (c *Client) Stores(ctx context.Context) ([]models.Store, error) {
	var out []models.Store
	if err := c.get(ctx, "fetch stores", "/stores/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StoreProducts lists the products sold by one store.
func (c *Client) StoreProducts(ctx context.Context, storeID int64) ([]models.Product, error) {
	var out []models.Product
	if err := c.get(ctx, "fetch store products", fmt.Sprintf("/stores/%d/products/", storeID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UserStores lists the stores owned by a user.
func (c *Client) UserStores(ctx context.Context, userID int64) ([]models.Store, error) {
	var out []models.Store
	if err := c.get(ctx, "fetch user stores", fmt.Sprintf("/user/%d/stores/", userID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Session
// ---------------------------------------------------------------------------

// CSRFToken fetches a fresh token for the current session.
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"csrf_token"`
	}
	if err := c.get(ctx, "fetch csrf token", "/csrf/", &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// ---------------------------------------------------------------------------
// Cart
// ---------------------------------------------------------------------------

// Cart reads the authoritative server cart for the session.
func (c *Client) Cart(ctx context.Context) (*models.Cart, error) {
	var out models.Cart
	if err := c.get(ctx, "fetch cart", "/cart/", &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = make([]models.CartLine, 0)
	}
	// Older servers omit line subtotals and totals; server values win otherwise.
	for i := range out.Items {
		if out.Items[i].Subtotal.IsZero() {
			out.Items[i].Subtotal = out.Items[i].ComputeSubtotal()
		}
	}
	if len(out.Items) > 0 && out.TotalItems == 0 {
		out.Recalculate()
	}
	return &out, nil
}

// AddToCart adds qty units of a product to the session cart.
func (c *Client) AddToCart(ctx context.Context, productID int64, qty int) error {
	body := map[string]any{"product_id": productID, "quantity": qty}
	return c.mutate(ctx, "add to cart", http.MethodPost, "/cart/add/", body, nil)
}

// UpdateCartItem replaces the quantity of a cart line.
func (c *Client) UpdateCartItem(ctx context.Context, productID int64, qty int) error {
	body := map[string]any{"quantity": qty}
	return c.mutate(ctx, "update cart item", http.MethodPut, fmt.Sprintf("/cart/item/%d/", productID), body, nil)
}

// RemoveCartItem deletes a cart line.
func (c *Client) RemoveCartItem(ctx context.Context, productID int64) error {
	return c.mutate(ctx, "remove cart item", http.MethodDelete, fmt.Sprintf("/cart/remove/%d/", productID), nil, nil)
}

// ClearCart deletes every line of the session cart.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.mutate(ctx, "clear cart", http.MethodDelete, "/cart/clear/", nil, nil)
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// CreateOrder submits a guest order. The request is sent exactly once.
func (c *Client) CreateOrder(ctx context.Context, req *models.GuestOrderRequest) (*models.OrderResult, error) {
	var raw any
	if err := c.mutate(ctx, "create order", http.MethodPost, "/orders/create/", req, &raw); err != nil {
		return nil, err
	}
	return parseOrderResult(raw), nil
}

// parseOrderResult reads $.message and $.orders[*].id from a decoded response.
// The order was accepted by the time this runs, so missing fields are not errors.
func parseOrderResult(raw any) *models.OrderResult {
	res := &models.OrderResult{Message: models.DefaultOrderMessage, OrderIDs: make([]string, 0)}
	if raw == nil {
		return res
	}

	if msg, err := jsonpath.Read(raw, "$.message"); err == nil {
		if s, ok := msg.(string); ok && s != "" {
			res.Message = s
		}
	}

	ids, err := jsonpath.Read(raw, "$.orders[*].id")
	if err != nil {
		return res
	}
	list, ok := ids.([]any)
	if !ok {
		list = []any{ids}
	}
	for _, id := range list {
		switch v := id.(type) {
		case string:
			res.OrderIDs = append(res.OrderIDs, v)
		case float64:
			res.OrderIDs = append(res.OrderIDs, strconv.FormatFloat(v, 'f', -1, 64))
		case nil:
		default:
			res.OrderIDs = append(res.OrderIDs, fmt.Sprint(v))
		}
	}
	return res
}
