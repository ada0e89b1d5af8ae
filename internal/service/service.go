// Package service implements the shop orchestrator that wires together
// configuration, local state, the API client, the cart store, and checkout.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/go-ports/storefront/internal/api"
	"github.com/go-ports/storefront/internal/buildinfo"
	"github.com/go-ports/storefront/internal/cart"
	"github.com/go-ports/storefront/internal/checkout"
	"github.com/go-ports/storefront/internal/config"
	"github.com/go-ports/storefront/internal/db"
	"github.com/go-ports/storefront/internal/models"
	"github.com/go-ports/storefront/internal/receipt"
	"github.com/go-ports/storefront/internal/redaction"
	"github.com/go-ports/storefront/internal/search"
	"github.com/go-ports/storefront/internal/telemetry"
)

const metaBaseURL = "api_base_url"

// Service owns the single cart store and everything it talks to.
type Service struct {
	ShopHome   string
	ReceiptDir string
	Config     *config.ShopConfig

	database       *db.DB
	client         *api.Client
	cart           cart.Store
	shutdown       telemetry.Shutdown
	ignorePatterns []*regexp.Regexp

	mu       sync.Mutex
	loaded   bool
	checkout sync.Mutex
}

// CheckoutResult is a confirmed order together with its local record.
type CheckoutResult struct {
	Result *models.OrderResult
	Record *models.OrderRecord
}

// New initialises a Service rooted at shopHome.
// If shopHome is empty it is resolved via config.GetShopHome.
func New(shopHome string) (*Service, error) {
	if shopHome == "" {
		shopHome = config.GetShopHome()
	}
	if err := os.MkdirAll(shopHome, 0o755); err != nil {
		return nil, fmt.Errorf("service.New: create home: %w", err)
	}

	config.LoadDotEnv(".env", filepath.Join(shopHome, ".env"))

	cfg, err := config.Load(filepath.Join(shopHome, "config.yaml"))
	if err != nil {
		return nil, fmt.Errorf("service.New: load config: %w", err)
	}

	database, err := db.Open(filepath.Join(shopHome, "shop.db"))
	if err != nil {
		return nil, fmt.Errorf("service.New: open db: %w", err)
	}

	checkBaseURL(database, cfg.API.BaseURL)

	jar, err := api.NewJar(database, cfg.API.BaseURL)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("service.New: %w", err)
	}
	client := api.New(cfg.API.BaseURL, api.WithTimeout(cfg.API.Timeout), api.WithCookieJar(jar))

	shutdown, err := telemetry.Setup(context.Background(), cfg.Telemetry, buildinfo.Version)
	if err != nil {
		slog.Warn("service.New: telemetry disabled", "err", err)
		shutdown = func(context.Context) error { return nil }
	}

	var store cart.Store
	switch cfg.Cart.Mode {
	case config.CartModeLocal:
		store = cart.NewLocalStore(client, database)
	default:
		store = cart.NewRemoteStore(client)
	}

	slog.Debug("service.New: opened", "db", database.Path(), "api", cfg.API.BaseURL, "cart", cfg.Cart.Mode)

	return &Service{
		ShopHome:   shopHome,
		ReceiptDir: filepath.Join(shopHome, "receipts"),
		Config:     cfg,
		database:   database,
		client:     client,
		cart:       store,
		shutdown:   shutdown,
	}, nil
}

// Close flushes telemetry and releases the database.
func (s *Service) Close() error {
	ctx := context.Background()
	return errors.Join(s.shutdown(ctx), s.database.Close())
}

// checkBaseURL records the API the state home talks to and warns when it
// changes, since stored sessions and local cart lines belong to the old one.
func checkBaseURL(database *db.DB, baseURL string) {
	prev, found, err := database.GetMeta(metaBaseURL)
	if err != nil {
		slog.Warn("service.New: read meta", "err", err)
		return
	}
	if found && prev == baseURL {
		return
	}
	if found {
		slog.Warn("service.New: API base URL changed, cart may refer to the previous store",
			"previous", prev, "current", baseURL)
	}
	if err := database.SetMeta(metaBaseURL, baseURL); err != nil {
		slog.Warn("service.New: write meta", "err", err)
	}
}

// ---------------------------------------------------------------------------
// Lazy helpers
// ---------------------------------------------------------------------------

// getIgnorePatterns returns extra redaction patterns, lazily loaded from redact.txt.
func (s *Service) getIgnorePatterns() []*regexp.Regexp {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ignorePatterns != nil {
		return s.ignorePatterns
	}
	patterns, err := redaction.LoadIgnoreFile(filepath.Join(s.ShopHome, "redact.txt"))
	if err != nil {
		slog.Warn("failed to load redact.txt", "err", err)
	}
	if patterns == nil {
		patterns = make([]*regexp.Regexp, 0)
	}
	s.ignorePatterns = patterns
	return patterns
}

// ensureCart loads the cart once per Service so mutations start from the
// persisted or server state.
func (s *Service) ensureCart(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	if err := s.cart.Load(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// Products lists products, optionally for one store, filtered by opts.
func (s *Service) Products(ctx context.Context, storeID int64, opts search.Options) ([]models.Product, error) {
	var (
		products []models.Product
		err      error
	)
	if storeID > 0 {
		products, err = s.client.StoreProducts(ctx, storeID)
	} else {
		products, err = s.client.Products(ctx)
	}
	if err != nil {
		return nil, err
	}
	return search.Filter(products, opts), nil
}

// Product fetches one product.
func (s *Service) Product(ctx context.Context, id int64) (*models.Product, error) {
	return s.client.Product(ctx, id)
}

// Stores lists every store, or the stores of one user when userID > 0.
func (s *Service) Stores(ctx context.Context, userID int64) ([]models.Store, error) {
	if userID > 0 {
		return s.client.UserStores(ctx, userID)
	}
	return s.client.Stores(ctx)
}

// ---------------------------------------------------------------------------
// Cart
// ---------------------------------------------------------------------------

// Cart reloads the cart and returns a snapshot.
func (s *Service) Cart(ctx context.Context) (*models.Cart, error) {
	if err := s.cart.Load(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()
	return s.cart.Snapshot(), nil
}

// AddToCart adds qty units of a product and returns the resulting cart.
func (s *Service) AddToCart(ctx context.Context, productID int64, qty int) (*models.Cart, error) {
	return s.cartOp(ctx, func(ctx context.Context) error {
		return s.cart.AddItem(ctx, productID, qty)
	})
}

// UpdateCartItem sets a line's quantity; qty <= 0 removes the line.
func (s *Service) UpdateCartItem(ctx context.Context, productID int64, qty int) (*models.Cart, error) {
	return s.cartOp(ctx, func(ctx context.Context) error {
		return s.cart.UpdateQuantity(ctx, productID, qty)
	})
}

// RemoveCartItem removes a line. Removing an absent product is not an error.
func (s *Service) RemoveCartItem(ctx context.Context, productID int64) (*models.Cart, error) {
	return s.cartOp(ctx, func(ctx context.Context) error {
		return s.cart.RemoveItem(ctx, productID)
	})
}

// ClearCart empties the cart.
func (s *Service) ClearCart(ctx context.Context) (*models.Cart, error) {
	return s.cartOp(ctx, s.cart.Clear)
}

func (s *Service) cartOp(ctx context.Context, op func(context.Context) error) (*models.Cart, error) {
	if err := s.ensureCart(ctx); err != nil {
		return nil, err
	}
	if err := op(ctx); err != nil {
		return nil, err
	}
	return s.cart.Snapshot(), nil
}

// ---------------------------------------------------------------------------
// Checkout
// ---------------------------------------------------------------------------

// Checkout validates form and submits the current cart as one guest order.
// Validation failures return a *checkout.ValidationError without contacting
// the server. On success the order is recorded locally and a receipt written;
// failures there are logged and do not fail the checkout.
func (s *Service) Checkout(ctx context.Context, form checkout.Form) (*CheckoutResult, error) {
	s.checkout.Lock()
	defer s.checkout.Unlock()

	w := checkout.New(s.cart, s.client)
	if err := w.Load(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()

	w.SetForm(form)
	res, err := w.Submit(ctx)
	if err != nil {
		return nil, err
	}

	req, snap := w.Submitted()
	rec := newRecord(req, res, snap)

	path, err := receipt.Write(s.ReceiptDir, rec, req, snap, s.getIgnorePatterns())
	if err != nil {
		slog.Warn("Checkout: write receipt", "submission", rec.SubmissionID, "err", err)
	} else {
		rec.ReceiptPath = path
	}
	if err := s.database.InsertOrder(rec); err != nil {
		slog.Warn("Checkout: record order", "submission", rec.SubmissionID, "err", err)
	}
	slog.Debug("Checkout: order placed",
		"submission", rec.SubmissionID,
		"orders", rec.OrderIDs,
		"guest", rec.GuestEmail,
	)
	return &CheckoutResult{Result: res, Record: rec}, nil
}

// newRecord builds the local history entry with the guest email masked.
func newRecord(req *models.GuestOrderRequest, res *models.OrderResult, snap *models.Cart) *models.OrderRecord {
	rec := models.NewOrderRecord(req, res, snap)
	rec.GuestEmail = redaction.MaskEmail(req.GuestEmail)
	return rec
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

// Orders returns locally recorded orders, newest first. limit <= 0 means all.
func (s *Service) Orders(limit int) ([]models.OrderRecord, error) {
	return s.database.ListOrders(limit)
}

// OrderCount returns the number of locally recorded orders.
func (s *Service) OrderCount() (int, error) {
	return s.database.CountOrders()
}
