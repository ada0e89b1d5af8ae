// Package apitest provides an in-memory commerce API for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/go-ports/storefront/internal/models"
)

const sessionCookie = "sessionid"

// Server serves the commerce API under /api with per-session carts.
// Every mutating endpoint requires an X-CSRFToken header.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	products []models.Product
	stores   []models.Store
	owners   map[int64][]int64 // user id -> store ids
	carts    map[string][]models.CartLine
	nextLine int64
	nextID   int64

	// Orders holds every accepted order payload.
	Orders []models.GuestOrderRequest
	// OrderStatus, when non-zero, is returned by the create-order endpoint
	// instead of accepting the order.
	OrderStatus int
}

// New starts a Server over the given catalog.
func New(products []models.Product, stores []models.Store) *Server {
	s := &Server{
		products: products,
		stores:   stores,
		owners:   make(map[int64][]int64),
		carts:    make(map[string][]models.CartLine),
		nextID:   100,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products/{$}", s.listProducts)
	mux.HandleFunc("GET /api/products/{id}/{$}", s.getProduct)
	mux.HandleFunc("GET /api/stores/{$}", s.listStores)
	mux.HandleFunc("GET /api/stores/{id}/products/{$}", s.storeProducts)
	mux.HandleFunc("GET /api/user/{id}/stores/{$}", s.userStores)
	mux.HandleFunc("GET /api/csrf/{$}", s.csrf)
	mux.HandleFunc("GET /api/cart/{$}", s.getCart)
	mux.HandleFunc("POST /api/cart/add/{$}", s.guard(s.addToCart))
	mux.HandleFunc("PUT /api/cart/item/{id}/{$}", s.guard(s.updateItem))
	mux.HandleFunc("DELETE /api/cart/remove/{id}/{$}", s.guard(s.removeItem))
	mux.HandleFunc("DELETE /api/cart/clear/{$}", s.guard(s.clearCart))
	mux.HandleFunc("POST /api/orders/create/{$}", s.guard(s.createOrder))
	s.Server = httptest.NewServer(mux)
	return s
}

// BaseURL is the API root to hand to api.New.
func (s *Server) BaseURL() string { return s.URL + "/api" }

// SetOwner records userID as the owner of the given stores.
func (s *Server) SetOwner(userID int64, storeIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[userID] = storeIDs
}

// SetStock changes the stock of a product.
func (s *Server) SetStock(productID int64, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID == productID {
			s.products[i].Stock = stock
		}
	}
}

// OrderCount returns the number of accepted orders.
func (s *Server) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Orders)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// session returns the caller's session id, issuing one when absent.
func session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/"})
	return id
}

func (s *Server) guard(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := session(w, r)
		if r.Header.Get("X-CSRFToken") != "tok-"+sid {
			writeError(w, http.StatusForbidden, "CSRF verification failed")
			return
		}
		next(w, r, sid)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found")
		return 0, false
	}
	return id, true
}

// product must be called with s.mu held.
func (s *Server) product(id int64) (models.Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

func (s *Server) listProducts(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.products)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.product(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listStores(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.stores)
}

func (s *Server) storeProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Product, 0)
	for _, p := range s.products {
		if p.StoreID == id {
			out = append(out, p)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) userStores(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Store, 0)
	for _, sid := range s.owners[id] {
		for _, st := range s.stores {
			if st.ID == sid {
				out = append(out, st)
			}
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) csrf(w http.ResponseWriter, r *http.Request) {
	sid := session(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": "tok-" + sid})
}

// ---------------------------------------------------------------------------
// Cart
// ---------------------------------------------------------------------------

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	sid := session(w, r)
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, models.NewCart(s.carts[sid]))
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request, sid string) {
	var body struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid quantity")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.product(body.ProductID)
	if !ok || !p.IsAvailable {
		writeError(w, http.StatusNotFound, "Product not available")
		return
	}
	lines := s.carts[sid]
	for i := range lines {
		if lines[i].Product.ID == p.ID {
			if lines[i].Quantity+body.Quantity > p.Stock {
				writeError(w, http.StatusBadRequest, "Not enough stock")
				return
			}
			lines[i].Quantity += body.Quantity
			writeJSON(w, http.StatusOK, map[string]string{"message": "Item added to cart"})
			return
		}
	}
	if body.Quantity > p.Stock {
		writeError(w, http.StatusBadRequest, "Not enough stock")
		return
	}
	s.nextLine++
	s.carts[sid] = append(lines, models.CartLine{ID: s.nextLine, Product: p, Quantity: body.Quantity})
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Item added to cart"})
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request, sid string) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quantity")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[sid]
	for i := range lines {
		if lines[i].Product.ID != id {
			continue
		}
		p, _ := s.product(id)
		if body.Quantity > p.Stock {
			writeError(w, http.StatusBadRequest, "Not enough stock")
			return
		}
		if body.Quantity <= 0 {
			s.carts[sid] = append(lines[:i:i], lines[i+1:]...)
		} else {
			lines[i].Quantity = body.Quantity
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Cart updated"})
		return
	}
	writeError(w, http.StatusNotFound, "Item not in cart")
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request, sid string) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[sid]
	for i := range lines {
		if lines[i].Product.ID == id {
			s.carts[sid] = append(lines[:i:i], lines[i+1:]...)
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Item removed"})
}

func (s *Server) clearCart(w http.ResponseWriter, _ *http.Request, sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sid)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// createOrder splits the order per store and answers with one id per store.
func (s *Server) createOrder(w http.ResponseWriter, r *http.Request, _ string) {
	var req models.GuestOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid order")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OrderStatus != 0 {
		writeError(w, s.OrderStatus, "Order rejected")
		return
	}
	s.Orders = append(s.Orders, req)

	seen := make(map[int64]bool)
	orders := make([]map[string]any, 0)
	for _, it := range req.Items {
		p, _ := s.product(it.ProductID)
		if seen[p.StoreID] {
			continue
		}
		seen[p.StoreID] = true
		s.nextID++
		orders = append(orders, map[string]any{"id": s.nextID, "store": p.StoreID})
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Order placed successfully!",
		"orders":  orders,
	})
}
