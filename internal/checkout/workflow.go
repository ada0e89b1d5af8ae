package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-ports/storefront/internal/cart"
	"github.com/go-ports/storefront/internal/models"
)

const instrumentationName = "github.com/go-ports/storefront/internal/checkout"

// State is a checkout workflow state.
type State int

const (
	Loading State = iota
	Ready
	Submitting
	Success
	Failed
	Empty
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Empty:
		return "empty"
	default:
		return "unknown"
	}
}

var (
	// ErrEmptyCart is returned when submitting with nothing in the cart.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrNotReady is returned when Submit is called outside Ready or Failed.
	ErrNotReady = errors.New("checkout: not ready to submit")
)

// OrderCreator sends the guest order to the server.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req *models.GuestOrderRequest) (*models.OrderResult, error)
}

// Workflow drives one checkout from cart load to order confirmation.
type Workflow struct {
	mu     sync.Mutex
	store  cart.Store
	orders OrderCreator

	state     State
	form      Form
	fieldErrs FieldErrors
	err       error
	result    *models.OrderResult
	request   *models.GuestOrderRequest
	submitted *models.Cart

	tracer      trace.Tracer
	submissions metric.Int64Counter
	failures    metric.Int64Counter
}

// New returns a Workflow in the Loading state.
func New(store cart.Store, orders OrderCreator) *Workflow {
	meter := otel.Meter(instrumentationName)
	return &Workflow{
		store:       store,
		orders:      orders,
		state:       Loading,
		fieldErrs:   make(FieldErrors),
		tracer:      otel.Tracer(instrumentationName),
		submissions: counter(meter, "shop.checkout.submissions", "Guest orders sent to the server"),
		failures:    counter(meter, "shop.checkout.failures", "Guest orders the server did not accept"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		slog.Warn("checkout: counter unavailable", "name", name, "err", err)
		return noop.Int64Counter{}
	}
	return c
}

// Load reads the cart and moves to Ready, or Empty when there is nothing to buy.
// A failed load leaves the workflow in Failed; Load may be called again.
func (w *Workflow) Load(ctx context.Context) error {
	w.mu.Lock()
	w.state = Loading
	w.mu.Unlock()

	err := w.store.Load(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case err != nil:
		w.state = Failed
		w.err = err
		return err
	case w.store.TotalItems() == 0:
		w.state = Empty
	default:
		w.state = Ready
		w.err = nil
	}
	return nil
}

// SetField updates one form field and clears only that field's error.
func (w *Workflow) SetField(name, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.form.Set(name, value); err != nil {
		return err
	}
	delete(w.fieldErrs, name)
	return nil
}

// SetForm replaces every field and clears all field errors.
func (w *Workflow) SetForm(f Form) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form = f
	w.fieldErrs = make(FieldErrors)
}

// Submit validates the form and sends exactly one create-order request.
// Validation failures return a *ValidationError and send nothing.
// On success the cart is cleared; a failure to clear is only logged.
func (w *Workflow) Submit(ctx context.Context) (*models.OrderResult, error) {
	w.mu.Lock()
	switch w.state {
	case Ready, Failed:
	case Empty:
		w.mu.Unlock()
		return nil, ErrEmptyCart
	default:
		st := w.state
		w.mu.Unlock()
		return nil, fmt.Errorf("%w (state %s)", ErrNotReady, st)
	}

	if errs := Validate(w.form); len(errs) > 0 {
		w.fieldErrs = errs
		w.state = Ready
		w.mu.Unlock()
		return nil, &ValidationError{Fields: errs}
	}

	snap := w.store.Snapshot()
	if snap.IsEmpty() {
		w.state = Empty
		w.mu.Unlock()
		return nil, ErrEmptyCart
	}

	req := &models.GuestOrderRequest{
		GuestName:       strings.TrimSpace(w.form.GuestName),
		GuestEmail:      strings.TrimSpace(w.form.GuestEmail),
		ShippingAddress: strings.TrimSpace(w.form.ShippingAddress),
		Phone:           strings.TrimSpace(w.form.Phone),
		Notes:           w.form.Notes,
		Items:           models.ItemsFromCart(snap),
	}
	w.state = Submitting
	w.err = nil
	w.fieldErrs = make(FieldErrors)
	w.mu.Unlock()

	ctx, span := w.tracer.Start(ctx, "checkout.Submit", trace.WithAttributes(
		attribute.Int("shop.cart.lines", len(snap.Items)),
		attribute.Int("shop.cart.items", snap.TotalItems),
		attribute.String("shop.cart.total", snap.TotalAmount.StringFixed(2)),
	))
	defer span.End()
	w.submissions.Add(ctx, 1)

	res, err := w.orders.CreateOrder(ctx, req)
	if err != nil {
		w.failures.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order failed")

		w.mu.Lock()
		w.state = Failed
		w.err = err
		w.mu.Unlock()
		return nil, err
	}
	span.SetAttributes(attribute.Int("shop.order.count", len(res.OrderIDs)))

	if err := w.store.Clear(ctx); err != nil {
		slog.Warn("checkout: order placed but cart not cleared", "err", err)
	}

	w.mu.Lock()
	w.state = Success
	w.result = res
	w.request = req
	w.submitted = snap
	w.mu.Unlock()
	return res, nil
}

// Retry moves a Failed workflow back to Ready, keeping the form.
func (w *Workflow) Retry() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Failed {
		w.state = Ready
		w.err = nil
	}
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Form returns the current field values.
func (w *Workflow) Form() Form {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

// FieldErrors returns a copy of the current field errors.
func (w *Workflow) FieldErrors() FieldErrors {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(FieldErrors, len(w.fieldErrs))
	for k, v := range w.fieldErrs {
		out[k] = v
	}
	return out
}

// Err returns the last load or submission error, if any.
func (w *Workflow) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Result returns the confirmation of a successful submission.
func (w *Workflow) Result() *models.OrderResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// Submitted returns the request and cart that produced the current Result.
func (w *Workflow) Submitted() (*models.GuestOrderRequest, *models.Cart) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.request, w.submitted
}
