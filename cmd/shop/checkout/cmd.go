// Package checkoutcmd implements the `shop checkout` command.
package checkoutcmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/go-ports/storefront/cmd/shop/shared"
	"github.com/go-ports/storefront/internal/api"
	"github.com/go-ports/storefront/internal/checkout"
)

// Command implements `shop checkout`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	form checkout.Form
}

// New creates the checkout command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "checkout",
		Short: "Place a guest order for the cart (cash on delivery)",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}

	f := c.cmd.Flags()
	f.StringVar(&c.form.GuestName, "name", "", "Full name")
	f.StringVar(&c.form.GuestEmail, "email", "", "Email address")
	f.StringVar(&c.form.ShippingAddress, "address", "", "Shipping address")
	f.StringVar(&c.form.Phone, "phone", "", "Phone number (at least 10 digits)")
	f.StringVar(&c.form.Notes, "notes", "", "Delivery notes")

	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	svc, err := c.ctx.OpenService()
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	res, err := svc.Checkout(cmd.Context(), c.form)

	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]string, 0, len(verr.Fields))
		for k := range verr.Fields {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		fmt.Fprintln(out, "Please fix the following:")
		for _, k := range fields {
			fmt.Fprintf(out, "  %s: %s\n", k, verr.Fields[k])
		}
		return errors.New("checkout: invalid form, no order was sent")
	case errors.Is(err, checkout.ErrEmptyCart):
		fmt.Fprintln(out, "Your cart is empty.")
		return nil
	case err != nil:
		if api.IsRetryable(err) {
			fmt.Fprintln(cmd.ErrOrStderr(),
				"The order may not have been created. Check `shop orders`, then run the same command again to retry.")
		}
		return err
	}

	fmt.Fprintln(out, res.Result.Message)
	fmt.Fprintf(out, "Order: %s\n", res.Result.FirstOrderID())
	if len(res.Result.OrderIDs) > 1 {
		fmt.Fprintf(out, "Split into %d orders, one per store.\n", len(res.Result.OrderIDs))
	}
	fmt.Fprintf(out, "Total: %s (%d items), cash on delivery\n",
		res.Record.TotalAmount.StringFixed(2), res.Record.ItemCount)
	if res.Record.ReceiptPath != "" {
		fmt.Fprintf(out, "Receipt: %s\n", res.Record.ReceiptPath)
	}
	return nil
}
