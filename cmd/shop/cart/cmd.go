// Package cartcmd implements the `shop cart` command group.
package cartcmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-ports/storefront/cmd/shop/shared"
	"github.com/go-ports/storefront/internal/models"
	"github.com/go-ports/storefront/internal/service"
)

// Command implements `shop cart`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the cart command group. Without a subcommand it shows the cart.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "cart",
		Short: "Show or change the shopping cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd, func(ctx context.Context, svc *service.Service) (*models.Cart, error) {
				return svc.Cart(ctx)
			})
		},
	}
	c.cmd.AddCommand(
		c.newAdd(),
		c.newUpdate(),
		c.newRemove(),
		c.newClear(),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

// withService runs op and prints the resulting cart.
func (c *Command) withService(cmd *cobra.Command, op func(context.Context, *service.Service) (*models.Cart, error)) error {
	svc, err := c.ctx.OpenService()
	if err != nil {
		return err
	}
	defer svc.Close()

	cart, err := op(cmd.Context(), svc)
	if err != nil {
		return err
	}
	printCart(cmd.OutOrStdout(), cart)
	return nil
}

// ---------------------------------------------------------------------------
// cart add
// ---------------------------------------------------------------------------

func (c *Command) newAdd() *cobra.Command {
	var qty int
	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := shared.ParseID("product", args[0])
			if err != nil {
				return err
			}
			return c.withService(cmd, func(ctx context.Context, svc *service.Service) (*models.Cart, error) {
				return svc.AddToCart(ctx, id, qty)
			})
		},
	}
	cmd.Flags().IntVarP(&qty, "qty", "q", 1, "Units to add")
	return cmd
}

// ---------------------------------------------------------------------------
// cart update
// ---------------------------------------------------------------------------

func (c *Command) newUpdate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <product-id> <qty>",
		Short: "Set the quantity of a cart line (0 or less removes it)",
		Long: `Set the quantity of a cart line. A quantity of 0 or less removes the line.
Negative quantities look like flags, so pass them after --.`,
		Example: "  shop cart update 5 3\n  shop cart update 5 0\n  shop cart update 5 -- -1",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := shared.ParseID("product", args[0])
			if err != nil {
				return err
			}
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			return c.withService(cmd, func(ctx context.Context, svc *service.Service) (*models.Cart, error) {
				return svc.UpdateCartItem(ctx, id, qty)
			})
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		if q, found := negativeQuantity(err); found {
			return fmt.Errorf("%w (for a negative quantity use: shop cart update <product-id> -- %s)", err, q)
		}
		return err
	})
	return cmd
}

// negativeQuantity reports whether a flag parse error was caused by a
// negative number, as in "unknown shorthand flag: '1' in -1".
func negativeQuantity(err error) (string, bool) {
	msg := err.Error()
	i := strings.LastIndex(msg, " in ")
	if i < 0 {
		return "", false
	}
	arg := msg[i+len(" in "):]
	if n, convErr := strconv.Atoi(arg); convErr == nil && n < 0 {
		return arg, true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// cart remove
// ---------------------------------------------------------------------------

func (c *Command) newRemove() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := shared.ParseID("product", args[0])
			if err != nil {
				return err
			}
			return c.withService(cmd, func(ctx context.Context, svc *service.Service) (*models.Cart, error) {
				return svc.RemoveCartItem(ctx, id)
			})
		},
	}
}

// ---------------------------------------------------------------------------
// cart clear
// ---------------------------------------------------------------------------

func (c *Command) newClear() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every line from the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd, func(ctx context.Context, svc *service.Service) (*models.Cart, error) {
				return svc.ClearCart(ctx)
			})
		},
	}
}

func printCart(out io.Writer, cart *models.Cart) {
	if cart.IsEmpty() {
		fmt.Fprintln(out, "Your cart is empty.")
		return
	}
	fmt.Fprintf(out, "\n Cart (%d items) \n\n", cart.TotalItems)
	for _, l := range cart.Items {
		fmt.Fprintf(out, " [%d] %s  %d x %s = %s\n",
			l.Product.ID, l.Product.Name, l.Quantity,
			l.Product.Price.StringFixed(2), l.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(out, "\n Total: %s\n", cart.TotalAmount.StringFixed(2))
}
