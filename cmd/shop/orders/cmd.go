// Package orderscmd implements the `shop orders` command.
package orderscmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-ports/storefront/cmd/shop/shared"
)

// Command implements `shop orders`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	limit int
}

// New creates the orders command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "orders",
		Short: "List orders placed from this machine",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}
	c.cmd.Flags().IntVar(&c.limit, "limit", 10, "Maximum number of orders (0 = all)")
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

	orders, err := svc.Orders(c.limit)
	if err != nil {
		return err
	}
	total, err := svc.OrderCount()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(orders) == 0 {
		fmt.Fprintln(out, "No orders yet.")
		return nil
	}

	fmt.Fprintf(out, "\n Orders (showing %d of %d) \n\n", len(orders), total)
	for _, o := range orders {
		ids := "N/A"
		if len(o.OrderIDs) > 0 {
			ids = strings.Join(o.OrderIDs, ", ")
		}
		fmt.Fprintf(out, " %s  #%s  %s (%d items)  %s <%s>\n",
			o.CreatedAt.Local().Format("2006-01-02 15:04"), ids,
			o.TotalAmount.StringFixed(2), o.ItemCount, o.GuestName, o.GuestEmail)
		if o.ReceiptPath != "" {
			fmt.Fprintf(out, "     receipt: %s\n", o.ReceiptPath)
		}
	}
	return nil
}
