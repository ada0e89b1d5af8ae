// Package productcmd implements the `shop product` command.
package productcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/storefront/cmd/shop/shared"
)

// Command implements `shop product`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the product command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "product <id>",
		Short: "Show product details",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, args []string) error {
	id, err := shared.ParseID("product", args[0])
	if err != nil {
		return err
	}

	svc, err := c.ctx.OpenService()
	if err != nil {
		return err
	}
	defer svc.Close()

	p, err := svc.Product(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", p.Name)
	fmt.Fprintf(out, "  Price: %s\n", p.Price.StringFixed(2))
	if p.InStock() {
		fmt.Fprintf(out, "  Stock: %d\n", p.Stock)
	} else {
		fmt.Fprintln(out, "  Stock: out of stock")
	}
	if p.StoreName != "" {
		fmt.Fprintf(out, "  Store: %s\n", p.StoreName)
	}
	if p.Description != "" {
		fmt.Fprintf(out, "\n%s\n", p.Description)
	}
	if p.Image != "" {
		fmt.Fprintf(out, "\nImage: %s\n", p.Image)
	}
	return nil
}
