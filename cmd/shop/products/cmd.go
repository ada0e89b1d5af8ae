// Package productscmd implements the `shop products` command.
package productscmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/storefront/cmd/shop/shared"
	"github.com/go-ports/storefront/internal/search"
)

// Command implements `shop products`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	store   int64
	term    string
	inStock bool
	limit   int
}

// New creates the products command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "products",
		Short: "List products, optionally for one store",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}

	f := c.cmd.Flags()
	f.Int64Var(&c.store, "store", 0, "Only products of this store id")
	f.StringVar(&c.term, "search", "", "Filter by name or description")
	f.BoolVar(&c.inStock, "in-stock", false, "Hide unavailable and sold-out products")
	f.IntVar(&c.limit, "limit", 0, "Maximum number of products (0 = all)")

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

	products, err := svc.Products(cmd.Context(), c.store, search.Options{
		Term:        c.term,
		InStockOnly: c.inStock,
		Limit:       c.limit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(products) == 0 {
		fmt.Fprintln(out, "No products found.")
		return nil
	}

	fmt.Fprintf(out, "\n Products (%d found) \n\n", len(products))
	for _, p := range products {
		status := fmt.Sprintf("%d in stock", p.Stock)
		switch {
		case !p.IsAvailable:
			status = "unavailable"
		case p.Stock == 0:
			status = "sold out"
		}
		store := ""
		if p.StoreName != "" {
			store = " | " + p.StoreName
		}
		fmt.Fprintf(out, " [%d] %s  %s  (%s%s)\n", p.ID, p.Name, p.Price.StringFixed(2), status, store)
	}
	return nil
}
