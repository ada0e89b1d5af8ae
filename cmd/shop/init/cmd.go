// Package initcmd implements the `shop init` command.
package initcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/storefront/cmd/shop/shared"
)

// Command implements `shop init`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the init command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "init",
		Short: "Create the state home and local database",
		RunE:  c.run,
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	svc, err := c.ctx.OpenService()
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Shop initialized at %s\n", svc.ShopHome)
	fmt.Fprintf(out, "API: %s (cart mode: %s)\n", svc.Config.API.BaseURL, svc.Config.Cart.Mode)
	return nil
}
