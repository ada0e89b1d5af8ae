// Package storescmd implements the `shop stores` command.
package storescmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/storefront/cmd/shop/shared"
)

// Command implements `shop stores`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	user int64
}

// New creates the stores command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "stores",
		Short: "List stores",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}
	c.cmd.Flags().Int64Var(&c.user, "user", 0, "Only stores owned by this user id")
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

	stores, err := svc.Stores(cmd.Context(), c.user)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(stores) == 0 {
		fmt.Fprintln(out, "No stores found.")
		return nil
	}
	for _, s := range stores {
		fmt.Fprintf(out, " [%d] %s\n", s.ID, s.Name)
		if s.Address != "" {
			fmt.Fprintf(out, "     %s\n", s.Address)
		}
	}
	return nil
}
