// Package uninstallcmd implements the `shop uninstall` command group.
package uninstallcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-ports/storefront/cmd/shop/shared"
	"github.com/go-ports/storefront/internal/setup"
)

// Command implements `shop uninstall`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the uninstall command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the shop MCP server from an agent",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	for _, agent := range setup.Agents {
		c.cmd.AddCommand(newAgent(agent))
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func newAgent(agent string) *cobra.Command {
	var opts setup.Options
	cmd := &cobra.Command{
		Use:   agent,
		Short: "Remove the shop MCP server from " + agent,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Dir != "" {
				opts.Project = true
			}
			if opts.Project && opts.Dir == "" {
				opts.Dir, _ = os.Getwd()
			}
			result, err := setup.Uninstall(agent, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Project, "project", false, "Uninstall from the current project instead of globally")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "Project directory (implies --project)")
	return cmd
}
