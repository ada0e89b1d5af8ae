// Package setupcmd implements the `shop setup` command group.
package setupcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-ports/storefront/cmd/shop/shared"
	"github.com/go-ports/storefront/internal/setup"
)

var shorts = map[string]string{
	setup.ClaudeCode: "Install the shop MCP server into Claude Code",
	setup.Cursor:     "Install the shop MCP server into Cursor",
	setup.Opencode:   "Install the shop MCP server into OpenCode",
}

// Command implements `shop setup`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the setup command group with one subcommand per agent.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "setup",
		Short: "Register the shop MCP server with an agent",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	for _, agent := range setup.Agents {
		c.cmd.AddCommand(c.newAgent(agent))
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) newAgent(agent string) *cobra.Command {
	var opts setup.Options
	cmd := &cobra.Command{
		Use:   agent,
		Short: shorts[agent],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Dir != "" {
				opts.Project = true
			}
			if opts.Project && opts.Dir == "" {
				opts.Dir, _ = os.Getwd()
			}
			opts.ShopHome = c.ctx.ShopHome
			result, err := setup.Install(agent, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Project, "project", false, "Install in the current project instead of globally")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "Project directory (implies --project)")
	return cmd
}
