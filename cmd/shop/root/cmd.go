// Package rootcmd wires the root cobra.Command for the shop CLI binary.
package rootcmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	cartcmd "github.com/go-ports/storefront/cmd/shop/cart"
	checkoutcmd "github.com/go-ports/storefront/cmd/shop/checkout"
	configcmd "github.com/go-ports/storefront/cmd/shop/config"
	initcmd "github.com/go-ports/storefront/cmd/shop/init"
	mcpcmd "github.com/go-ports/storefront/cmd/shop/mcp"
	orderscmd "github.com/go-ports/storefront/cmd/shop/orders"
	productcmd "github.com/go-ports/storefront/cmd/shop/product"
	productscmd "github.com/go-ports/storefront/cmd/shop/products"
	setupcmd "github.com/go-ports/storefront/cmd/shop/setup"
	"github.com/go-ports/storefront/cmd/shop/shared"
	storescmd "github.com/go-ports/storefront/cmd/shop/stores"
	uninstallcmd "github.com/go-ports/storefront/cmd/shop/uninstall"
	"github.com/go-ports/storefront/internal/buildinfo"
)

// New creates and returns the root cobra.Command for the shop CLI.
func New() *cobra.Command {
	ctx := &shared.Context{}

	root := &cobra.Command{
		Use:           "shop",
		Short:         "Storefront: browse products, fill a cart and check out as a guest",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if ctx.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	root.PersistentFlags().StringVar(
		&ctx.ShopHome, "home", "",
		"Override state home directory (default: $SHOP_HOME env → persisted config → ~/.storefront)",
	)
	root.PersistentFlags().BoolVarP(&ctx.Verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		initcmd.New(ctx).Cmd(),
		productscmd.New(ctx).Cmd(),
		productcmd.New(ctx).Cmd(),
		storescmd.New(ctx).Cmd(),
		cartcmd.New(ctx).Cmd(),
		checkoutcmd.New(ctx).Cmd(),
		orderscmd.New(ctx).Cmd(),
		configcmd.New(ctx).Cmd(),
		mcpcmd.New(ctx).Cmd(),
		setupcmd.New(ctx).Cmd(),
		uninstallcmd.New(ctx).Cmd(),
	)

	return root
}
