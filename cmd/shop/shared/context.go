// Package shared holds the context passed to all CLI commands.
package shared

import (
	"fmt"
	"strconv"

	"github.com/go-ports/storefront/internal/config"
	"github.com/go-ports/storefront/internal/service"
)

// Context carries global CLI state (flags set on the root command).
type Context struct {
	// ShopHome overrides the state home directory.
	// When empty, resolution falls through to SHOP_HOME env var → persisted config → ~/.storefront.
	ShopHome string
	// Verbose lowers the log level to debug.
	Verbose bool
}

// Home returns the flag value or the resolved default home.
func (c *Context) Home() string {
	if c.ShopHome != "" {
		return c.ShopHome
	}
	return config.GetShopHome()
}

// OpenService opens the service rooted at the selected home.
func (c *Context) OpenService() (*service.Service, error) {
	return service.New(c.ShopHome)
}

// ParseID parses a positive numeric id argument.
func ParseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}
