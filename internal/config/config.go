// Package config handles configuration loading and state home resolution.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Cart modes.
const (
	CartModeServer = "server"
	CartModeLocal  = "local"
)

// DefaultBaseURL is the commerce API used when nothing else is configured.
const DefaultBaseURL = "http://localhost:8000/api"

// ---------------------------------------------------------------------------
// Config types
// ---------------------------------------------------------------------------

// APIConfig holds settings for the remote commerce API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CartConfig selects the cart store implementation.
type CartConfig struct {
	Mode string `yaml:"mode"` // "server" | "local"
}

// TelemetryConfig controls OpenTelemetry export. An empty endpoint disables it.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// ShopConfig is the root per-home configuration.
type ShopConfig struct {
	API       APIConfig       `yaml:"api"`
	Cart      CartConfig      `yaml:"cart"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Default returns a ShopConfig populated with sensible defaults.
func Default() *ShopConfig {
	return &ShopConfig{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: 30 * time.Second,
		},
		Cart: CartConfig{
			Mode: CartModeServer,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "storefront-shop",
		},
	}
}

// Load reads a per-home config.yaml from path, then applies environment
// overrides. If the file does not exist the defaults are used.
// Missing keys retain their default values.
func Load(path string) (*ShopConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if len(data) > 0 {
		// Unmarshal into a plain map so we can apply only the keys that are present.
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if err := applyRaw(cfg, raw); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyRaw(cfg *ShopConfig, raw map[string]any) error {
	if api, ok := raw["api"].(map[string]any); ok {
		if v, ok := api["base_url"].(string); ok && v != "" {
			cfg.API.BaseURL = v
		}
		switch v := api["timeout"].(type) {
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config: api.timeout: %w", err)
			}
			cfg.API.Timeout = d
		case int:
			cfg.API.Timeout = time.Duration(v) * time.Second
		}
	}

	if cart, ok := raw["cart"].(map[string]any); ok {
		if v, ok := cart["mode"].(string); ok && v != "" {
			cfg.Cart.Mode = strings.ToLower(v)
		}
	}

	if tel, ok := raw["telemetry"].(map[string]any); ok {
		if v, ok := tel["otlp_endpoint"].(string); ok {
			cfg.Telemetry.OTLPEndpoint = v
		}
		if v, ok := tel["service_name"].(string); ok && v != "" {
			cfg.Telemetry.ServiceName = v
		}
	}
	return nil
}

// applyEnv overlays environment variables on top of file values.
func applyEnv(cfg *ShopConfig) {
	if v := os.Getenv("SHOP_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("SHOP_CART_MODE"); v != "" {
		cfg.Cart.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" && cfg.Telemetry.OTLPEndpoint == "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
}

// Validate rejects configurations the service cannot run with.
func (c *ShopConfig) Validate() error {
	switch c.Cart.Mode {
	case CartModeServer, CartModeLocal:
	default:
		return fmt.Errorf("config: unknown cart mode %q (want %q or %q)", c.Cart.Mode, CartModeServer, CartModeLocal)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("config: api.timeout must be positive")
	}
	return nil
}

// LoadDotEnv loads KEY=value pairs from each existing file. Variables already
// present in the environment are not overridden.
func LoadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("failed to load env file", "path", p, "err", err)
		}
	}
}

// ---------------------------------------------------------------------------
// Shop home resolution
// ---------------------------------------------------------------------------

// globalConfigPath returns the path to the global storefront config file.
// This file stores only shop_home.
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "storefront", "config.yaml"), nil
}

// normalizePath expands ~ and makes the path absolute.
func normalizePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(os.ExpandEnv(path))
}

// ResolveShopHome returns the state home path and the source of the resolution.
// Priority: SHOP_HOME env → persisted global config → ~/.storefront
// source is one of "env", "config", or "default".
func ResolveShopHome() (path, source string) {
	if env := os.Getenv("SHOP_HOME"); env != "" {
		p, err := normalizePath(env)
		if err == nil {
			return p, "env"
		}
	}

	if persisted, ok, _ := GetPersistedShopHome(); ok {
		return persisted, "config"
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".storefront"), "default"
}

// GetShopHome returns the resolved state home path.
func GetShopHome() string {
	path, _ := ResolveShopHome()
	return path
}

// GetPersistedShopHome reads shop_home from the global config.
// Returns ("", false, nil) if not set.
func GetPersistedShopHome() (string, bool, error) {
	raw, err := readGlobal()
	if err != nil || raw == nil {
		return "", false, err
	}

	val, _ := raw["shop_home"].(string)
	val = strings.TrimSpace(val)
	if val == "" {
		return "", false, nil
	}

	p, err := normalizePath(val)
	if err != nil {
		return "", false, err
	}
	return p, true, nil
}

// SetPersistedShopHome normalizes path and persists it in the global config.
// Returns the normalized path.
func SetPersistedShopHome(path string) (string, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return "", err
	}

	raw, err := readGlobal()
	if err != nil {
		return "", err
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	raw["shop_home"] = normalized

	if err := writeGlobal(raw); err != nil {
		return "", err
	}
	return normalized, nil
}

// ClearPersistedShopHome removes shop_home from the global config.
// Returns true if the key was present and removed.
// If the file becomes empty after removal it is deleted.
func ClearPersistedShopHome() (bool, error) {
	raw, err := readGlobal()
	if err != nil || raw == nil {
		return false, err
	}
	if _, ok := raw["shop_home"]; !ok {
		return false, nil
	}
	delete(raw, "shop_home")

	if len(raw) == 0 {
		cfgPath, err := globalConfigPath()
		if err != nil {
			return false, err
		}
		_ = os.Remove(cfgPath)
		return true, nil
	}
	return true, writeGlobal(raw)
}

// readGlobal returns the parsed global config, or nil when absent or unreadable as YAML.
func readGlobal() (map[string]any, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil
	}
	return raw, nil
}

func writeGlobal(raw map[string]any) error {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return err
	}
	out, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(cfgPath, out, 0o600)
}
