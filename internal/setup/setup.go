// Package setup registers and removes the storefront MCP server in the
// configuration of supported agents (Claude Code, Cursor, OpenCode).
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ServerName is the key the MCP server is registered under.
const ServerName = "storefront"

// Result is the return value from all Setup/Uninstall functions.
type Result struct {
	Status  string // "ok" or "unchanged"
	Message string
	Path    string // config file that was inspected
}

func ok(path, f string, a ...any) Result {
	return Result{Status: "ok", Message: fmt.Sprintf(f, a...), Path: path}
}

func unchanged(path, msg string) Result {
	return Result{Status: "unchanged", Message: msg, Path: path}
}

// ---------------------------------------------------------------------------
// MCP config entries
// ---------------------------------------------------------------------------

// stdioEntry is the mcpServers entry used by Claude Code and Cursor.
// shopHome, when set, is pinned through SHOP_HOME.
func stdioEntry(shopHome string) map[string]any {
	entry := map[string]any{
		"command": "shop",
		"args":    []any{"mcp"},
		"type":    "stdio",
	}
	if shopHome != "" {
		entry["env"] = map[string]any{"SHOP_HOME": shopHome}
	}
	return entry
}

func opencodeEntry(shopHome string) map[string]any {
	entry := map[string]any{
		"type":    "local",
		"command": []any{"shop", "mcp"},
	}
	if shopHome != "" {
		entry["environment"] = map[string]any{"SHOP_HOME": shopHome}
	}
	return entry
}

// ---------------------------------------------------------------------------
// Default path helpers
// ---------------------------------------------------------------------------

// ClaudeCodePath returns ~/.claude.json, or .mcp.json in dir for a project install.
func ClaudeCodePath(dir string, project bool) string {
	if project {
		return filepath.Join(dir, ".mcp.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude.json")
}

// CursorPath returns ~/.cursor/mcp.json, or .cursor/mcp.json in dir for a project install.
func CursorPath(dir string, project bool) string {
	if project {
		return filepath.Join(dir, ".cursor", "mcp.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cursor", "mcp.json")
}

// OpencodePath returns ~/.config/opencode/opencode.json, or opencode.json in dir.
func OpencodePath(dir string, project bool) string {
	if project {
		return filepath.Join(dir, "opencode.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "opencode", "opencode.json")
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

// readJSON returns the parsed object at path, or an empty map when the file
// is missing. A file that exists but is not a JSON object is an error so it
// is never overwritten.
func readJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string]any), nil
	}
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("setup: %s is not valid JSON: %w", path, err)
	}
	if m == nil {
		m = make(map[string]any)
	}
	return m, nil
}

func writeJSON(path string, data map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644) // #nosec G306 -- agent config files (MCP server entries) do not contain secrets
}

// install adds entry under data[section][ServerName]. It reports false when
// an identical entry is already present.
func install(path, section string, entry map[string]any) (bool, error) {
	data, err := readJSON(path)
	if err != nil {
		return false, err
	}
	servers, _ := data[section].(map[string]any)
	if servers == nil {
		servers = make(map[string]any)
		data[section] = servers
	}
	if existing, exists := servers[ServerName]; exists && sameJSON(existing, entry) {
		return false, nil
	}
	servers[ServerName] = entry
	return true, writeJSON(path, data)
}

// uninstall removes data[section][ServerName], deleting the file when
// nothing else is left in it.
func uninstall(path, section string) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	data, err := readJSON(path)
	if err != nil {
		return false, err
	}
	servers, _ := data[section].(map[string]any)
	if _, exists := servers[ServerName]; !exists {
		return false, nil
	}
	delete(servers, ServerName)
	if len(servers) == 0 {
		delete(data, section)
	}
	if len(data) == 0 {
		return true, os.Remove(path)
	}
	return true, writeJSON(path, data)
}

func sameJSON(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ja) == string(jb)
}

// ---------------------------------------------------------------------------
// Agents
// ---------------------------------------------------------------------------

// Agent names accepted by Install and Uninstall.
const (
	ClaudeCode = "claude-code"
	Cursor     = "cursor"
	Opencode   = "opencode"
)

// Agents lists the supported agent names.
var Agents = []string{ClaudeCode, Cursor, Opencode}

type target struct {
	path    func(dir string, project bool) string
	section string
	entry   func(shopHome string) map[string]any
}

var targets = map[string]target{
	ClaudeCode: {path: ClaudeCodePath, section: "mcpServers", entry: stdioEntry},
	Cursor:     {path: CursorPath, section: "mcpServers", entry: stdioEntry},
	Opencode:   {path: OpencodePath, section: "mcp", entry: opencodeEntry},
}

// Options selects where an agent config lives.
type Options struct {
	// Project installs into Dir instead of the user's global config.
	Project bool
	Dir     string
	// ShopHome is pinned in the server environment when set.
	ShopHome string
}

// Install registers the storefront MCP server for agent.
func Install(agent string, opts Options) (Result, error) {
	t, found := targets[agent]
	if !found {
		return Result{}, fmt.Errorf("setup: unknown agent %q", agent)
	}
	path := t.path(opts.Dir, opts.Project)
	added, err := install(path, t.section, t.entry(opts.ShopHome))
	if err != nil {
		return Result{}, fmt.Errorf("setup %s: %w", agent, err)
	}
	if !added {
		return unchanged(path, "Already installed"), nil
	}
	return ok(path, "Installed: %s in %s", t.section, path), nil
}

// Uninstall removes the storefront MCP server from agent's config.
func Uninstall(agent string, opts Options) (Result, error) {
	t, found := targets[agent]
	if !found {
		return Result{}, fmt.Errorf("setup: unknown agent %q", agent)
	}
	path := t.path(opts.Dir, opts.Project)
	removed, err := uninstall(path, t.section)
	if err != nil {
		return Result{}, fmt.Errorf("uninstall %s: %w", agent, err)
	}
	if !removed {
		return unchanged(path, "Nothing to remove"), nil
	}
	return ok(path, "Removed: %s from %s", t.section, path), nil
}
