// Package buildinfo holds build-time variables injected via ldflags.
package buildinfo

// Populated by -ldflags at build time; defaults used for local dev.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// UserAgent is sent on every request to the commerce API.
func UserAgent() string {
	return "storefront-shop/" + Version + " (" + GitCommit + ")"
}
