// Package versioning implements the thin version-update collaborator: it
// compares the running binary's version against the version carried by a
// VERSION_UPDATE control-plane event and logs whether an operator-driven
// upgrade is needed. It deliberately does not download or apply anything;
// the supervisor only routes to it.
package versioning

import (
	"log/slog"
	"strings"
)

// Current is the running binary's version string, set at build time via
// -ldflags. "dev" is used for unstamped local builds.
var Current = "dev"

// Check compares target against Current and logs the outcome. It never
// returns an error: a version-update event is advisory, not a command this
// agent can act on by itself.
func Check(logger *slog.Logger, target string) {
	if logger == nil {
		logger = slog.Default()
	}
	if target == "" {
		logger.Warn("version update event missing target version")
		return
	}

	switch {
	case Current == target:
		logger.Info("running version matches control plane's reported version", "version", Current)
	case isNewerVersion(target, Current):
		logger.Warn("control plane reports a newer version is available; redeploy required",
			"current", Current, "available", target)
	default:
		logger.Info("running version is newer than control plane's reported version",
			"current", Current, "reported", target)
	}
}

// isNewerVersion reports whether latest is newer than current. "dev" is
// always treated as oldest; otherwise this is a v-prefix-stripped string
// compare rather than a full semver parse.
func isNewerVersion(latest, current string) bool {
	if current == "dev" || current == "unknown" || current == "" {
		return true
	}
	latest = strings.TrimPrefix(latest, "v")
	current = strings.TrimPrefix(current, "v")
	return latest > current
}
