// Package build holds build-time metadata stamped in via -ldflags.
package build

var (
	// ProjectName is used as the namespace for metrics and telemetry.
	ProjectName = "cambium"

	// Version is the release version, overridden at build time.
	Version = "dev"

	// Commit is the git commit the binary was built from.
	Commit = ""
)
