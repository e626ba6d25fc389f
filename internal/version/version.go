package version

// Set at build time, e.g.
// go build -ldflags "-X github.com/pysugar/photo-nexus/internal/version.Version=v0.3.0 -X github.com/pysugar/photo-nexus/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// String formats the build info for logs.
func String() string {
	return Version + " (" + Commit + ", " + BuildTime + ")"
}
