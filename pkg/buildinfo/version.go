// Package buildinfo carries the version metadata stamped into release
// binaries:
//
//	go build -ldflags "-X github.com/keelpm/keel/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/keelpm/keel/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/keelpm/keel/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildinfo

import "fmt"

// Stamped via ldflags; the defaults identify an untagged development build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the build information for logs.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template is the cobra version template.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}
