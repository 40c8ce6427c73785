// Package version reports build information for the taskgraph binary.
//
// Version, commit, branch and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/taskgraph/version.Version=1.0.0" ./cmd/taskgraph
//
// Values left empty are filled from the module's embedded VCS build info.
package version
