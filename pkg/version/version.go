// Package version holds the build version of the replay binaries.
package version

// Version is overridden at build time with
// -ldflags "-X github.com/getpup/pupsourcing-replay/pkg/version.Version=v1.2.3".
var Version = "dev"
