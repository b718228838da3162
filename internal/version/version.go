// Package version holds the build version shared by the relay and the CLI.
package version

// Version is stamped at release time with
//
//	-ldflags="-X 'github.com/BioHazard786/Huddle/internal/version.Version=v1.0.0'"
var Version = "dev"
