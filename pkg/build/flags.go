// SPDX-License-Identifier: MIT
//
// Package build carries binary metadata (name, version, commit, build time)
// injected at compile time via -ldflags. Development builds without ldflags
// fall back to "dev" placeholders instead of failing.
package build

// Injected with -ldflags "-X audiotap/pkg/build.buildName=... " etc.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

var info = Info{
	Name:        "audiotap",
	Description: "Real-time audio capture with an exception-safe tap chain",
	Time:        "unknown",
	Commit:      "unknown",
	Version:     "dev",
}

// Initialize copies ldflags values over the development defaults. Empty
// ldflags leave the defaults in place so uninjected builds still run.
func Initialize() {
	if buildName != "" {
		info.Name = buildName
	}
	if buildTime != "" {
		info.Time = buildTime
	}
	if buildCommit != "" {
		info.Commit = buildCommit
	}
	if buildVersion != "" {
		info.Version = buildVersion
	}
}

// GetInfo returns the binary's build information. Call Initialize first.
func GetInfo() Info {
	return info
}
