// Package version reports build metadata stamped in with -ldflags "-X".
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Name is the program name used in user-facing output.
const Name = "cyberscribe"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String is the full "cyberscribe <version> (...)" line printed by --version.
func String() string {
	return fmt.Sprintf("%s %s (commit=%s, date=%s, go=%s)", Name, Version, commit(), Date, runtime.Version())
}

// Short is Version plus the abbreviated commit, for log fields.
func Short() string {
	c := commit()
	if c == "none" || c == "" {
		return Version
	}
	return Version + "+" + c[:min(len(c), 7)]
}

// commit prefers the stamped Commit and falls back to the VCS revision the
// toolchain embeds in "go install" builds.
func commit() string {
	if Commit != "none" && Commit != "" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value
		}
	}
	return Commit
}
