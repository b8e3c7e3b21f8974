// Package version carries build metadata, set through -ldflags -X or read
// from the embedded module build info.
package version

import (
	"runtime/debug"
)

const unknown = "unknown"

// Build metadata. Release builds set these with -ldflags "-X".
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// InitBinaryVersion fills metadata left at its defaults from the build info
// the Go toolchain embeds, so `go install` builds report their module version
// and VCS revision.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = setting.Value
			}
		}
	}
}

// String formats the metadata for `reexport version`.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
