package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// BuildInfo holds all sorts of information about the build of an executable artifact.
type BuildInfo struct {
	Version    string
	CommitHash string
	BuildDate  string
	GoVersion  string
}

// New returns the build info for the linker-provided values. Missing values are filled in from
// the module and VCS data embedded by the Go toolchain when available.
func New(version, commitHash, buildDate string) BuildInfo {
	i := BuildInfo{
		Version:    version,
		CommitHash: commitHash,
		BuildDate:  buildDate,
		GoVersion:  runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		i.fill(bi)
	}
	return i
}

func (i *BuildInfo) fill(bi *debug.BuildInfo) {
	if (i.Version == "" || i.Version == "dev") && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.CommitHash == "" || i.CommitHash == "n/a" {
				i.CommitHash = s.Value
			}
		case "vcs.time":
			if i.BuildDate == "" || i.BuildDate == "<unknown>" {
				i.BuildDate = s.Value
			}
		}
	}
}

// String returns the build info as a string.
func (i BuildInfo) String() string {
	return fmt.Sprintf("version %s (%s) built on %s with %s", i.Version, i.CommitHash, i.BuildDate,
		i.GoVersion)
}
