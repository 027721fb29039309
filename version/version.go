// Package version reports the build version of the binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version can be set at build time with something like:
// go build -ldflags "-X github.com/resynth/resynth/version.Version=$(git describe --dirty)"
var Version string

// Hash is the short VCS revision the binary was built from, with -dirty
// appended for modified trees.
var Hash = func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var revision string
	modified := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if revision != "" && modified {
		revision += "-dirty"
	}
	return revision
}()

var VersionOrHash = func() string {
	if Version != "" {
		return Version
	}
	return Hash
}()

// String is the line printed by -v.
func String(name string) string {
	v := VersionOrHash
	if v == "" {
		v = "devel"
	}
	return fmt.Sprintf("%s %s %s/%s %s", name, v, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
