// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set with -ldflags -X. Empty values fall back to the VCS stamp the
// Go toolchain embeds.
var (
	Version   = "0.1.0-dev"
	GitCommit = ""
	GitDirty  = ""
	BuildTime = ""
)

// shortCommit is the number of hex digits shown for a commit.
const shortCommit = 12

// Build describes the running binary.
type Build struct {
	Version string
	Commit  string
	Dirty   bool
	Time    string
	Go      string
	OS      string
	Arch    string

	// LinkLayer names the compiled-in engine, filled in by callers
	// that know it.
	LinkLayer string
}

// Current returns the build description, preferring -ldflags values
// over the toolchain's VCS settings.
func Current() Build {
	build := Build{
		Version: Version,
		Commit:  GitCommit,
		Dirty:   GitDirty == "true",
		Time:    BuildTime,
		Go:      runtime.Version(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		build.fillFromSettings(info.Settings)
	}
	if build.Commit == "" {
		build.Commit = "unknown"
	}
	if build.Time == "" {
		build.Time = "unknown"
	}
	return build
}

func (b *Build) fillFromSettings(settings []debug.BuildSetting) {
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			if b.Commit == "" {
				b.Commit = setting.Value
			}
		case "vcs.modified":
			if GitDirty == "" {
				b.Dirty = setting.Value == "true"
			}
		case "vcs.time":
			if b.Time == "" {
				b.Time = setting.Value
			}
		}
	}
}

// String is the one-line form used in logs and --version.
func (b Build) String() string {
	commit := b.Commit
	if len(commit) > shortCommit {
		commit = commit[:shortCommit]
	}
	if b.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", b.Version, commit, b.Time)
}

// Detail is the multi-line form for --version.
func (b Build) Detail() string {
	var out strings.Builder
	out.WriteString(b.String())
	fmt.Fprintf(&out, "\n  go:         %s", b.Go)
	fmt.Fprintf(&out, "\n  platform:   %s/%s", b.OS, b.Arch)
	if b.LinkLayer != "" {
		fmt.Fprintf(&out, "\n  link layer: %s", b.LinkLayer)
	}
	return out.String()
}

// Info is Current().String().
func Info() string {
	return Current().String()
}
