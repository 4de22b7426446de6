package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/chimerax"

// buildVersion is set via -ldflags "-X pkt.systems/chimerax/internal/version.buildVersion=...".
var buildVersion = ""

// Current returns the best available version string, dirty suffix stripped.
func Current() string {
	return resolve(false)
}

// CurrentWithDirty returns the best available version string, keeping a
// +dirty suffix when the build came from a modified tree.
func CurrentWithDirty() string {
	return resolve(true)
}

// Module returns the module path from build info when available.
func Module() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			return path
		}
	}
	return defaultModule
}

// resolve picks, in order: the ldflags override, the module version stamped
// by go install, or a pseudo-version derived from vcs stamps.
func resolve(includeDirty bool) string {
	candidate := strings.TrimSpace(buildVersion)
	if candidate == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
				candidate = v
			} else {
				candidate = pseudoVersion(info, includeDirty)
			}
		}
	}
	if candidate == "" {
		return "v0.0.0-unknown"
	}
	if !includeDirty {
		candidate = strings.TrimSuffix(candidate, "+dirty")
	}
	return candidate
}

func pseudoVersion(info *debug.BuildInfo, includeDirty bool) string {
	if info == nil {
		return ""
	}
	stamps := map[string]string{}
	for _, setting := range info.Settings {
		stamps[setting.Key] = setting.Value
	}
	revision := stamps["vcs.revision"]
	if revision == "" || stamps["vcs.time"] == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339, stamps["vcs.time"])
	if err != nil {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	ver := "v0.0.0-" + parsed.UTC().Format("20060102150405") + "-" + revision
	if includeDirty && stamps["vcs.modified"] == "true" {
		ver += "+dirty"
	}
	return ver
}
