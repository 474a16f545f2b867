package version

import "runtime/debug"

// Set with -ldflags "-X nophish/internal/app/version.buildVersion=...".
var (
	buildVersion = "dev"
	builtAt      = "unknown"
)

type Info struct {
	Version   string `json:"version"`
	BuiltAt   string `json:"built_at"`
	GoVersion string `json:"go_version,omitempty"`
	Revision  string `json:"revision,omitempty"`
}

// Get returns the build metadata, filling the revision from the embedded
// VCS stamp when the binary has one.
func Get() Info {
	info := Info{Version: buildVersion, BuiltAt: builtAt}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, setting := range bi.Settings {
		if setting.Key == "vcs.revision" {
			info.Revision = setting.Value
		}
	}
	return info
}
