package version

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/fspotfs/fspotfs/catalog"
)

var (
	// These will be set by build flags or default to development values
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info contains version information
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Package string `json:"package"`
	// Schema is the F-Spot catalog schema version fspotfs expects by default.
	Schema string `json:"schema"`
}

// buildSetting returns a VCS setting recorded by the go tool, or "".
func buildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// GetVersion returns the version string, preferring compile-time version if available
func GetVersion() string {
	if Version != "dev" && Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "development"
}

// GetCommit returns the git commit hash, preferring compile-time commit if available
func GetCommit() string {
	if Commit != "unknown" && Commit != "" {
		return Commit
	}
	if rev := buildSetting("vcs.revision"); rev != "" {
		return rev
	}
	return "unknown"
}

// GetBuildDate returns the build date, preferring compile-time date if available
func GetBuildDate() string {
	if Date != "unknown" && Date != "" {
		return Date
	}
	if t := buildSetting("vcs.time"); t != "" {
		return t
	}
	return "unknown"
}

// GetInfo returns complete version information
func GetInfo() Info {
	return Info{
		Version: GetVersion(),
		Commit:  GetCommit(),
		Date:    GetBuildDate(),
		Package: "fspotfs",
		Schema:  catalog.DefaultSchemaVersion,
	}
}

// GetFullVersion returns a formatted version string with commit and date
func GetFullVersion() string {
	return formatVersion(GetInfo())
}

func formatVersion(info Info) string {
	if info.Commit == "unknown" || len(info.Commit) <= 7 {
		return info.Version
	}
	short := info.Commit[:7]
	if info.Date != "unknown" {
		return fmt.Sprintf("%s (%s, built %s)", info.Version, short, info.Date)
	}
	return fmt.Sprintf("%s (%s)", info.Version, short)
}

// PrintVersion writes human-readable version information to w.
func PrintVersion(w io.Writer, appName string) {
	info := GetInfo()
	fmt.Fprintf(w, "%s version %s\n", appName, GetFullVersion())
	fmt.Fprintf(w, "Package: %s\n", info.Package)
	fmt.Fprintf(w, "Commit: %s\n", info.Commit)
	fmt.Fprintf(w, "Build Date: %s\n", info.Date)
	fmt.Fprintf(w, "Catalog schema: %s\n", info.Schema)
}
