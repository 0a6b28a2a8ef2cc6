// Package version reports Stellar Rooms build information.
package version

import "fmt"

// Set at build time with -ldflags "-X .../internal/version.Version=..."
var (
	Name      = "Stellar Rooms"
	Version   = "0.1.0"
	BuildTime = ""
	GitCommit = ""
)

// Info is served on /api/v1/version and printed by `stellar version`.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildTime string `json:"buildTime,omitempty"`
	GitCommit string `json:"gitCommit,omitempty"`
}

// GetInfo returns the build information.
func GetInfo() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}
}

// ShortCommit returns the first seven characters of the commit hash.
func (i Info) ShortCommit() string {
	return i.GitCommit[:min(7, len(i.GitCommit))]
}

func (i Info) String() string {
	s := fmt.Sprintf("%s v%s", i.Name, i.Version)
	if i.GitCommit != "" {
		s += fmt.Sprintf(" (%s)", i.ShortCommit())
	}
	if i.BuildTime != "" {
		s += " built " + i.BuildTime
	}
	return s
}
