package version

import (
	"fmt"
	"io"
)

// Set with -ldflags "-X github.com/baxromumarov/job-collector/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "none"
	BuildTime = "unknown"
)

// String returns the version with a short commit suffix when one is known.
func String() string {
	if GitCommit == "" || GitCommit == "none" {
		return Version
	}
	c := GitCommit
	if len(c) > 7 {
		c = c[:7]
	}
	return fmt.Sprintf("%s-%s", Version, c)
}

func Print(w io.Writer) {
	fmt.Fprintln(w, "Version:          ", String())
	fmt.Fprintln(w, "Git Commit:       ", GitCommit)
	fmt.Fprintln(w, "Build Time (UTC): ", BuildTime)
}
