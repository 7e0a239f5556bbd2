package version

import (
	"os"
	"strings"
)

// Version is overridden at build time with -ldflags "-X signalgate.app/receiver/internal/version.Version=...".
var Version = "dev"

// Load returns the trimmed contents of the file at path, falling back to the
// build-time Version when the file is missing or blank.
func Load(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return Version
	}
	if v := strings.TrimSpace(string(data)); v != "" {
		return v
	}
	return Version
}
