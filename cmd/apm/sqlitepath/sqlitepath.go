// Package sqlitepath resolves where the apm SQLite database lives.
package sqlitepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/apm/pkg/dotdir"
)

// DefaultName is the database file created inside the .apm directory.
const DefaultName = "apm.sqlite"

// ResolveSQLitePath returns override when set, then the first existing
// candidate database, and otherwise a path inside the resolved .apm
// directory.
func ResolveSQLitePath(override, configDir string) (string, error) {
	if strings.TrimSpace(override) != "" {
		return override, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return "", fmt.Errorf("resolving .apm directory: %w", err)
	}
	return filepath.Join(target, DefaultName), nil
}

func sqliteCandidates() []string {
	candidates := []string{
		"apm.db",
		"apm.sqlite",
		filepath.Join(".apm", "apm.db"),
		filepath.Join(".apm", DefaultName),
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "apm", "apm.db"),
			filepath.Join(xdgHome, "apm", DefaultName),
		}, candidates...)
	}

	return candidates
}
