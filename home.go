package nova

import (
	"os"
	"path/filepath"
)

// Home returns the Nova home directory.
// It defaults to ~/.nova but can be overridden with the NOVA_HOME environment variable.
func Home() string {
	if v := os.Getenv("NOVA_HOME"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nova")
}

// DefaultComponentsDir returns the default component manifest directory (~/.nova/components).
func DefaultComponentsDir() string {
	return filepath.Join(Home(), "components")
}

// DefaultDBPath returns the default SQLite transcript database path (~/.nova/nova.db).
func DefaultDBPath() string {
	return filepath.Join(Home(), "nova.db")
}

// DataDir returns the directory native components use for private state.
func DataDir() string {
	return filepath.Join(Home(), "data")
}

// EnsureHome creates the Nova home, components, and data directories if they don't exist.
func EnsureHome() error {
	if err := os.MkdirAll(DefaultComponentsDir(), 0o755); err != nil {
		return err
	}
	return os.MkdirAll(DataDir(), 0o755)
}
