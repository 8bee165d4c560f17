package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvWardenLogDir   = "WARDEN_LOG_DIR"
	EnvWardenStateDir = "WARDEN_STATE_DIR"
)

func WardenLogsBaseDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvWardenLogDir)); dir != "" {
		return filepath.Clean(expandHomePath(dir))
	}
	return filepath.Join(".warden", "logs")
}

// WardenStateDir resolves the directory holding the run database and settings.
func WardenStateDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvWardenStateDir)); dir != "" {
		return filepath.Clean(expandHomePath(dir))
	}
	return ".warden"
}

func expandHomePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}

func WardenLogsBaseDirForWorkdir(workdir string) string {
	base := WardenLogsBaseDir()
	if filepath.IsAbs(base) || strings.TrimSpace(workdir) == "" {
		return base
	}
	return filepath.Join(workdir, base)
}

func WardenLogsDir(identifier string) string {
	base := WardenLogsBaseDir()
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return base
	}
	return filepath.Join(base, identifier)
}
