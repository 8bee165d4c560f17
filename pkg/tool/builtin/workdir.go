package builtin

import (
	"fmt"
	"path/filepath"
	"strings"
)

type workDirAware struct {
	workDir          string
	maxFileSizeBytes int64
}

func (w *workDirAware) SetWorkDir(dir string) {
	if w == nil {
		return
	}
	w.workDir = strings.TrimSpace(dir)
}

func (w *workDirAware) SetMaxFileSizeBytes(max int64) {
	if w == nil {
		return
	}
	if max <= 0 {
		w.maxFileSizeBytes = 0
		return
	}
	w.maxFileSizeBytes = max
}

func resolvePath(workDir, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	// Default behavior for local usage without a configured root.
	if strings.TrimSpace(workDir) == "" {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return "", fmt.Errorf("invalid path: %w", err)
		}
		return abs, nil
	}

	base, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("invalid working directory: %w", err)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw), nil
	}
	return filepath.Join(base, raw), nil
}
