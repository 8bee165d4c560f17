package builtin

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupEditFile(t *testing.T, content string) (string, *EditFileTool) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	tool := &EditFileTool{}
	tool.SetWorkDir(dir)
	return path, tool
}

func TestEditFileToolReplacesOnce(t *testing.T) {
	path, tool := setupEditFile(t, "alpha\nbeta\ngamma\n")

	result, err := tool.Execute(map[string]any{
		"path":       "main.go",
		"old_string": "beta",
		"new_string": "delta",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Execute() failed: %s", result.Error)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "alpha\ndelta\ngamma\n" {
		t.Errorf("content = %q", string(data))
	}
	if result.DiffPreview == nil {
		t.Error("expected a diff preview")
	}
}

func TestEditFileToolRejectsAmbiguousMatch(t *testing.T) {
	_, tool := setupEditFile(t, "dup\ndup\n")

	result, _ := tool.Execute(map[string]any{
		"path":       "main.go",
		"old_string": "dup",
		"new_string": "unique",
	})
	if result.Success {
		t.Fatal("expected failure for ambiguous old_string")
	}
	if !strings.Contains(result.Error, "replace_all") {
		t.Errorf("error should suggest replace_all, got %s", result.Error)
	}
}

func TestEditFileToolReplaceAll(t *testing.T) {
	path, tool := setupEditFile(t, "dup\ndup\n")

	result, err := tool.Execute(map[string]any{
		"path":        "main.go",
		"old_string":  "dup",
		"new_string":  "unique",
		"replace_all": true,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Execute() failed: %s", result.Error)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "unique\nunique\n" {
		t.Errorf("content = %q", string(data))
	}
}

func TestEditFileToolMissingOldString(t *testing.T) {
	_, tool := setupEditFile(t, "alpha\n")

	result, _ := tool.Execute(map[string]any{
		"path":       "main.go",
		"old_string": "not present",
		"new_string": "anything",
	})
	if result.Success {
		t.Fatal("expected failure when old_string is absent")
	}
	if !strings.Contains(result.Error, "not found") {
		t.Errorf("unexpected error: %s", result.Error)
	}
}
