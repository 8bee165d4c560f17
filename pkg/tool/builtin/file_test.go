package builtin

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	tool := &ReadFileTool{}
	tool.SetWorkDir(dir)

	result, err := tool.Execute(map[string]any{"path": "sample.txt"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Execute() failed: %s", result.Error)
	}
	if result.Data["content"] != "hello world" {
		t.Errorf("content = %v, want hello world", result.Data["content"])
	}
}

func TestReadFileToolMissingFile(t *testing.T) {
	tool := &ReadFileTool{}
	tool.SetWorkDir(t.TempDir())

	result, err := tool.Execute(map[string]any{"path": "does-not-exist.txt"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Success {
		t.Error("expected failure for missing file")
	}
}

func TestReadFileToolRespectsSizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 100)), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	tool := &ReadFileTool{}
	tool.SetWorkDir(dir)
	tool.SetMaxFileSizeBytes(10)

	result, _ := tool.Execute(map[string]any{"path": "big.txt"})
	if result.Success {
		t.Error("expected failure for oversized file")
	}
	if !strings.Contains(result.Error, "too large") {
		t.Errorf("unexpected error: %s", result.Error)
	}
}

func TestWriteFileToolCreatesParents(t *testing.T) {
	dir := t.TempDir()
	tool := &WriteFileTool{}
	tool.SetWorkDir(dir)

	result, err := tool.Execute(map[string]any{
		"path":    "nested/deep/new.txt",
		"content": "created",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Execute() failed: %s", result.Error)
	}
	if result.Data["is_new"] != true {
		t.Error("expected is_new for a fresh file")
	}
	if result.DiffPreview == nil || !result.DiffPreview.IsNew {
		t.Error("expected diff preview marking a new file")
	}

	data, err := os.ReadFile(filepath.Join(dir, "nested", "deep", "new.txt"))
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if string(data) != "created" {
		t.Errorf("content = %q, want created", string(data))
	}
}

func TestWriteFileToolOverwriteProducesDiff(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.txt")
	if err := os.WriteFile(path, []byte("old line\n"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	tool := &WriteFileTool{}
	tool.SetWorkDir(dir)

	result, err := tool.Execute(map[string]any{
		"path":    "config.txt",
		"content": "new line\n",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Execute() failed: %s", result.Error)
	}
	diff := result.DiffPreview
	if diff == nil {
		t.Fatal("expected a diff preview")
	}
	if diff.IsNew {
		t.Error("overwrite should not be marked new")
	}
	if diff.LinesAdded != 1 || diff.LinesRemoved != 1 {
		t.Errorf("diff counts = +%d/-%d, want +1/-1", diff.LinesAdded, diff.LinesRemoved)
	}
	if !strings.Contains(diff.UnifiedDiff, "-old line") || !strings.Contains(diff.UnifiedDiff, "+new line") {
		t.Errorf("unexpected unified diff:\n%s", diff.UnifiedDiff)
	}
}

func TestListDirectoryTool(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatalf("setup: %v", err)
	}

	tool := &ListDirectoryTool{}
	tool.SetWorkDir(dir)

	result, err := tool.Execute(map[string]any{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Execute() failed: %s", result.Error)
	}
	if result.Data["count"] != 2 {
		t.Errorf("count = %v, want 2", result.Data["count"])
	}
}

func TestResolvePathRejectsEmpty(t *testing.T) {
	if _, err := resolvePath("", "   "); err == nil {
		t.Error("expected error for blank path")
	}
}
