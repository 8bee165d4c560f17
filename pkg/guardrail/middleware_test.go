package guardrail

import (
	"errors"
	"strings"
	"testing"

	"github.com/odvcencio/warden/pkg/scope"
	"github.com/odvcencio/warden/pkg/tool"
	"github.com/odvcencio/warden/pkg/tool/builtin"
)

func guardedExecutor(t *testing.T, registry *scope.Registry) (tool.Executor, *int) {
	t.Helper()
	calls := 0
	base := func(ctx *tool.ExecutionContext) (*builtin.Result, error) {
		calls++
		return &builtin.Result{Success: true}, nil
	}
	g := New(registry, ModeHard, "objective")
	return g.Middleware()(base), &calls
}

func TestMiddlewareDeniesOutOfScopeWrite(t *testing.T) {
	exec, calls := guardedExecutor(t, testRegistry(t))

	result, err := exec(&tool.ExecutionContext{
		ToolName: "write_file",
		Params:   map[string]any{"path": "/etc/passwd", "content": "x"},
	})
	if err == nil {
		t.Fatal("expected denial")
	}
	if !errors.Is(err, ErrScopeViolation) {
		t.Errorf("error should wrap ErrScopeViolation, got %v", err)
	}
	if result == nil || result.Success {
		t.Error("expected failed result")
	}
	if !strings.Contains(result.Error, "/etc/passwd") {
		t.Errorf("denial should name the path: %s", result.Error)
	}
	if *calls != 0 {
		t.Error("tool must not run after denial")
	}
}

func TestMiddlewareAllowsInScopeWrite(t *testing.T) {
	exec, calls := guardedExecutor(t, testRegistry(t))

	_, err := exec(&tool.ExecutionContext{
		ToolName: "write_file",
		Params:   map[string]any{"path": "src/app/new_helper.go", "content": "x"},
	})
	if err != nil {
		t.Fatalf("in-scope write denied: %v", err)
	}
	if *calls != 1 {
		t.Error("tool should have run")
	}
}

func TestMiddlewareAllowsEmptyPathThrough(t *testing.T) {
	// An empty path argument is an extraction error, not a scope
	// violation; the guard lets it through.
	exec, calls := guardedExecutor(t, testRegistry(t))

	_, err := exec(&tool.ExecutionContext{
		ToolName: "write_file",
		Params:   map[string]any{"path": "", "content": "x"},
	})
	if err != nil {
		t.Fatalf("empty path should pass through the guard: %v", err)
	}
	if *calls != 1 {
		t.Error("tool should have run")
	}
}

func TestMiddlewareIgnoresNonMutatingTools(t *testing.T) {
	exec, calls := guardedExecutor(t, testRegistry(t))

	_, err := exec(&tool.ExecutionContext{
		ToolName: "read_file",
		Params:   map[string]any{"path": "/etc/passwd"},
	})
	if err != nil {
		t.Fatalf("read tools are not guarded: %v", err)
	}
	if *calls != 1 {
		t.Error("tool should have run")
	}
}

func TestMiddlewareTriesAlternatePathKeys(t *testing.T) {
	exec, _ := guardedExecutor(t, testRegistry(t))

	for _, key := range []string{"path", "filePath", "file_path"} {
		_, err := exec(&tool.ExecutionContext{
			ToolName: "edit_file",
			Params:   map[string]any{key: "/etc/shadow", "old_string": "a", "new_string": "b"},
		})
		if err == nil {
			t.Errorf("key %q: expected denial", key)
		}
	}
}
