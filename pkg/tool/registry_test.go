package tool

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/warden/pkg/telemetry"
	"github.com/odvcencio/warden/pkg/tool/builtin"
)

type stubTool struct {
	name    string
	execute func(params map[string]any) (*builtin.Result, error)
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) Parameters() builtin.ParameterSchema {
	return builtin.ParameterSchema{Type: "object"}
}
func (s *stubTool) Execute(params map[string]any) (*builtin.Result, error) {
	return s.execute(params)
}

func TestNewRegistryHasFileTools(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"read_file", "write_file", "edit_file", "list_directory"} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("built-in tool %q not registered", name)
		}
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewEmptyRegistry()
	if _, err := r.Execute("nope", nil); err == nil {
		t.Error("expected error for unknown tool")
	}
}

func TestRegistryMiddlewareOrder(t *testing.T) {
	r := NewEmptyRegistry()
	r.Register(&stubTool{
		name: "ok",
		execute: func(map[string]any) (*builtin.Result, error) {
			return &builtin.Result{Success: true}, nil
		},
	})

	var order []string
	r.Use(func(next Executor) Executor {
		return func(ctx *ExecutionContext) (*builtin.Result, error) {
			order = append(order, "first")
			return next(ctx)
		}
	})
	r.Use(func(next Executor) Executor {
		return func(ctx *ExecutionContext) (*builtin.Result, error) {
			order = append(order, "second")
			return next(ctx)
		}
	})

	if _, err := r.Execute("ok", nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("middleware order = %v", order)
	}
}

func TestRegistryRecoversPanics(t *testing.T) {
	r := NewEmptyRegistry()
	r.Register(&stubTool{
		name: "boom",
		execute: func(map[string]any) (*builtin.Result, error) {
			panic("kaput")
		},
	})

	result, err := r.Execute("boom", nil)
	if err == nil {
		t.Fatal("expected error from panicking tool")
	}
	if result == nil || result.Success {
		t.Fatal("expected failed result from panicking tool")
	}
	// The error names the tool and carries the panic value.
	if !strings.Contains(result.Error, "boom") || !strings.Contains(result.Error, "kaput") {
		t.Errorf("result error = %q, want tool name and panic value", result.Error)
	}
}

func TestRegistryMiddlewareCanDeny(t *testing.T) {
	r := NewEmptyRegistry()
	called := false
	r.Register(&stubTool{
		name: "guarded",
		execute: func(map[string]any) (*builtin.Result, error) {
			called = true
			return &builtin.Result{Success: true}, nil
		},
	})
	r.Use(func(next Executor) Executor {
		return func(ctx *ExecutionContext) (*builtin.Result, error) {
			return &builtin.Result{Success: false, Error: "denied"}, errors.New("denied")
		}
	})

	result, err := r.Execute("guarded", nil)
	if err == nil {
		t.Fatal("expected denial error")
	}
	if result == nil || result.Success {
		t.Error("expected failed result")
	}
	if called {
		t.Error("tool must not run when middleware denies")
	}
}

func TestRegistryPublishesToolTelemetry(t *testing.T) {
	hub := telemetry.NewHub()
	defer hub.Close()
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	r := NewEmptyRegistry()
	r.Register(&stubTool{
		name: "ok",
		execute: func(map[string]any) (*builtin.Result, error) {
			return &builtin.Result{Success: true}, nil
		},
	})
	r.EnableTelemetry(hub, "run-1")

	if _, err := r.Execute("ok", nil); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var types []telemetry.EventType
	for len(types) < 2 {
		select {
		case event := <-events:
			types = append(types, event.Type)
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout; got %v", types)
		}
	}
	if types[0] != telemetry.EventToolStarted || types[1] != telemetry.EventToolCompleted {
		t.Errorf("event types = %v", types)
	}
}
