package tool

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/warden/pkg/telemetry"
	"github.com/odvcencio/warden/pkg/tool/builtin"
)

// Registry manages all available tools
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]Tool
	middlewares []Middleware
	executor    Executor

	telemetryHub *telemetry.Hub
	telemetryRun string
}

// NewEmptyRegistry creates a new empty tool registry without any built-in tools
func NewEmptyRegistry() *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	r.rebuildExecutor()
	return r
}

// NewRegistry creates a new tool registry with the built-in file tools
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	r.registerBuiltins()
	r.rebuildExecutor()
	return r
}

func (r *Registry) registerBuiltins() {
	for _, t := range []Tool{
		&builtin.ReadFileTool{},
		&builtin.WriteFileTool{},
		&builtin.EditFileTool{},
		&builtin.ListDirectoryTool{},
	} {
		r.tools[t.Name()] = t
	}
}

// SetWorkDir configures a base working directory for tools that support it.
// Tools use this to resolve relative paths against the correct codebase root.
func (r *Registry) SetWorkDir(workDir string) {
	if r == nil {
		return
	}
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return
	}
	if abs, err := filepath.Abs(workDir); err == nil {
		workDir = abs
	}
	workDir = filepath.Clean(workDir)
	for _, t := range r.snapshotTools() {
		if setter, ok := t.(interface{ SetWorkDir(string) }); ok {
			setter.SetWorkDir(workDir)
		}
	}
}

// SetMaxFileSizeBytes configures a file size ceiling for tools that support it.
func (r *Registry) SetMaxFileSizeBytes(max int64) {
	if r == nil {
		return
	}
	for _, t := range r.snapshotTools() {
		if setter, ok := t.(interface{ SetMaxFileSizeBytes(int64) }); ok {
			setter.SetMaxFileSizeBytes(max)
		}
	}
}

// EnableTelemetry publishes tool lifecycle events to the hub.
func (r *Registry) EnableTelemetry(hub *telemetry.Hub, runID string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.telemetryHub = hub
	r.telemetryRun = runID
	r.rebuildExecutorLocked()
	r.mu.Unlock()
}

// Register adds a tool to the registry
func (r *Registry) Register(t Tool) {
	if r == nil || t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools
func (r *Registry) List() []Tool {
	return r.snapshotTools()
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Use appends a middleware to the execution chain and rebuilds the executor.
func (r *Registry) Use(mw Middleware) {
	if r == nil || mw == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
	r.rebuildExecutorLocked()
}

// Execute runs a tool through the middleware chain
func (r *Registry) Execute(name string, params map[string]any) (*builtin.Result, error) {
	return r.ExecuteWithContext(context.Background(), name, params)
}

// ExecuteWithContext runs a tool through the middleware chain with a context
func (r *Registry) ExecuteWithContext(ctx context.Context, name string, params map[string]any) (*builtin.Result, error) {
	if name == "" {
		return nil, fmt.Errorf("tool name cannot be empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	execCtx := &ExecutionContext{
		Context:   ctx,
		ToolName:  name,
		Tool:      t,
		RunID:     r.telemetryRun,
		CallID:    ulid.Make().String(),
		Params:    params,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
	}
	exec := r.executorForCall()
	if exec == nil {
		return nil, fmt.Errorf("tool executor not initialized")
	}
	return exec(execCtx)
}

func (r *Registry) executorForCall() Executor {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	exec := r.executor
	r.mu.RUnlock()
	if exec != nil {
		return exec
	}
	r.rebuildExecutor()
	r.mu.RLock()
	exec = r.executor
	r.mu.RUnlock()
	return exec
}

func (r *Registry) rebuildExecutor() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuildExecutorLocked()
}

func (r *Registry) rebuildExecutorLocked() {
	base := r.baseExecutor()
	middlewares := make([]Middleware, 0, len(r.middlewares)+2)
	middlewares = append(middlewares, r.telemetryMiddleware(), PanicRecovery())
	middlewares = append(middlewares, r.middlewares...)
	r.executor = Chain(middlewares...)(base)
}

func (r *Registry) baseExecutor() Executor {
	return func(ctx *ExecutionContext) (*builtin.Result, error) {
		if ctx == nil {
			return nil, fmt.Errorf("execution context required")
		}
		name := strings.TrimSpace(ctx.ToolName)
		if name == "" {
			return nil, fmt.Errorf("tool name cannot be empty")
		}
		t := ctx.Tool
		if t == nil {
			var ok bool
			t, ok = r.Get(name)
			if !ok {
				return nil, fmt.Errorf("tool not found: %s", name)
			}
			ctx.Tool = t
		}
		if ctx.Params == nil {
			ctx.Params = map[string]any{}
		}
		if ctx.StartTime.IsZero() {
			ctx.StartTime = time.Now()
		}
		return t.Execute(ctx.Params)
	}
}

func (r *Registry) telemetryMiddleware() Middleware {
	return func(next Executor) Executor {
		return func(ctx *ExecutionContext) (*builtin.Result, error) {
			r.mu.RLock()
			hub := r.telemetryHub
			runID := r.telemetryRun
			r.mu.RUnlock()
			if hub == nil {
				return next(ctx)
			}

			hub.Publish(telemetry.Event{
				Type:  telemetry.EventToolStarted,
				RunID: runID,
				Data:  map[string]any{"tool": ctx.ToolName, "call_id": ctx.CallID},
			})

			result, err := next(ctx)

			eventType := telemetry.EventToolCompleted
			data := map[string]any{
				"tool":        ctx.ToolName,
				"call_id":     ctx.CallID,
				"duration_ms": time.Since(ctx.StartTime).Milliseconds(),
			}
			if err != nil {
				eventType = telemetry.EventToolFailed
				data["error"] = err.Error()
			} else if result != nil && !result.Success {
				eventType = telemetry.EventToolFailed
				data["error"] = result.Error
			}
			hub.Publish(telemetry.Event{Type: eventType, RunID: runID, Data: data})

			return result, err
		}
	}
}

// ToOpenAIFunctions converts all registered tools to function definitions
func (r *Registry) ToOpenAIFunctions() []map[string]any {
	tools := r.snapshotTools()
	functions := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		functions = append(functions, ToOpenAIFunction(t))
	}
	return functions
}

func (r *Registry) snapshotTools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	return tools
}
