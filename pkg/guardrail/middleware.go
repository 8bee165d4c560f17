package guardrail

import (
	"github.com/odvcencio/warden/pkg/logging"
	"github.com/odvcencio/warden/pkg/telemetry"
	"github.com/odvcencio/warden/pkg/tool"
	"github.com/odvcencio/warden/pkg/tool/builtin"
)

// Tools that mutate files and therefore need a path check.
var mutatingTools = map[string]struct{}{
	"write_file": {},
	"edit_file":  {},
}

// Argument keys tried in order when extracting the target path.
var pathKeys = []string{"path", "filePath", "file_path"}

// Middleware returns the per-tool-call execution guard. Before any
// file-mutating tool runs, its path argument is checked against the
// registry. An empty or unresolvable path is allowed through: failing to
// produce a usable path is an extraction-time error, not a scope
// violation.
func (g *Guardrail) Middleware() tool.Middleware {
	return func(next tool.Executor) tool.Executor {
		return func(ctx *tool.ExecutionContext) (*builtin.Result, error) {
			if ctx == nil {
				return next(ctx)
			}
			if _, mutating := mutatingTools[ctx.ToolName]; !mutating {
				return next(ctx)
			}

			path := extractPath(ctx.Params)
			if path == "" {
				return next(ctx)
			}

			decision := g.registry.Authorize(path)
			if decision.Unresolvable {
				return next(ctx)
			}
			if decision.Authorized {
				if decision.SoftMatch() {
					g.logSoftMatch(decision)
				}
				return next(ctx)
			}

			blocked := &BlockedError{Path: path, Registry: g.registry.Summary()}
			g.publish(telemetry.EventScopeDenied, map[string]any{
				"path": path, "tool": ctx.ToolName, "stage": "tool_call",
			})
			if g.logger != nil {
				g.logger.Error(logging.CategoryScope, "tool_call_denied",
					"blocked file-mutating tool call outside authorized scope",
					map[string]any{"tool": ctx.ToolName, "path": path})
			}
			return &builtin.Result{Success: false, Error: blocked.Error()}, blocked
		}
	}
}

func extractPath(params map[string]any) string {
	for _, key := range pathKeys {
		if v, ok := params[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
