package tool

import (
	"fmt"
	"runtime/debug"

	"github.com/odvcencio/warden/pkg/tool/builtin"
)

// PanicRecovery converts panics into tool errors so a misbehaving tool
// cannot crash the synthesis loop. The recovered value, stack trace, and
// call identifiers land in the execution metadata for diagnostics.
func PanicRecovery() Middleware {
	return func(next Executor) Executor {
		return func(ctx *ExecutionContext) (result *builtin.Result, err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				name := "tool"
				if ctx != nil {
					if ctx.Metadata == nil {
						ctx.Metadata = map[string]any{}
					}
					ctx.Metadata["panic_value"] = fmt.Sprintf("%v", r)
					ctx.Metadata["panic_stack"] = string(debug.Stack())
					ctx.Metadata["panic_call_id"] = ctx.CallID
					if ctx.RunID != "" {
						ctx.Metadata["panic_run_id"] = ctx.RunID
					}
					if ctx.ToolName != "" {
						name = fmt.Sprintf("tool %s", ctx.ToolName)
					}
				}
				err = fmt.Errorf("%s panicked: %v", name, r)
				result = &builtin.Result{Success: false, Error: err.Error()}
			}()
			return next(ctx)
		}
	}
}
