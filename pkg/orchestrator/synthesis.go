package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/warden/pkg/guardrail"
	"github.com/odvcencio/warden/pkg/logging"
	"github.com/odvcencio/warden/pkg/model"
	"github.com/odvcencio/warden/pkg/patch"
	"github.com/odvcencio/warden/pkg/scope"
	"github.com/odvcencio/warden/pkg/storage"
	"github.com/odvcencio/warden/pkg/telemetry"
)

// runCodeSynthesis is the only phase where the agent proposes file
// mutations, so it is the only phase wrapped by the scope guardrail.
// The guardrail registry is rebuilt from scratch on every entry; retries
// after a widened impact analysis must not inherit a stale scope.
func (c *Controller) runCodeSynthesis(ctx context.Context, state *WorkflowState) error {
	registry := scope.Build(scopeInputs(state), c.codebaseRoot, c.config.Guardrail.ExpandScope)
	guard := guardrail.New(registry, c.guardMode(), c.objective,
		guardrail.WithLogger(c.logger), guardrail.WithTelemetry(c.hub))
	if c.toolRegistry != nil {
		c.toolRegistry.Use(guard.Middleware())
	}

	final, err := c.synthesisLoop(ctx, state, guard)
	if err != nil {
		return err
	}

	extraction := patch.Extract(final)
	state.Patches = extraction.Patches
	state.SkippedCount += extraction.SkippedCount
	recordExtraction(len(extraction.Patches), extraction.SkippedCount)

	c.publish(telemetry.EventPatchExtracted, state, map[string]any{
		"count":    len(extraction.Patches),
		"strategy": extraction.Strategy,
	})
	if extraction.SkippedCount > 0 {
		c.publish(telemetry.EventPatchSkipped, state, map[string]any{"count": extraction.SkippedCount})
	}
	if c.logger != nil {
		c.logger.Info(logging.CategoryExtraction, "patches_extracted",
			fmt.Sprintf("%d patches via %s strategy", len(extraction.Patches), extraction.Strategy),
			map[string]any{"count": len(extraction.Patches), "skipped": extraction.SkippedCount})
	}
	return nil
}

// scopeInputs merges every file list produced upstream. Impact analysis
// is the primary source; the feature spec and planned new files cover
// the degraded case where impact analysis fell back.
func scopeInputs(state *WorkflowState) []string {
	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		path = strings.TrimSpace(path)
		if path == "" {
			return
		}
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	if state.Impact != nil {
		for _, f := range state.Impact.FilesToModify {
			add(f)
		}
	}
	if state.Feature != nil {
		for _, f := range state.Feature.FilesToModify {
			add(f)
		}
		for _, planned := range state.Feature.PlannedNewFiles {
			add(planned.Path)
		}
	}
	return files
}

// synthesisLoop drives the guarded multi-turn tool conversation. Each
// turn re-injects the scope reminder, invokes the model, and scans the
// reply. Exploration tool calls (reads, listings) execute inline and
// feed their results back; the first reply carrying mutating tool calls
// or plain prose ends the loop and becomes the extraction input.
func (c *Controller) synthesisLoop(ctx context.Context, state *WorkflowState, guard *guardrail.Guardrail) (*model.ChatResponse, error) {
	if c.modelClient == nil {
		state.markDegraded(PhaseCodeSynthesis, "no model client configured")
		recordPhaseDegraded()
		return nil, nil
	}

	maxTurns := c.config.Workflow.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1
	}

	machine := guardrail.NewTurnMachine()
	conversation := []model.Message{{Role: "user", Content: c.synthesisPrompt(state)}}
	var tools []map[string]any
	if c.toolRegistry != nil {
		tools = c.toolRegistry.ToOpenAIFunctions()
	}

	var last *model.ChatResponse
	for machine.Turns() < maxTurns && !machine.Terminal() {
		machine.Advance(guardrail.TurnReminding)
		messages := guard.InjectReminder(conversation)

		machine.Advance(guardrail.TurnInvoking)
		resp, err := c.modelClient.ChatCompletion(ctx, model.ChatRequest{
			Model:      c.config.Models.Synthesis,
			Messages:   messages,
			Tools:      tools,
			ToolChoice: "auto",
		})
		if err != nil {
			state.markDegraded(PhaseCodeSynthesis, fmt.Sprintf("model invocation failed: %v", err))
			recordPhaseDegraded()
			machine.Advance(guardrail.TurnCompleted)
			break
		}
		last = resp

		msg, ok := resp.FirstMessage()
		if !ok {
			machine.Advance(guardrail.TurnCompleted)
			break
		}

		machine.Advance(guardrail.TurnScanning)
		denials, err := guard.ScanOutput(msg.ContentText())
		if err != nil {
			machine.Advance(guardrail.TurnBlocked)
			c.publish(telemetry.EventTurnBlocked, state, map[string]any{"turn": machine.Turns()})
			var blocked *guardrail.BlockedError
			if errors.As(err, &blocked) {
				c.recordDenialAudit(blocked.Path, "output_scan", "", false)
			}
			return nil, err
		}
		for _, denial := range denials {
			c.recordDenialAudit(denial.Path, "output_scan", "", true)
		}

		exploratory := explorationCalls(msg.ToolCalls)
		if len(exploratory) == 0 || len(exploratory) < len(msg.ToolCalls) {
			// Plain prose or a reply carrying mutating calls is the
			// agent's final answer.
			machine.Advance(guardrail.TurnCompleted)
			break
		}

		conversation = append(conversation, msg)
		for _, call := range exploratory {
			machine.Advance(guardrail.TurnAuthorizing)
			machine.Advance(guardrail.TurnExecuting)
			conversation = append(conversation, model.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    c.executeExploration(ctx, call),
			})
		}
		machine.Advance(guardrail.TurnIdle)
	}

	return last, nil
}

// Tool calls that only inspect the codebase. Everything else counts as a
// mutation attempt and is deferred to the execution phase, where the
// per-call guard authorizes each path.
var explorationTools = map[string]struct{}{
	"read_file":      {},
	"list_directory": {},
}

func explorationCalls(calls []model.ToolCall) []model.ToolCall {
	var out []model.ToolCall
	for _, call := range calls {
		if _, ok := explorationTools[call.Function.Name]; ok {
			out = append(out, call)
		}
	}
	return out
}

func (c *Controller) executeExploration(ctx context.Context, call model.ToolCall) string {
	if c.toolRegistry == nil {
		return "tool execution unavailable"
	}
	params, err := call.Function.ArgumentsMap()
	if err != nil {
		return fmt.Sprintf("invalid arguments: %v", err)
	}
	result, err := c.toolRegistry.ExecuteWithContext(ctx, call.Function.Name, params)
	if err != nil {
		return fmt.Sprintf("tool error: %v", err)
	}
	if result == nil {
		return ""
	}
	if !result.Success {
		return fmt.Sprintf("tool error: %s", result.Error)
	}
	data, marshalErr := json.Marshal(result.Data)
	if marshalErr != nil {
		return fmt.Sprintf("%v", result.Data)
	}
	return string(data)
}

func (c *Controller) synthesisPrompt(state *WorkflowState) string {
	var b strings.Builder
	b.WriteString("Implement the following change using the available tools.\n")
	if state.Feature != nil {
		b.WriteString("Intent: ")
		b.WriteString(state.Feature.Intent)
		b.WriteString("\n")
	}
	if state.Impact != nil {
		if len(state.Impact.FilesToModify) > 0 {
			b.WriteString("Files to modify: ")
			b.WriteString(strings.Join(state.Impact.FilesToModify, ", "))
			b.WriteString("\n")
		}
		for _, constraint := range state.Impact.Constraints {
			b.WriteString("Constraint: ")
			b.WriteString(constraint)
			b.WriteString("\n")
		}
	}
	b.WriteString("Use read_file and list_directory to inspect code, then emit write_file and edit_file calls for the changes.")
	return b.String()
}

// runExecution applies extracted patches through the tool registry. Each
// write passes through the guard middleware, so a patch naming an
// unauthorized path is denied here even if the output scan missed it.
func (c *Controller) runExecution(ctx context.Context, state *WorkflowState) error {
	result := &ExecutionResult{}
	state.Execution = result
	if len(state.Patches) == 0 {
		return nil
	}
	if c.toolRegistry == nil {
		return fmt.Errorf("no tool registry configured")
	}

	for _, p := range state.Patches {
		name, params := patchToolCall(p)
		res, err := c.toolRegistry.ExecuteWithContext(ctx, name, params)
		if err != nil {
			var blocked *guardrail.BlockedError
			if errors.As(err, &blocked) {
				c.recordDenialAudit(blocked.Path, "tool_call", name, c.guardMode() == guardrail.ModeSoft)
				if c.guardMode() == guardrail.ModeHard {
					return err
				}
			}
			result.Failed++
			result.Results = append(result.Results, PatchResult{Patch: p, Error: err.Error()})
			c.publish(telemetry.EventPatchApplyFailed, state, map[string]any{"path": p.FilePath, "error": err.Error()})
			continue
		}
		if res != nil && !res.Success {
			result.Failed++
			result.Results = append(result.Results, PatchResult{Patch: p, Error: res.Error})
			c.publish(telemetry.EventPatchApplyFailed, state, map[string]any{"path": p.FilePath, "error": res.Error})
			continue
		}
		result.Applied++
		result.Results = append(result.Results, PatchResult{Patch: p, Applied: true})
		c.publish(telemetry.EventPatchApplied, state, map[string]any{"path": p.FilePath})
	}

	if c.logger != nil {
		c.logger.Info(logging.CategoryWorkflow, "patches_applied",
			fmt.Sprintf("%d applied, %d failed", result.Applied, result.Failed),
			map[string]any{"applied": result.Applied, "failed": result.Failed})
	}
	return nil
}

func patchToolCall(p patch.Patch) (string, map[string]any) {
	switch p.Operation {
	case patch.OperationCreate:
		return "write_file", map[string]any{"path": p.FilePath, "content": p.Content}
	default:
		return "edit_file", map[string]any{"path": p.FilePath, "old_string": p.OldString, "new_string": p.NewString}
	}
}

// guardMode reads the enforcement mode from configuration, which is
// immutable after construction; phases run in their own goroutines, so
// nothing mutable may be shared between them and the execution phase.
func (c *Controller) guardMode() guardrail.Mode {
	return guardrail.Mode(c.config.Guardrail.Mode)
}

// recordDenialAudit persists one denial for post-run review and bumps
// the denial counter.
func (c *Controller) recordDenialAudit(path, stage, toolName string, soft bool) {
	recordScopeDenial()
	if c.store == nil {
		return
	}
	err := c.store.RecordScopeDenial(storage.ScopeDenial{
		RunID: c.runID,
		Path:  path,
		Stage: stage,
		Tool:  toolName,
		Soft:  soft,
	})
	if err != nil && c.logger != nil {
		c.logger.Warn(logging.CategoryStorage, "denial_audit_failed",
			"failed to persist scope denial", map[string]any{"error": err.Error()})
	}
}
