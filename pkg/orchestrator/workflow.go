package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/odvcencio/warden/pkg/config"
	"github.com/odvcencio/warden/pkg/guardrail"
	"github.com/odvcencio/warden/pkg/logging"
	"github.com/odvcencio/warden/pkg/model"
	"github.com/odvcencio/warden/pkg/patch"
	"github.com/odvcencio/warden/pkg/storage"
	"github.com/odvcencio/warden/pkg/structure"
	"github.com/odvcencio/warden/pkg/telemetry"
	"github.com/odvcencio/warden/pkg/tool"
)

// Phase represents the current phase of the workflow
type Phase string

const (
	PhaseContextAnalysis     Phase = "context_analysis"
	PhaseIntentParsing       Phase = "intent_parsing"
	PhaseStructureValidation Phase = "structure_validation"
	PhaseImpactAnalysis      Phase = "impact_analysis"
	PhaseCodeSynthesis       Phase = "code_synthesis"
	PhaseExecution           Phase = "execution"
	PhaseComplete            Phase = "complete"
	PhaseFailed              Phase = "failed"
)

// ContextReport summarizes the codebase for downstream phases.
type ContextReport struct {
	Summary           string `json:"summary"`
	DominantExtension string `json:"dominant_extension,omitempty"`
	FileCount         int    `json:"file_count,omitempty"`
}

// FeatureSpec is the parsed intent consumed by scope building and
// structure validation.
type FeatureSpec struct {
	Intent          string                  `json:"intent"`
	FilesToModify   []string                `json:"files_to_modify,omitempty"`
	PlannedNewFiles []structure.PlannedFile `json:"planned_new_files,omitempty"`
}

// ImpactAnalysis lists the blast radius of the change.
type ImpactAnalysis struct {
	FilesToModify []string `json:"files_to_modify,omitempty"`
	Patterns      []string `json:"patterns,omitempty"`
	Constraints   []string `json:"constraints,omitempty"`
}

// PatchResult reports one applied or failed patch.
type PatchResult struct {
	Patch   patch.Patch `json:"patch"`
	Applied bool        `json:"applied"`
	Error   string      `json:"error,omitempty"`
}

// ExecutionResult aggregates patch application.
type ExecutionResult struct {
	Applied int           `json:"applied"`
	Failed  int           `json:"failed"`
	Results []PatchResult `json:"results,omitempty"`
}

// WorkflowState is the single carrier of everything one run produces.
// It is owned by the Controller and handed to each phase in turn; phases
// read only the structured summaries of earlier phases, never their raw
// transcripts.
type WorkflowState struct {
	RunID        string             `json:"run_id"`
	CurrentPhase Phase              `json:"current_phase"`
	Objective    string             `json:"objective"`
	CodebaseRoot string             `json:"codebase_root"`
	Context      *ContextReport     `json:"context,omitempty"`
	Feature      *FeatureSpec       `json:"feature,omitempty"`
	Structure    *structure.Outcome `json:"structure,omitempty"`
	Impact       *ImpactAnalysis    `json:"impact,omitempty"`
	Patches      []patch.Patch      `json:"patches,omitempty"`
	SkippedCount int                `json:"skipped_count"`
	Execution    *ExecutionResult   `json:"execution,omitempty"`

	// Degraded names phases that timed out or fell back to heuristics.
	Degraded []string `json:"degraded,omitempty"`
	// Warnings carries non-fatal annotations such as a proceed-with-warning
	// structure decision.
	Warnings []string `json:"warnings,omitempty"`
}

func (s *WorkflowState) markDegraded(phase Phase, reason string) {
	s.Degraded = append(s.Degraded, fmt.Sprintf("%s: %s", phase, reason))
}

// ErrSynthesisBlocked indicates a hard-mode scope denial aborted the run.
var ErrSynthesisBlocked = errors.New("code synthesis blocked by scope guardrail")

// Controller drives one workflow run phase by phase.
type Controller struct {
	config       *config.Config
	modelClient  model.Client
	toolRegistry *tool.Registry
	store        *storage.Store
	logger       *logging.Logger
	hub          *telemetry.Hub

	runID        string
	objective    string
	codebaseRoot string
	framework    structure.FrameworkProfile

	phaseTimeout time.Duration
}

// Option configures controller construction.
type Option func(*Controller)

// WithStore persists run state and denial audits.
func WithStore(store *storage.Store) Option {
	return func(c *Controller) { c.store = store }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithTelemetry attaches a telemetry hub.
func WithTelemetry(hub *telemetry.Hub) Option {
	return func(c *Controller) { c.hub = hub }
}

// WithRunID overrides the generated run identifier, letting callers
// pre-create log destinations named after the run.
func WithRunID(runID string) Option {
	return func(c *Controller) {
		if runID != "" {
			c.runID = runID
		}
	}
}

// WithFramework supplies the framework profile used by structure
// validation. Without it a generic profile with no required layers is
// used.
func WithFramework(profile structure.FrameworkProfile) Option {
	return func(c *Controller) { c.framework = profile }
}

// NewController creates a workflow controller for one run.
func NewController(cfg *config.Config, client model.Client, registry *tool.Registry, objective, codebaseRoot string, opts ...Option) *Controller {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := &Controller{
		config:       cfg,
		modelClient:  client,
		toolRegistry: registry,
		runID:        uuid.NewString(),
		objective:    objective,
		codebaseRoot: codebaseRoot,
		phaseTimeout: cfg.Workflow.PhaseTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.toolRegistry != nil {
		c.toolRegistry.SetWorkDir(codebaseRoot)
		if c.hub != nil {
			c.toolRegistry.EnableTelemetry(c.hub, c.runID)
		}
	}
	return c
}

// RunID returns the identifier assigned to this run.
func (c *Controller) RunID() string {
	return c.runID
}

// Run executes the full phase sequence. The workflow always terminates
// in Complete or Failed; Complete can carry zero applied patches and
// non-empty diagnostic counts.
func (c *Controller) Run(ctx context.Context) (*WorkflowState, error) {
	state := &WorkflowState{
		RunID:        c.runID,
		CurrentPhase: PhaseContextAnalysis,
		Objective:    c.objective,
		CodebaseRoot: c.codebaseRoot,
	}
	c.persistRunStart(state)

	phases := []struct {
		phase Phase
		run   func(context.Context, *WorkflowState) error
	}{
		{PhaseContextAnalysis, c.runContextAnalysis},
		{PhaseIntentParsing, c.runIntentParsing},
		{PhaseStructureValidation, c.runStructureValidation},
		{PhaseImpactAnalysis, c.runImpactAnalysis},
		{PhaseCodeSynthesis, c.runCodeSynthesis},
		{PhaseExecution, c.runExecution},
	}

	for _, step := range phases {
		c.enterPhase(state, step.phase)
		err := c.runPhaseWithTimeout(ctx, state, step.phase, step.run)
		if err != nil {
			var blocked *guardrail.BlockedError
			if errors.As(err, &blocked) {
				c.failRun(state, blocked)
				return state, fmt.Errorf("%w: %w", ErrSynthesisBlocked, blocked)
			}
			// Any other phase error degrades the phase and the run
			// continues with partial state.
			state.markDegraded(step.phase, err.Error())
			c.publish(telemetry.EventPhaseDegraded, state, map[string]any{"error": err.Error()})
			recordPhaseDegraded()
		}
	}

	state.CurrentPhase = PhaseComplete
	c.publish(telemetry.EventWorkflowCompleted, state, map[string]any{
		"patches":  len(state.Patches),
		"skipped":  state.SkippedCount,
		"degraded": len(state.Degraded),
	})
	c.persistRunFinish(state)
	return state, nil
}

// runPhaseWithTimeout bounds one phase with the configured wall-clock
// timeout. On timeout the phase's eventual late result is discarded and
// the run proceeds with whatever partial state exists.
func (c *Controller) runPhaseWithTimeout(ctx context.Context, state *WorkflowState, phase Phase, run func(context.Context, *WorkflowState) error) error {
	timeout := c.phaseTimeout
	if timeout <= 0 {
		timeout = config.DefaultPhaseTimeout
	}
	phaseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	phaseCtx, span := telemetry.StartSpan(phaseCtx, "workflow."+string(phase))
	span.SetAttributes(
		telemetry.AttrRunID.String(c.runID),
		telemetry.AttrPhase.String(string(phase)),
	)
	defer span.End()

	// The phase works on a staged copy so a late finisher cannot mutate
	// state the workflow has already moved past.
	staged := *state
	done := make(chan error, 1)
	go func() {
		done <- run(phaseCtx, &staged)
	}()

	select {
	case err := <-done:
		if err == nil {
			*state = staged
			c.publish(telemetry.EventPhaseCompleted, state, nil)
		} else {
			span.RecordError(err)
		}
		return err
	case <-phaseCtx.Done():
		err := fmt.Errorf("phase timed out after %s", timeout)
		span.RecordError(err)
		return err
	}
}

func (c *Controller) enterPhase(state *WorkflowState, phase Phase) {
	state.CurrentPhase = phase
	if c.logger != nil {
		c.logger.SetPhase(string(phase))
		c.logger.Info(logging.CategoryWorkflow, "phase_started", string(phase), nil)
	}
	c.publish(telemetry.EventPhaseStarted, state, nil)
	if c.store != nil {
		if err := c.store.UpdateRunPhase(c.runID, string(phase)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to persist phase transition: %v\n", err)
		}
	}
}

func (c *Controller) failRun(state *WorkflowState, blocked *guardrail.BlockedError) {
	// Published while CurrentPhase still names the phase that blocked.
	c.publish(telemetry.EventPhaseFailed, state, map[string]any{"path": blocked.Path})
	state.CurrentPhase = PhaseFailed
	c.publish(telemetry.EventWorkflowFailed, state, map[string]any{"path": blocked.Path})
	if c.logger != nil {
		c.logger.Error(logging.CategoryWorkflow, "workflow_failed",
			"hard-mode scope violation", map[string]any{"path": blocked.Path})
	}
	c.persistRunFinish(state)
}

func (c *Controller) publish(eventType telemetry.EventType, state *WorkflowState, data map[string]any) {
	if c.hub == nil {
		return
	}
	c.hub.Publish(telemetry.Event{
		Type:  eventType,
		RunID: c.runID,
		Phase: string(state.CurrentPhase),
		Data:  data,
	})
}

func (c *Controller) persistRunStart(state *WorkflowState) {
	if c.store == nil {
		return
	}
	err := c.store.CreateRun(storage.Run{
		ID:            c.runID,
		Objective:     c.objective,
		CodebaseRoot:  c.codebaseRoot,
		Phase:         string(state.CurrentPhase),
		GuardrailMode: c.config.Guardrail.Mode,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to persist run: %v\n", err)
	}
}

func (c *Controller) persistRunFinish(state *WorkflowState) {
	if c.store == nil {
		return
	}
	score, decision := 0, ""
	if state.Structure != nil {
		score = state.Structure.Assessment.Score
		decision = string(state.Structure.Decision)
	}
	applied := 0
	if state.Execution != nil {
		applied = state.Execution.Applied
	}
	err := c.store.FinishRun(c.runID, string(state.CurrentPhase), decision, score, applied, state.SkippedCount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to persist run result: %v\n", err)
	}
}
