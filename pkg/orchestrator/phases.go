package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/odvcencio/warden/pkg/logging"
	"github.com/odvcencio/warden/pkg/model"
	"github.com/odvcencio/warden/pkg/structure"
	"github.com/odvcencio/warden/pkg/telemetry"
)

// runContextAnalysis summarizes the codebase. A model failure or timeout
// falls back to a filesystem-only scan rather than propagating.
func (c *Controller) runContextAnalysis(ctx context.Context, state *WorkflowState) error {
	report, err := c.analyzeWithModel(ctx)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn(logging.CategoryModel, "analysis_fallback",
				"model analysis failed, using filesystem heuristics", map[string]any{"error": err.Error()})
		}
		report = c.analyzeFilesystem()
		state.markDegraded(PhaseContextAnalysis, "filesystem-only analysis")
		recordPhaseDegraded()
	}
	state.Context = report
	return nil
}

func (c *Controller) analyzeWithModel(ctx context.Context) (*ContextReport, error) {
	if c.modelClient == nil {
		return nil, fmt.Errorf("no model client configured")
	}
	resp, err := c.modelClient.ChatCompletion(ctx, model.ChatRequest{
		Model: c.config.Models.Analysis,
		Messages: []model.Message{
			{Role: "system", Content: "Summarize the project at the given root for a code-modification agent. Reply with JSON: {\"summary\": string, \"dominant_extension\": string}."},
			{Role: "user", Content: fmt.Sprintf("Project root: %s\nObjective: %s", c.codebaseRoot, c.objective)},
		},
	})
	if err != nil {
		return nil, err
	}
	msg, ok := resp.FirstMessage()
	if !ok {
		return nil, fmt.Errorf("empty analysis response")
	}
	var report ContextReport
	if err := json.Unmarshal([]byte(extractJSON(msg.ContentText())), &report); err != nil {
		return nil, fmt.Errorf("parsing analysis response: %w", err)
	}
	return &report, nil
}

// analyzeFilesystem is the degraded path: count source files and find
// the dominant extension without a model.
func (c *Controller) analyzeFilesystem() *ContextReport {
	counts := make(map[string]int)
	total := 0
	filepath.WalkDir(c.codebaseRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if name == ".git" || name == "node_modules" || name == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}
		if ext := filepath.Ext(d.Name()); ext != "" {
			counts[ext]++
			total++
		}
		return nil
	})

	dominant, best := "", 0
	for ext, count := range counts {
		if count > best {
			dominant, best = ext, count
		}
	}
	return &ContextReport{
		Summary:           fmt.Sprintf("%d source files under %s", total, c.codebaseRoot),
		DominantExtension: dominant,
		FileCount:         total,
	}
}

// runIntentParsing turns the objective into a FeatureSpec. On failure
// the spec degrades to the bare objective with no file list; scope
// building falls back to the top-level source directory in that case.
func (c *Controller) runIntentParsing(ctx context.Context, state *WorkflowState) error {
	spec, err := c.parseIntent(ctx, state)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn(logging.CategoryModel, "intent_fallback",
				"intent parsing failed, using bare objective", map[string]any{"error": err.Error()})
		}
		spec = &FeatureSpec{Intent: c.objective}
		state.markDegraded(PhaseIntentParsing, "bare objective, no file list")
		recordPhaseDegraded()
	}
	state.Feature = spec
	return nil
}

func (c *Controller) parseIntent(ctx context.Context, state *WorkflowState) (*FeatureSpec, error) {
	if c.modelClient == nil {
		return nil, fmt.Errorf("no model client configured")
	}
	contextSummary := ""
	if state.Context != nil {
		contextSummary = state.Context.Summary
	}
	resp, err := c.modelClient.ChatCompletion(ctx, model.ChatRequest{
		Model: c.config.Models.Analysis,
		Messages: []model.Message{
			{Role: "system", Content: "Parse the feature request into JSON: {\"intent\": string, \"files_to_modify\": [string], \"planned_new_files\": [{\"path\": string, \"purpose\": string, \"layer\": string}]}. Paths are relative to the project root."},
			{Role: "user", Content: fmt.Sprintf("Project: %s\nRequest: %s", contextSummary, c.objective)},
		},
	})
	if err != nil {
		return nil, err
	}
	msg, ok := resp.FirstMessage()
	if !ok {
		return nil, fmt.Errorf("empty intent response")
	}
	var spec FeatureSpec
	if err := json.Unmarshal([]byte(extractJSON(msg.ContentText())), &spec); err != nil {
		return nil, fmt.Errorf("parsing intent response: %w", err)
	}
	if spec.Intent == "" {
		spec.Intent = c.objective
	}
	return &spec, nil
}

// runStructureValidation scores the planned layout and auto-repairs
// cheap violations through the bounded refinement loop.
func (c *Controller) runStructureValidation(_ context.Context, state *WorkflowState) error {
	if state.Feature == nil {
		// Intent parsing timed out without even its degraded fallback.
		state.Feature = &FeatureSpec{Intent: c.objective}
	}
	plan := &structure.FeaturePlan{
		Summary: state.Feature.Intent,
		Root:    c.codebaseRoot,
	}
	plan.FilesToModify = append(plan.FilesToModify, state.Feature.FilesToModify...)
	plan.NewFiles = append(plan.NewFiles, state.Feature.PlannedNewFiles...)

	refiner := structure.NewRefiner(c.config.Structure.MaxRounds)
	refiner.CreateDirs = c.config.Structure.CreateDirs
	outcome := refiner.Refine(plan, c.framework)
	state.Structure = &outcome
	recordRefinementRounds(outcome.Assessment.Round)

	c.publish(telemetry.EventRefinementDone, state, map[string]any{
		"score":    outcome.Assessment.Score,
		"rounds":   outcome.Assessment.Round,
		"decision": string(outcome.Decision),
	})

	switch outcome.Decision {
	case structure.DecisionProceedWarn:
		state.Warnings = append(state.Warnings,
			fmt.Sprintf("structure score %d; proceeding with warnings", outcome.Assessment.Score))
	case structure.DecisionNeedsReview:
		// Needs-review does not fail the workflow; downstream phases
		// continue with a degraded-quality plan.
		state.Warnings = append(state.Warnings, "structure plan needs manual review")
		state.markDegraded(PhaseStructureValidation, "plan below review threshold")
	}
	if c.logger != nil {
		c.logger.Info(logging.CategoryValidation, "refinement_done",
			string(outcome.Decision), map[string]any{
				"score":  outcome.Assessment.Score,
				"rounds": outcome.Assessment.Round,
			})
	}
	return nil
}

// runImpactAnalysis determines the blast radius. Degrades to the
// feature spec's own file list.
func (c *Controller) runImpactAnalysis(ctx context.Context, state *WorkflowState) error {
	if state.Feature == nil {
		state.Feature = &FeatureSpec{Intent: c.objective}
	}
	impact, err := c.analyzeImpact(ctx, state)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn(logging.CategoryModel, "impact_fallback",
				"impact analysis failed, using feature spec file list", map[string]any{"error": err.Error()})
		}
		impact = &ImpactAnalysis{FilesToModify: state.Feature.FilesToModify}
		state.markDegraded(PhaseImpactAnalysis, "feature spec file list only")
		recordPhaseDegraded()
	}
	state.Impact = impact
	return nil
}

func (c *Controller) analyzeImpact(ctx context.Context, state *WorkflowState) (*ImpactAnalysis, error) {
	if c.modelClient == nil {
		return nil, fmt.Errorf("no model client configured")
	}
	resp, err := c.modelClient.ChatCompletion(ctx, model.ChatRequest{
		Model: c.config.Models.Analysis,
		Messages: []model.Message{
			{Role: "system", Content: "List every file the change will touch and any patterns or constraints to respect. Reply with JSON: {\"files_to_modify\": [string], \"patterns\": [string], \"constraints\": [string]}."},
			{Role: "user", Content: fmt.Sprintf("Intent: %s\nKnown files: %s", state.Feature.Intent, strings.Join(state.Feature.FilesToModify, ", "))},
		},
	})
	if err != nil {
		return nil, err
	}
	msg, ok := resp.FirstMessage()
	if !ok {
		return nil, fmt.Errorf("empty impact response")
	}
	var impact ImpactAnalysis
	if err := json.Unmarshal([]byte(extractJSON(msg.ContentText())), &impact); err != nil {
		return nil, fmt.Errorf("parsing impact response: %w", err)
	}
	if len(impact.FilesToModify) == 0 {
		impact.FilesToModify = state.Feature.FilesToModify
	}
	return &impact, nil
}

// extractJSON strips markdown fences and surrounding prose from a model
// reply, returning the first top-level JSON object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			text = rest[:end]
		} else {
			text = rest
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
