package structure

import (
	"fmt"
	"os"
	"path/filepath"
)

// Decision is the terminal outcome of a refinement run.
type Decision string

const (
	DecisionProceed     Decision = "proceed"
	DecisionProceedWarn Decision = "proceed_with_warning"
	// DecisionNeedsReview flags the plan for manual review but does not
	// fail the workflow; downstream phases continue with a degraded plan
	// rather than deadlock.
	DecisionNeedsReview Decision = "needs_review"
)

const warnThreshold = 70

// DefaultMaxRounds bounds the refinement loop. Auto-fixes are idempotent
// but non-convergent when the true blocker is an irreducible violation,
// so the cap keeps the loop from rescanning the same problem forever.
const DefaultMaxRounds = 3

// Outcome pairs the final assessment with the terminal decision.
type Outcome struct {
	Assessment StructureAssessment `json:"assessment"`
	Decision   Decision            `json:"decision"`
	// Feedback is attached when the plan needs manual review; it is
	// meant for the upstream intent-parsing step, not for operators.
	Feedback string `json:"feedback,omitempty"`
}

// Refiner runs the bounded validate/auto-fix/revalidate loop.
type Refiner struct {
	MaxRounds int

	// CreateDirs applies missing-directory fixes on disk under the plan
	// root instead of only recording them in the plan.
	CreateDirs bool

	validate func(*FeaturePlan, FrameworkProfile, int) StructureAssessment
}

// NewRefiner constructs a refiner with the given round cap.
func NewRefiner(maxRounds int) *Refiner {
	if maxRounds < 0 {
		maxRounds = 0
	}
	return &Refiner{MaxRounds: maxRounds, validate: Validate}
}

// Refine validates the plan, applies cheap mechanical fixes, and
// re-validates until the plan is production ready or rounds are
// exhausted. It invokes the validator at most MaxRounds+1 times.
func (r *Refiner) Refine(plan *FeaturePlan, framework FrameworkProfile) Outcome {
	if r.validate == nil {
		r.validate = Validate
	}

	round := 0
	assessment := r.validate(plan, framework, round)

	for round < r.MaxRounds && !assessment.ProductionReady {
		fixes := mechanicalFixes(assessment)
		if len(fixes) == 0 {
			break
		}
		r.applyFixes(plan, fixes)
		round++
		assessment = r.validate(plan, framework, round)
	}

	return Outcome{
		Assessment: assessment,
		Decision:   decide(assessment),
		Feedback:   feedback(assessment),
	}
}

func mechanicalFixes(assessment StructureAssessment) []string {
	var dirs []string
	for _, v := range assessment.Violations {
		if v.Mechanical() {
			dirs = append(dirs, v.SuggestedFix)
		}
	}
	return dirs
}

func (r *Refiner) applyFixes(plan *FeaturePlan, dirs []string) {
	for _, dir := range dirs {
		plan.ScaffoldedDirs = append(plan.ScaffoldedDirs, dir)
		if r.CreateDirs && plan.Root != "" {
			if err := os.MkdirAll(filepath.Join(plan.Root, dir), 0755); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to scaffold directory %s: %v\n", dir, err)
			}
		}
	}
}

func decide(assessment StructureAssessment) Decision {
	switch {
	case assessment.Score >= readyThreshold && assessment.ErrorCount() == 0:
		return DecisionProceed
	case assessment.Score >= warnThreshold:
		return DecisionProceedWarn
	default:
		return DecisionNeedsReview
	}
}

func feedback(assessment StructureAssessment) string {
	if decide(assessment) != DecisionNeedsReview {
		return ""
	}
	msg := fmt.Sprintf("structure score %d after %d refinement round(s); unresolved violations:", assessment.Score, assessment.Round)
	for _, v := range assessment.Violations {
		msg += fmt.Sprintf("\n  [%s] %s: %s", v.Severity, v.Location, v.Message)
	}
	return msg
}
