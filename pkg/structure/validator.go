package structure

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ViolationType classifies a detected deviation from the expected layout.
type ViolationType string

const (
	MissingLayer      ViolationType = "missing_layer"
	NamingIssue       ViolationType = "naming_issue"
	ArchitectureIssue ViolationType = "architecture_issue"
	ValidationFailure ViolationType = "validation_failure"
)

// Severity ranks how serious a violation is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Violation is one detected deviation from framework conventions.
type Violation struct {
	Type         ViolationType `json:"type"`
	Severity     Severity      `json:"severity"`
	Location     string        `json:"location"`
	Message      string        `json:"message"`
	SuggestedFix string        `json:"suggested_fix,omitempty"`
}

// Mechanical reports whether the violation carries a cheap auto-applicable
// fix. Only missing-directory fixes qualify; architecture violations are
// reported, never auto-fixed.
func (v Violation) Mechanical() bool {
	return v.Type == MissingLayer && v.SuggestedFix != ""
}

// StructureAssessment scores one proposed file layout.
type StructureAssessment struct {
	Score           int         `json:"score"`
	Violations      []Violation `json:"violations"`
	Round           int         `json:"round"`
	ProductionReady bool        `json:"production_ready"`
}

// ErrorCount returns the number of Error-severity violations.
func (a StructureAssessment) ErrorCount() int {
	count := 0
	for _, v := range a.Violations {
		if v.Severity == SeverityError {
			count++
		}
	}
	return count
}

// PlannedFile is a new file the plan intends to create.
type PlannedFile struct {
	Path    string `json:"path"`
	Purpose string `json:"purpose,omitempty"`
	Layer   string `json:"layer,omitempty"`
}

// FeaturePlan is the proposed layout under validation.
type FeaturePlan struct {
	Summary       string        `json:"summary,omitempty"`
	Root          string        `json:"root,omitempty"`
	FilesToModify []string      `json:"files_to_modify,omitempty"`
	NewFiles      []PlannedFile `json:"new_files,omitempty"`

	// ScaffoldedDirs records directories created by refinement fixes so
	// re-validation sees them without touching disk.
	ScaffoldedDirs []string `json:"scaffolded_dirs,omitempty"`
}

// NamingRule checks filenames planned under a directory prefix.
type NamingRule struct {
	DirPrefix string `json:"dir_prefix"`
	Pattern   string `json:"pattern"` // regexp the basename must match
	Message   string `json:"message"`
}

// ArchitectureRule flags planned files whose declared layer clashes with
// the directory they are placed in.
type ArchitectureRule struct {
	DirPrefix      string   `json:"dir_prefix"`
	ForbiddenLayer string   `json:"forbidden_layer"`
	Keywords       []string `json:"keywords,omitempty"` // purpose keywords that also trigger the rule
	Message        string   `json:"message"`
}

// FrameworkProfile supplies the convention rule set for one framework.
type FrameworkProfile struct {
	Name               string             `json:"name"`
	RequiredDirs       []string           `json:"required_dirs"`
	NamingRules        []NamingRule       `json:"naming_rules,omitempty"`
	ArchitectureRules  []ArchitectureRule `json:"architecture_rules,omitempty"`
	MissingLayerWeight int                `json:"missing_layer_weight,omitempty"` // defaults to 10
}

const (
	namingPenalty       = 5
	architecturePenalty = 20
	defaultLayerPenalty = 10

	readyThreshold = 85
)

// Validate scores a proposed plan against the framework profile. Scoring
// starts at 100 and subtracts per violation; productionReady requires a
// score of at least 85 and no Error-severity violation.
func Validate(plan *FeaturePlan, framework FrameworkProfile, round int) StructureAssessment {
	assessment := StructureAssessment{Score: 100, Round: round}
	if plan == nil {
		assessment.Score = 0
		assessment.Violations = append(assessment.Violations, Violation{
			Type:     ValidationFailure,
			Severity: SeverityError,
			Message:  "no plan to validate",
		})
		return assessment
	}

	layerPenalty := framework.MissingLayerWeight
	if layerPenalty <= 0 {
		layerPenalty = defaultLayerPenalty
	}

	for _, dir := range framework.RequiredDirs {
		if plan.hasDir(dir) {
			continue
		}
		assessment.Score -= layerPenalty
		assessment.Violations = append(assessment.Violations, Violation{
			Type:         MissingLayer,
			Severity:     SeverityWarning,
			Location:     dir,
			Message:      fmt.Sprintf("required layer directory %q is missing from the plan", dir),
			SuggestedFix: dir,
		})
	}

	for _, rule := range framework.NamingRules {
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			continue
		}
		for _, path := range plan.allPaths() {
			if !underDir(path, rule.DirPrefix) {
				continue
			}
			if pattern.MatchString(filepath.Base(path)) {
				continue
			}
			assessment.Score -= namingPenalty
			assessment.Violations = append(assessment.Violations, Violation{
				Type:     NamingIssue,
				Severity: SeverityWarning,
				Location: path,
				Message:  rule.Message,
			})
		}
	}

	for _, rule := range framework.ArchitectureRules {
		for _, file := range plan.NewFiles {
			if !underDir(file.Path, rule.DirPrefix) {
				continue
			}
			if !rule.triggered(file) {
				continue
			}
			assessment.Score -= architecturePenalty
			assessment.Violations = append(assessment.Violations, Violation{
				Type:     ArchitectureIssue,
				Severity: SeverityError,
				Location: file.Path,
				Message:  rule.Message,
			})
		}
	}

	if assessment.Score < 0 {
		assessment.Score = 0
	}
	assessment.ProductionReady = assessment.Score >= readyThreshold && assessment.ErrorCount() == 0
	return assessment
}

func (r ArchitectureRule) triggered(file PlannedFile) bool {
	if r.ForbiddenLayer != "" && strings.EqualFold(file.Layer, r.ForbiddenLayer) {
		return true
	}
	purpose := strings.ToLower(file.Purpose)
	for _, keyword := range r.Keywords {
		if keyword != "" && strings.Contains(purpose, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// hasDir reports whether the plan covers a required directory: a planned
// or modified file lives under it, a refinement fix scaffolded it, or it
// already exists on disk under the plan root.
func (p *FeaturePlan) hasDir(dir string) bool {
	for _, path := range p.allPaths() {
		if underDir(path, dir) {
			return true
		}
	}
	for _, scaffolded := range p.ScaffoldedDirs {
		if filepath.Clean(scaffolded) == filepath.Clean(dir) {
			return true
		}
	}
	if p.Root != "" {
		if info, err := os.Stat(filepath.Join(p.Root, dir)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

func (p *FeaturePlan) allPaths() []string {
	paths := make([]string, 0, len(p.FilesToModify)+len(p.NewFiles))
	paths = append(paths, p.FilesToModify...)
	for _, file := range p.NewFiles {
		paths = append(paths, file.Path)
	}
	return paths
}

func underDir(path, dir string) bool {
	path = filepath.ToSlash(filepath.Clean(path))
	dir = filepath.ToSlash(filepath.Clean(dir))
	return path == dir || strings.HasPrefix(path, dir+"/")
}
