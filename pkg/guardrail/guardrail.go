package guardrail

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/odvcencio/warden/pkg/logging"
	"github.com/odvcencio/warden/pkg/model"
	"github.com/odvcencio/warden/pkg/scope"
	"github.com/odvcencio/warden/pkg/telemetry"
)

// Mode selects enforcement strictness for scope violations.
type Mode string

const (
	// ModeHard aborts the synthesis phase on any denial.
	ModeHard Mode = "hard"
	// ModeSoft logs denials and continues; meant for observability
	// during tuning, never the default without operator opt-in.
	ModeSoft Mode = "soft"
)

// ErrScopeViolation indicates the agent referenced a path outside its
// authorized scope.
var ErrScopeViolation = errors.New("scope violation")

// BlockedError wraps denial metadata for a hard-mode abort.
type BlockedError struct {
	Path     string
	Registry string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("path %q is outside the authorized scope\n%s", e.Path, e.Registry)
}

func (e *BlockedError) Unwrap() error {
	return ErrScopeViolation
}

// Denial records one denied path from an output scan.
type Denial struct {
	Path string
	Soft bool // true when the run continued in soft mode
}

// Guardrail enforces the authorized scope around each model invocation.
type Guardrail struct {
	registry  *scope.Registry
	mode      Mode
	objective string
	logger    *logging.Logger
	hub       *telemetry.Hub
}

// Option configures guardrail construction.
type Option func(*Guardrail)

// WithLogger attaches a structured logger.
func WithLogger(logger *logging.Logger) Option {
	return func(g *Guardrail) { g.logger = logger }
}

// WithTelemetry attaches a telemetry hub.
func WithTelemetry(hub *telemetry.Hub) Option {
	return func(g *Guardrail) { g.hub = hub }
}

// New constructs a guardrail over the given registry.
func New(registry *scope.Registry, mode Mode, objective string, opts ...Option) *Guardrail {
	g := &Guardrail{
		registry:  registry,
		mode:      mode,
		objective: objective,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Mode returns the configured enforcement mode.
func (g *Guardrail) Mode() Mode {
	return g.mode
}

// Reminder builds the system message prepended before every model
// invocation. Multi-turn tool conversations drift away from the original
// objective after a few exchanges; restating it each turn counteracts
// that deterministically.
func (g *Guardrail) Reminder() model.Message {
	var b strings.Builder
	b.WriteString("Objective: ")
	b.WriteString(g.objective)
	b.WriteString("\n\nYou may only create or modify files inside the authorized scope below. ")
	b.WriteString("Do not touch any other file.\n\n")
	b.WriteString(g.registry.Summary())
	return model.Message{Role: "system", Content: b.String()}
}

// InjectReminder prepends the scope reminder to the conversation.
func (g *Guardrail) InjectReminder(messages []model.Message) []model.Message {
	out := make([]model.Message, 0, len(messages)+1)
	out = append(out, g.Reminder())
	out = append(out, messages...)
	g.publish(telemetry.EventReminderInjected, map[string]any{"objective": g.objective})
	return out
}

// Candidate paths in free text: at least one separator plus an extension.
var pathPattern = regexp.MustCompile(`(?:\.{1,2}/)?(?:[\w.-]+/)+[\w.-]+\.\w+|/(?:[\w.-]+/)*[\w.-]+\.\w+`)

// ScanOutput checks path-like substrings in a model response against the
// registry. In hard mode the first denial aborts with a BlockedError; in
// soft mode denials are logged and returned.
func (g *Guardrail) ScanOutput(text string) ([]Denial, error) {
	var denials []Denial
	seen := make(map[string]struct{})

	for _, candidate := range pathPattern.FindAllString(text, -1) {
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}

		decision := g.registry.Authorize(candidate)
		if decision.Authorized {
			if decision.SoftMatch() {
				g.logSoftMatch(decision)
			}
			continue
		}
		if decision.Unresolvable {
			continue
		}

		g.publish(telemetry.EventScopeDenied, map[string]any{"path": candidate, "stage": "output_scan"})
		if g.mode == ModeHard {
			g.logDenial(candidate, false)
			return denials, &BlockedError{Path: candidate, Registry: g.registry.Summary()}
		}
		g.logDenial(candidate, true)
		denials = append(denials, Denial{Path: candidate, Soft: true})
	}

	return denials, nil
}

func (g *Guardrail) logDenial(path string, soft bool) {
	if g.logger == nil {
		return
	}
	details := map[string]any{"path": path, "mode": string(g.mode)}
	if soft {
		g.logger.Warn(logging.CategoryScope, "denial", "path outside authorized scope", details)
		return
	}
	g.logger.Error(logging.CategoryScope, "denial", "path outside authorized scope", details)
}

func (g *Guardrail) logSoftMatch(decision scope.Decision) {
	g.publish(telemetry.EventScopeSoftMatch, map[string]any{
		"path":    decision.Candidate,
		"matched": decision.Matched,
	})
	if g.logger == nil {
		return
	}
	g.logger.Warn(logging.CategoryScope, "soft_match",
		"path authorized by basename only; may be a same-named file in another module",
		map[string]any{"path": decision.Candidate, "matched": decision.Matched})
}

func (g *Guardrail) publish(eventType telemetry.EventType, data map[string]any) {
	if g.hub == nil {
		return
	}
	g.hub.Publish(telemetry.Event{Type: eventType, Data: data})
}
