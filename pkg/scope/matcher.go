package scope

import (
	"path/filepath"
	"strings"
)

// MatchKind identifies which authorization rule matched a candidate path.
type MatchKind string

const (
	MatchNone      MatchKind = "none"
	MatchExact     MatchKind = "exact"
	MatchDirectory MatchKind = "directory"
	MatchSuffix    MatchKind = "suffix"
	// MatchBasename is the lowest-confidence rule: it can false-positive
	// on same-named files in different authorized modules, so callers
	// log it as a soft warning.
	MatchBasename MatchKind = "basename"
)

// Decision is the outcome of authorizing one candidate path.
type Decision struct {
	Authorized   bool
	Unresolvable bool
	Kind         MatchKind
	Candidate    string
	Matched      string // registry entry that matched, when one did
}

// SoftMatch reports whether the decision rests on the basename fallback.
func (d Decision) SoftMatch() bool {
	return d.Authorized && d.Kind == MatchBasename
}

// Authorize decides whether a candidate path falls inside the registry.
// Agent-emitted paths are inconsistently relative and sometimes bare
// filenames, so exact matching alone rejects most legitimate calls;
// rules are tried in decreasing confidence order and the first match
// wins.
func (r *Registry) Authorize(candidate string) Decision {
	decision := Decision{Candidate: candidate, Kind: MatchNone}

	abs, ok := r.resolve(candidate)
	if !ok {
		decision.Unresolvable = true
		return decision
	}

	if _, found := r.allowedFiles[abs]; found {
		decision.Authorized = true
		decision.Kind = MatchExact
		decision.Matched = abs
		return decision
	}

	for dir := range r.allowedDirs {
		if isWithinDir(dir, abs) {
			decision.Authorized = true
			decision.Kind = MatchDirectory
			decision.Matched = dir
			return decision
		}
	}

	// Bare filenames fall through to the basename rule so they surface
	// as low-confidence matches.
	if suffix := trimRelativeSegments(candidate); strings.ContainsRune(suffix, filepath.Separator) {
		for file := range r.allowedFiles {
			if hasPathSuffix(file, suffix) {
				decision.Authorized = true
				decision.Kind = MatchSuffix
				decision.Matched = file
				return decision
			}
		}
	}

	base := filepath.Base(filepath.FromSlash(strings.TrimSpace(candidate)))
	if base != "" && base != "." && base != string(filepath.Separator) {
		for file := range r.allowedFiles {
			if filepath.Base(file) == base {
				decision.Authorized = true
				decision.Kind = MatchBasename
				decision.Matched = file
				return decision
			}
		}
	}

	return decision
}

// IsAuthorized is the boolean shorthand over Authorize.
func (r *Registry) IsAuthorized(candidate string) bool {
	return r.Authorize(candidate).Authorized
}

func isWithinDir(base, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(target))
	if err != nil {
		return false
	}
	rel = filepath.Clean(rel)
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// trimRelativeSegments strips leading "./" and "../" segments so shorter
// relative forms of a known file still suffix-match it.
func trimRelativeSegments(candidate string) string {
	s := filepath.FromSlash(strings.TrimSpace(candidate))
	sep := string(filepath.Separator)
	for {
		switch {
		case strings.HasPrefix(s, "."+sep):
			s = s[2:]
		case strings.HasPrefix(s, ".."+sep):
			s = s[3:]
		default:
			return s
		}
	}
}

func hasPathSuffix(full, suffix string) bool {
	if full == suffix {
		return true
	}
	return strings.HasSuffix(full, string(filepath.Separator)+suffix)
}
