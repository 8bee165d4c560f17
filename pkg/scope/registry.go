package scope

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Registry holds the set of files and directories an agent is authorized
// to mutate during one synthesis attempt. Immutable once built; rebuild
// instead of mutating when the attempt is retried.
type Registry struct {
	root         string
	allowedFiles map[string]struct{}
	allowedDirs  map[string]struct{}
}

// Candidate source directories probed when no files are provided.
var fallbackSourceDirs = []string{"src", "app", "lib", "internal", "pkg", "cmd"}

// Build derives a registry from the files likely to change. Every file's
// parent directory is registered alongside it, so new files created under
// an authorized parent pass authorization without being enumerated up
// front. With expand set, sibling files sharing the dominant source
// extension are registered too; impact analysis routinely under-reports
// related files (a controller listed without its service), and expansion
// covers that gap.
func Build(filesLikelyToChange []string, codebaseRoot string, expand bool) *Registry {
	root := codebaseRoot
	if abs, err := filepath.Abs(codebaseRoot); err == nil {
		root = abs
	}

	r := &Registry{
		root:         root,
		allowedFiles: make(map[string]struct{}),
		allowedDirs:  make(map[string]struct{}),
	}

	for _, file := range filesLikelyToChange {
		abs, ok := r.resolve(file)
		if !ok {
			continue
		}
		r.allowedFiles[abs] = struct{}{}
		r.allowedDirs[filepath.Dir(abs)] = struct{}{}
	}

	if expand && len(r.allowedFiles) > 0 {
		r.expandSiblings(dominantExtension(filesLikelyToChange))
	}

	// An empty registry denies everything and deadlocks synthesis, so
	// fall back to the top-level source directory.
	if len(r.allowedFiles) == 0 && len(r.allowedDirs) == 0 {
		r.allowedDirs[r.fallbackSourceDir()] = struct{}{}
	}

	return r
}

// resolve normalizes a candidate into an absolute path under the root.
// Returns false for strings that cannot name a file.
func (r *Registry) resolve(candidate string) (string, bool) {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return "", false
	}
	trimmed = filepath.ToSlash(trimmed)
	trimmed = filepath.FromSlash(trimmed)
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed), true
	}
	return filepath.Join(r.root, trimmed), true
}

// expandSiblings adds every on-disk sibling of an allowed file whose
// extension matches the codebase's dominant source extension.
func (r *Registry) expandSiblings(ext string) {
	if ext == "" {
		return
	}
	for dir := range r.allowedDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if filepath.Ext(entry.Name()) != ext {
				continue
			}
			r.allowedFiles[filepath.Join(dir, entry.Name())] = struct{}{}
		}
	}
}

// dominantExtension returns the most common extension among the inputs.
func dominantExtension(files []string) string {
	counts := make(map[string]int)
	for _, file := range files {
		if ext := filepath.Ext(strings.TrimSpace(file)); ext != "" {
			counts[ext]++
		}
	}
	best, bestCount := "", 0
	for ext, count := range counts {
		if count > bestCount || (count == bestCount && ext < best) {
			best, bestCount = ext, count
		}
	}
	return best
}

// fallbackSourceDir picks the first conventional source directory that
// exists under the root, or the root itself.
func (r *Registry) fallbackSourceDir() string {
	for _, name := range fallbackSourceDirs {
		candidate := filepath.Join(r.root, name)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	return r.root
}

// Root returns the codebase root the registry resolves against.
func (r *Registry) Root() string {
	return r.root
}

// Files returns the allowed files in sorted order.
func (r *Registry) Files() []string {
	files := make([]string, 0, len(r.allowedFiles))
	for file := range r.allowedFiles {
		files = append(files, file)
	}
	sort.Strings(files)
	return files
}

// Dirs returns the allowed directories in sorted order.
func (r *Registry) Dirs() []string {
	dirs := make([]string, 0, len(r.allowedDirs))
	for dir := range r.allowedDirs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// Summary renders the registry for prompts and denial messages.
func (r *Registry) Summary() string {
	var b strings.Builder
	b.WriteString("Authorized files:\n")
	files := r.Files()
	if len(files) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, file := range files {
		b.WriteString("  - ")
		b.WriteString(r.relativize(file))
		b.WriteString("\n")
	}
	b.WriteString("Authorized directories (new files permitted):\n")
	for _, dir := range r.Dirs() {
		b.WriteString("  - ")
		b.WriteString(r.relativize(dir))
		b.WriteString("\n")
	}
	return b.String()
}

func (r *Registry) relativize(path string) string {
	if rel, err := filepath.Rel(r.root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
