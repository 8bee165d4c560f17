package builtin

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const diffPreviewLines = 15

// generateDiff builds a DiffInfo describing the change from oldContent
// to newContent at path.
func generateDiff(path, oldContent, newContent string) *DiffInfo {
	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	})
	if err != nil {
		unified = ""
	}

	linesAdded, linesRemoved := 0, 0
	for _, line := range strings.Split(unified, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			linesAdded++
		case strings.HasPrefix(line, "-"):
			linesRemoved++
		}
	}

	previewLines := strings.Split(unified, "\n")
	preview := unified
	if len(previewLines) > diffPreviewLines {
		preview = strings.Join(previewLines[:diffPreviewLines], "\n")
		preview += fmt.Sprintf("\n... (%d more lines)", len(previewLines)-diffPreviewLines)
	}

	return &DiffInfo{
		FilePath:     path,
		IsNew:        oldContent == "",
		LinesAdded:   linesAdded,
		LinesRemoved: linesRemoved,
		UnifiedDiff:  unified,
		Preview:      preview,
	}
}
