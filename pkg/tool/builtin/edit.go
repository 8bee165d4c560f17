package builtin

import (
	"fmt"
	"os"
	"strings"
)

// EditFileTool performs targeted string replacement edits in a file.
// The old_string must match exactly, including whitespace.
type EditFileTool struct{ workDirAware }

func (t *EditFileTool) Name() string {
	return "edit_file"
}

func (t *EditFileTool) Description() string {
	return "Make targeted edits to a file by replacing exact text. The old_string must match exactly (including whitespace and indentation). Use this for precise code modifications."
}

func (t *EditFileTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"path": {
				Type:        "string",
				Description: "Path to the file to edit",
			},
			"old_string": {
				Type:        "string",
				Description: "Exact text to find and replace (must match exactly including whitespace)",
			},
			"new_string": {
				Type:        "string",
				Description: "Text to replace old_string with",
			},
			"replace_all": {
				Type:        "boolean",
				Description: "If true, replace all occurrences. If false (default), only replace the first occurrence",
				Default:     false,
			},
		},
		Required: []string{"path", "old_string", "new_string"},
	}
}

func (t *EditFileTool) Execute(params map[string]any) (*Result, error) {
	path, ok := params["path"].(string)
	if !ok {
		return &Result{
			Success: false,
			Error:   "path parameter must be a string",
		}, nil
	}

	oldString, ok := params["old_string"].(string)
	if !ok {
		return &Result{
			Success: false,
			Error:   "old_string parameter must be a string",
		}, nil
	}

	newString, ok := params["new_string"].(string)
	if !ok {
		return &Result{
			Success: false,
			Error:   "new_string parameter must be a string",
		}, nil
	}

	replaceAll := false
	if ra, ok := params["replace_all"].(bool); ok {
		replaceAll = ra
	}

	absPath, err := resolvePath(t.workDir, path)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("failed to read file: %v", err),
		}, nil
	}

	oldContent := string(content)

	if !strings.Contains(oldContent, oldString) {
		return &Result{
			Success: false,
			Error:   "old_string not found in file. Make sure the text matches exactly including whitespace.",
		}, nil
	}

	if !replaceAll && strings.Count(oldContent, oldString) > 1 {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("old_string appears %d times in the file. Either provide a more specific string or use replace_all=true", strings.Count(oldContent, oldString)),
		}, nil
	}

	var newContent string
	if replaceAll {
		newContent = strings.ReplaceAll(oldContent, oldString, newString)
	} else {
		newContent = strings.Replace(oldContent, oldString, newString, 1)
	}

	if err := os.WriteFile(absPath, []byte(newContent), 0644); err != nil {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("failed to write file: %v", err),
		}, nil
	}

	diff := generateDiff(absPath, oldContent, newContent)

	return &Result{
		Success: true,
		Data: map[string]any{
			"path":          absPath,
			"replacements":  strings.Count(oldContent, oldString),
			"lines_added":   diff.LinesAdded,
			"lines_removed": diff.LinesRemoved,
		},
		DiffPreview: diff,
	}, nil
}
