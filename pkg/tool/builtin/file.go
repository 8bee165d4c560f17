package builtin

import (
	"fmt"
	"os"
	"path/filepath"
)

// ReadFileTool reads a file from disk
type ReadFileTool struct{ workDirAware }

func (t *ReadFileTool) Name() string {
	return "read_file"
}

func (t *ReadFileTool) Description() string {
	return "Read file contents. Use this to examine code, configuration, or documentation files before modifying them."
}

func (t *ReadFileTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"path": {
				Type:        "string",
				Description: "Path to the file to read",
			},
		},
		Required: []string{"path"},
	}
}

func (t *ReadFileTool) Execute(params map[string]any) (*Result, error) {
	path, ok := params["path"].(string)
	if !ok {
		return &Result{
			Success: false,
			Error:   "path parameter must be a string",
		}, nil
	}

	absPath, err := resolvePath(t.workDir, path)
	if err != nil {
		return &Result{
			Success: false,
			Error:   err.Error(),
		}, nil
	}

	if t.maxFileSizeBytes > 0 {
		if info, err := os.Stat(absPath); err == nil && info.Size() > t.maxFileSizeBytes {
			return &Result{
				Success: false,
				Error:   fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), t.maxFileSizeBytes),
			}, nil
		}
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("failed to read file: %v", err),
		}, nil
	}

	return &Result{
		Success: true,
		Data: map[string]any{
			"path":    absPath,
			"content": string(content),
			"size":    len(content),
		},
	}, nil
}

// WriteFileTool writes content to a file
type WriteFileTool struct{ workDirAware }

func (t *WriteFileTool) Name() string {
	return "write_file"
}

func (t *WriteFileTool) Description() string {
	return "Write or create a file with specified content. Creates parent directories automatically. Use this to create new files or overwrite existing ones."
}

func (t *WriteFileTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"path": {
				Type:        "string",
				Description: "Path to the file to write",
			},
			"content": {
				Type:        "string",
				Description: "Content to write to the file",
			},
		},
		Required: []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(params map[string]any) (*Result, error) {
	path, ok := params["path"].(string)
	if !ok {
		return &Result{
			Success: false,
			Error:   "path parameter must be a string",
		}, nil
	}

	content, ok := params["content"].(string)
	if !ok {
		return &Result{
			Success: false,
			Error:   "content parameter must be a string",
		}, nil
	}

	if t.maxFileSizeBytes > 0 && int64(len(content)) > t.maxFileSizeBytes {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("content too large: %d bytes (max %d)", len(content), t.maxFileSizeBytes),
		}, nil
	}

	absPath, err := resolvePath(t.workDir, path)
	if err != nil {
		return &Result{
			Success: false,
			Error:   err.Error(),
		}, nil
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("failed to create directory: %v", err),
		}, nil
	}

	// Capture prior content for the diff preview.
	oldContent := ""
	if existing, err := os.ReadFile(absPath); err == nil {
		oldContent = string(existing)
	}

	if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("failed to write file: %v", err),
		}, nil
	}

	diff := generateDiff(absPath, oldContent, content)

	return &Result{
		Success: true,
		Data: map[string]any{
			"path":   absPath,
			"size":   len(content),
			"is_new": diff.IsNew,
		},
		DiffPreview: diff,
	}, nil
}

// ListDirectoryTool lists files in a directory
type ListDirectoryTool struct{ workDirAware }

func (t *ListDirectoryTool) Name() string {
	return "list_directory"
}

func (t *ListDirectoryTool) Description() string {
	return "List files and directories at a path. Returns name, type (file/directory), and size for each entry."
}

func (t *ListDirectoryTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"path": {
				Type:        "string",
				Description: "Path to the directory to list",
				Default:     ".",
			},
		},
		Required: []string{},
	}
}

func (t *ListDirectoryTool) Execute(params map[string]any) (*Result, error) {
	path := "."
	if p, ok := params["path"].(string); ok {
		path = p
	}

	absPath, err := resolvePath(t.workDir, path)
	if err != nil {
		return &Result{
			Success: false,
			Error:   err.Error(),
		}, nil
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("failed to read directory: %v", err),
		}, nil
	}

	files := []map[string]any{}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, map[string]any{
			"name":   entry.Name(),
			"is_dir": entry.IsDir(),
			"size":   info.Size(),
		})
	}

	return &Result{
		Success: true,
		Data: map[string]any{
			"path":  absPath,
			"files": files,
			"count": len(files),
		},
	}, nil
}
