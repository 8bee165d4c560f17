package builtin

// ParameterSchema defines the parameters a tool accepts
type ParameterSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// PropertySchema defines a single parameter
type PropertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
}

// Result represents the result of a tool execution
type Result struct {
	Success     bool           `json:"success"`
	Data        map[string]any `json:"data,omitempty"`
	Error       string         `json:"error,omitempty"`
	DiffPreview *DiffInfo      `json:"diff_preview,omitempty"`
}

// DiffInfo contains diff information for file changes
type DiffInfo struct {
	FilePath     string `json:"file_path"`
	IsNew        bool   `json:"is_new"`
	LinesAdded   int    `json:"lines_added"`
	LinesRemoved int    `json:"lines_removed"`
	UnifiedDiff  string `json:"unified_diff"`
	Preview      string `json:"preview"` // First few lines of the diff for display
}
