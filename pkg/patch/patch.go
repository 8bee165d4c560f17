package patch

import "strings"

// Operation identifies the kind of file mutation a patch performs.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationEdit   Operation = "edit"
)

// Patch is a single validated file-creation or file-edit instruction.
type Patch struct {
	Operation Operation `json:"operation"`
	FilePath  string    `json:"file_path"`
	Content   string    `json:"content,omitempty"`
	OldString string    `json:"old_string,omitempty"`
	NewString string    `json:"new_string,omitempty"`
}

// Valid reports whether the patch carries every field its operation
// requires. Invalid patches are dropped at extraction time and counted,
// never silently coerced into no-ops.
func (p Patch) Valid() bool {
	if strings.TrimSpace(p.FilePath) == "" {
		return false
	}
	switch p.Operation {
	case OperationCreate:
		return p.Content != ""
	case OperationEdit:
		return p.OldString != "" && p.NewString != ""
	default:
		return false
	}
}
