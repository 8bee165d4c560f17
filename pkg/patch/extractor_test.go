package patch

import (
	"testing"

	"github.com/odvcencio/warden/pkg/model"
)

func TestExtractNeverPanics(t *testing.T) {
	inputs := []any{
		nil,
		map[string]any{},
		"",
		42,
		[]any{nil, 17, "junk"},
		map[string]any{"messages": "not a list"},
		map[string]any{"messages": []any{map[string]any{"tool_calls": []any{nil, 5}}}},
		map[string]any{"output": map[string]any{"result": []any{}}},
		func() {},
	}
	for _, input := range inputs {
		extraction := Extract(input)
		if extraction.Patches == nil && extraction.SkippedCount < 0 {
			t.Errorf("unexpected extraction for %#v", input)
		}
	}
}

func TestExtractEmptyPathIsSkipped(t *testing.T) {
	input := map[string]any{
		"messages": []any{
			map[string]any{
				"tool_calls": []any{
					map[string]any{"name": "write_file", "args": map[string]any{"path": "", "content": "x"}},
				},
			},
		},
	}
	extraction := Extract(input)
	if len(extraction.Patches) != 0 {
		t.Errorf("expected no patches, got %v", extraction.Patches)
	}
	if extraction.SkippedCount != 1 {
		t.Errorf("SkippedCount = %d, want 1", extraction.SkippedCount)
	}
}

func TestExtractNoEmptyFilePathEver(t *testing.T) {
	inputs := []any{
		map[string]any{"messages": []any{map[string]any{"tool_calls": []any{
			map[string]any{"name": "write_file", "args": map[string]any{"content": "x"}},
			map[string]any{"name": "edit_file", "args": map[string]any{"old_string": "a", "new_string": "b"}},
			map[string]any{"name": "write_file", "args": map[string]any{"path": "ok.go", "content": "x"}},
		}}}},
		[]any{
			map[string]any{"tool": "write_file", "content": "x"},
			map[string]any{"tool": "write_file", "path": "ok.go", "content": "x"},
		},
	}
	for _, input := range inputs {
		extraction := Extract(input)
		for _, p := range extraction.Patches {
			if p.FilePath == "" {
				t.Errorf("patch with empty FilePath leaked: %+v", p)
			}
		}
		if len(extraction.Patches) != 1 {
			t.Errorf("expected exactly one valid patch, got %d", len(extraction.Patches))
		}
	}
}

func TestExtractFromMessageMaps(t *testing.T) {
	input := map[string]any{
		"messages": []any{
			map[string]any{"role": "assistant", "tool_calls": []any{
				map[string]any{"name": "write_file", "args": map[string]any{
					"path": "src/app/service.go", "content": "package app",
				}},
				map[string]any{"name": "edit_file", "args": map[string]any{
					"path": "src/app/handler.go", "old_string": "v1", "new_string": "v2",
				}},
			}},
		},
	}
	extraction := Extract(input)
	if extraction.Strategy != "messages" {
		t.Errorf("Strategy = %q, want messages", extraction.Strategy)
	}
	if len(extraction.Patches) != 2 {
		t.Fatalf("expected 2 patches, got %d", len(extraction.Patches))
	}
	if extraction.Patches[0].Operation != OperationCreate {
		t.Errorf("first operation = %q", extraction.Patches[0].Operation)
	}
	if extraction.Patches[1].Operation != OperationEdit {
		t.Errorf("second operation = %q", extraction.Patches[1].Operation)
	}
	if extraction.SkippedCount != 0 {
		t.Errorf("SkippedCount = %d, want 0", extraction.SkippedCount)
	}
}

func TestExtractFromChatResponse(t *testing.T) {
	resp := &model.ChatResponse{
		Choices: []model.Choice{{
			Message: model.Message{
				Role: "assistant",
				ToolCalls: []model.ToolCall{{
					ID:   "call_1",
					Type: "function",
					Function: model.FunctionCall{
						Name:      "write_file",
						Arguments: `{"path":"src/new.go","content":"package src"}`,
					},
				}},
			},
		}},
	}
	extraction := Extract(resp)
	if len(extraction.Patches) != 1 {
		t.Fatalf("expected 1 patch, got %d", len(extraction.Patches))
	}
	if extraction.Patches[0].FilePath != "src/new.go" {
		t.Errorf("FilePath = %q", extraction.Patches[0].FilePath)
	}
}

func TestExtractOpenAIFunctionShape(t *testing.T) {
	input := map[string]any{
		"messages": []any{
			map[string]any{"tool_calls": []any{
				map[string]any{
					"id":   "call_1",
					"type": "function",
					"function": map[string]any{
						"name":      "write_file",
						"arguments": `{"path":"a.go","content":"x"}`,
					},
				},
			}},
		},
	}
	extraction := Extract(input)
	if len(extraction.Patches) != 1 {
		t.Fatalf("expected 1 patch, got %d (skipped %d)", len(extraction.Patches), extraction.SkippedCount)
	}
}

func TestExtractMalformedArgumentsSkipped(t *testing.T) {
	resp := model.ChatResponse{
		Choices: []model.Choice{{
			Message: model.Message{
				ToolCalls: []model.ToolCall{{
					Function: model.FunctionCall{Name: "write_file", Arguments: `{"path":`},
				}},
			},
		}},
	}
	extraction := Extract(resp)
	if len(extraction.Patches) != 0 {
		t.Errorf("expected no patches, got %v", extraction.Patches)
	}
	if extraction.SkippedCount != 1 {
		t.Errorf("SkippedCount = %d, want 1", extraction.SkippedCount)
	}
}

func TestExtractFromFlatLog(t *testing.T) {
	input := []any{
		map[string]any{"tool": "write_file", "path": "lib/util.go", "content": "package lib"},
		map[string]any{"tool": "read_file", "path": "lib/util.go"},
		map[string]any{"status": "ok"},
	}
	extraction := Extract(input)
	if extraction.Strategy != "log" {
		t.Errorf("Strategy = %q, want log", extraction.Strategy)
	}
	if len(extraction.Patches) != 1 {
		t.Fatalf("expected 1 patch, got %d", len(extraction.Patches))
	}
	// read_file is not a mutation; it is counted as skipped.
	if extraction.SkippedCount != 1 {
		t.Errorf("SkippedCount = %d, want 1", extraction.SkippedCount)
	}
}

func TestExtractFromFreeText(t *testing.T) {
	text := "Here is the implementation.\n\n" +
		"Create file: src/app/widget.go\n" +
		"```go\npackage app\n\ntype Widget struct{}\n```\n\n" +
		"That completes the feature."
	extraction := Extract(text)
	if extraction.Strategy != "text" {
		t.Fatalf("Strategy = %q, want text", extraction.Strategy)
	}
	if len(extraction.Patches) != 1 {
		t.Fatalf("expected 1 patch, got %d", len(extraction.Patches))
	}
	p := extraction.Patches[0]
	if p.FilePath != "src/app/widget.go" {
		t.Errorf("FilePath = %q", p.FilePath)
	}
	if p.Operation != OperationCreate {
		t.Errorf("Operation = %q", p.Operation)
	}
	if p.Content == "" {
		t.Error("expected fenced content to be captured")
	}
}

func TestExtractFromWrapperKeys(t *testing.T) {
	inner := []any{
		map[string]any{"tool": "write_file", "path": "x.go", "content": "package x"},
	}
	for _, key := range []string{"output", "result", "data"} {
		extraction := Extract(map[string]any{key: inner})
		if extraction.Strategy != "probe" {
			t.Errorf("key %q: Strategy = %q, want probe", key, extraction.Strategy)
		}
		if len(extraction.Patches) != 1 {
			t.Errorf("key %q: expected 1 patch, got %d", key, len(extraction.Patches))
		}
	}
}

func TestPatchValid(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
		want  bool
	}{
		{"valid create", Patch{Operation: OperationCreate, FilePath: "a.go", Content: "x"}, true},
		{"create missing content", Patch{Operation: OperationCreate, FilePath: "a.go"}, false},
		{"create blank path", Patch{Operation: OperationCreate, FilePath: "  ", Content: "x"}, false},
		{"valid edit", Patch{Operation: OperationEdit, FilePath: "a.go", OldString: "a", NewString: "b"}, true},
		{"edit missing new", Patch{Operation: OperationEdit, FilePath: "a.go", OldString: "a"}, false},
		{"unknown operation", Patch{Operation: "delete", FilePath: "a.go"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.patch.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
