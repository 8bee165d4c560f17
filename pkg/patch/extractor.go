package patch

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/odvcencio/warden/pkg/model"
)

// Extraction is the normalized outcome of scanning one agent result.
// Zero valid patches after a non-empty run is a legitimate outcome,
// distinct from a crash.
type Extraction struct {
	Patches      []Patch
	SkippedCount int
	Strategy     string
}

// candidate is a tool-call-like structure found by a strategy, before
// the Patch invariants are applied.
type candidate struct {
	tool string
	args map[string]any
}

// Extract normalizes an agent result of any shape into a list of valid
// patches. It never panics; unrecognized inputs yield an empty list.
// Strategies are tried in order and the first that finds candidate
// structures wins: message-attached tool calls, flat execution-log
// entries, free text, then a probe of common wrapper keys.
func Extract(agentResult any) (extraction Extraction) {
	defer func() {
		if recover() != nil {
			extraction = Extraction{Strategy: "none"}
		}
	}()

	strategies := []struct {
		name string
		fn   func(any) ([]candidate, bool)
	}{
		{"messages", extractFromMessages},
		{"log", extractFromLog},
		{"text", extractFromText},
		{"probe", extractFromWrapper},
	}

	for _, strategy := range strategies {
		candidates, ok := strategy.fn(agentResult)
		if !ok {
			continue
		}
		extraction.Strategy = strategy.name
		for _, c := range candidates {
			p, ok := toPatch(c)
			if !ok {
				extraction.SkippedCount++
				continue
			}
			extraction.Patches = append(extraction.Patches, p)
		}
		return extraction
	}

	extraction.Strategy = "none"
	return extraction
}

// toPatch converts a candidate into a Patch, enforcing the per-operation
// field invariants.
func toPatch(c candidate) (Patch, bool) {
	p := Patch{
		FilePath:  stringArg(c.args, "path", "filePath", "file_path"),
		Content:   stringArg(c.args, "content"),
		OldString: stringArg(c.args, "old_string", "oldString"),
		NewString: stringArg(c.args, "new_string", "newString"),
	}

	switch normalizeToolName(c.tool) {
	case "write_file", "create_file", "write", "create":
		p.Operation = OperationCreate
	case "edit_file", "edit", "replace", "str_replace":
		p.Operation = OperationEdit
	default:
		return Patch{}, false
	}

	if !p.Valid() {
		return Patch{}, false
	}
	return p, true
}

func normalizeToolName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func stringArg(args map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := args[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// extractFromMessages handles results whose messages carry an explicit
// tool-calls attribute, in either the wire types or plain maps.
func extractFromMessages(result any) ([]candidate, bool) {
	switch v := result.(type) {
	case *model.ChatResponse:
		if msg, ok := v.FirstMessage(); ok && len(msg.ToolCalls) > 0 {
			return candidatesFromToolCalls(msg.ToolCalls), true
		}
		return nil, false
	case model.ChatResponse:
		return extractFromMessages(&v)
	case []model.Message:
		var candidates []candidate
		for _, msg := range v {
			candidates = append(candidates, candidatesFromToolCalls(msg.ToolCalls)...)
		}
		return candidates, len(candidates) > 0
	case model.Message:
		return candidatesFromToolCalls(v.ToolCalls), len(v.ToolCalls) > 0
	case map[string]any:
		messages, ok := v["messages"].([]any)
		if !ok {
			return nil, false
		}
		var candidates []candidate
		found := false
		for _, entry := range messages {
			msg, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			calls, ok := msg["tool_calls"].([]any)
			if !ok {
				continue
			}
			found = true
			for _, call := range calls {
				if c, ok := candidateFromMap(call); ok {
					candidates = append(candidates, c)
				}
			}
		}
		return candidates, found
	default:
		return nil, false
	}
}

func candidatesFromToolCalls(calls []model.ToolCall) []candidate {
	var candidates []candidate
	for _, call := range calls {
		args, err := call.Function.ArgumentsMap()
		if err != nil {
			args = map[string]any{}
		}
		candidates = append(candidates, candidate{tool: call.Function.Name, args: args})
	}
	return candidates
}

// candidateFromMap decodes one tool-call-shaped map, accepting both the
// {"name","args"} form and the OpenAI {"function":{"name","arguments"}}
// form.
func candidateFromMap(raw any) (candidate, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return candidate{}, false
	}

	if fn, ok := m["function"].(map[string]any); ok {
		name, _ := fn["name"].(string)
		args := map[string]any{}
		switch a := fn["arguments"].(type) {
		case string:
			_ = json.Unmarshal([]byte(a), &args)
		case map[string]any:
			args = a
		}
		return candidate{tool: name, args: args}, name != ""
	}

	name, _ := m["name"].(string)
	if name == "" {
		name, _ = m["tool"].(string)
	}
	if name == "" {
		return candidate{}, false
	}
	args := map[string]any{}
	switch a := m["args"].(type) {
	case map[string]any:
		args = a
	case string:
		_ = json.Unmarshal([]byte(a), &args)
	default:
		if a, ok := m["arguments"].(map[string]any); ok {
			args = a
		}
	}
	return candidate{tool: name, args: args}, true
}

// extractFromLog handles flat execution-log shapes whose entries carry
// tool and path keys directly.
func extractFromLog(result any) ([]candidate, bool) {
	entries, ok := result.([]any)
	if !ok {
		return nil, false
	}
	var candidates []candidate
	found := false
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		tool, _ := m["tool"].(string)
		if tool == "" {
			continue
		}
		found = true
		args := make(map[string]any, len(m))
		for k, v := range m {
			if k == "tool" {
				continue
			}
			args[k] = v
		}
		candidates = append(candidates, candidate{tool: tool, args: args})
	}
	return candidates, found
}

var fileBlockPattern = regexp.MustCompile(
	"(?mi)^(?:#+\\s*)?(?:create|write)\\s+file:?\\s+`?([^\\s`]+)`?\\s*\\n```[a-zA-Z0-9]*\\n((?s:.*?))```",
)

// extractFromText scans a free-text response for recognizable file
// operation markers followed by fenced content blocks.
func extractFromText(result any) ([]candidate, bool) {
	var text string
	switch v := result.(type) {
	case string:
		text = v
	case model.Message:
		text = v.ContentText()
	case *model.ChatResponse:
		if msg, ok := v.FirstMessage(); ok {
			text = msg.ContentText()
		}
	default:
		return nil, false
	}
	if strings.TrimSpace(text) == "" {
		return nil, false
	}

	matches := fileBlockPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, false
	}
	var candidates []candidate
	for _, match := range matches {
		candidates = append(candidates, candidate{
			tool: "write_file",
			args: map[string]any{"path": match[1], "content": match[2]},
		})
	}
	return candidates, true
}

// Wrapper keys commonly used by invocation backends to nest the real
// payload.
var wrapperKeys = []string{"output", "result", "data", "response"}

func extractFromWrapper(result any) ([]candidate, bool) {
	m, ok := result.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, key := range wrapperKeys {
		inner, ok := m[key]
		if !ok || inner == nil {
			continue
		}
		for _, fn := range []func(any) ([]candidate, bool){extractFromMessages, extractFromLog, extractFromText} {
			if candidates, found := fn(inner); found {
				return candidates, true
			}
		}
	}
	return nil, false
}
