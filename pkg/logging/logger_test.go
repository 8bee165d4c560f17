package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		baseDir string
		runID   string
		wantErr bool
	}{
		{
			name:    "valid directory and run ID",
			baseDir: t.TempDir(),
			runID:   "run-123",
			wantErr: false,
		},
		{
			name:    "creates directories if not exist",
			baseDir: filepath.Join(t.TempDir(), "nested", "path"),
			runID:   "run-456",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.baseDir, tt.runID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer logger.Close()

			if logger.runID != tt.runID {
				t.Errorf("runID = %v, want %v", logger.runID, tt.runID)
			}
			if logger.minLevel != LevelInfo {
				t.Errorf("minLevel = %v, want %v", logger.minLevel, LevelInfo)
			}

			runFile := filepath.Join(tt.baseDir, "runs", tt.runID+".jsonl")
			if _, err := os.Stat(runFile); os.IsNotExist(err) {
				t.Errorf("run log file not created")
			}
			errorFile := filepath.Join(tt.baseDir, "errors.jsonl")
			if _, err := os.Stat(errorFile); os.IsNotExist(err) {
				t.Errorf("errors.jsonl not created")
			}
		})
	}
}

func TestLoggerWritesEvents(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "run-events")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.SetPhase("code_synthesis")
	if err := logger.Info(CategoryScope, "denial", "path outside scope", map[string]any{"path": "/etc/passwd"}); err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if err := logger.Error(CategoryWorkflow, "phase_failed", "synthesis blocked", nil); err != nil {
		t.Fatalf("Error() error = %v", err)
	}
	logger.Close()

	data, err := os.ReadFile(filepath.Join(dir, "runs", "run-events.jsonl"))
	if err != nil {
		t.Fatalf("reading run log: %v", err)
	}
	var first Event
	if err := json.Unmarshal([]byte(splitFirstLine(string(data))), &first); err != nil {
		t.Fatalf("unmarshal first event: %v", err)
	}
	if first.RunID != "run-events" {
		t.Errorf("RunID = %q, want run-events", first.RunID)
	}
	if first.Phase != "code_synthesis" {
		t.Errorf("Phase = %q, want code_synthesis", first.Phase)
	}
	if first.Category != CategoryScope {
		t.Errorf("Category = %q, want scope", first.Category)
	}

	// Error events are duplicated into errors.jsonl.
	errData, err := os.ReadFile(filepath.Join(dir, "errors.jsonl"))
	if err != nil {
		t.Fatalf("reading error log: %v", err)
	}
	if len(errData) == 0 {
		t.Error("error log is empty")
	}
}

func TestLoggerRespectsMinLevel(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "run-level")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer logger.Close()

	if err := logger.Debug(CategoryModel, "request", "should be filtered", nil); err != nil {
		t.Fatalf("Debug() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "runs", "run-level.jsonl"))
	if err != nil {
		t.Fatalf("reading run log: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected debug event to be filtered, got %q", string(data))
	}

	logger.SetMinLevel(LevelDebug)
	if err := logger.Debug(CategoryModel, "request", "now visible", nil); err != nil {
		t.Fatalf("Debug() error = %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, "runs", "run-level.jsonl"))
	if len(data) == 0 {
		t.Error("expected debug event after lowering min level")
	}
}

func TestReadRecentEvents(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "run-recent")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		logger.Info(CategoryWorkflow, "phase_started", "phase", map[string]any{"round": i})
	}
	logger.Close()

	events, err := ReadRecentEvents(filepath.Join(dir, "runs", "run-recent.jsonl"), 3)
	if err != nil {
		t.Fatalf("ReadRecentEvents() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
}

func splitFirstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
