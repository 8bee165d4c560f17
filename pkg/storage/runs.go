package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Run is one persisted workflow run.
type Run struct {
	ID                string
	Objective         string
	CodebaseRoot      string
	Phase             string
	GuardrailMode     string
	StructureScore    int
	StructureDecision string
	PatchesApplied    int
	PatchesSkipped    int
	StartedAt         time.Time
	FinishedAt        *time.Time
}

// ScopeDenial is one persisted denied-path record.
type ScopeDenial struct {
	RunID     string
	Path      string
	Stage     string // "output_scan" or "tool_call"
	Tool      string
	Soft      bool
	CreatedAt time.Time
}

// CreateRun inserts a new run row.
func (s *Store) CreateRun(run Run) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (id, objective, codebase_root, phase, guardrail_mode, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Objective, run.CodebaseRoot, run.Phase, run.GuardrailMode, startedAt)
	return err
}

// UpdateRunPhase records a phase transition.
func (s *Store) UpdateRunPhase(runID, phase string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`UPDATE runs SET phase = ? WHERE id = ?`, phase, runID)
	return err
}

// FinishRun records terminal run statistics.
func (s *Store) FinishRun(runID, phase, decision string, score, applied, skipped int) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`
		UPDATE runs
		SET phase = ?, structure_decision = ?, structure_score = ?,
		    patches_applied = ?, patches_skipped = ?, finished_at = ?
		WHERE id = ?
	`, phase, decision, score, applied, skipped, time.Now().UTC(), runID)
	return err
}

// GetRun loads one run by ID.
func (s *Store) GetRun(runID string) (*Run, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	row := s.db.QueryRow(`
		SELECT id, objective, codebase_root, phase, guardrail_mode,
		       COALESCE(structure_score, 0), COALESCE(structure_decision, ''),
		       patches_applied, patches_skipped, started_at, finished_at
		FROM runs WHERE id = ?
	`, runID)

	var run Run
	var finishedAt sql.NullTime
	err := row.Scan(&run.ID, &run.Objective, &run.CodebaseRoot, &run.Phase,
		&run.GuardrailMode, &run.StructureScore, &run.StructureDecision,
		&run.PatchesApplied, &run.PatchesSkipped, &run.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, objective, codebase_root, phase, guardrail_mode,
		       COALESCE(structure_score, 0), COALESCE(structure_decision, ''),
		       patches_applied, patches_skipped, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var finishedAt sql.NullTime
		if err := rows.Scan(&run.ID, &run.Objective, &run.CodebaseRoot, &run.Phase,
			&run.GuardrailMode, &run.StructureScore, &run.StructureDecision,
			&run.PatchesApplied, &run.PatchesSkipped, &run.StartedAt, &finishedAt); err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			run.FinishedAt = &finishedAt.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordScopeDenial stores one denied path for operator diagnostics.
func (s *Store) RecordScopeDenial(denial ScopeDenial) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	createdAt := denial.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO scope_denials (run_id, path, stage, tool, soft, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, denial.RunID, denial.Path, denial.Stage, denial.Tool, denial.Soft, createdAt)
	return err
}

// ListScopeDenials returns the denials recorded for a run.
func (s *Store) ListScopeDenials(runID string) ([]ScopeDenial, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	rows, err := s.db.Query(`
		SELECT run_id, path, stage, COALESCE(tool, ''), soft, created_at
		FROM scope_denials WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var denials []ScopeDenial
	for rows.Next() {
		var d ScopeDenial
		if err := rows.Scan(&d.RunID, &d.Path, &d.Stage, &d.Tool, &d.Soft, &d.CreatedAt); err != nil {
			return nil, err
		}
		denials = append(denials, d)
	}
	return denials, rows.Err()
}
