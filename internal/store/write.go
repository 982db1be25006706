package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/formdeps/internal/ir"
)

// TestRun is one dependency test-mode report as stored in the log.
type TestRun struct {
	ID            string          `json:"id"`
	DependencyID  string          `json:"dependencyId"`
	Result        ir.TestResult   `json:"result"`
	ConditionsMet bool            `json:"conditionsMet"`
	TestedAt      time.Time       `json:"testedAt"`
	Diff          []ir.Mutation   `json:"diff"`
	Diagnostics   []ir.Diagnostic `json:"diagnostics,omitempty"`
}

type testRunReport struct {
	Diff        []ir.Mutation   `json:"diff"`
	Diagnostics []ir.Diagnostic `json:"diagnostics,omitempty"`
}

// WritePass records a pass and its mutations, events and diagnostics in
// one transaction. Uses ON CONFLICT(id) DO NOTHING for idempotency: writing
// the same pass id twice keeps the first copy and its children untouched.
func (s *Store) WritePass(ctx context.Context, res ir.Result) error {
	if res.PassID == "" {
		return errors.New("write pass: pass id is required")
	}

	visited := res.Visited
	if visited == nil {
		visited = []string{}
	}
	visitedJSON, err := marshalPayload(visited)
	if err != nil {
		return fmt.Errorf("write pass: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write pass: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO passes
		(id, seq, trigger_field, trigger_kind, trigger_name, snapshot_hash, levels, visited, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		res.PassID,
		res.Seq,
		res.Trigger.FieldID,
		string(res.Trigger.Kind),
		res.Trigger.Name,
		res.SnapshotHash,
		res.Levels,
		visitedJSON,
		ir.EngineVersion,
		ir.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write pass: insert: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write pass: rows affected: %w", err)
	}
	if inserted == 0 {
		return tx.Commit()
	}

	if err := writeMutations(ctx, tx, res.PassID, res.Mutations); err != nil {
		return fmt.Errorf("write pass %s: %w", res.PassID, err)
	}
	if err := writeEvents(ctx, tx, res.PassID, res.Events); err != nil {
		return fmt.Errorf("write pass %s: %w", res.PassID, err)
	}
	if err := writeDiagnostics(ctx, tx, res.PassID, res.Diagnostics); err != nil {
		return fmt.Errorf("write pass %s: %w", res.PassID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write pass: commit: %w", err)
	}
	return nil
}

func writeMutations(ctx context.Context, tx *sql.Tx, passID string, muts []ir.Mutation) error {
	for i, m := range muts {
		payload, err := marshalPayload(m)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mutations (pass_id, ordinal, dependency_id, target_field, kind, payload)
			VALUES (?, ?, ?, ?, ?, ?)
		`, passID, i, m.DependencyID, m.TargetFieldID, string(m.Kind), payload); err != nil {
			return fmt.Errorf("insert mutation %d: %w", i, err)
		}
	}
	return nil
}

func writeEvents(ctx context.Context, tx *sql.Tx, passID string, events []ir.Event) error {
	for i, ev := range events {
		payload, err := marshalPayload(ev)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (pass_id, ordinal, name, dependency_id, payload)
			VALUES (?, ?, ?, ?, ?)
		`, passID, i, ev.Name, ev.DependencyID, payload); err != nil {
			return fmt.Errorf("insert event %d: %w", i, err)
		}
	}
	return nil
}

func writeDiagnostics(ctx context.Context, tx *sql.Tx, passID string, diags []ir.Diagnostic) error {
	for i, d := range diags {
		payload, err := marshalPayload(d)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO diagnostics (pass_id, ordinal, code, dependency_id, payload)
			VALUES (?, ?, ?, ?, ?)
		`, passID, i, string(d.Code), d.DependencyID, payload); err != nil {
			return fmt.Errorf("insert diagnostic %d: %w", i, err)
		}
	}
	return nil
}

// WriteTestRun records a test-mode report and returns its id. A missing
// id is filled with a UUIDv7 so ids sort by creation time.
func (s *Store) WriteTestRun(ctx context.Context, run TestRun) (string, error) {
	if run.DependencyID == "" {
		return "", errors.New("write test run: dependency id is required")
	}
	if run.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("write test run: generate id: %w", err)
		}
		run.ID = id.String()
	}

	diff := run.Diff
	if diff == nil {
		diff = []ir.Mutation{}
	}
	report, err := marshalPayload(testRunReport{Diff: diff, Diagnostics: run.Diagnostics})
	if err != nil {
		return "", fmt.Errorf("write test run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO test_runs (id, dependency_id, result, conditions_met, tested_at, report)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.DependencyID,
		string(run.Result),
		run.ConditionsMet,
		run.TestedAt.UTC().Format(time.RFC3339Nano),
		report,
	)
	if err != nil {
		return "", fmt.Errorf("write test run: %w", err)
	}
	return run.ID, nil
}
