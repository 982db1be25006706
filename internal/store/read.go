package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/formdeps/internal/ir"
)

// PassQuery filters ReadPasses. Zero values match everything.
type PassQuery struct {
	// FieldID keeps passes triggered on this field.
	FieldID string

	// Code keeps passes that reported a diagnostic with this code.
	Code ir.DiagnosticCode

	// Limit keeps only the most recent Limit passes.
	Limit int
}

// ReadPasses returns logged passes with their children, ordered by
// seq ASC, id ASC. With a limit, the newest passes are kept and still
// returned oldest first.
//
// Returns an empty slice (not nil) if no passes match.
func (s *Store) ReadPasses(ctx context.Context, q PassQuery) ([]ir.Result, error) {
	var (
		where []string
		args  []any
	)
	if q.FieldID != "" {
		where = append(where, "trigger_field = ?")
		args = append(args, q.FieldID)
	}
	if q.Code != "" {
		where = append(where, "id IN (SELECT pass_id FROM diagnostics WHERE code = ?)")
		args = append(args, string(q.Code))
	}

	query := `SELECT id, seq, trigger_field, trigger_kind, trigger_name, snapshot_hash, levels, visited FROM passes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC, id COLLATE BINARY DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}
	query = `SELECT * FROM (` + query + `) ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}

	results := []ir.Result{}
	for rows.Next() {
		res, err := scanPass(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	rows.Close()

	// Children are loaded after the pass cursor is closed; the store uses
	// a single connection.
	for i := range results {
		if err := s.readChildren(ctx, &results[i]); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// ReadPass retrieves a single pass by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadPass(ctx context.Context, id string) (ir.Result, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, trigger_field, trigger_kind, trigger_name, snapshot_hash, levels, visited
		FROM passes
		WHERE id = ?
	`, id)

	res, err := scanPass(row)
	if err != nil {
		return ir.Result{}, err
	}
	if err := s.readChildren(ctx, &res); err != nil {
		return ir.Result{}, err
	}
	return res, nil
}

// MaxSeq returns the highest logged seq, or 0 for an empty log. The engine
// clock resumes from it so seq keeps increasing across runs.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM passes`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq, nil
}

// ReadTestRuns returns test runs, newest first. An empty dependencyID
// matches every dependency; limit <= 0 means no limit.
func (s *Store) ReadTestRuns(ctx context.Context, dependencyID string, limit int) ([]TestRun, error) {
	query := `SELECT id, dependency_id, result, conditions_met, tested_at, report FROM test_runs`
	var args []any
	if dependencyID != "" {
		query += " WHERE dependency_id = ?"
		args = append(args, dependencyID)
	}
	query += " ORDER BY tested_at DESC, id COLLATE BINARY DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query test runs: %w", err)
	}
	defer rows.Close()

	runs := []TestRun{}
	for rows.Next() {
		var (
			run      TestRun
			result   string
			testedAt string
			report   string
		)
		if err := rows.Scan(&run.ID, &run.DependencyID, &result, &run.ConditionsMet, &testedAt, &report); err != nil {
			return nil, fmt.Errorf("scan test run: %w", err)
		}
		run.Result = ir.TestResult(result)
		if run.TestedAt, err = time.Parse(time.RFC3339Nano, testedAt); err != nil {
			return nil, fmt.Errorf("parse tested_at for %s: %w", run.ID, err)
		}
		var rep testRunReport
		if err := json.Unmarshal([]byte(report), &rep); err != nil {
			return nil, fmt.Errorf("unmarshal test run %s: %w", run.ID, err)
		}
		run.Diff = rep.Diff
		for i := range run.Diff {
			run.Diff[i].Value = ir.Normalize(run.Diff[i].Value)
		}
		run.Diagnostics = rep.Diagnostics
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate test runs: %w", err)
	}
	return runs, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPass(sc scanner) (ir.Result, error) {
	var (
		res     ir.Result
		kind    string
		visited string
	)
	err := sc.Scan(
		&res.PassID,
		&res.Seq,
		&res.Trigger.FieldID,
		&kind,
		&res.Trigger.Name,
		&res.SnapshotHash,
		&res.Levels,
		&visited,
	)
	if err == sql.ErrNoRows {
		return ir.Result{}, err
	}
	if err != nil {
		return ir.Result{}, fmt.Errorf("scan pass: %w", err)
	}
	res.Trigger.Kind = ir.TriggerKind(kind)

	res.Visited, err = unmarshalVisited(visited)
	if err != nil {
		return ir.Result{}, fmt.Errorf("pass %s: %w", res.PassID, err)
	}
	return res, nil
}

func (s *Store) readChildren(ctx context.Context, res *ir.Result) error {
	res.Mutations = []ir.Mutation{}
	err := s.eachPayload(ctx, "mutations", res.PassID, func(p string) error {
		m, err := unmarshalMutation(p)
		if err == nil {
			res.Mutations = append(res.Mutations, m)
		}
		return err
	})
	if err != nil {
		return err
	}

	err = s.eachPayload(ctx, "events", res.PassID, func(p string) error {
		ev, err := unmarshalEvent(p)
		if err == nil {
			res.Events = append(res.Events, ev)
		}
		return err
	})
	if err != nil {
		return err
	}

	return s.eachPayload(ctx, "diagnostics", res.PassID, func(p string) error {
		d, err := unmarshalDiagnostic(p)
		if err == nil {
			res.Diagnostics = append(res.Diagnostics, d)
		}
		return err
	})
}

// eachPayload calls fn for every payload of passID in table, in ordinal
// order. table is one of the fixed child table names.
func (s *Store) eachPayload(ctx context.Context, table, passID string, fn func(string) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM `+table+` WHERE pass_id = ? ORDER BY ordinal ASC`, passID)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		if err := fn(payload); err != nil {
			return fmt.Errorf("pass %s: %w", passID, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", table, err)
	}
	return nil
}
