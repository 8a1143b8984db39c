package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cladecall/internal/assign"
	"cladecall/internal/xval"
)

// ErrRunNotFound is returned when the requested run id does not exist.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `
	id, created_at, tree_path, metadata_path,
	min_support, min_prop, force_overwrite, tie_break,
	samples, joined, originally_labelled, inferred, remaining_ua, overwritten`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var run Run
	var createdAt string
	err := row.Scan(
		&run.ID, &createdAt, &run.TreePath, &run.MetadataPath,
		&run.MinSupport, &run.MinProp, &run.ForceOverwrite, &run.TieBreak,
		&run.Summary.Samples, &run.Summary.Joined,
		&run.Summary.OriginallyLabelled, &run.Summary.Inferred,
		&run.Summary.RemainingUnassigned, &run.Summary.Overwritten,
	)
	if err != nil {
		return Run{}, err
	}
	run.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse created_at: %w", err)
	}
	return run, nil
}

// ReadRun fetches one run by id.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT"+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// LatestRun fetches the most recently archived run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT"+runColumns+" FROM runs ORDER BY created_at DESC, id DESC LIMIT 1")
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: archive is empty", ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns all archived runs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT"+runColumns+" FROM runs ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ReadAssignments returns a run's per-sample assignments in sample order.
func (s *Store) ReadAssignments(ctx context.Context, runID string) ([]assign.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sample_id, original_label, final_label,
		       support_n, majority_n, support_prop, clade_size
		FROM assignments WHERE run_id = ? ORDER BY sample_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read assignments %s: %w", runID, err)
	}
	defer rows.Close()

	var out []assign.Assignment
	for rows.Next() {
		var a assign.Assignment
		var supportN, majorityN, cladeSize sql.NullInt64
		var supportProp sql.NullFloat64
		if err := rows.Scan(&a.Sample, &a.OriginalLabel, &a.FinalLabel,
			&supportN, &majorityN, &supportProp, &cladeSize); err != nil {
			return nil, fmt.Errorf("read assignments %s: %w", runID, err)
		}
		if supportN.Valid {
			a.HasMetrics = true
			a.SupportN = int(supportN.Int64)
			a.MajorityN = int(majorityN.Int64)
			a.SupportProp = supportProp.Float64
			a.CladeSize = int(cladeSize.Int64)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read assignments %s: %w", runID, err)
	}
	return out, nil
}

// ReadExceptions returns a run's exception lists.
func (s *Store) ReadExceptions(ctx context.Context, runID string) (assign.Exceptions, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, sample_id FROM exceptions
		WHERE run_id = ? ORDER BY kind, sample_id
	`, runID)
	if err != nil {
		return assign.Exceptions{}, fmt.Errorf("read exceptions %s: %w", runID, err)
	}
	defer rows.Close()

	var exc assign.Exceptions
	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			return assign.Exceptions{}, fmt.Errorf("read exceptions %s: %w", runID, err)
		}
		switch kind {
		case "metadata_only":
			exc.MetadataOnly = append(exc.MetadataOnly, id)
		case "tree_only":
			exc.TreeOnly = append(exc.TreeOnly, id)
		}
	}
	if err := rows.Err(); err != nil {
		return assign.Exceptions{}, fmt.Errorf("read exceptions %s: %w", runID, err)
	}
	return exc, nil
}

// ReadConflicts returns a run's cross-validation conflicts.
func (s *Store) ReadConflicts(ctx context.Context, runID string) ([]xval.Conflict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scheme, sample_id, st_code, expected, resolved
		FROM conflicts WHERE run_id = ? ORDER BY scheme, sample_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read conflicts %s: %w", runID, err)
	}
	defer rows.Close()

	var out []xval.Conflict
	for rows.Next() {
		var c xval.Conflict
		if err := rows.Scan(&c.Scheme, &c.Sample, &c.Code, &c.Expected, &c.Resolved); err != nil {
			return nil, fmt.Errorf("read conflicts %s: %w", runID, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read conflicts %s: %w", runID, err)
	}
	return out, nil
}
