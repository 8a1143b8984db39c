package store

import (
	"context"
	"fmt"
	"time"

	"cladecall/internal/assign"
	"cladecall/internal/xval"
)

// Run describes one archived assignment run.
type Run struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	TreePath       string    `json:"tree_path"`
	MetadataPath   string    `json:"metadata_path"`
	MinSupport     int       `json:"min_support"`
	MinProp        float64   `json:"min_prop"`
	ForceOverwrite bool      `json:"force_overwrite"`
	TieBreak       string    `json:"tie_break"`

	Summary assign.Summary `json:"summary"`
}

// WriteRun archives a complete run atomically: run row, assignments,
// exception lists and conflicts in a single transaction. Either everything
// is written or nothing is.
func (s *Store) WriteRun(ctx context.Context, run Run, assignments map[string]assign.Assignment, exc assign.Exceptions, conflicts []xval.Conflict) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run %s: %w", run.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, created_at, tree_path, metadata_path,
		 min_support, min_prop, force_overwrite, tie_break,
		 samples, joined, originally_labelled, inferred, remaining_ua, overwritten)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.CreatedAt.UTC().Format(time.RFC3339),
		run.TreePath,
		run.MetadataPath,
		run.MinSupport,
		run.MinProp,
		run.ForceOverwrite,
		run.TieBreak,
		run.Summary.Samples,
		run.Summary.Joined,
		run.Summary.OriginallyLabelled,
		run.Summary.Inferred,
		run.Summary.RemainingUnassigned,
		run.Summary.Overwritten,
	)
	if err != nil {
		return fmt.Errorf("write run %s: %w", run.ID, err)
	}

	assignStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO assignments
		(run_id, sample_id, original_label, final_label,
		 support_n, majority_n, support_prop, clade_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write run %s: %w", run.ID, err)
	}
	defer assignStmt.Close()

	for _, a := range assignments {
		// Metric columns are NULL for samples without provenance.
		var supportN, majorityN, cladeSize any
		var supportProp any
		if a.HasMetrics {
			supportN, majorityN = a.SupportN, a.MajorityN
			supportProp, cladeSize = a.SupportProp, a.CladeSize
		}
		if _, err := assignStmt.ExecContext(ctx,
			run.ID, a.Sample, a.OriginalLabel, a.FinalLabel,
			supportN, majorityN, supportProp, cladeSize,
		); err != nil {
			return fmt.Errorf("write assignment %s/%s: %w", run.ID, a.Sample, err)
		}
	}

	excStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO exceptions (run_id, kind, sample_id) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write run %s: %w", run.ID, err)
	}
	defer excStmt.Close()

	for _, id := range exc.MetadataOnly {
		if _, err := excStmt.ExecContext(ctx, run.ID, "metadata_only", id); err != nil {
			return fmt.Errorf("write exception %s/%s: %w", run.ID, id, err)
		}
	}
	for _, id := range exc.TreeOnly {
		if _, err := excStmt.ExecContext(ctx, run.ID, "tree_only", id); err != nil {
			return fmt.Errorf("write exception %s/%s: %w", run.ID, id, err)
		}
	}

	for _, c := range conflicts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conflicts (run_id, scheme, sample_id, st_code, expected, resolved)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, c.Scheme, c.Sample, c.Code, c.Expected, c.Resolved); err != nil {
			return fmt.Errorf("write conflict %s/%s: %w", run.ID, c.Sample, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run %s: %w", run.ID, err)
	}
	return nil
}
