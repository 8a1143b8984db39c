package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cladecall/internal/assign"
	"cladecall/internal/xval"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string) Run {
	return Run{
		ID:           id,
		CreatedAt:    time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		TreePath:     "core.nwk",
		MetadataPath: "meta.csv",
		MinSupport:   10,
		MinProp:      0.9,
		TieBreak:     string(assign.TieBreakNone),
		Summary: assign.Summary{
			Samples:            3,
			Joined:             3,
			OriginallyLabelled: 2,
			Inferred:           1,
		},
	}
}

func TestWriteRun_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID := uuid.Must(uuid.NewV7()).String()
	assignments := map[string]assign.Assignment{
		"iso1": {
			Sample: "iso1", OriginalLabel: "IC2", FinalLabel: "IC2",
			HasMetrics: true, SupportN: 1, MajorityN: 1, SupportProp: 1, CladeSize: 1,
		},
		"iso2": {
			Sample: "iso2", OriginalLabel: assign.Unassigned, FinalLabel: "IC2",
			Resolved: true, HasMetrics: true,
			SupportN: 10, MajorityN: 10, SupportProp: 1, CladeSize: 11,
		},
		"iso3": {
			Sample: "iso3", OriginalLabel: assign.Unassigned, FinalLabel: assign.Unassigned,
		},
	}
	exc := assign.Exceptions{MetadataOnly: []string{"ghost"}, TreeOnly: []string{"orphan"}}
	conflicts := []xval.Conflict{
		{Scheme: "Pasteur", Sample: "iso1", Code: "131", Expected: "IC7", Resolved: "IC2"},
	}

	require.NoError(t, s.WriteRun(ctx, testRun(runID), assignments, exc, conflicts))

	run, err := s.ReadRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 10, run.MinSupport)
	assert.Equal(t, 1, run.Summary.Inferred)
	assert.True(t, run.CreatedAt.Equal(testRun(runID).CreatedAt))

	got, err := s.ReadAssignments(ctx, runID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "iso1", got[0].Sample)
	assert.True(t, got[0].HasMetrics)
	assert.Equal(t, 11, got[1].CladeSize)
	assert.False(t, got[2].HasMetrics, "unresolved metrics come back as NULL")

	gotExc, err := s.ReadExceptions(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, exc, gotExc)

	gotConflicts, err := s.ReadConflicts(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, conflicts, gotConflicts)
}

func TestWriteRun_DuplicateRunIDFails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, testRun("run-1"), nil, assign.Exceptions{}, nil))
	err := s.WriteRun(ctx, testRun("run-1"), nil, assign.Exceptions{}, nil)
	require.Error(t, err)
}

func TestLatestAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := testRun("run-old")
	newer := testRun("run-new")
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	require.NoError(t, s.WriteRun(ctx, older, nil, assign.Exceptions{}, nil))
	require.NoError(t, s.WriteRun(ctx, newer, nil, assign.Exceptions{}, nil))

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-new", latest.ID)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].ID)
}

func TestReadRun_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.ReadRun(context.Background(), "nope")
	require.ErrorIs(t, err, ErrRunNotFound)

	_, err = s.LatestRun(context.Background())
	require.ErrorIs(t, err, ErrRunNotFound)
}
