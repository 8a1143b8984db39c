package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidInputs(t *testing.T) {
	dir := t.TempDir()
	treePath, metaPath := writeTestInputs(t, dir)

	stdout, err := execute(t, "validate", "--tree", treePath, "--metadata", metaPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Inputs valid: 14 tips, 14 metadata rows")
}

func TestValidate_ReportsExceptions(t *testing.T) {
	dir := t.TempDir()
	treePath, _ := writeTestInputs(t, dir)
	metaPath := filepath.Join(dir, "partial.csv")
	require.NoError(t, os.WriteFile(metaPath, []byte(
		"sample_id,IC\nl1,IC2\nghost,IC5\n"), 0o644))

	stdout, err := execute(t, "validate", "--tree", treePath, "--metadata", metaPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Exceptions: 1 metadata-only, 13 tree-only")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	dir := t.TempDir()
	treePath, metaPath := writeTestInputs(t, dir)

	testCases := []struct {
		name string
		args []string
		want string
	}{
		{
			"out-of-range thresholds",
			[]string{"--min-support", "0", "--min-prop", "1.2"},
			"E201",
		},
		{
			"missing label column",
			[]string{"--ic-col", "Lineage"},
			"missing required column",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"validate", "--tree", treePath, "--metadata", metaPath}, tc.args...)
			stdout, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, stdout, "Validation failed:")
			assert.Contains(t, stdout, tc.want)
		})
	}
}

func TestValidate_BothThresholdErrorsCollected(t *testing.T) {
	dir := t.TempDir()
	treePath, metaPath := writeTestInputs(t, dir)

	stdout, err := execute(t, "validate",
		"--tree", treePath, "--metadata", metaPath,
		"--min-support", "-1", "--min-prop", "2")
	require.Error(t, err)
	assert.Contains(t, stdout, "E201")
	assert.Contains(t, stdout, "E202")
}

func TestValidate_MalformedTreeIsAProblemNotACrash(t *testing.T) {
	dir := t.TempDir()
	_, metaPath := writeTestInputs(t, dir)
	badTree := filepath.Join(dir, "bad.nwk")
	require.NoError(t, os.WriteFile(badTree, []byte("((a,b),c"), 0o644))

	stdout, err := execute(t, "validate", "--tree", badTree, "--metadata", metaPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Validation failed:")
}

func TestValidate_MissingFileIsCommandError(t *testing.T) {
	dir := t.TempDir()
	_, metaPath := writeTestInputs(t, dir)

	_, err := execute(t, "validate", "--tree", filepath.Join(dir, "nope.nwk"), "--metadata", metaPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
