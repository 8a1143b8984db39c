package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTree = "((l1,l2,l3,l4,l5,l6,l7,l8,l9,l10,ua1)cladeA,(o1,o2,ua2)cladeB)root;"

const testMetadata = `sample_id,IC,PasteurST,Region
l1,IC2,2,EU
l2,IC2,2,EU
l3,IC2,2,EU
l4,IC2,2,EU
l5,IC2,2,EU
l6,IC2,2,EU
l7,IC2,2,AS
l8,IC2,2,AS
l9,IC2,2,AS
l10,IC2,2,AS
ua1,UA,2,EU
o1,IC7,25,NA
o2,IC7,2,NA
ua2,UA,1,NA
`

// writeTestInputs writes the standard tree and metadata fixture into dir.
func writeTestInputs(t *testing.T, dir string) (treePath, metaPath string) {
	t.Helper()
	treePath = filepath.Join(dir, "core.nwk")
	metaPath = filepath.Join(dir, "meta.csv")
	require.NoError(t, os.WriteFile(treePath, []byte(testTree), 0o644))
	require.NoError(t, os.WriteFile(metaPath, []byte(testMetadata), 0o644))
	return treePath, metaPath
}

// execute runs the CLI with a fresh command tree and captures stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestAssign_GoldenEnrichedTable(t *testing.T) {
	dir := t.TempDir()
	treePath, metaPath := writeTestInputs(t, dir)
	outPath := filepath.Join(dir, "enriched.csv")

	_, err := execute(t,
		"assign",
		"--tree", treePath,
		"--metadata", metaPath,
		"--output", outPath,
		"--st-col", "Pasteur=PasteurST",
		"--group-col", "Region",
	)
	require.NoError(t, err)

	enriched, err := os.ReadFile(outPath)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "enriched_basic", enriched)
}

func TestAssign_RoundTripByteIdentical(t *testing.T) {
	dir := t.TempDir()
	treePath, metaPath := writeTestInputs(t, dir)

	firstOut := filepath.Join(dir, "first.csv")
	secondOut := filepath.Join(dir, "second.csv")

	for _, out := range []string{firstOut, secondOut} {
		_, err := execute(t,
			"assign",
			"--tree", treePath,
			"--metadata", metaPath,
			"--output", out,
			"--st-col", "Pasteur=PasteurST",
			"--workers", "4",
		)
		require.NoError(t, err)
	}

	first, err := os.ReadFile(firstOut)
	require.NoError(t, err)
	second, err := os.ReadFile(secondOut)
	require.NoError(t, err)
	assert.Equal(t, first, second, "identical inputs must produce byte-identical tables")
}

func TestAssign_ContingencyTables(t *testing.T) {
	dir := t.TempDir()
	treePath, metaPath := writeTestInputs(t, dir)
	xtabDir := filepath.Join(dir, "xtabs")

	_, err := execute(t,
		"assign",
		"--tree", treePath,
		"--metadata", metaPath,
		"--output", filepath.Join(dir, "enriched.csv"),
		"--st-col", "Pasteur=PasteurST",
		"--group-col", "Region",
		"--xtab-dir", xtabDir,
	)
	require.NoError(t, err)

	region, err := os.ReadFile(filepath.Join(xtabDir, "xtab_Region.csv"))
	require.NoError(t, err)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "xtab_region", region)

	pasteur, err := os.ReadFile(filepath.Join(xtabDir, "xtab_PasteurST.csv"))
	require.NoError(t, err)
	g.Assert(t, "xtab_pasteur", pasteur)
}

func TestAssign_JSONReport(t *testing.T) {
	dir := t.TempDir()
	treePath, metaPath := writeTestInputs(t, dir)

	stdout, err := execute(t,
		"--format", "json",
		"assign",
		"--tree", treePath,
		"--metadata", metaPath,
		"--output", filepath.Join(dir, "enriched.csv"),
		"--st-col", "Pasteur=PasteurST",
	)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Summary struct {
				Samples  int `json:"samples"`
				Inferred int `json:"inferred"`
			} `json:"summary"`
			Conflicts []struct {
				Sample string `json:"sample"`
			} `json:"conflicts"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 14, resp.Data.Summary.Samples)
	assert.Equal(t, 1, resp.Data.Summary.Inferred)
	require.Len(t, resp.Data.Conflicts, 1)
	assert.Equal(t, "o2", resp.Data.Conflicts[0].Sample)
}

func TestAssign_ArchiveAndReport(t *testing.T) {
	dir := t.TempDir()
	treePath, metaPath := writeTestInputs(t, dir)
	dbPath := filepath.Join(dir, "runs.db")

	stdout, err := execute(t,
		"assign",
		"--tree", treePath,
		"--metadata", metaPath,
		"--output", filepath.Join(dir, "enriched.csv"),
		"--st-col", "Pasteur=PasteurST",
		"--db", dbPath,
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Archived as run ")

	reportOut, err := execute(t, "report", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, reportOut, "Run ")
	assert.Contains(t, reportOut, "min_support=10")
	assert.Contains(t, reportOut, "o2 Pasteur ST2 expects IC2, resolved IC7")

	listOut, err := execute(t, "report", "--db", dbPath, "--list")
	require.NoError(t, err)
	assert.Contains(t, listOut, "inferred=1")
}

func TestAssign_ConfigFileDefaultsAndFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	treePath, metaPath := writeTestInputs(t, dir)
	cfgPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"min_support: 3\nmin_prop: 0.8\nschemes:\n  - name: Pasteur\n    column: PasteurST\n    builtin: true\n"), 0o644))

	// Config lowers the thresholds enough for ua2 to resolve at the root:
	// support 12, majority 10, proportion 10/12.
	stdout, err := execute(t,
		"--format", "json",
		"assign",
		"--tree", treePath,
		"--metadata", metaPath,
		"--output", filepath.Join(dir, "enriched.csv"),
		"--config", cfgPath,
	)
	require.NoError(t, err)
	var resp struct {
		Data struct {
			Summary struct {
				Inferred int `json:"inferred"`
			} `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, 2, resp.Data.Summary.Inferred)

	// An explicit flag beats the config file value.
	stdout, err = execute(t,
		"--format", "json",
		"assign",
		"--tree", treePath,
		"--metadata", metaPath,
		"--output", filepath.Join(dir, "enriched2.csv"),
		"--config", cfgPath,
		"--min-prop", "0.9",
	)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, 1, resp.Data.Summary.Inferred, "ua2 must not qualify at min_prop 0.9")
}

func TestAssign_Failures(t *testing.T) {
	dir := t.TempDir()
	treePath, metaPath := writeTestInputs(t, dir)

	testCases := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{
			"missing tree file",
			[]string{"assign", "--tree", filepath.Join(dir, "nope.nwk"), "--metadata", metaPath},
			ExitCommandError,
		},
		{
			"bad min-prop",
			[]string{"assign", "--tree", treePath, "--metadata", metaPath, "--min-prop", "1.5"},
			ExitFailure,
		},
		{
			"missing column",
			[]string{"assign", "--tree", treePath, "--metadata", metaPath, "--ic-col", "Lineage"},
			ExitFailure,
		},
		{
			"unknown scheme without anchors",
			[]string{"assign", "--tree", treePath, "--metadata", metaPath, "--st-col", "Oxford=PasteurST"},
			ExitCommandError,
		},
		{
			"malformed st-col",
			[]string{"assign", "--tree", treePath, "--metadata", metaPath, "--st-col", "PasteurST"},
			ExitCommandError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			args := append(tc.args, "--output", filepath.Join(dir, "out.csv"))
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, tc.wantCode, GetExitCode(err))
		})
	}
}

func TestAssign_MalformedTreeIsFatal(t *testing.T) {
	dir := t.TempDir()
	_, metaPath := writeTestInputs(t, dir)
	badTree := filepath.Join(dir, "bad.nwk")
	require.NoError(t, os.WriteFile(badTree, []byte("((l1,l2"), 0o644))

	_, err := execute(t, "assign", "--tree", badTree, "--metadata", metaPath,
		"--output", filepath.Join(dir, "out.csv"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "malformed tree")
}

func TestAssign_DuplicateTipsFatal(t *testing.T) {
	dir := t.TempDir()
	_, metaPath := writeTestInputs(t, dir)
	dupTree := filepath.Join(dir, "dup.nwk")
	require.NoError(t, os.WriteFile(dupTree, []byte("((l1,l1),ua1);"), 0o644))

	_, err := execute(t, "assign", "--tree", dupTree, "--metadata", metaPath,
		"--output", filepath.Join(dir, "out.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate tip identifier")
}

func TestAssign_ForceOverwriteLogsAndReplaces(t *testing.T) {
	dir := t.TempDir()
	// o-tips sit inside a strongly IC2 clade but are labelled IC7.
	tree := "(l1,l2,l3,l4,l5,l6,l7,l8,l9,l10,bad1)cladeA;"
	var meta strings.Builder
	meta.WriteString("sample_id,IC\n")
	for _, row := range []string{"l1", "l2", "l3", "l4", "l5", "l6", "l7", "l8", "l9", "l10"} {
		meta.WriteString(row + ",IC2\n")
	}
	meta.WriteString("bad1,IC7\n")

	treePath := filepath.Join(dir, "t.nwk")
	metaPath := filepath.Join(dir, "m.csv")
	require.NoError(t, os.WriteFile(treePath, []byte(tree), 0o644))
	require.NoError(t, os.WriteFile(metaPath, []byte(meta.String()), 0o644))

	stdout, err := execute(t,
		"--format", "json",
		"assign",
		"--tree", treePath,
		"--metadata", metaPath,
		"--output", filepath.Join(dir, "out.csv"),
		"--force-overwrite",
	)
	require.NoError(t, err)

	var resp struct {
		Data struct {
			Summary struct {
				Overwritten int `json:"overwritten"`
			} `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, 1, resp.Data.Summary.Overwritten)
}
