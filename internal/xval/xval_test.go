package xval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ConflictFlagging(t *testing.T) {
	scheme := Scheme{
		Name:    "Pasteur",
		Column:  "PasteurST",
		Anchors: AnchorTable{"131": "IC2", "2": "IC2"},
	}

	samples := []string{"s1", "s2", "s3", "s4", "s5"}
	codes := []string{"131", "2", "999", "", "131"}
	resolved := []string{"IC7", "IC2", "IC5", "IC1", "UA"}

	result := Validate(scheme, samples, codes, resolved, "UA")

	// s1: anchored to IC2 but resolved IC7 -> conflict.
	assert.Equal(t, "IC2", result.Expected[0])
	assert.Equal(t, "1", result.Flags[0])

	// s2: anchored and agreeing -> flagged 0.
	assert.Equal(t, "0", result.Flags[1])

	// s3: code has no anchor entry -> undefined expectation, no flag.
	assert.Equal(t, "", result.Expected[2])
	assert.Equal(t, "", result.Flags[2])

	// s4: no code at all.
	assert.Equal(t, "", result.Expected[3])

	// s5: expectation exists but the sample stayed unassigned -> no conflict.
	assert.Equal(t, "IC2", result.Expected[4])
	assert.Equal(t, "", result.Flags[4])

	require.Len(t, result.Conflicts, 1)
	want := Conflict{Scheme: "Pasteur", Sample: "s1", Code: "131", Expected: "IC2", Resolved: "IC7"}
	if diff := cmp.Diff(want, result.Conflicts[0]); diff != "" {
		t.Errorf("conflict mismatch (-want +got):\n%s", diff)
	}
}

func TestExpectedAndConflictColumnNames(t *testing.T) {
	assert.Equal(t, "IC_expected_from_PasteurST", ExpectedColumn("Pasteur"))
	assert.Equal(t, "IC_PasteurST_conflict", ConflictColumn("Pasteur"))
}

func TestBuiltinPasteur(t *testing.T) {
	anchors := BuiltinPasteur()
	assert.Equal(t, "IC2", anchors["2"])
	assert.Equal(t, "IC7", anchors["25"])
	assert.Len(t, anchors, 8)
}

func TestLoadAnchors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anchors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"schemes:\n  Pasteur:\n    \"131\": IC2\n  Oxford:\n    \"218\": IC2\n"), 0o644))

	schemes, err := LoadAnchors(path)
	require.NoError(t, err)
	require.Len(t, schemes, 2)
	assert.Equal(t, "IC2", schemes["Pasteur"]["131"])
}

func TestLoadAnchors_Errors(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		name    string
		content string
	}{
		{"unknown top-level field", "schemes:\n  P:\n    \"1\": IC1\nextra: true\n"},
		{"no schemes", "schemes: {}\n"},
		{"empty scheme", "schemes:\n  P: {}\n"},
		{"not yaml", ":::\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))
			_, err := LoadAnchors(path)
			require.Error(t, err)
		})
	}

	_, err := LoadAnchors(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestCrossTab_FullAndSorted(t *testing.T) {
	categories := []string{"EU", "EU", "NA", "AS", "NA", ""}
	resolved := []string{"IC2", "IC2", "IC7", "IC2", "UA", "IC2"}

	c := CrossTab("Region", categories, resolved)

	assert.Equal(t, []string{"", "AS", "EU", "NA"}, c.Categories)
	assert.Equal(t, []string{"IC2", "IC7", "UA"}, c.Labels)
	assert.Equal(t, 2, c.Count("EU", "IC2"))
	assert.Equal(t, 1, c.Count("NA", "UA"))
	assert.Equal(t, 0, c.Count("AS", "IC7"))

	tbl, err := c.Table()
	require.NoError(t, err)
	assert.Equal(t, []string{"Region", "IC2", "IC7", "UA"}, tbl.Header)
	require.Len(t, tbl.Rows, 4, "every category present, never truncated")
	assert.Equal(t, []string{"EU", "2", "0", "0"}, tbl.Rows[2])

	// Marginals cover every row of the input.
	total := 0
	for _, cat := range c.Categories {
		for _, label := range c.Labels {
			total += c.Count(cat, label)
		}
	}
	assert.Equal(t, len(categories), total)
}
