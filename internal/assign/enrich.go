package assign

import (
	"fmt"
	"strconv"

	"cladecall/internal/phylo"
	"cladecall/internal/table"
)

// Enriched output column names.
const (
	ColConservative = "IC_tree_conservative"
	ColSupportN     = "IC_tree_support_n"
	ColMajorityN    = "IC_tree_majority_n"
	ColSupportProp  = "IC_tree_support_prop"
	ColNodeSize     = "IC_tree_node_size"
)

// Summary aggregates one run for reporting.
type Summary struct {
	Samples             int `json:"samples"`
	Joined              int `json:"joined"`
	OriginallyLabelled  int `json:"originally_labelled"`
	Inferred            int `json:"inferred"`
	RemainingUnassigned int `json:"remaining_unassigned"`
	Overwritten         int `json:"overwritten"`
}

// FormatProp renders a proportion with the shortest exact decimal form, so
// repeated runs produce byte-identical output.
func FormatProp(p float64) string {
	return strconv.FormatFloat(p, 'g', -1, 64)
}

// Enrich appends the five provenance columns to the metadata table in row
// order and returns the run summary.
//
// Rows whose identifier had no tree leaf keep their original label in the
// conservative column with empty metric cells; they are already reported in
// the exception list. Unresolved sentinel rows also get empty metric cells.
func Enrich(tbl *table.Table, tipCol, labelCol string, assignments map[string]Assignment) (Summary, error) {
	n := len(tbl.Rows)
	final := make([]string, n)
	supportN := make([]string, n)
	majorityN := make([]string, n)
	supportProp := make([]string, n)
	nodeSize := make([]string, n)

	summary := Summary{Samples: n}
	for r := range tbl.Rows {
		a, ok := assignments[phylo.NormalizeID(tbl.Cell(r, tipCol))]
		if !ok {
			final[r] = tbl.Cell(r, labelCol)
			continue
		}
		summary.Joined++
		if a.OriginalLabel != Unassigned {
			summary.OriginallyLabelled++
		}
		if a.Resolved && a.OriginalLabel == Unassigned {
			summary.Inferred++
		}
		if a.FinalLabel == Unassigned {
			summary.RemainingUnassigned++
		}
		if a.Overwritten {
			summary.Overwritten++
		}

		final[r] = a.FinalLabel
		if a.HasMetrics {
			supportN[r] = strconv.Itoa(a.SupportN)
			majorityN[r] = strconv.Itoa(a.MajorityN)
			supportProp[r] = FormatProp(a.SupportProp)
			nodeSize[r] = strconv.Itoa(a.CladeSize)
		}
	}

	cols := []struct {
		name   string
		values []string
	}{
		{ColConservative, final},
		{ColSupportN, supportN},
		{ColMajorityN, majorityN},
		{ColSupportProp, supportProp},
		{ColNodeSize, nodeSize},
	}
	for _, col := range cols {
		if err := tbl.AddColumn(col.name, col.values); err != nil {
			return Summary{}, fmt.Errorf("enrich: %w", err)
		}
	}
	return summary, nil
}
