package assign

import (
	"sort"

	"cladecall/internal/phylo"
	"cladecall/internal/table"
)

// Exceptions collects the recoverable identifier mismatches between the
// tree and the metadata. Both lists are reported once per run; neither
// aborts it - the passes proceed on the intersection.
type Exceptions struct {
	// MetadataOnly holds identifiers present in the metadata but absent
	// from the tree, in metadata row order.
	MetadataOnly []string `json:"metadata_only,omitempty"`

	// TreeOnly holds tip identifiers with no metadata row, sorted.
	TreeOnly []string `json:"tree_only,omitempty"`
}

// Empty reports whether there were no mismatches.
func (e Exceptions) Empty() bool {
	return len(e.MetadataOnly) == 0 && len(e.TreeOnly) == 0
}

// Join attaches the original label from metadata to every matching leaf.
//
// Returns the per-leaf label map (arena node id -> label, sentinel included
// as-is) and the exception lists. Label values are opaque category strings:
// no vocabulary validation is performed.
//
// The caller must have verified that tipCol and labelCol exist in tbl.
func Join(tree *phylo.Tree, leafIdx map[string]int, tbl *table.Table, tipCol, labelCol string) (map[int]string, Exceptions) {
	labels := make(map[int]string, len(tbl.Rows))
	var exc Exceptions

	matched := make(map[int]bool, len(tbl.Rows))
	for r := range tbl.Rows {
		id := phylo.NormalizeID(tbl.Cell(r, tipCol))
		leaf, ok := leafIdx[id]
		if !ok {
			exc.MetadataOnly = append(exc.MetadataOnly, id)
			continue
		}
		labels[leaf] = tbl.Cell(r, labelCol)
		matched[leaf] = true
	}

	for name, leaf := range leafIdx {
		if !matched[leaf] {
			exc.TreeOnly = append(exc.TreeOnly, name)
		}
	}
	sort.Strings(exc.TreeOnly)

	return labels, exc
}
