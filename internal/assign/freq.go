package assign

import (
	"sort"

	"cladecall/internal/phylo"
)

// LabelCounts maps a label to the number of originally labelled descendant
// tips carrying it. The unassigned sentinel never appears as a key.
type LabelCounts map[string]int

// Total returns the number of labelled descendants counted in the table
// (support_n for the node).
func (c LabelCounts) Total() int {
	n := 0
	for _, count := range c {
		n += count
	}
	return n
}

// Majority returns the winning label and its count, and whether the maximum
// is shared by two or more labels. On a tie the returned label is the
// lexicographically smallest of the tied labels, so the lexicographic
// tie-break policy is deterministic.
func (c LabelCounts) Majority() (label string, n int, tied bool) {
	for l, count := range c {
		switch {
		case count > n:
			label, n, tied = l, count, false
		case count == n && n > 0:
			tied = true
			if l < label {
				label = l
			}
		}
	}
	return label, n, tied
}

// Labels returns the table's labels in sorted order.
func (c LabelCounts) Labels() []string {
	labels := make([]string, 0, len(c))
	for l := range c {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Annotation holds the per-node label frequency tables and clade sizes,
// indexed by arena node id. Built once per run; the resolver only reads it.
type Annotation struct {
	Counts    []LabelCounts
	CladeSize []int
}

// Annotate computes the frequency table and clade size for every node in a
// single post-order pass.
//
// A labelled leaf contributes {label: 1} to itself; an unassigned or
// unmatched leaf contributes nothing. An internal node's table is the
// entry-wise sum of its children's tables - child tables are accumulated,
// never re-scanned, so the whole pass is O(total entries).
//
// INVARIANT: the sum of a node's counts equals the number of originally
// labelled tips in its subtree. Inferred labels are never added.
func Annotate(tree *phylo.Tree, labels map[int]string) *Annotation {
	ann := &Annotation{
		Counts:    make([]LabelCounts, len(tree.Nodes)),
		CladeSize: make([]int, len(tree.Nodes)),
	}

	for _, id := range tree.PostOrder() {
		if tree.IsLeaf(id) {
			ann.CladeSize[id] = 1
			counts := LabelCounts{}
			if label, ok := labels[id]; ok && label != Unassigned && label != "" {
				counts[label] = 1
			}
			ann.Counts[id] = counts
			continue
		}

		counts := LabelCounts{}
		size := 0
		for _, child := range tree.Nodes[id].Children {
			size += ann.CladeSize[child]
			for label, n := range ann.Counts[child] {
				counts[label] += n
			}
		}
		ann.Counts[id] = counts
		ann.CladeSize[id] = size
	}

	return ann
}
