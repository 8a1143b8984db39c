package phylo

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Node is one vertex of the tree arena.
//
// Leaves have no children and carry the sample identifier in Name.
// Internal nodes may carry an optional label (bootstrap value, clade name)
// which the assignment algorithm ignores.
type Node struct {
	Parent   int     // arena index of the parent, -1 for the root
	Children []int   // arena indices of children, in parse order
	Name     string  // tip identifier for leaves, optional label otherwise
	Length   float64 // branch length to parent, 0 if absent
}

// Tree is a rooted, possibly multifurcating phylogeny stored as an arena of
// nodes. The zero value is not usable; obtain a Tree from ParseNewick.
//
// INVARIANTS:
//   - exactly one node (Root) has Parent == -1
//   - every other node is reachable from Root by following Children
//   - Children order never changes after parsing
type Tree struct {
	Nodes []Node
	Root  int
}

// IsLeaf reports whether node id is a tip.
func (t *Tree) IsLeaf(id int) bool {
	return len(t.Nodes[id].Children) == 0
}

// PostOrder returns all node ids in stable post-order: children (in parse
// order) before their parent, with Root last. The order depends only on the
// parsed topology.
func (t *Tree) PostOrder() []int {
	order := make([]int, 0, len(t.Nodes))
	// Iterative traversal; the second stack visit emits the node after all
	// of its children have been emitted.
	type frame struct {
		id   int
		next int // index of the next child to descend into
	}
	stack := []frame{{id: t.Root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		children := t.Nodes[top.id].Children
		if top.next < len(children) {
			child := children[top.next]
			top.next++
			stack = append(stack, frame{id: child})
			continue
		}
		order = append(order, top.id)
		stack = stack[:len(stack)-1]
	}
	return order
}

// Leaves returns the ids of all tips in stable post-order.
func (t *Tree) Leaves() []int {
	var leaves []int
	for _, id := range t.PostOrder() {
		if t.IsLeaf(id) {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// LeafCount returns the number of tips.
func (t *Tree) LeafCount() int {
	n := 0
	for i := range t.Nodes {
		if t.IsLeaf(i) {
			n++
		}
	}
	return n
}

// NormalizeID canonicalizes a sample identifier for joining: surrounding
// whitespace is stripped and the text is NFC-normalized. Tree tips and
// metadata identifiers must both pass through this function so that the
// join compares like with like.
func NormalizeID(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// LeafIndex builds the identifier-to-leaf mapping used by the metadata join.
//
// Tip names are normalized with NormalizeID. A duplicated tip identifier is
// fatal: the join would be ambiguous, so the error is returned rather than
// collected.
func (t *Tree) LeafIndex() (map[string]int, error) {
	idx := make(map[string]int, len(t.Nodes)/2)
	for i := range t.Nodes {
		if !t.IsLeaf(i) {
			continue
		}
		name := NormalizeID(t.Nodes[i].Name)
		if name == "" {
			return nil, fmt.Errorf("leaf node %d has an empty identifier", i)
		}
		if prev, ok := idx[name]; ok {
			return nil, fmt.Errorf("duplicate tip identifier %q (nodes %d and %d)", name, prev, i)
		}
		idx[name] = i
	}
	return idx, nil
}
