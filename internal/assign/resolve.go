package assign

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"cladecall/internal/phylo"
)

// Assignment is the per-sample result of the resolution pass. Computed once
// per run and immutable afterwards; the original label is never mutated.
type Assignment struct {
	Sample        string
	OriginalLabel string
	FinalLabel    string

	// Resolved is true when a qualifying ancestor produced FinalLabel.
	Resolved bool

	// Overwritten is true when ForceOverwrite replaced a pre-existing
	// label with a qualifying resolver result.
	Overwritten bool

	// HasMetrics gates the provenance fields below. Pass-through samples
	// carry the documented pass-through values (1, 1, 1.0, 1); unresolved
	// samples carry no metrics at all.
	HasMetrics  bool
	SupportN    int
	MajorityN   int
	SupportProp float64
	CladeSize   int
}

// passThrough returns the assignment for a sample whose existing label is
// kept as-is.
func passThrough(sample, label string) Assignment {
	return Assignment{
		Sample:        sample,
		OriginalLabel: label,
		FinalLabel:    label,
		HasMetrics:    true,
		SupportN:      1,
		MajorityN:     1,
		SupportProp:   1.0,
		CladeSize:     1,
	}
}

// Resolve runs the ancestral-support resolution pass for every leaf present
// in labels and returns assignments keyed by normalized sample identifier.
//
// Leaves whose original label is not the sentinel pass through untouched
// unless cfg.ForceOverwrite is set. Each overwrite is logged with the old
// and new label.
//
// The pass only reads the annotation, so it is data-parallel across leaves:
// cfg.Workers > 1 shards the leaves across an errgroup. Results are
// identical to the sequential path.
func Resolve(ctx context.Context, tree *phylo.Tree, ann *Annotation, labels map[int]string, cfg Config) (map[string]Assignment, error) {
	// Stable work list: leaves in post-order, restricted to joined leaves.
	var leaves []int
	for _, id := range tree.Leaves() {
		if _, ok := labels[id]; ok {
			leaves = append(leaves, id)
		}
	}

	results := make([]Assignment, len(leaves))
	if cfg.Workers <= 1 {
		for i, leaf := range leaves {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = resolveLeaf(tree, ann, leaf, labels[leaf], cfg)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Workers)
		chunk := (len(leaves) + cfg.Workers - 1) / cfg.Workers
		for start := 0; start < len(leaves); start += chunk {
			start := start
			end := start + chunk
			if end > len(leaves) {
				end = len(leaves)
			}
			g.Go(func() error {
				for i := start; i < end; i++ {
					if err := gctx.Err(); err != nil {
						return err
					}
					results[i] = resolveLeaf(tree, ann, leaves[i], labels[leaves[i]], cfg)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := make(map[string]Assignment, len(results))
	for _, a := range results {
		out[a.Sample] = a
	}
	logOverwrites(out)
	return out, nil
}

// resolveLeaf walks from leaf to root and stops at the first (smallest)
// ancestor meeting both thresholds. Ancestors strictly contain their
// descendants, so the visited clade sizes are strictly increasing.
func resolveLeaf(tree *phylo.Tree, ann *Annotation, leaf int, original string, cfg Config) Assignment {
	sample := phylo.NormalizeID(tree.Nodes[leaf].Name)

	if original != Unassigned && !cfg.ForceOverwrite {
		return passThrough(sample, original)
	}

	node := leaf
	for node != -1 {
		counts := ann.Counts[node]
		total := counts.Total()
		if total >= cfg.MinSupport {
			label, n, tied := counts.Majority()
			// A tied majority never qualifies under the default policy;
			// the ascent continues to the next ancestor.
			if !tied || cfg.TieBreak == TieBreakLexicographic {
				prop := float64(n) / float64(total)
				if prop >= cfg.MinProp {
					a := Assignment{
						Sample:        sample,
						OriginalLabel: original,
						FinalLabel:    label,
						Resolved:      true,
						HasMetrics:    true,
						SupportN:      total,
						MajorityN:     n,
						SupportProp:   prop,
						CladeSize:     ann.CladeSize[node],
					}
					a.Overwritten = original != Unassigned && label != original
					return a
				}
			}
		}
		node = tree.Nodes[node].Parent
	}

	// No qualifying ancestor up to and including the root: the designed
	// outcome is to keep the existing label (sentinel or otherwise).
	if original != Unassigned {
		return passThrough(sample, original)
	}
	return Assignment{
		Sample:        sample,
		OriginalLabel: original,
		FinalLabel:    Unassigned,
	}
}

// logOverwrites reports every replaced label once, in sample order, so the
// override path leaves a deterministic audit trail.
func logOverwrites(assignments map[string]Assignment) {
	var samples []string
	for sample, a := range assignments {
		if a.Overwritten {
			samples = append(samples, sample)
		}
	}
	sort.Strings(samples)
	for _, sample := range samples {
		a := assignments[sample]
		slog.Info("label overwritten",
			"sample", sample,
			"from", a.OriginalLabel,
			"to", a.FinalLabel,
			"support_n", a.SupportN,
			"support_prop", a.SupportProp,
		)
	}
}
