// Package assign implements the conservative ancestral-support assignment
// engine: filling in missing International Clone (IC) labels for tree tips
// from the labelled tips around them, without ever guessing.
//
// ARCHITECTURE:
//
// Three ordered passes over an immutable tree:
//
//  1. Join: attach the original label from metadata to every matching leaf.
//     Tree/metadata mismatches are collected as exception lists, never
//     raised per-row.
//  2. Annotate: one post-order pass computes, for every node, the counts of
//     originally labelled descendant tips per label plus the clade size.
//     Inferred labels are NEVER fed back into these tables.
//  3. Resolve: each unassigned leaf walks leaf -> root and stops at the
//     first (smallest) ancestor whose table meets both thresholds
//     (support_n >= MinSupport and support_prop >= MinProp, inclusive).
//     No qualifying ancestor means the leaf stays unassigned - that is the
//     designed outcome, not an error.
//
// CRITICAL PATTERNS:
//
// Conservative By Default:
// Pre-existing labels are never overwritten unless ForceOverwrite is set,
// and a tied majority never produces a label under the default tie policy.
//
// Determinism:
// The annotation pass reads only original labels, so the order in which
// leaves are resolved cannot affect any result. Resolving with one worker
// or many yields identical assignments.
package assign
