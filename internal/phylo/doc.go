// Package phylo provides the rooted phylogenetic tree that drives lineage
// assignment: a Newick parser, an arena-based tree representation, and the
// leaf index used to join tips to sample metadata.
//
// ARCHITECTURE:
//
// Arena Representation:
// The tree is a flat slice of nodes indexed by integer id. Each node stores
// its parent index and the indices of its children. This avoids ownership
// cycles between mutual parent/child references and makes the per-leaf
// ancestor walk in the resolver a plain index chase.
//
// Determinism:
// Children keep their parse order, and PostOrder always visits them in that
// order. Identical input text therefore yields an identical arena and an
// identical traversal, which downstream passes rely on for reproducible
// output.
//
// Tip identifiers are NFC-normalized before indexing so that tips exported
// by different tools join correctly against metadata. Duplicate tip names
// are fatal: a duplicated identifier makes the metadata join ambiguous.
package phylo
