// Package xval cross-validates resolved lineage labels against independent
// typing schemes.
//
// Anchor tables map a sequence-type code (MLST) to the lineage
// conventionally expected for that code. They are used strictly for
// validation - an anchor never assigns a label. A conflict is flagged only
// when a sample has a resolved label, its typing code has an anchor entry,
// and the two disagree; a code without an anchor entry simply has no
// expectation.
//
// Contingency tables cross-tabulate any categorical column against the
// resolved labels. Tables are always complete: every category present in
// the data appears, with categories and labels in sorted order. Truncation
// for plotting is a presentation concern handled elsewhere.
package xval
