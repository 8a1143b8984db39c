package xval

import (
	"fmt"
	"sort"

	"cladecall/internal/table"
)

// Contingency is a full cross-tabulation of one categorical column against
// the resolved labels. Every distinct category and label present in the
// data appears; nothing is ever truncated here.
type Contingency struct {
	Column     string
	Categories []string // sorted
	Labels     []string // sorted
	counts     map[string]map[string]int
}

// CrossTab tabulates (category x resolved label) counts over parallel row
// slices. Empty category cells are tabulated under the empty string, so the
// marginals always sum to the number of rows.
func CrossTab(column string, categories, resolved []string) *Contingency {
	c := &Contingency{
		Column: column,
		counts: make(map[string]map[string]int),
	}
	labelSet := make(map[string]bool)

	for i, cat := range categories {
		label := resolved[i]
		if c.counts[cat] == nil {
			c.counts[cat] = make(map[string]int)
		}
		c.counts[cat][label]++
		labelSet[label] = true
	}

	for cat := range c.counts {
		c.Categories = append(c.Categories, cat)
	}
	sort.Strings(c.Categories)
	for label := range labelSet {
		c.Labels = append(c.Labels, label)
	}
	sort.Strings(c.Labels)

	return c
}

// Count returns the tabulated count for (category, label).
func (c *Contingency) Count(category, label string) int {
	return c.counts[category][label]
}

// Table renders the cross-tabulation as a CSV-ready table: one row per
// category, one column per label, counts as decimal strings. Deterministic
// for identical input data.
func (c *Contingency) Table() (*table.Table, error) {
	header := append([]string{c.Column}, c.Labels...)
	tbl, err := table.New(header)
	if err != nil {
		return nil, fmt.Errorf("contingency %s: %w", c.Column, err)
	}

	for _, cat := range c.Categories {
		row := make([]string, 0, len(header))
		row = append(row, cat)
		for _, label := range c.Labels {
			row = append(row, fmt.Sprintf("%d", c.counts[cat][label]))
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl, nil
}
