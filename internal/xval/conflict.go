package xval

import "fmt"

// Column name templates for the per-scheme validation output.
const (
	expectedColFormat = "IC_expected_from_%sST"
	conflictColFormat = "IC_%sST_conflict"
)

// ExpectedColumn returns the expectation column name for a scheme.
func ExpectedColumn(scheme string) string {
	return fmt.Sprintf(expectedColFormat, scheme)
}

// ConflictColumn returns the conflict flag column name for a scheme.
func ConflictColumn(scheme string) string {
	return fmt.Sprintf(conflictColFormat, scheme)
}

// Conflict records one disagreement between a resolved label and the
// expectation anchored to the sample's typing code.
type Conflict struct {
	Scheme   string `json:"scheme"`
	Sample   string `json:"sample"`
	Code     string `json:"code"`
	Expected string `json:"expected"`
	Resolved string `json:"resolved"`
}

// SchemeResult holds the two derived columns for one typing scheme plus the
// conflicts found, in row order.
type SchemeResult struct {
	Scheme    string
	Expected  []string // "" where the code has no anchor entry
	Flags     []string // "0"/"1"; "" where no expectation exists
	Conflicts []Conflict
}

// Validate derives the expectation and conflict columns for one scheme.
//
// samples, codes and resolved run in parallel row order; sentinel is the
// unassigned label. The conflict flag is 1 exactly when the resolved label
// is not the sentinel, the code has an anchor entry, and the expectation
// differs from the resolved label. Samples with a missing or unanchored
// code get an empty expectation and an empty flag - absence of an anchor is
// not an error.
func Validate(scheme Scheme, samples, codes, resolved []string, sentinel string) SchemeResult {
	result := SchemeResult{
		Scheme:   scheme.Name,
		Expected: make([]string, len(codes)),
		Flags:    make([]string, len(codes)),
	}

	for i, code := range codes {
		if code == "" {
			continue
		}
		expected, ok := scheme.Anchors[code]
		if !ok {
			continue
		}
		result.Expected[i] = expected

		if resolved[i] == sentinel || resolved[i] == "" {
			continue
		}
		if expected == resolved[i] {
			result.Flags[i] = "0"
			continue
		}
		result.Flags[i] = "1"
		result.Conflicts = append(result.Conflicts, Conflict{
			Scheme:   scheme.Name,
			Sample:   samples[i],
			Code:     code,
			Expected: expected,
			Resolved: resolved[i],
		})
	}

	return result
}
