package assign

import "fmt"

// Unassigned is the sentinel label meaning "no IC currently known".
const Unassigned = "UA"

// TieBreak selects the policy for a tied majority at a qualifying node.
type TieBreak string

const (
	// TieBreakNone refuses assignment at a tied node; the ascent continues
	// to the next ancestor. This is the conservative default.
	TieBreakNone TieBreak = "none"

	// TieBreakLexicographic deterministically picks the lexicographically
	// smallest of the tied labels.
	TieBreakLexicographic TieBreak = "lexicographic"
)

// Configuration error codes (E201-E209).
const (
	ErrBadMinSupport = "E201" // min_support must be a positive integer
	ErrBadMinProp    = "E202" // min_prop must be in (0, 1]
	ErrBadTieBreak   = "E203" // unknown tie-break policy
	ErrBadWorkers    = "E204" // workers must be positive
)

// ValidationError reports one invalid configuration field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Config holds the resolver thresholds and flags. It is passed explicitly
// through the passes - there is no process-wide configuration state.
type Config struct {
	// MinSupport is the minimum number of labelled descendant tips an
	// ancestor needs before it can qualify. Inclusive bound.
	MinSupport int

	// MinProp is the minimum majority proportion at a qualifying ancestor,
	// in (0, 1]. Inclusive bound.
	MinProp float64

	// ForceOverwrite re-resolves tips that already carry a label and
	// replaces the label when a qualifying, non-tied assignment is found.
	// Every replacement is logged.
	ForceOverwrite bool

	// TieBreak is the tied-majority policy. Defaults to TieBreakNone.
	TieBreak TieBreak

	// Workers is the number of goroutines used for the resolution pass.
	// 1 means fully sequential. Results are identical either way.
	Workers int
}

// DefaultConfig returns the documented defaults: MinSupport 10,
// MinProp 0.90, no overwriting, refuse on tie, sequential resolution.
func DefaultConfig() Config {
	return Config{
		MinSupport: 10,
		MinProp:    0.90,
		TieBreak:   TieBreakNone,
		Workers:    1,
	}
}

// Validate checks all fields and returns every violation found
// (does not fail-fast).
func (c Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.MinSupport < 1 {
		errs = append(errs, ValidationError{
			Field:   "min_support",
			Message: fmt.Sprintf("must be a positive integer, got %d", c.MinSupport),
			Code:    ErrBadMinSupport,
		})
	}
	if c.MinProp <= 0 || c.MinProp > 1 {
		errs = append(errs, ValidationError{
			Field:   "min_prop",
			Message: fmt.Sprintf("must be in (0, 1], got %g", c.MinProp),
			Code:    ErrBadMinProp,
		})
	}
	switch c.TieBreak {
	case TieBreakNone, TieBreakLexicographic:
	default:
		errs = append(errs, ValidationError{
			Field:   "tie_break",
			Message: fmt.Sprintf("unknown policy %q (want %q or %q)", c.TieBreak, TieBreakNone, TieBreakLexicographic),
			Code:    ErrBadTieBreak,
		})
	}
	if c.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "workers",
			Message: fmt.Sprintf("must be positive, got %d", c.Workers),
			Code:    ErrBadWorkers,
		})
	}

	return errs
}
