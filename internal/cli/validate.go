package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cladecall/internal/assign"
	"cladecall/internal/phylo"
	"cladecall/internal/table"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions

	Tree       string
	Metadata   string
	TipCol     string
	LabelCol   string
	MinSupport int
	MinProp    float64
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                     `json:"valid"`
	Errors     []assign.ValidationError `json:"errors,omitempty"`
	Problems   []string                 `json:"problems,omitempty"`
	Exceptions assign.Exceptions        `json:"exceptions"`
	Tips       int                      `json:"tips"`
	Samples    int                      `json:"samples"`
}

// String renders the result for text output.
func (r ValidationResult) String() string {
	var b strings.Builder
	if r.Valid {
		fmt.Fprintf(&b, "Inputs valid: %d tips, %d metadata rows", r.Tips, r.Samples)
	} else {
		b.WriteString("Validation failed:")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "\n  %s", e.Error())
		}
		for _, p := range r.Problems {
			fmt.Fprintf(&b, "\n  %s", p)
		}
	}
	if !r.Exceptions.Empty() {
		fmt.Fprintf(&b, "\nExceptions: %d metadata-only, %d tree-only",
			len(r.Exceptions.MetadataOnly), len(r.Exceptions.TreeOnly))
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}
	defaults := assign.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check inputs without assigning",
		Long: `Check that the tree parses, tip identifiers are unique, the metadata
carries the required columns, and the thresholds are in range. Reports the
tree/metadata exception lists without running the assignment passes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Tree, "tree", "", "Newick tree file (required)")
	cmd.Flags().StringVar(&opts.Metadata, "metadata", "", "metadata CSV file (required)")
	cmd.Flags().StringVar(&opts.TipCol, "tip-col", "sample_id", "column with tree tip identifiers")
	cmd.Flags().StringVar(&opts.LabelCol, "ic-col", "IC", "column with IC labels")
	cmd.Flags().IntVar(&opts.MinSupport, "min-support", defaults.MinSupport, "minimum labelled neighbours required")
	cmd.Flags().Float64Var(&opts.MinProp, "min-prop", defaults.MinProp, "minimum majority proportion required")
	_ = cmd.MarkFlagRequired("tree")
	_ = cmd.MarkFlagRequired("metadata")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result := ValidationResult{Valid: true}

	cfg := assign.DefaultConfig()
	cfg.MinSupport = opts.MinSupport
	cfg.MinProp = opts.MinProp
	result.Errors = cfg.Validate()

	treeData, err := os.ReadFile(opts.Tree)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read tree", err)
	}
	tbl, err := table.ReadFile(opts.Metadata)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read metadata", err)
	}

	tree, err := phylo.ParseNewick(string(treeData))
	if err != nil {
		result.Problems = append(result.Problems, err.Error())
	} else {
		leafIdx, err := tree.LeafIndex()
		if err != nil {
			result.Problems = append(result.Problems, err.Error())
		} else {
			result.Tips = len(leafIdx)
			if err := tbl.RequireCols(opts.TipCol, opts.LabelCol); err != nil {
				result.Problems = append(result.Problems, err.Error())
			} else {
				_, result.Exceptions = assign.Join(tree, leafIdx, tbl, opts.TipCol, opts.LabelCol)
			}
		}
	}
	result.Samples = len(tbl.Rows)

	if len(result.Errors) > 0 || len(result.Problems) > 0 {
		result.Valid = false
		if err := formatter.Success(result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "validation failed")
	}

	return formatter.Success(result)
}
