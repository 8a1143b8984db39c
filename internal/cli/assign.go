package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cladecall/internal/assign"
	"cladecall/internal/phylo"
	"cladecall/internal/store"
	"cladecall/internal/table"
	"cladecall/internal/xval"
)

// AssignOptions holds flags for the assign command.
type AssignOptions struct {
	*RootOptions

	Tree     string
	Metadata string
	TipCol   string
	LabelCol string
	Output   string

	MinSupport     int
	MinProp        float64
	ForceOverwrite bool
	TieBreak       string
	Workers        int

	Database   string
	AnchorFile string
	STCols     []string
	GroupCols  []string
	XTabDir    string
	ConfigFile string
}

// NewAssignCommand creates the assign command.
func NewAssignCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AssignOptions{RootOptions: rootOpts}
	defaults := assign.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Fill in missing IC labels from the tree",
		Long: `Run the conservative assignment pipeline: parse the tree, join the
metadata, annotate every clade with its label frequencies, and resolve each
unassigned tip against the smallest qualifying ancestral clade.

The enriched metadata (original columns plus IC_tree_conservative and its
provenance columns) is written as CSV. Typing schemes given with --st-col
are cross-validated against anchor tables and emit expectation and conflict
columns.

Example:
  cladecall assign --tree core.nwk --metadata meta.csv -o enriched.csv
  cladecall assign --tree core.nwk --metadata meta.csv \
      --st-col Pasteur=PasteurST --group-col Region --db runs.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssign(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Tree, "tree", "", "Newick tree file (required)")
	cmd.Flags().StringVar(&opts.Metadata, "metadata", "", "metadata CSV file (required)")
	cmd.Flags().StringVar(&opts.TipCol, "tip-col", "sample_id", "column with tree tip identifiers")
	cmd.Flags().StringVar(&opts.LabelCol, "ic-col", "IC", "column with IC labels")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "metadata_with_conservative_IC.csv", "output CSV path")
	cmd.Flags().IntVar(&opts.MinSupport, "min-support", defaults.MinSupport, "minimum labelled neighbours required")
	cmd.Flags().Float64Var(&opts.MinProp, "min-prop", defaults.MinProp, "minimum majority proportion required")
	cmd.Flags().BoolVar(&opts.ForceOverwrite, "force-overwrite", false, "replace existing labels with qualifying assignments")
	cmd.Flags().StringVar(&opts.TieBreak, "tie-break", string(defaults.TieBreak), "tied-majority policy (none|lexicographic)")
	cmd.Flags().IntVar(&opts.Workers, "workers", defaults.Workers, "parallel resolution workers")
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive the run into this SQLite database")
	cmd.Flags().StringVar(&opts.AnchorFile, "anchors", "", "YAML file with scheme anchor tables")
	cmd.Flags().StringArrayVar(&opts.STCols, "st-col", nil, "typing scheme as Name=Column (max 2, repeatable)")
	cmd.Flags().StringArrayVar(&opts.GroupCols, "group-col", nil, "grouping column for contingency tables (repeatable)")
	cmd.Flags().StringVar(&opts.XTabDir, "xtab-dir", "", "write one contingency CSV per column into this directory")
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "YAML run configuration with defaults")
	_ = cmd.MarkFlagRequired("tree")
	_ = cmd.MarkFlagRequired("metadata")

	return cmd
}

// AssignReport is the success payload of the assign command.
type AssignReport struct {
	RunID      string            `json:"run_id,omitempty"`
	Output     string            `json:"output"`
	Summary    assign.Summary    `json:"summary"`
	Exceptions assign.Exceptions `json:"exceptions"`
	Conflicts  []xval.Conflict   `json:"conflicts,omitempty"`
	XTabs      []string          `json:"contingency_tables,omitempty"`
}

// String renders the report for text output.
func (r AssignReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Enriched table written to %s\n", r.Output)
	fmt.Fprintf(&b, "Samples: %d (joined %d, labelled %d)\n",
		r.Summary.Samples, r.Summary.Joined, r.Summary.OriginallyLabelled)
	fmt.Fprintf(&b, "Inferred: %d, still unassigned: %d",
		r.Summary.Inferred, r.Summary.RemainingUnassigned)
	if r.Summary.Overwritten > 0 {
		fmt.Fprintf(&b, ", overwritten: %d", r.Summary.Overwritten)
	}
	if !r.Exceptions.Empty() {
		fmt.Fprintf(&b, "\nExceptions: %d metadata-only, %d tree-only",
			len(r.Exceptions.MetadataOnly), len(r.Exceptions.TreeOnly))
	}
	if len(r.Conflicts) > 0 {
		fmt.Fprintf(&b, "\nTyping conflicts: %d", len(r.Conflicts))
		for _, c := range r.Conflicts {
			fmt.Fprintf(&b, "\n  %s: %s ST%s expects %s, resolved %s",
				c.Sample, c.Scheme, c.Code, c.Expected, c.Resolved)
		}
	}
	if r.RunID != "" {
		fmt.Fprintf(&b, "\nArchived as run %s", r.RunID)
	}
	return b.String()
}

func runAssign(opts *AssignOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if err := applyRunConfig(opts, cmd); err != nil {
		return WrapExitError(ExitCommandError, "invalid run configuration", err)
	}

	cfg := assign.Config{
		MinSupport:     opts.MinSupport,
		MinProp:        opts.MinProp,
		ForceOverwrite: opts.ForceOverwrite,
		TieBreak:       assign.TieBreak(opts.TieBreak),
		Workers:        opts.Workers,
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		_ = formatter.Error(errs[0].Code, "invalid configuration", errs)
		return NewExitError(ExitFailure, "invalid configuration")
	}

	schemes, err := buildSchemes(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid typing schemes", err)
	}

	// Ingest tree.
	treeData, err := os.ReadFile(opts.Tree)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read tree", err)
	}
	tree, err := phylo.ParseNewick(string(treeData))
	if err != nil {
		return WrapExitError(ExitFailure, "malformed tree", err)
	}
	leafIdx, err := tree.LeafIndex()
	if err != nil {
		return WrapExitError(ExitFailure, "invalid tree", err)
	}
	slog.Debug("tree ingested", "nodes", len(tree.Nodes), "tips", len(leafIdx))

	// Ingest metadata.
	tbl, err := table.ReadFile(opts.Metadata)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read metadata", err)
	}
	required := []string{opts.TipCol, opts.LabelCol}
	for _, scheme := range schemes {
		required = append(required, scheme.Column)
	}
	required = append(required, opts.GroupCols...)
	if err := tbl.RequireCols(required...); err != nil {
		return WrapExitError(ExitFailure, "invalid metadata", err)
	}

	// Join, annotate, resolve.
	labels, exceptions := assign.Join(tree, leafIdx, tbl, opts.TipCol, opts.LabelCol)
	if !exceptions.Empty() {
		slog.Warn("tree/metadata mismatches",
			"metadata_only", len(exceptions.MetadataOnly),
			"tree_only", len(exceptions.TreeOnly),
		)
	}
	ann := assign.Annotate(tree, labels)
	assignments, err := assign.Resolve(cmd.Context(), tree, ann, labels, cfg)
	if err != nil {
		return WrapExitError(ExitFailure, "resolution failed", err)
	}
	summary, err := assign.Enrich(tbl, opts.TipCol, opts.LabelCol, assignments)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build enriched table", err)
	}
	slog.Info("resolution complete",
		"inferred", summary.Inferred,
		"remaining_ua", summary.RemainingUnassigned,
	)

	// Cross-validate against typing schemes.
	report := AssignReport{Output: opts.Output, Summary: summary, Exceptions: exceptions}
	samples, err := tbl.Column(opts.TipCol)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build enriched table", err)
	}
	resolved, err := tbl.Column(assign.ColConservative)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build enriched table", err)
	}
	for _, scheme := range schemes {
		codes, err := tbl.Column(scheme.Column)
		if err != nil {
			return WrapExitError(ExitFailure, "cross-validation failed", err)
		}
		result := xval.Validate(scheme, samples, codes, resolved, assign.Unassigned)
		if err := tbl.AddColumn(xval.ExpectedColumn(scheme.Name), result.Expected); err != nil {
			return WrapExitError(ExitFailure, "cross-validation failed", err)
		}
		if err := tbl.AddColumn(xval.ConflictColumn(scheme.Name), result.Flags); err != nil {
			return WrapExitError(ExitFailure, "cross-validation failed", err)
		}
		report.Conflicts = append(report.Conflicts, result.Conflicts...)
		slog.Info("scheme cross-validated",
			"scheme", scheme.Name,
			"conflicts", len(result.Conflicts),
		)
	}

	// Contingency tables for every typing and grouping column.
	xtabCols := make([]string, 0, len(schemes)+len(opts.GroupCols))
	for _, scheme := range schemes {
		xtabCols = append(xtabCols, scheme.Column)
	}
	xtabCols = append(xtabCols, opts.GroupCols...)
	if opts.XTabDir != "" && len(xtabCols) > 0 {
		written, err := writeContingencyTables(opts.XTabDir, xtabCols, tbl, resolved)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to write contingency tables", err)
		}
		report.XTabs = written
	}

	// Write the enriched table.
	if err := tbl.WriteFile(opts.Output); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	// Optional archive.
	if opts.Database != "" {
		runID, err := archiveRun(opts, cfg, summary, assignments, exceptions, report.Conflicts, cmd)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to archive run", err)
		}
		report.RunID = runID
	}

	return formatter.Success(report)
}

// applyRunConfig merges YAML config defaults into options. Flags set
// explicitly on the command line always win.
func applyRunConfig(opts *AssignOptions, cmd *cobra.Command) error {
	if opts.ConfigFile == "" {
		return nil
	}
	cfg, err := LoadRunConfig(opts.ConfigFile)
	if err != nil {
		return err
	}

	changed := cmd.Flags().Changed
	if cfg.TipColumn != "" && !changed("tip-col") {
		opts.TipCol = cfg.TipColumn
	}
	if cfg.LabelColumn != "" && !changed("ic-col") {
		opts.LabelCol = cfg.LabelColumn
	}
	if cfg.MinSupport != nil && !changed("min-support") {
		opts.MinSupport = *cfg.MinSupport
	}
	if cfg.MinProp != nil && !changed("min-prop") {
		opts.MinProp = *cfg.MinProp
	}
	if cfg.ForceOverwrite != nil && !changed("force-overwrite") {
		opts.ForceOverwrite = *cfg.ForceOverwrite
	}
	if cfg.TieBreak != "" && !changed("tie-break") {
		opts.TieBreak = cfg.TieBreak
	}
	if cfg.Workers != nil && !changed("workers") {
		opts.Workers = *cfg.Workers
	}
	if cfg.AnchorFile != "" && !changed("anchors") {
		opts.AnchorFile = cfg.AnchorFile
	}
	if len(cfg.Schemes) > 0 && !changed("st-col") {
		for _, scheme := range cfg.Schemes {
			opts.STCols = append(opts.STCols, scheme.Name+"="+scheme.Column)
		}
	}
	if len(cfg.GroupColumns) > 0 && !changed("group-col") {
		opts.GroupCols = append(opts.GroupCols, cfg.GroupColumns...)
	}
	return nil
}

// buildSchemes resolves --st-col specs and anchor tables into schemes.
// Anchors come from the anchor file when given; the Pasteur scheme falls
// back to the built-in canonical table.
func buildSchemes(opts *AssignOptions) ([]xval.Scheme, error) {
	if len(opts.STCols) == 0 {
		return nil, nil
	}
	if len(opts.STCols) > 2 {
		return nil, fmt.Errorf("at most two typing schemes are supported, got %d", len(opts.STCols))
	}

	var fileAnchors map[string]xval.AnchorTable
	if opts.AnchorFile != "" {
		var err error
		fileAnchors, err = xval.LoadAnchors(opts.AnchorFile)
		if err != nil {
			return nil, err
		}
	}

	var schemes []xval.Scheme
	for _, spec := range opts.STCols {
		name, column, ok := strings.Cut(spec, "=")
		if !ok || name == "" || column == "" {
			return nil, fmt.Errorf("invalid --st-col %q: want Name=Column", spec)
		}
		anchors, ok := fileAnchors[name]
		if !ok {
			if name != "Pasteur" {
				return nil, fmt.Errorf("no anchor table for scheme %q (supply one with --anchors)", name)
			}
			anchors = xval.BuiltinPasteur()
		}
		schemes = append(schemes, xval.Scheme{Name: name, Column: column, Anchors: anchors})
	}
	return schemes, nil
}

// writeContingencyTables writes one full cross-tabulation CSV per column.
func writeContingencyTables(dir string, columns []string, tbl *table.Table, resolved []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	for _, column := range columns {
		values, err := tbl.Column(column)
		if err != nil {
			return nil, err
		}
		xtab, err := xval.CrossTab(column, values, resolved).Table()
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, "xtab_"+column+".csv")
		if err := xtab.WriteFile(path); err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	sort.Strings(written)
	return written, nil
}

// archiveRun writes the finished run into the SQLite archive.
func archiveRun(
	opts *AssignOptions,
	cfg assign.Config,
	summary assign.Summary,
	assignments map[string]assign.Assignment,
	exceptions assign.Exceptions,
	conflicts []xval.Conflict,
	cmd *cobra.Command,
) (string, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing archive", "error", closeErr)
		}
	}()

	run := store.Run{
		ID:             uuid.Must(uuid.NewV7()).String(),
		CreatedAt:      time.Now().UTC(),
		TreePath:       opts.Tree,
		MetadataPath:   opts.Metadata,
		MinSupport:     cfg.MinSupport,
		MinProp:        cfg.MinProp,
		ForceOverwrite: cfg.ForceOverwrite,
		TieBreak:       string(cfg.TieBreak),
		Summary:        summary,
	}
	if err := st.WriteRun(cmd.Context(), run, assignments, exceptions, conflicts); err != nil {
		return "", err
	}
	slog.Info("run archived", "run_id", run.ID, "db", opts.Database)
	return run.ID, nil
}
