package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cladecall/internal/assign"
	"cladecall/internal/store"
	"cladecall/internal/xval"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions

	Database string
	RunID    string
	List     bool
}

// RunReport is the payload for a single archived run.
type RunReport struct {
	Run        store.Run         `json:"run"`
	Exceptions assign.Exceptions `json:"exceptions"`
	Conflicts  []xval.Conflict   `json:"conflicts,omitempty"`
}

// String renders the report for text output.
func (r RunReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s)\n", r.Run.ID, r.Run.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Inputs: %s, %s\n", r.Run.TreePath, r.Run.MetadataPath)
	fmt.Fprintf(&b, "Thresholds: min_support=%d min_prop=%g tie_break=%s force_overwrite=%t\n",
		r.Run.MinSupport, r.Run.MinProp, r.Run.TieBreak, r.Run.ForceOverwrite)
	s := r.Run.Summary
	fmt.Fprintf(&b, "Samples: %d (joined %d, labelled %d), inferred %d, still unassigned %d",
		s.Samples, s.Joined, s.OriginallyLabelled, s.Inferred, s.RemainingUnassigned)
	if s.Overwritten > 0 {
		fmt.Fprintf(&b, ", overwritten %d", s.Overwritten)
	}
	if !r.Exceptions.Empty() {
		fmt.Fprintf(&b, "\nExceptions: %d metadata-only, %d tree-only",
			len(r.Exceptions.MetadataOnly), len(r.Exceptions.TreeOnly))
	}
	for _, c := range r.Conflicts {
		fmt.Fprintf(&b, "\nConflict: %s %s ST%s expects %s, resolved %s",
			c.Sample, c.Scheme, c.Code, c.Expected, c.Resolved)
	}
	return b.String()
}

// RunList is the payload when listing archived runs.
type RunList struct {
	Runs []store.Run `json:"runs"`
}

// String renders the list for text output.
func (l RunList) String() string {
	if len(l.Runs) == 0 {
		return "Archive is empty"
	}
	var b strings.Builder
	for i, run := range l.Runs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %s  inferred=%d ua=%d",
			run.ID, run.CreatedAt.Format("2006-01-02 15:04"),
			run.Summary.Inferred, run.Summary.RemainingUnassigned)
	}
	return b.String()
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize archived runs",
		Long: `Read the SQLite run archive written by assign --db and print a run's
summary, exception lists and typing conflicts. Defaults to the most recent
run; use --run for a specific one or --list for all runs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the run archive (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default: most recent)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list all archived runs")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	defer st.Close()

	ctx := cmd.Context()

	if opts.List {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return formatter.Success(RunList{Runs: runs})
	}

	var run store.Run
	if opts.RunID != "" {
		run, err = st.ReadRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read run", err)
	}

	exceptions, err := st.ReadExceptions(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read exceptions", err)
	}
	conflicts, err := st.ReadConflicts(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read conflicts", err)
	}

	return formatter.Success(RunReport{Run: run, Exceptions: exceptions, Conflicts: conflicts})
}
