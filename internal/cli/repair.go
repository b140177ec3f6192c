package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"posdoctor/internal/domain"
)

// NewRepairCommand creates the repair command.
func NewRepairCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Fix violations and save the document",
		Long: `Run the shift and invoice reconcilers and save the document when
anything changed. Running repair twice leaves the store untouched the
second time.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepair(rootOpts, cmd)
		},
	}
}

func runRepair(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	svc, release, err := opts.openService(cmd.Context(), cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error())
		return err
	}
	defer release()

	result, err := svc.Repair(cmd.Context())
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error())
		return WrapExitError(ExitCommandError, "repair", err)
	}
	formatter.VerboseLog("run %s finished in %s", result.RunID, result.FinishedAt.Sub(result.StartedAt))

	if err := outputRepair(formatter, result); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	return nil
}

func outputRepair(f *OutputFormatter, result domain.RepairResult) error {
	if handled, err := f.Structured(CLIResponse{Status: "ok", Data: result}); handled {
		return err
	}

	w := f.Writer
	if result.Persisted {
		fmt.Fprintln(w, "✓ Repair saved")
	} else {
		fmt.Fprintln(w, "✓ Nothing to repair")
	}
	fmt.Fprintf(w, "fixed shifts: %d\n", result.FixedShifts)
	fmt.Fprintf(w, "fixed invoices: %d\n", result.FixedInvoices)
	_, err := fmt.Fprintf(w, "removed duplicates: %d\n", result.RemovedDuplicates)
	writeViolations(w, result.Violations)
	writeParseFailures(w, result.ParseFailures)
	return err
}
