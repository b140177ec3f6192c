package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"posdoctor/internal/domain"
)

// Error codes reported in structured output.
const (
	ErrCodeStore      = "E001" // store could not be opened, read or written
	ErrCodeViolations = "E002" // validation found violations
	ErrCodeReset      = "E003" // reset refused or not configured
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Report violations without changing the store",
		Long: `Load the document, run every reconciler in read-only mode and list
what a repair would change. Exits 1 when blocking violations are found.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
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

	result, err := svc.Validate(cmd.Context())
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error())
		return WrapExitError(ExitCommandError, "validate", err)
	}
	formatter.VerboseLog("checked at %s", domain.FormatTimestamp(result.CheckedAt))

	if err := outputValidation(formatter, result); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	if !result.IsValid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation found %d violation(s)", countBlocking(result.Violations)))
	}
	return nil
}

func outputValidation(f *OutputFormatter, result domain.ValidationResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	if !result.IsValid {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    ErrCodeViolations,
			Message: fmt.Sprintf("%d violation(s)", countBlocking(result.Violations)),
		}
	}
	if handled, err := f.Structured(resp); handled {
		return err
	}

	w := f.Writer
	if result.IsValid {
		fmt.Fprintln(w, "✓ Document is consistent")
	} else {
		fmt.Fprintf(w, "✗ Document has %d violation(s)\n", countBlocking(result.Violations))
	}
	writeViolations(w, result.Violations)
	writeParseFailures(w, result.ParseFailures)
	fmt.Fprintln(w)
	_, err := fmt.Fprintf(w, "partial invoices: %d\n", result.PartialInvoices)
	return err
}
