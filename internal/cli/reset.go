package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"posdoctor/internal/domain"
	"posdoctor/internal/service"
)

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Overwrite the store with the default document",
		Long: `Replace every key with the default document: empty collections, a
single admin account, default store info and settings. The admin password
is read from SEED_ADMIN_PASSWORD. Requires --yes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(rootOpts, yes, cmd)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm that all data will be replaced")

	return cmd
}

func runReset(opts *RootOptions, yes bool, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if !yes {
		err := WrapExitError(ExitCommandError, "pass --yes to replace all data", service.ErrResetNotConfirmed)
		_ = formatter.Error(ErrCodeReset, err.Error())
		return err
	}

	svc, release, err := opts.openService(cmd.Context(), cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error())
		return err
	}
	defer release()

	ctx := service.WithActor(cmd.Context(), domain.Actor{Username: "posctl", Role: "admin"})
	_, result, err := svc.Reset(ctx)
	if err != nil {
		code := ErrCodeStore
		if errors.Is(err, service.ErrResetNotConfigured) {
			code = ErrCodeReset
		}
		_ = formatter.Error(code, err.Error())
		return WrapExitError(ExitCommandError, "reset", err)
	}
	formatter.VerboseLog("run %s", result.RunID)

	if handled, err := formatter.Structured(CLIResponse{Status: "ok", Data: result}); handled {
		return err
	}
	_, err = fmt.Fprintf(formatter.Writer, "✓ Reset %d key(s): %s\n", len(result.Keys), strings.Join(result.Keys, ", "))
	return err
}
