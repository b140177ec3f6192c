// Package cli implements posctl, the operator maintenance command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"posdoctor/internal/config"
	"posdoctor/internal/logger"
	"posdoctor/internal/reconcile"
	"posdoctor/internal/service"
	"posdoctor/internal/store"
	"posdoctor/internal/store/backend"
)

// OpenFunc opens the document store named by cfg and returns its closer.
type OpenFunc func(ctx context.Context, cfg config.Config) (store.DocumentStore, func() error, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"
	Store   string // overrides STORE_BACKEND
	Data    string // overrides DATA_FILE or SQLITE_PATH

	// Open defaults to backend.Open. Now defaults to the wall clock.
	Open OpenFunc
	Now  func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for posctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posctl",
		Short: "Check and repair the POS document store",
		Long: `posctl validates, repairs and resets the persisted POS state
(shifts, the active shift pointer and sales invoices).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "store backend (memory|file|sqlite|postgres|redis|mongo)")
	cmd.PersistentFlags().StringVar(&opts.Data, "data", "", "data file for the file and sqlite backends")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRepairCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// config reads the environment and applies the --store and --data flags.
func (o *RootOptions) config() config.Config {
	cfg := config.Load()
	if o.Store != "" {
		cfg.StoreBackend = strings.ToLower(strings.TrimSpace(o.Store))
	}
	if o.Data != "" {
		cfg.DataFile = o.Data
		cfg.SQLitePath = o.Data
	}
	return cfg
}

func (o *RootOptions) logger(w io.Writer) zerolog.Logger {
	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	return logger.New(logger.Config{Env: "development", Level: level, Out: w})
}

// openService opens the configured store and builds a service on top of it.
// The returned function closes the store.
func (o *RootOptions) openService(ctx context.Context, cmd *cobra.Command) (*service.Service, func(), error) {
	cfg := o.config()
	open := o.Open
	if open == nil {
		open = backend.Open
	}
	st, closeStore, err := open(ctx, cfg)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "open store", err)
	}

	log := o.logger(cmd.ErrOrStderr())
	svc := service.New(st, nil, nil, log, service.Options{
		Reconcile: reconcile.Options{
			StaleAfter:             cfg.StaleAfter(),
			StampEndTimeOnDemotion: cfg.StampDemotedEndTime,
			ClearStalePointer:      cfg.ClearStalePointer,
		},
		AdminPassword: cfg.SeedAdminPassword,
		Now:           o.Now,
	})
	release := func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}
	return svc, release, nil
}
