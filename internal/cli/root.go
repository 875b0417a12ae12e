package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/hollow/internal/config"
	"github.com/roach88/hollow/internal/session"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DB         string

	// set by the root command before any subcommand runs
	cfg    config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the hollow CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hollow",
		Short: "hollow - typed holes for incremental programs",
		Long: `Declare typed holes, fill and constrain them, and let the engine
propagate the consequences through the hole graph.

Sessions live in a SQLite database (--db) and survive across invocations.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "session database (overrides config)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewNewCommand(opts))
	cmd.AddCommand(NewDeclareCommand(opts))
	cmd.AddCommand(NewFillCommand(opts))
	cmd.AddCommand(NewConstrainCommand(opts))
	cmd.AddCommand(NewDeferCommand(opts))
	cmd.AddCommand(NewReopenCommand(opts))
	cmd.AddCommand(NewRevertCommand(opts))
	cmd.AddCommand(NewUndoCommand(opts))
	cmd.AddCommand(NewRedoCommand(opts))
	cmd.AddCommand(NewBranchCommand(opts))
	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func (o *RootOptions) init(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		format := o.Format
		o.Format = "text"
		return o.formatter(cmd).Fail("invalid flags", NewExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", format, ValidFormats)))
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return o.formatter(cmd).Fail("loading config", WrapExitError(ExitCommandError, o.ConfigPath, err))
	}
	if o.DB != "" {
		cfg.DB = o.DB
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	o.cfg = cfg
	o.logger = cfg.Logger(cmd.ErrOrStderr())
	return nil
}

// Config returns the effective configuration.
func (o *RootOptions) Config() config.Config { return o.cfg }

// sessionOptions configures sessions the commands create or load.
func (o *RootOptions) sessionOptions() []session.Option {
	return o.cfg.SessionOptions(o.logger)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
