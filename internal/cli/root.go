package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // optional YAML config file
	LogLevel string

	// Logger is set up before any subcommand runs.
	Logger *slog.Logger

	cfg *Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rowbind CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rowbind",
		Short: "rowbind - object schemas over an embedded store",
		Long: `Inspect and migrate rowbind databases.

Schemas are written in CUE: a version and one struct per class under "class".
The same schema files drive validation, migration and inspection.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "YAML config file with default schema and db paths")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))

	return cmd
}

// setup applies the config file, validates global flags and builds the logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if o.Config != "" {
		cfg, err := LoadConfig(o.Config)
		if err != nil {
			return WrapExitError(ExitCommandError, ErrCodeConfig+": invalid config", err)
		}
		o.cfg = cfg
		flags := cmd.Flags()
		if cfg.Format != "" && !flags.Changed("format") {
			o.Format = cfg.Format
		}
		if cfg.Verbose && !flags.Changed("verbose") {
			o.Verbose = true
		}
		if cfg.LogLevel != "" && !flags.Changed("log-level") {
			o.LogLevel = cfg.LogLevel
		}
	}

	// Validate format flag
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	level, err := parseLevel(o.LogLevel)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --log-level", err)
	}
	if o.Verbose && o.LogLevel == "" {
		level = slog.LevelDebug
	}
	o.Logger = newLogger(cmd.ErrOrStderr(), level)
	return nil
}

// logger returns the configured logger, or the default one for commands
// constructed without the root command.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// schemaPath returns the positional schema argument or the configured default.
func (o *RootOptions) schemaPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if o.cfg != nil {
		return o.cfg.Schema
	}
	return ""
}

// dbPath returns the --db flag value or the configured default.
func (o *RootOptions) dbPath(flag string) string {
	if flag == "" && o.cfg != nil {
		return o.cfg.DB
	}
	return flag
}

// formatter builds the output formatter for cmd.
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
