package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/rowbind/internal/realm"
	"github.com/roach88/rowbind/internal/schema"
	"github.com/roach88/rowbind/internal/store"
)

// MigrateResult is the JSON payload of the migrate command.
type MigrateResult struct {
	Path        string                 `json:"path"`
	FromVersion int64                  `json:"from_version"`
	Version     int64                  `json:"version"`
	Classes     []*schema.ObjectSchema `json:"classes"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "migrate [schema] --db <path>",
		Short: "Bring a database in line with a CUE schema",
		Long: `Open the database with the given schema, creating it if needed.

Tables, columns and indexes are added, changed or dropped to match the schema
and the schema version is recorded. Changing existing tables requires a
version bump; a lower version than the stored one is rejected. Values of
columns whose type changed are reset, since no migration code runs here.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, rootOpts.schemaPath(args), rootOpts.dbPath(dbPath), cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "database file")
	return cmd
}

func runMigrate(opts *RootOptions, schemaPath, dbPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if dbPath == "" {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, "no database given (use --db)", nil)
	}

	s, version, err := loadSchema(schemaPath)
	if err != nil {
		return failLoad(formatter, err)
	}

	from, err := storedVersion(cmd.Context(), dbPath, opts.logger())
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeOpenFailed, "read database", err)
	}
	formatter.VerboseLog("Migrating %s from version %d to %d", dbPath, from, version)

	r, err := realm.Open(cmd.Context(), realm.Config{
		Path:          dbPath,
		Schema:        s,
		SchemaVersion: version,
		Logger:        opts.logger(),
	})
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeOpenFailed, "migrate", err)
	}
	defer r.Close()

	result := MigrateResult{
		Path:        dbPath,
		FromVersion: from,
		Version:     version,
		Classes:     r.Schema().ObjectSchemas(),
	}
	return formatter.Emit(result, func(w io.Writer) {
		if from == version {
			fmt.Fprintf(w, "✓ %s is at schema version %d\n\n", dbPath, version)
		} else {
			fmt.Fprintf(w, "✓ Migrated %s from %s to version %d\n\n", dbPath, versionString(from), version)
		}
		io.WriteString(w, r.Schema().Describe())
	})
}

// storedVersion reads the recorded version, creating the file if needed.
func storedVersion(ctx context.Context, path string, log *slog.Logger) (int64, error) {
	st, err := store.Open(path, store.WithLogger(log))
	if err != nil {
		return 0, err
	}
	defer st.Close()
	return st.Version(ctx)
}

func versionString(v int64) string {
	if v == store.NotVersioned {
		return "an empty database"
	}
	return fmt.Sprintf("version %d", v)
}
