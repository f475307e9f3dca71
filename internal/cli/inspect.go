package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rowbind/internal/store"
)

// TableSummary describes one class table of an inspected database.
type TableSummary struct {
	store.Table
	Rows int64 `json:"rows"`
}

// InspectResult is the JSON payload of the inspect command.
type InspectResult struct {
	Path    string         `json:"path"`
	Version int64          `json:"version"`
	Tables  []TableSummary `json:"tables"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "inspect --db <path>",
		Short: "Show the stored layout of a database",
		Long: `Open a database read-only and print its schema version, its class
tables with their columns, and the number of rows in each. No schema file is
needed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, rootOpts.dbPath(dbPath), cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "database file")
	return cmd
}

func runInspect(opts *RootOptions, dbPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if dbPath == "" {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, "no database given (use --db)", nil)
	}
	if _, err := os.Stat(dbPath); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, "database not found: "+dbPath, nil)
	}

	ctx := cmd.Context()
	st, err := store.Open(dbPath, store.ReadOnly(), store.WithLogger(opts.logger()))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeOpenFailed, "open database", err)
	}
	defer st.Close()

	version, err := st.Version(ctx)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeOpenFailed, "read version", err)
	}
	spec, err := st.Describe(ctx)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeOpenFailed, "read layout", err)
	}

	result := InspectResult{Path: dbPath, Version: version, Tables: []TableSummary{}}
	for _, t := range spec.Tables {
		n, err := st.Count(ctx, t.Name)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeOpenFailed, "count "+t.Name, err)
		}
		result.Tables = append(result.Tables, TableSummary{Table: t, Rows: n})
	}

	return formatter.Emit(result, func(w io.Writer) {
		if version == store.NotVersioned {
			fmt.Fprintf(w, "%s: not versioned\n", dbPath)
		} else {
			fmt.Fprintf(w, "%s: schema version %d\n", dbPath, version)
		}
		for _, t := range result.Tables {
			fmt.Fprintf(w, "\nclass %s (%d row(s))\n", t.Name, t.Rows)
			writeColumns(w, t.Columns)
		}
	})
}

func writeColumns(w io.Writer, cols []store.Column) {
	width := 0
	for _, c := range cols {
		width = max(width, len(c.Name))
	}
	for _, c := range cols {
		line := fmt.Sprintf("  %-*s  %s", width, c.Name, c.String())
		if c.Indexed {
			line += "  [indexed]"
		}
		fmt.Fprintln(w, line)
	}
}
