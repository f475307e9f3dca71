package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rowbind/internal/compiler"
	"github.com/roach88/rowbind/internal/schema"
)

// ClassSummary is the JSON form of one compiled class.
type ClassSummary struct {
	*schema.ObjectSchema
	Fingerprint string `json:"fingerprint"`
}

// SchemaResult is the JSON payload of the schema command.
type SchemaResult struct {
	Version int64          `json:"version"`
	Classes []ClassSummary `json:"classes"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [schema]",
		Short: "Print the compiled form of a CUE schema",
		Long: `Compile and validate a CUE schema, then print every class with its
properties, flags and defaults. JSON output includes a fingerprint per class
that changes whenever the class shape changes.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, rootOpts.schemaPath(args), cmd)
		},
	}
	return cmd
}

func runSchema(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	s, version, err := loadSchema(path)
	if err != nil {
		return failLoad(formatter, err)
	}

	result := SchemaResult{Version: version}
	for _, obj := range s.ObjectSchemas() {
		result.Classes = append(result.Classes, ClassSummary{ObjectSchema: obj, Fingerprint: obj.Fingerprint()})
	}
	return formatter.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "schema version %d\n\n", version)
		io.WriteString(w, s.Describe())
	})
}

// loadSchema loads, validates and builds the schema at path.
func loadSchema(path string) (*schema.Schema, int64, error) {
	loaded, err := LoadSchemas(path)
	if err != nil {
		return nil, 0, err
	}
	s, err := loaded.Compiled.Schema()
	if err != nil {
		return nil, 0, err
	}
	return s, loaded.Compiled.Version, nil
}

// failLoad reports an error from loadSchema.
func failLoad(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		exitCode := ExitCommandError
		if isCompileCode(loadErr.Code) {
			exitCode = ExitFailure
		}
		return formatter.fail(exitCode, loadErr.Code, loadErr.Error(), nil)
	}
	var ve compiler.ValidationError
	if errors.As(err, &ve) {
		return formatter.fail(ExitFailure, ve.Code, ve.Error(), nil)
	}
	return formatter.fail(ExitFailure, ErrCodeGeneric, "invalid schema", err)
}
