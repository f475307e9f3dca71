package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/rowbind/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                       `json:"valid"`
	Version int64                      `json:"version"`
	Classes int                        `json:"classes"`
	Errors  []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schema]",
		Short: "Validate a CUE schema without touching a database",
		Long: `Validate a CUE schema file or directory.

Reports every problem found: unknown types, bad defaults, duplicate or
mistyped primary keys and links to undeclared classes.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, rootOpts.schemaPath(args), cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, err := LoadSchemas(path)
	if err != nil {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		// A file that loads but does not compile is a validation failure.
		if loadErr.Pos.IsValid() || isCompileCode(loadErr.Code) {
			return outputValidationErrors(formatter, []compiler.ValidationError{{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr.Pos),
			}})
		}
		return formatter.fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, path)
	for _, obj := range loaded.Compiled.Classes {
		formatter.VerboseLog("Validating class: %s", obj.ClassName)
	}

	if errs := compiler.Validate(loaded.Compiled); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	result := ValidationResult{
		Valid:   true,
		Version: loaded.Compiled.Version,
		Classes: len(loaded.Compiled.Classes),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Schema valid (%d class(es), version %d)\n", result.Classes, result.Version)
	return nil
}

func isCompileCode(code string) bool {
	switch code {
	case ErrCodeInvalidType, ErrCodeInvalidDefault, ErrCodeInvalidVersion,
		ErrCodeInvalidProperty, ErrCodeInvalidClass, ErrCodeBuildFailed:
		return true
	}
	return false
}

// lineOf extracts the line number from a token.Pos.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	// Validation failures = exit code 1
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	exitErr.reported = true

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return exitErr
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return exitErr
}
