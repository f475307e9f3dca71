package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rowbind/internal/compiler"
)

// LoadResult contains a loaded schema file or directory.
type LoadResult struct {
	Compiled  *compiler.Compiled
	FileCount int // Number of CUE files loaded
}

// LoadError represents an error that occurred during schema loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchemas loads and compiles a CUE schema. path is either a single .cue
// file or a directory whose .cue files form one package.
func LoadSchemas(path string) (*LoadResult, error) {
	if path == "" {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "no schema path given"}
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema path: %v", err)}
	}

	var (
		dir   = path
		args  = []string{"."}
		files = 1
	)
	if info.IsDir() {
		cueFiles, err := FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(cueFiles) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
		files = len(cueFiles)
	} else {
		if filepath.Ext(path) != ".cue" {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("not a CUE file: %s", path)}
		}
		dir, args = filepath.Dir(path), []string{filepath.Base(path)}
	}

	// Load CUE instances
	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	compiled, err := compiler.CompileSchema(value)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return &LoadResult{Compiled: compiled, FileCount: files}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeOpenFailed  = "E007" // Database open or sync failed
	ErrCodeConfig      = "E008" // Config file error

	// Schema file errors
	ErrCodeInvalidType     = "E010" // Unknown or misused property type
	ErrCodeInvalidDefault  = "E011" // Default does not fit the property type
	ErrCodeInvalidVersion  = "E012" // Version is not an integer
	ErrCodeInvalidProperty = "E013" // Property is neither a type name nor a struct
	ErrCodeInvalidClass    = "E014" // Class is not a struct
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "type":
		return ErrCodeInvalidType
	case field == "default":
		return ErrCodeInvalidDefault
	case field == "version":
		return ErrCodeInvalidVersion
	case field == "property":
		return ErrCodeInvalidProperty
	case field == "class" || strings.HasPrefix(field, "class."):
		return ErrCodeInvalidClass
	default:
		return ErrCodeGeneric
	}
}
