// Package loader resolves persisted raster data into raster inputs.
//
// Supported formats, chosen by file extension and falling back to content
// sniffing when the extension is unknown:
//
//	.json         raster mapping, positional array, or netpyne simulation output
//	.yaml, .yml   raster mapping or positional sequence
//	.csv          two columns: spike time and cell index
//	.db, .sqlite  simulation store (latest dataset, all cells)
//
// Loader implements raster.FileLoader.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/roach88/spikeraster/internal/raster"
)

// Error codes for load failures.
const (
	ErrCodeNotFound    = "E101" // File does not exist
	ErrCodeRead        = "E102" // File could not be read
	ErrCodeUnsupported = "E103" // Unknown file format
	ErrCodeParse       = "E104" // Syntax error in file
	ErrCodeShape       = "E105" // File parsed but does not hold raster data
)

// LoadError describes a file that could not be turned into raster input.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Path, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsLoadError reports whether err is or wraps a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Format identifies a raster file format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatCSV      Format = "csv"
	FormatDatabase Format = "sqlite"
)

// Loader reads raster files from a filesystem.
type Loader struct {
	fs afero.Fs
}

// New creates a Loader over fs. A nil fs means the OS filesystem.
func New(fs afero.Fs) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{fs: fs}
}

// Load reads path and returns a Mapping or Tuple.
func (l *Loader) Load(ctx context.Context, path string) (raster.RawInput, error) {
	prepared, err := l.LoadPrepared(ctx, path)
	if err != nil {
		return nil, err
	}
	return prepared.Input, nil
}

// LoadPrepared reads path like Load and also returns the cell attribute
// registry when the file has one. Simulation output and databases do;
// plain raster files get a nil Lookup.
func (l *Loader) LoadPrepared(ctx context.Context, path string) (*raster.Prepared, error) {
	format, data, err := l.detect(path)
	if err != nil {
		return nil, err
	}

	slog.Debug("loading raster file", "path", path, "format", format)

	var in raster.RawInput
	switch format {
	case FormatJSON:
		return decodeJSON(path, data)
	case FormatYAML:
		in, err = decodeYAML(path, data)
	case FormatCSV:
		in, err = decodeCSV(path, data)
	case FormatDatabase:
		return loadDatabase(ctx, path)
	default:
		return nil, &LoadError{Code: ErrCodeUnsupported, Path: path, Message: fmt.Sprintf("unsupported format %q", format)}
	}
	if err != nil {
		return nil, err
	}
	return &raster.Prepared{Input: in}, nil
}

// detect determines the file format. Database files are not read here
// because SQLite opens them by path.
func (l *Loader) detect(path string) (Format, []byte, error) {
	exists, err := afero.Exists(l.fs, path)
	if err != nil {
		return "", nil, &LoadError{Code: ErrCodeRead, Path: path, Message: "stat failed", Err: err}
	}
	if !exists {
		return "", nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "file not found"}
	}

	format, known := formatFromExt(path)
	if known && format == FormatDatabase {
		return format, nil, nil
	}

	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return "", nil, &LoadError{Code: ErrCodeRead, Path: path, Message: "read failed", Err: err}
	}
	if known {
		return format, data, nil
	}

	format, ok := formatFromContent(data)
	if !ok {
		mt := mimetype.Detect(data)
		return "", nil, &LoadError{Code: ErrCodeUnsupported, Path: path, Message: fmt.Sprintf("cannot load %s content", mt.String())}
	}
	return format, data, nil
}

func formatFromExt(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".csv":
		return FormatCSV, true
	case ".db", ".sqlite", ".sqlite3":
		return FormatDatabase, true
	default:
		return "", false
	}
}

// formatFromContent sniffs the MIME type of data.
func formatFromContent(data []byte) (Format, bool) {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is("application/json"):
			return FormatJSON, true
		case m.Is("text/csv"):
			return FormatCSV, true
		case m.Is("application/vnd.sqlite3"):
			return FormatDatabase, true
		case m.Is("text/plain"):
			// YAML has no magic; plain text is tried as YAML.
			return FormatYAML, true
		}
	}
	return "", false
}
