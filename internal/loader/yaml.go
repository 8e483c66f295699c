package loader

import (
	"bytes"
	"errors"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/roach88/spikeraster/internal/raster"
)

// decodeYAML reads a raster mapping or a positional sequence.
func decodeYAML(path string, data []byte) (raster.RawInput, error) {
	var doc any
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Code: ErrCodeShape, Path: path, Message: "empty document"}
		}
		return nil, &LoadError{Code: ErrCodeParse, Path: path, Message: "invalid YAML", Err: err}
	}

	switch v := doc.(type) {
	case []any:
		return raster.Tuple{Items: v}, nil
	case map[string]any:
		return decodeMapping(path, v)
	default:
		return nil, &LoadError{Code: ErrCodeShape, Path: path, Message: "expected a YAML mapping or sequence"}
	}
}
