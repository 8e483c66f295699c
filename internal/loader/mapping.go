package loader

import (
	"fmt"
	"math"
	"reflect"

	"github.com/go-viper/mapstructure/v2"

	"github.com/roach88/spikeraster/internal/raster"
)

// keyAliases maps accepted long-form keys to the canonical mapping keys.
var keyAliases = map[string]string{
	"spikeTimes":       "spkTimes",
	"spikeIndices":     "spkInds",
	"populationSizes":  "popNumCells",
	"populationLabels": "popLabels",
}

// decodeMapping converts a generic decoded document into a raster.Mapping.
// Non-integral numbers in integer fields are rejected rather than
// truncated.
func decodeMapping(path string, doc map[string]any) (raster.Mapping, error) {
	canonical := make(map[string]any, len(doc))
	for k, v := range doc {
		if alias, ok := keyAliases[k]; ok {
			if _, dup := doc[alias]; dup {
				return raster.Mapping{}, &LoadError{
					Code:    ErrCodeShape,
					Path:    path,
					Message: fmt.Sprintf("both %q and %q given", k, alias),
				}
			}
			k = alias
		}
		canonical[k] = v
	}

	// A null value counts as missing.
	for _, req := range [...]struct{ key, field string }{
		{"spkTimes", "spikeTimes"},
		{"spkInds", "spikeIndices"},
	} {
		if canonical[req.key] == nil {
			return raster.Mapping{}, &LoadError{
				Code:    ErrCodeShape,
				Path:    path,
				Message: "missing " + req.key,
				Err:     &raster.MalformedInputError{Field: req.field, Reason: "missing"},
			}
		}
	}

	var m raster.Mapping
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: rejectFractionalInts,
		Result:     &m,
		TagName:    "mapstructure",
	})
	if err != nil {
		return raster.Mapping{}, fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(canonical); err != nil {
		return raster.Mapping{}, &LoadError{Code: ErrCodeShape, Path: path, Message: "invalid raster mapping", Err: err}
	}

	// An empty sequence must stay distinguishable from a missing key.
	if m.SpikeTimes == nil {
		m.SpikeTimes = []float64{}
	}
	if m.SpikeIndices == nil {
		m.SpikeIndices = []int{}
	}
	return m, nil
}

func rejectFractionalInts(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Int {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Float32, reflect.Float64:
		f := reflect.ValueOf(data).Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not an integer", f)
		}
	}
	return data, nil
}
