package loader

import (
	"github.com/tidwall/gjson"

	"github.com/roach88/spikeraster/internal/raster"
)

// decodeJSON dispatches on document shape: a top-level array is a
// positional tuple, an object with simData.spkt is netpyne simulation
// output, any other object is a raster mapping. Only simulation output
// comes with a Lookup.
func decodeJSON(path string, data []byte) (*raster.Prepared, error) {
	if !gjson.ValidBytes(data) {
		return nil, &LoadError{Code: ErrCodeParse, Path: path, Message: "invalid JSON"}
	}
	doc := gjson.ParseBytes(data)

	switch {
	case doc.IsArray():
		return &raster.Prepared{Input: raster.Tuple{Items: tupleItems(doc.Array())}}, nil
	case doc.IsObject() && doc.Get("simData.spkt").Exists():
		sim, err := simulationFromJSON(path, doc)
		if err != nil {
			return nil, err
		}
		m, lookup := rasterFromSimulation(sim)
		return &raster.Prepared{Input: m, Lookup: lookup}, nil
	case doc.IsObject():
		obj, _ := doc.Value().(map[string]any)
		m, err := decodeMapping(path, obj)
		if err != nil {
			return nil, err
		}
		return &raster.Prepared{Input: m}, nil
	default:
		return nil, &LoadError{Code: ErrCodeShape, Path: path, Message: "expected a JSON object or array"}
	}
}

func tupleItems(results []gjson.Result) []any {
	items := make([]any, len(results))
	for i, r := range results {
		if r.Type == gjson.Null {
			continue
		}
		items[i] = r.Value()
	}
	return items
}
