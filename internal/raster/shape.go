package raster

import (
	"math"
)

// events holds the fields extracted from a concrete input shape.
// Nil slices mark absent optional fields.
type events struct {
	times   []float64
	indices []int
	sizes   []int
	labels  []string
}

// resolveShape extracts the raster fields from a Mapping or Tuple.
func resolveShape(in RawInput) (*events, error) {
	switch v := in.(type) {
	case Mapping:
		return fromMapping(v)
	case *Mapping:
		if v == nil {
			return nil, malformed("input", "nil mapping")
		}
		return fromMapping(*v)
	case Tuple:
		return fromTuple(v)
	case FileRef:
		return nil, malformed("input", "file reference %q must be resolved by a file loader", v.Path)
	case nil, Absent:
		return nil, malformed("input", "no raster data given and no raster source resolved it")
	default:
		return nil, malformed("input", "unsupported input type %T", in)
	}
}

func fromMapping(m Mapping) (*events, error) {
	if m.SpikeTimes == nil {
		return nil, malformed("spikeTimes", "required")
	}
	if m.SpikeIndices == nil {
		return nil, malformed("spikeIndices", "required")
	}
	ev := &events{
		times:   m.SpikeTimes,
		indices: m.SpikeIndices,
		sizes:   m.PopulationSizes,
		labels:  m.PopulationLabels,
	}
	return ev, validateEvents(ev)
}

func fromTuple(t Tuple) (*events, error) {
	if len(t.Items) < 2 || len(t.Items) > 4 {
		return nil, malformed("input", "tuple must have 2 to 4 items, got %d", len(t.Items))
	}

	ev := &events{}
	var err error
	if ev.times, err = floatsOf("spikeTimes", t.Items[0]); err != nil {
		return nil, err
	}
	if ev.indices, err = intsOf("spikeIndices", t.Items[1]); err != nil {
		return nil, err
	}
	if len(t.Items) > 2 && t.Items[2] != nil {
		if ev.sizes, err = intsOf("populationSizes", t.Items[2]); err != nil {
			return nil, err
		}
	}
	if len(t.Items) > 3 && t.Items[3] != nil {
		if ev.labels, err = stringsOf("populationLabels", t.Items[3]); err != nil {
			return nil, err
		}
	}
	return ev, validateEvents(ev)
}

// validateEvents checks the per-event invariants.
func validateEvents(ev *events) error {
	if len(ev.times) != len(ev.indices) {
		return malformed("spikeIndices", "length %d does not match %d spike times", len(ev.indices), len(ev.times))
	}
	for i, t := range ev.times {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return malformed("spikeTimes", "event %d has non-finite time %v", i, t)
		}
	}
	for i, idx := range ev.indices {
		if idx < 0 {
			return malformed("spikeIndices", "event %d has negative cell index %d", i, idx)
		}
	}
	for k, n := range ev.sizes {
		if n < 0 {
			return malformed("populationSizes", "population %d has negative size %d", k, n)
		}
	}
	return nil
}

func floatsOf(field string, v any) ([]float64, error) {
	switch s := v.(type) {
	case nil:
		return nil, malformed(field, "required")
	case []float64:
		return s, nil
	case []int:
		out := make([]float64, len(s))
		for i, n := range s {
			out[i] = float64(n)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(s))
		for i, n := range s {
			out[i] = float64(n)
		}
		return out, nil
	case []any:
		out := make([]float64, len(s))
		for i, elem := range s {
			f, ok := toFloat(elem)
			if !ok {
				return nil, malformed(field, "item %d: expected a number, got %T", i, elem)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, malformed(field, "expected a sequence of numbers, got %T", v)
	}
}

func intsOf(field string, v any) ([]int, error) {
	switch s := v.(type) {
	case nil:
		return nil, malformed(field, "required")
	case []int:
		return s, nil
	case []int64:
		out := make([]int, len(s))
		for i, n := range s {
			out[i] = int(n)
		}
		return out, nil
	case []float64:
		out := make([]int, len(s))
		for i, f := range s {
			n, ok := integral(f)
			if !ok {
				return nil, malformed(field, "item %d: %v is not an integer", i, f)
			}
			out[i] = n
		}
		return out, nil
	case []any:
		out := make([]int, len(s))
		for i, elem := range s {
			f, ok := toFloat(elem)
			if !ok {
				return nil, malformed(field, "item %d: expected an integer, got %T", i, elem)
			}
			n, ok := integral(f)
			if !ok {
				return nil, malformed(field, "item %d: %v is not an integer", i, f)
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, malformed(field, "expected a sequence of integers, got %T", v)
	}
}

func stringsOf(field string, v any) ([]string, error) {
	switch s := v.(type) {
	case nil:
		return nil, malformed(field, "required")
	case []string:
		return s, nil
	case []any:
		out := make([]string, len(s))
		for i, elem := range s {
			str, ok := elem.(string)
			if !ok {
				return nil, malformed(field, "item %d: expected a string, got %T", i, elem)
			}
			out[i] = str
		}
		return out, nil
	default:
		return nil, malformed(field, "expected a sequence of strings, got %T", v)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func integral(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
