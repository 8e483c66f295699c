package raster

import "fmt"

// RawInput is raster data in one of the accepted input shapes.
//
// The set of implementations is closed: Mapping, Tuple, FileRef and Absent.
// Consumers switch on the concrete type; any other value is rejected.
type RawInput interface {
	rawInput()
}

// Mapping is the keyed input shape.
//
// SpikeTimes and SpikeIndices are required. A nil slice means the key was
// absent; an empty non-nil slice is a valid raster with no spikes.
// PopulationSizes and PopulationLabels are optional (nil = absent).
type Mapping struct {
	SpikeTimes       []float64 `json:"spkTimes" yaml:"spkTimes" mapstructure:"spkTimes" jsonschema:"required"`
	SpikeIndices     []int     `json:"spkInds" yaml:"spkInds" mapstructure:"spkInds" jsonschema:"required"`
	PopulationSizes  []int     `json:"popNumCells,omitempty" yaml:"popNumCells,omitempty" mapstructure:"popNumCells"`
	PopulationLabels []string  `json:"popLabels,omitempty" yaml:"popLabels,omitempty" mapstructure:"popLabels"`
}

// Tuple is the positional input shape: (times, indices[, sizes[, labels]]).
//
// Items holds 2 to 4 elements. Numeric sequences may be typed slices
// ([]float64, []int, []int64) or []any of numbers, as produced by generic
// decoders.
type Tuple struct {
	Items []any
}

// NewTuple builds a Tuple from its positional elements.
func NewTuple(items ...any) Tuple {
	return Tuple{Items: items}
}

// FileRef points at persisted raster data resolved by a FileLoader.
type FileRef struct {
	Path string
}

// Absent requests raster data from the injected RasterSource.
type Absent struct{}

func (Mapping) rawInput() {}
func (Tuple) rawInput()   {}
func (FileRef) rawInput() {}
func (Absent) rawInput()  {}

// Describe returns a short human-readable name for the input's shape.
func Describe(in RawInput) string {
	switch v := in.(type) {
	case nil, Absent:
		return "absent"
	case Mapping:
		return "mapping"
	case *Mapping:
		return "mapping"
	case Tuple:
		return fmt.Sprintf("tuple/%d", len(v.Items))
	case FileRef:
		return "file:" + v.Path
	default:
		return fmt.Sprintf("unknown(%T)", in)
	}
}

// NormalizedRaster is the canonical raster produced by Normalize.
//
// Times and Indices are parallel: event i fired at Times[i] from cell
// Indices[i]. Population k owns the index range
// [sum(PopulationSizes[:k]), sum(PopulationSizes[:k+1])).
//
// A NormalizedRaster is never mutated after construction.
type NormalizedRaster struct {
	Times            []float64 `json:"times"`
	Indices          []int     `json:"indices"`
	PopulationSizes  []int     `json:"populationSizes"`
	PopulationLabels []string  `json:"populationLabels"`

	// Window is the retained time window when the event bound narrowed
	// the raster; nil when every event was kept.
	Window *TimeRange `json:"window,omitempty"`
}

// Len returns the number of events.
func (r *NormalizedRaster) Len() int {
	return len(r.Times)
}

// AsTuple returns the raster as a four-element Tuple input.
func (r *NormalizedRaster) AsTuple() Tuple {
	return NewTuple(r.Times, r.Indices, r.PopulationSizes, r.PopulationLabels)
}

// TimeRange is a closed-open interval of simulation time in milliseconds.
type TimeRange struct {
	Start float64 `json:"start" yaml:"start" validate:"gte=0"`
	Stop  float64 `json:"stop" yaml:"stop" validate:"gtfield=Start"`
}

// Contains reports whether t falls in [Start, Stop).
func (tr TimeRange) Contains(t float64) bool {
	return t >= tr.Start && t < tr.Stop
}

// Span returns Stop - Start.
func (tr TimeRange) Span() float64 {
	return tr.Stop - tr.Start
}

func (tr TimeRange) String() string {
	return fmt.Sprintf("[%g, %g)", tr.Start, tr.Stop)
}
