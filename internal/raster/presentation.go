package raster

import (
	"slices"
)

// Range is a half-open cell-index range [Start, End).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether idx falls in the range.
func (r Range) Contains(idx int) bool {
	return idx >= r.Start && idx < r.End
}

// Boundaries returns the index range owned by each population.
func (r *NormalizedRaster) Boundaries() []Range {
	out := make([]Range, len(r.PopulationSizes))
	start := 0
	for k, n := range r.PopulationSizes {
		out[k] = Range{Start: start, End: start + n}
		start += n
	}
	return out
}

// PopulationCounts returns the number of events whose index falls in each
// population's range.
func (r *NormalizedRaster) PopulationCounts() []int {
	bounds := r.Boundaries()
	counts := make([]int, len(bounds))
	for _, idx := range r.Indices {
		for k, b := range bounds {
			if b.Contains(idx) {
				counts[k]++
				break
			}
		}
	}
	return counts
}

// DistinctIndices returns the distinct cell indices in ascending order.
func (r *NormalizedRaster) DistinctIndices() []int {
	out := slices.Clone(r.Indices)
	slices.Sort(out)
	return slices.Compact(out)
}

// Marker is a vertical line at X spanning [YMin, YMax].
type Marker struct {
	X    float64 `json:"x"`
	YMin float64 `json:"yMin"`
	YMax float64 `json:"yMax"`
}

// SyncMarkers returns one vertical marker per spike, grouped by cell in
// ascending index order. Each marker spans from 0 to the number of
// distinct cells. This is a presentation decoration, not a synchrony
// statistic.
func (r *NormalizedRaster) SyncMarkers() []Marker {
	cells := r.DistinctIndices()
	yMax := float64(len(cells))

	byCell := make(map[int][]float64, len(cells))
	for i, idx := range r.Indices {
		byCell[idx] = append(byCell[idx], r.Times[i])
	}

	markers := make([]Marker, 0, len(r.Times))
	for _, idx := range cells {
		for _, t := range byCell[idx] {
			markers = append(markers, Marker{X: t, YMin: 0, YMax: yMax})
		}
	}
	return markers
}

// TimeExtent returns the smallest and largest event time.
// ok is false for an empty raster.
func (r *NormalizedRaster) TimeExtent() (lo, hi float64, ok bool) {
	if len(r.Times) == 0 {
		return 0, 0, false
	}
	return slices.Min(r.Times), slices.Max(r.Times), true
}

// PopulationStats summarizes one population.
type PopulationStats struct {
	Label string  `json:"label"`
	Size  int     `json:"size"`
	Count int     `json:"count"`
	Rate  float64 `json:"rate"` // mean firing rate in Hz
}

// Stats summarizes a raster.
type Stats struct {
	Events      int               `json:"events"`
	Cells       int               `json:"cells"`
	Span        float64           `json:"span"` // ms
	Rate        float64           `json:"rate"` // mean firing rate over all cells, Hz
	Populations []PopulationStats `json:"populations"`
}

// Stats computes event counts and mean firing rates.
//
// Rates use the duration of window when given, else the raster's own
// time extent. Times are in milliseconds; rates are in Hz. Populations
// with no cells, or a zero duration, report a rate of 0.
func (r *NormalizedRaster) Stats(window *TimeRange) Stats {
	st := Stats{
		Events: len(r.Times),
		Cells:  len(r.DistinctIndices()),
	}

	switch {
	case window != nil:
		st.Span = window.Span()
	case r.Window != nil:
		st.Span = r.Window.Span()
	default:
		if lo, hi, ok := r.TimeExtent(); ok {
			st.Span = hi - lo
		}
	}

	counts := r.PopulationCounts()
	totalCells := 0
	st.Populations = make([]PopulationStats, len(r.PopulationSizes))
	for k, n := range r.PopulationSizes {
		totalCells += n
		st.Populations[k] = PopulationStats{
			Label: r.PopulationLabels[k],
			Size:  n,
			Count: counts[k],
			Rate:  rate(counts[k], n, st.Span),
		}
	}
	st.Rate = rate(st.Events, totalCells, st.Span)
	return st
}

func rate(count, cells int, spanMS float64) float64 {
	if cells <= 0 || spanMS <= 0 {
		return 0
	}
	return float64(count) / float64(cells) / (spanMS / 1000)
}
