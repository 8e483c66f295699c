package raster

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/text/unicode/norm"
)

// DefaultPopulationLabel is the single label used when no population
// labels are supplied. Several sizes without labels are malformed.
const DefaultPopulationLabel = "Population"

// DefaultInclude selects every cell and no stimulators.
var DefaultInclude = []string{"allCells"}

// Options controls normalization.
type Options struct {
	// OrderBy is "index" (alias "gid") or a cell attribute name.
	// Empty means "index".
	OrderBy string

	// MaxEvents bounds the number of retained events by narrowing the
	// time range. Zero means unbounded; negative values are rejected.
	MaxEvents int

	// Lookup resolves attribute ordering keys. Required when OrderBy is
	// an attribute name.
	Lookup AttributeLookup

	// PopulationSizes and PopulationLabels are used when the input
	// itself carries no population metadata.
	PopulationSizes  []int
	PopulationLabels []string

	// Include and TimeRange are forwarded to the RasterSource when the
	// input is Absent.
	Include   []string
	TimeRange *TimeRange
}

// FileLoader resolves a persisted raster dataset.
type FileLoader interface {
	Load(ctx context.Context, path string) (RawInput, error)
}

// PreparedLoader is a FileLoader whose files may also carry a cell
// attribute registry, as simulation output does.
type PreparedLoader interface {
	FileLoader
	LoadPrepared(ctx context.Context, path string) (*Prepared, error)
}

// SourceRequest selects raster data from a live simulation.
type SourceRequest struct {
	Include   []string
	TimeRange *TimeRange
	MaxSpikes int
	OrderBy   string
}

// Prepared is raster data supplied by a RasterSource together with the
// simulation's cell attribute registry.
type Prepared struct {
	Input  RawInput
	Lookup AttributeLookup
}

// RasterSource supplies raster data when no explicit input is given.
type RasterSource interface {
	PrepareRaster(ctx context.Context, req SourceRequest) (*Prepared, error)
}

// Normalizer resolves FileRef and Absent inputs through its collaborators
// before normalizing. Both collaborators are optional; a missing one only
// fails the inputs that need it.
type Normalizer struct {
	Loader FileLoader
	Source RasterSource
}

// Normalize resolves in and normalizes the result.
// A lookup supplied by the RasterSource or a PreparedLoader is used unless
// opts.Lookup is set.
func (n *Normalizer) Normalize(ctx context.Context, in RawInput, opts Options) (*NormalizedRaster, error) {
	resolved, lookup, err := n.Resolve(ctx, in, opts)
	if err != nil {
		return nil, err
	}
	if opts.Lookup == nil {
		opts.Lookup = lookup
	}
	return Normalize(resolved, opts)
}

// Resolve turns FileRef and Absent inputs into concrete Mapping or Tuple
// inputs. Concrete inputs are returned unchanged.
func (n *Normalizer) Resolve(ctx context.Context, in RawInput, opts Options) (RawInput, AttributeLookup, error) {
	switch v := in.(type) {
	case nil, Absent:
		if n.Source == nil {
			return nil, nil, ErrNoSource
		}
		include := opts.Include
		if len(include) == 0 {
			include = DefaultInclude
		}
		prepared, err := n.Source.PrepareRaster(ctx, SourceRequest{
			Include:   include,
			TimeRange: opts.TimeRange,
			MaxSpikes: opts.MaxEvents,
			OrderBy:   opts.OrderBy,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("prepare raster: %w", err)
		}
		if err := requireConcrete(prepared.Input); err != nil {
			return nil, nil, err
		}
		return prepared.Input, prepared.Lookup, nil
	case FileRef:
		if n.Loader == nil {
			return nil, nil, ErrNoLoader
		}
		prepared, err := n.load(ctx, v.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", v.Path, err)
		}
		if err := requireConcrete(prepared.Input); err != nil {
			return nil, nil, err
		}
		return prepared.Input, prepared.Lookup, nil
	default:
		return in, nil, nil
	}
}

func (n *Normalizer) load(ctx context.Context, path string) (*Prepared, error) {
	if pl, ok := n.Loader.(PreparedLoader); ok {
		return pl.LoadPrepared(ctx, path)
	}
	in, err := n.Loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Prepared{Input: in}, nil
}

func requireConcrete(in RawInput) error {
	switch in.(type) {
	case Mapping, *Mapping, Tuple:
		return nil
	default:
		return malformed("input", "collaborator returned unresolved %s input", Describe(in))
	}
}

// event is one (time, index) pair.
type event struct {
	t   float64
	idx int
}

// Normalize converts a Mapping or Tuple into a NormalizedRaster.
//
// Steps: shape resolution, population defaulting, stable ordering of
// (time, index) pairs, event bounding. The input slices are never
// modified; the result owns fresh copies.
func Normalize(in RawInput, opts Options) (*NormalizedRaster, error) {
	if opts.MaxEvents < 0 {
		return nil, malformed("maxEvents", "must not be negative, got %d", opts.MaxEvents)
	}

	ev, err := resolveShape(in)
	if err != nil {
		return nil, err
	}

	sizes, labels, err := resolvePopulations(ev, opts)
	if err != nil {
		return nil, err
	}

	pairs := make([]event, len(ev.times))
	for i := range ev.times {
		pairs[i] = event{t: ev.times[i], idx: ev.indices[i]}
	}

	if err := orderEvents(pairs, opts.OrderBy, opts.Lookup); err != nil {
		return nil, err
	}

	pairs, window := boundEvents(pairs, opts.MaxEvents)

	out := &NormalizedRaster{
		Times:            make([]float64, len(pairs)),
		Indices:          make([]int, len(pairs)),
		PopulationSizes:  sizes,
		PopulationLabels: labels,
		Window:           window,
	}
	for i, p := range pairs {
		out.Times[i] = p.t
		out.Indices[i] = p.idx
	}
	return out, nil
}

// resolvePopulations applies population defaulting.
// Precedence: metadata in the input, then Options, then defaults.
func resolvePopulations(ev *events, opts Options) ([]int, []string, error) {
	sizes := ev.sizes
	if sizes == nil {
		sizes = opts.PopulationSizes
	}
	labels := ev.labels
	if labels == nil {
		labels = opts.PopulationLabels
	}

	if sizes == nil {
		sizes = []int{inferPopulationSize(ev.indices)}
	} else {
		for k, n := range sizes {
			if n < 0 {
				return nil, nil, malformed("populationSizes", "population %d has negative size %d", k, n)
			}
		}
		sizes = slices.Clone(sizes)
	}

	if labels == nil {
		labels = []string{DefaultPopulationLabel}
	} else {
		normalized := make([]string, len(labels))
		for i, l := range labels {
			normalized[i] = norm.NFC.String(l)
		}
		labels = normalized
	}

	if len(sizes) != len(labels) {
		return nil, nil, malformed("populationLabels", "%d labels for %d populations", len(labels), len(sizes))
	}
	return sizes, labels, nil
}

// inferPopulationSize sizes the synthetic population: the number of
// distinct indices, widened to cover the largest index.
func inferPopulationSize(indices []int) int {
	if len(indices) == 0 {
		return 0
	}
	seen := make(map[int]struct{}, len(indices))
	maxIdx := 0
	for _, idx := range indices {
		seen[idx] = struct{}{}
		maxIdx = max(maxIdx, idx)
	}
	return max(len(seen), maxIdx+1)
}

// orderEvents stably sorts pairs by cell index or by the looked-up
// attribute of each cell. Ties keep original event order.
func orderEvents(pairs []event, orderBy string, lookup AttributeLookup) error {
	if IsIndexOrdering(orderBy) {
		slices.SortStableFunc(pairs, func(a, b event) int {
			return cmp.Compare(a.idx, b.idx)
		})
		return nil
	}

	if lookup == nil {
		return &UnresolvableOrderingKeyError{Attribute: orderBy, CellIndex: -1, Err: ErrNoLookup}
	}

	// One lookup per distinct cell, in first-seen order.
	keys := make(map[int]OrderKey)
	for _, p := range pairs {
		if _, ok := keys[p.idx]; ok {
			continue
		}
		key, err := lookup.Lookup(p.idx, orderBy)
		if err != nil {
			return &UnresolvableOrderingKeyError{Attribute: orderBy, CellIndex: p.idx, Err: err}
		}
		keys[p.idx] = key
	}

	slices.SortStableFunc(pairs, func(a, b event) int {
		return keys[a.idx].Compare(keys[b.idx])
	})
	return nil
}

// boundEvents narrows the time range so that at most maxEvents events
// remain. The retained events are exactly those strictly earlier than
// the (maxEvents+1)-th smallest time, so equal times are kept or dropped
// together and the result is always an earliest time window.
//
// When the earliest time alone has more than maxEvents events the window
// is empty and nothing is kept.
func boundEvents(pairs []event, maxEvents int) ([]event, *TimeRange) {
	if maxEvents <= 0 || len(pairs) <= maxEvents {
		return pairs, nil
	}

	times := make([]float64, len(pairs))
	for i, p := range pairs {
		times[i] = p.t
	}
	slices.Sort(times)
	cutoff := times[maxEvents]
	if cutoff == times[0] {
		slog.Warn("event bound leaves an empty window",
			"max_events", maxEvents,
			"time", cutoff,
			"events", len(pairs),
		)
	}

	kept := make([]event, 0, maxEvents)
	for _, p := range pairs {
		if p.t < cutoff {
			kept = append(kept, p)
		}
	}
	return kept, &TimeRange{Start: times[0], Stop: cutoff}
}

