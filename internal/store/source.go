package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/spikeraster/internal/raster"
)

// Source serves one stored dataset as a raster.RasterSource.
// An empty dataset id binds the most recently imported dataset at the
// time of each call.
type Source struct {
	store     *Store
	datasetID string
}

// NewSource creates a Source over the given dataset.
func NewSource(s *Store, datasetID string) *Source {
	return &Source{store: s, datasetID: datasetID}
}

// DatasetID resolves the bound dataset id.
func (src *Source) DatasetID(ctx context.Context) (string, error) {
	if src.datasetID != "" {
		return src.datasetID, nil
	}
	return src.store.LatestDatasetID(ctx)
}

// PrepareRaster selects cells by req.Include, re-indexes them to dense
// positions (population order, then gid) and returns their spikes as a
// raster.Mapping with per-population sizes and labels.
//
// When req.MaxSpikes is positive and more spikes are selected, the query
// keeps only spikes strictly earlier than the (MaxSpikes+1)-th earliest
// one, the same window rule raster.Normalize applies.
func (src *Source) PrepareRaster(ctx context.Context, req raster.SourceRequest) (*raster.Prepared, error) {
	id, err := src.DatasetID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := src.store.ReadDataset(ctx, id); err != nil {
		return nil, err
	}

	sels, err := parseInclude(req.Include)
	if err != nil {
		return nil, err
	}
	pred := includePredicate(id, sels)

	cells, err := src.store.selectCells(ctx, id, pred)
	if err != nil {
		return nil, err
	}

	var before *float64
	if req.MaxSpikes > 0 {
		cutoff, ok, err := src.store.spikeCutoff(ctx, id, pred, req.TimeRange, req.MaxSpikes)
		if err != nil {
			return nil, err
		}
		if ok {
			before = &cutoff
			slog.Debug("narrowing raster time range", "dataset", id, "max_spikes", req.MaxSpikes, "cutoff", cutoff)
		}
	}

	spikes, err := src.store.readSpikes(ctx, id, pred, req.TimeRange, before)
	if err != nil {
		return nil, err
	}

	position := make(map[int]int, len(cells))
	sizes := []int{}
	labels := []string{}
	for i, c := range cells {
		position[c.GID] = i
		if len(labels) == 0 || labels[len(labels)-1] != c.Pop {
			labels = append(labels, c.Pop)
			sizes = append(sizes, 0)
		}
		sizes[len(sizes)-1]++
	}

	times := make([]float64, 0, len(spikes))
	indices := make([]int, 0, len(spikes))
	for _, sp := range spikes {
		pos, ok := position[sp.GID]
		if !ok {
			return nil, fmt.Errorf("spike references unselected gid %d", sp.GID)
		}
		times = append(times, sp.Time)
		indices = append(indices, pos)
	}

	slog.Debug("raster prepared",
		"dataset", id,
		"include", req.Include,
		"cells", len(cells),
		"spikes", len(spikes),
	)

	return &raster.Prepared{
		Input: raster.Mapping{
			SpikeTimes:       times,
			SpikeIndices:     indices,
			PopulationSizes:  sizes,
			PopulationLabels: labels,
		},
		Lookup: CellLookup(cells),
	}, nil
}

// Lookup returns the attribute registry for every cell of the dataset,
// indexed by position in population-then-gid order. This matches the
// indices of rasters prepared with the "all" selector.
func (src *Source) Lookup(ctx context.Context) (raster.AttributeLookup, error) {
	id, err := src.DatasetID(ctx)
	if err != nil {
		return nil, err
	}
	cells, err := src.store.ReadCells(ctx, id, []string{IncludeAll})
	if err != nil {
		return nil, err
	}
	return CellLookup(cells), nil
}

// CellLookup returns an AttributeLookup over cells indexed by position.
//
// The attributes "gid", "pop" and "kind" come from the cell record; any
// other attribute is read from the cell's tags.
func CellLookup(cells []Cell) raster.AttributeLookup {
	return raster.LookupFunc(func(idx int, attr string) (raster.OrderKey, error) {
		if idx < 0 || idx >= len(cells) {
			return raster.OrderKey{}, fmt.Errorf("no cell at index %d", idx)
		}
		return cellAttribute(cells[idx], attr)
	})
}

func cellAttribute(c Cell, attr string) (raster.OrderKey, error) {
	switch attr {
	case "gid":
		return raster.NumberKey(float64(c.GID)), nil
	case "pop":
		return raster.StringKey(c.Pop), nil
	case "kind":
		return raster.StringKey(c.Kind), nil
	}

	v, ok := c.Tags[attr]
	if !ok {
		return raster.OrderKey{}, fmt.Errorf("cell gid %d has no tag %q", c.GID, attr)
	}
	key, err := raster.KeyOf(v)
	if err != nil {
		return raster.OrderKey{}, fmt.Errorf("cell gid %d tag %q: %w", c.GID, attr, err)
	}
	return key, nil
}
