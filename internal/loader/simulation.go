package loader

import (
	"cmp"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/roach88/spikeraster/internal/raster"
	"github.com/roach88/spikeraster/internal/store"
)

const netStimModel = "NetStim"

// LoadSimulation reads netpyne simulation output (JSON) for import into
// a store.
//
// Populations come from net.pops in document order. Cells come from
// net.cells, or from each population's cellGids when net.cells is
// missing. Cells whose cellModel (own or population) is NetStim are
// stored as store.KindNetStim.
func (l *Loader) LoadSimulation(ctx context.Context, path string) (*store.Simulation, error) {
	exists, err := afero.Exists(l.fs, path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Path: path, Message: "stat failed", Err: err}
	}
	if !exists {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "file not found"}
	}
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Path: path, Message: "read failed", Err: err}
	}
	if !gjson.ValidBytes(data) {
		return nil, &LoadError{Code: ErrCodeParse, Path: path, Message: "invalid JSON"}
	}
	return simulationFromJSON(path, gjson.ParseBytes(data))
}

func simulationFromJSON(path string, doc gjson.Result) (*store.Simulation, error) {
	sim := &store.Simulation{
		Label:    doc.Get("simConfig.simLabel").String(),
		Duration: doc.Get("simConfig.duration").Float(),
	}
	if sim.Label == "" {
		sim.Label = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	popModel := make(map[string]string)
	popGids := make(map[string][]gjson.Result)
	doc.Get("net.pops").ForEach(func(key, value gjson.Result) bool {
		label := key.String()
		sim.Populations = append(sim.Populations, label)
		popModel[label] = value.Get("tags.cellModel").String()
		popGids[label] = value.Get("cellGids").Array()
		return true
	})

	cells := doc.Get("net.cells")
	if cells.Exists() {
		for i, c := range cells.Array() {
			gid := c.Get("gid")
			if gid.Type != gjson.Number || gid.Num != float64(gid.Int()) {
				return nil, &LoadError{Code: ErrCodeShape, Path: path, Message: fmt.Sprintf("net.cells[%d]: gid must be an integer", i)}
			}
			tags, _ := c.Get("tags").Value().(map[string]any)
			pop, _ := tags["pop"].(string)
			if pop == "" {
				return nil, &LoadError{Code: ErrCodeShape, Path: path, Message: fmt.Sprintf("net.cells[%d]: missing tags.pop", i)}
			}
			model, _ := tags["cellModel"].(string)
			if model == "" {
				model = popModel[pop]
			}
			sim.Cells = append(sim.Cells, store.Cell{
				GID:  int(gid.Int()),
				Pop:  pop,
				Kind: kindOf(model),
				Tags: tags,
			})
		}
	} else {
		for _, pop := range sim.Populations {
			for _, gid := range popGids[pop] {
				sim.Cells = append(sim.Cells, store.Cell{
					GID:  int(gid.Int()),
					Pop:  pop,
					Kind: kindOf(popModel[pop]),
				})
			}
		}
	}

	spkt := doc.Get("simData.spkt").Array()
	spkid := doc.Get("simData.spkid").Array()
	if len(spkt) != len(spkid) {
		return nil, &LoadError{
			Code:    ErrCodeShape,
			Path:    path,
			Message: fmt.Sprintf("simData.spkid has %d entries for %d spike times", len(spkid), len(spkt)),
		}
	}
	known := make(map[int]struct{}, len(sim.Cells))
	for _, c := range sim.Cells {
		known[c.GID] = struct{}{}
	}
	sim.Spikes = make([]store.Spike, len(spkt))
	for i := range spkt {
		if spkt[i].Type != gjson.Number {
			return nil, &LoadError{Code: ErrCodeShape, Path: path, Message: fmt.Sprintf("simData.spkt[%d] is not a number", i)}
		}
		id := spkid[i]
		if id.Type != gjson.Number || id.Num != float64(id.Int()) {
			return nil, &LoadError{Code: ErrCodeShape, Path: path, Message: fmt.Sprintf("simData.spkid[%d] is not an integer", i)}
		}
		gid := int(id.Int())
		if _, ok := known[gid]; !ok {
			return nil, &LoadError{Code: ErrCodeShape, Path: path, Message: fmt.Sprintf("simData.spkid[%d] references unknown gid %d", i, gid)}
		}
		sim.Spikes[i] = store.Spike{GID: gid, Time: spkt[i].Float()}
	}

	return sim, nil
}

func kindOf(cellModel string) string {
	if cellModel == netStimModel {
		return store.KindNetStim
	}
	return store.KindCell
}

// rasterFromSimulation selects all non-stimulator cells, assigns them dense
// indices ordered by population then gid, and returns their spikes in time
// order together with a lookup over the selected cells' tags.
func rasterFromSimulation(sim *store.Simulation) (raster.Mapping, raster.AttributeLookup) {
	popOrd := make(map[string]int, len(sim.Populations))
	for i, p := range sim.Populations {
		popOrd[p] = i
	}
	ordOf := func(pop string) int {
		if i, ok := popOrd[pop]; ok {
			return i
		}
		return len(popOrd)
	}

	var cells []store.Cell
	for _, c := range sim.Cells {
		if c.Kind != store.KindNetStim {
			cells = append(cells, c)
		}
	}
	slices.SortStableFunc(cells, func(a, b store.Cell) int {
		if c := cmp.Compare(ordOf(a.Pop), ordOf(b.Pop)); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Pop, b.Pop); c != 0 {
			return c
		}
		return cmp.Compare(a.GID, b.GID)
	})

	m := raster.Mapping{
		SpikeTimes:       []float64{},
		SpikeIndices:     []int{},
		PopulationSizes:  []int{},
		PopulationLabels: []string{},
	}
	position := make(map[int]int, len(cells))
	for i, c := range cells {
		position[c.GID] = i
		if n := len(m.PopulationLabels); n == 0 || m.PopulationLabels[n-1] != c.Pop {
			m.PopulationLabels = append(m.PopulationLabels, c.Pop)
			m.PopulationSizes = append(m.PopulationSizes, 0)
		}
		m.PopulationSizes[len(m.PopulationSizes)-1]++
	}

	spikes := slices.Clone(sim.Spikes)
	slices.SortStableFunc(spikes, func(a, b store.Spike) int {
		return cmp.Compare(a.Time, b.Time)
	})
	for _, sp := range spikes {
		pos, ok := position[sp.GID]
		if !ok {
			continue // stimulator
		}
		m.SpikeTimes = append(m.SpikeTimes, sp.Time)
		m.SpikeIndices = append(m.SpikeIndices, pos)
	}
	return m, store.CellLookup(cells)
}

// loadDatabase reads the latest dataset of a simulation store.
func loadDatabase(ctx context.Context, path string) (*raster.Prepared, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Path: path, Message: "open store", Err: err}
	}
	defer st.Close()

	prepared, err := store.NewSource(st, "").PrepareRaster(ctx, raster.SourceRequest{Include: raster.DefaultInclude})
	if err != nil {
		return nil, &LoadError{Code: ErrCodeShape, Path: path, Message: "read dataset", Err: err}
	}
	return prepared, nil
}
