package harness

import (
	"context"
	"fmt"

	"github.com/roach88/spikeraster/internal/raster"
)

// Run normalizes the scenario input and checks it against the scenario's
// expectations and assertions. loader resolves file inputs and may be nil
// when every input is inline.
//
// A returned error means the scenario could not be executed at all; check
// failures and unexpected normalization errors are reported in the
// Result.
func Run(ctx context.Context, scenario *Scenario, loader raster.FileLoader) (*Result, error) {
	if scenario == nil {
		return nil, fmt.Errorf("nil scenario")
	}

	n := &raster.Normalizer{Loader: loader}
	opts := raster.Options{
		OrderBy:          scenario.Options.OrderBy,
		MaxEvents:        scenario.Options.MaxSpikes,
		PopulationSizes:  scenario.Options.PopNumCells,
		PopulationLabels: scenario.Options.PopLabels,
	}
	if scenario.Attributes != nil {
		opts.Lookup = attributeLookup(scenario.Attributes)
	}

	result := NewResult()
	out, err := n.Normalize(ctx, scenario.Input.rawInput(), opts)
	if err != nil {
		result.ErrorKind = errorKind(err)
		result.Err = err.Error()
	} else {
		stats := out.Stats(nil)
		result.Raster = out
		result.Stats = &stats
	}

	checkExpectation(scenario.Expect, result)
	if result.Raster != nil {
		for _, a := range scenario.Assertions {
			if err := evaluate(result.Raster, a); err != nil {
				result.AddError(err.Error())
			}
		}
	}
	return result, nil
}

// attributeLookup resolves ordering keys from a per-cell attribute table.
func attributeLookup(attrs map[int]map[string]any) raster.AttributeLookup {
	return raster.LookupFunc(func(idx int, attr string) (raster.OrderKey, error) {
		v, ok := attrs[idx][attr]
		if !ok {
			return raster.OrderKey{}, fmt.Errorf("cell %d has no attribute %q", idx, attr)
		}
		return raster.KeyOf(v)
	})
}

func errorKind(err error) string {
	switch {
	case raster.IsMalformed(err):
		return ErrorMalformed
	case raster.IsUnresolvableOrderingKey(err):
		return ErrorUnresolvableOrdering
	default:
		return "other"
	}
}
