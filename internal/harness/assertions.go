package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/spikeraster/internal/raster"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s", e.Actual)
	return buf.String()
}

// checkExpectation compares the result with the scenario's exact
// expectations, recording every mismatch.
func checkExpectation(exp *Expectation, result *Result) {
	if exp == nil {
		if result.Raster == nil {
			result.AddError(fmt.Sprintf("normalize failed: %s", result.Err))
		}
		return
	}

	if exp.Error != "" {
		switch {
		case result.Raster != nil:
			result.AddError(fmt.Sprintf("expected %s error, normalization succeeded", exp.Error))
		case result.ErrorKind != exp.Error:
			result.AddError(fmt.Sprintf("expected %s error, got %s: %s", exp.Error, result.ErrorKind, result.Err))
		}
		return
	}
	if result.Raster == nil {
		result.AddError(fmt.Sprintf("normalize failed: %s", result.Err))
		return
	}

	r := result.Raster
	check := func(field string, want, got any) {
		if !reflect.DeepEqual(want, got) {
			result.AddError((&AssertionError{
				Type:     field,
				Expected: fmt.Sprint(want),
				Actual:   fmt.Sprint(got),
			}).Error())
		}
	}
	if exp.Indices != nil {
		check("indices", exp.Indices, r.Indices)
	}
	if exp.Times != nil {
		check("times", exp.Times, r.Times)
	}
	if exp.PopulationSizes != nil {
		check("populationSizes", exp.PopulationSizes, r.PopulationSizes)
	}
	if exp.PopulationLabels != nil {
		check("populationLabels", exp.PopulationLabels, r.PopulationLabels)
	}
	if exp.Window != nil {
		check("window", describeWindow(exp.Window), describeWindow(r.Window))
	}
	if exp.Unbounded && r.Window != nil {
		result.AddError((&AssertionError{
			Type:     "window",
			Expected: "no events dropped",
			Actual:   "bounded to " + r.Window.String(),
		}).Error())
	}
}

func describeWindow(w *raster.TimeRange) string {
	if w == nil {
		return "unbounded"
	}
	return w.String()
}

func evaluate(r *raster.NormalizedRaster, a Assertion) error {
	switch a.Type {
	case AssertEventCount:
		return assertCount(a, r.Len())
	case AssertDistinctCells:
		return assertCount(a, len(r.DistinctIndices()))
	case AssertSyncMarkers:
		return assertCount(a, len(r.SyncMarkers()))
	case AssertPopulationCounts:
		got := r.PopulationCounts()
		if !reflect.DeepEqual(a.Counts, got) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprint(a.Counts),
				Actual:   fmt.Sprint(got),
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertCount(a Assertion, got int) error {
	if got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d", a.Count),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}
