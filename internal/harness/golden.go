package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/spikeraster/internal/raster"
)

// snapshot is the golden form of a scenario result.
type snapshot struct {
	Scenario string                   `json:"scenario"`
	Raster   *raster.NormalizedRaster `json:"raster,omitempty"`
	Stats    *raster.Stats            `json:"stats,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// Snapshot renders the result of a scenario as indented JSON.
func Snapshot(name string, result *Result) ([]byte, error) {
	data, err := json.MarshalIndent(snapshot{
		Scenario: name,
		Raster:   result.Raster,
		Stats:    result.Stats,
		Error:    result.ErrorKind,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// AssertGolden compares the snapshot of result against
// testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
