package harness

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/roach88/spikeraster/internal/raster"
)

// Scenario defines one normalization scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Input   Input   `yaml:"input"`
	Options Options `yaml:"options,omitempty"`

	// Attributes maps cell index to attribute values for attribute
	// ordering.
	Attributes map[int]map[string]any `yaml:"attributes,omitempty"`

	Expect     *Expectation `yaml:"expect,omitempty"`
	Assertions []Assertion  `yaml:"assertions,omitempty"`
}

// Input is either inline raster data or a file reference.
type Input struct {
	SpikeTimes       []float64 `yaml:"spkTimes,omitempty"`
	SpikeIndices     []int     `yaml:"spkInds,omitempty"`
	PopulationSizes  []int     `yaml:"popNumCells,omitempty"`
	PopulationLabels []string  `yaml:"popLabels,omitempty"`

	// File is a raster file path. Relative paths are resolved against
	// the scenario file's directory.
	File string `yaml:"file,omitempty"`
}

// Options mirror raster.Options.
type Options struct {
	OrderBy     string   `yaml:"orderBy,omitempty"`
	MaxSpikes   int      `yaml:"maxSpikes,omitempty"`
	PopNumCells []int    `yaml:"popNumCells,omitempty"`
	PopLabels   []string `yaml:"popLabels,omitempty"`
}

// Expectation lists exact properties of the normalized raster. Nil
// fields are not checked.
type Expectation struct {
	Indices          []int             `yaml:"indices,omitempty"`
	Times            []float64         `yaml:"times,omitempty"`
	PopulationSizes  []int             `yaml:"populationSizes,omitempty"`
	PopulationLabels []string          `yaml:"populationLabels,omitempty"`
	Window           *raster.TimeRange `yaml:"window,omitempty"`

	// Unbounded requires that no event was dropped.
	Unbounded bool `yaml:"unbounded,omitempty"`

	// Error is the expected failure kind: "malformed" or
	// "unresolvable_ordering_key".
	Error string `yaml:"error,omitempty"`
}

// Assertion checks one derived property of the normalized raster.
type Assertion struct {
	Type   string `yaml:"type"`
	Count  int    `yaml:"count,omitempty"`
	Counts []int  `yaml:"counts,omitempty"`
}

// Assertion type constants.
const (
	AssertEventCount       = "event_count"
	AssertPopulationCounts = "population_counts"
	AssertDistinctCells    = "distinct_cells"
	AssertSyncMarkers      = "sync_markers"
)

// Expected error kinds.
const (
	ErrorMalformed            = "malformed"
	ErrorUnresolvableOrdering = "unresolvable_ordering_key"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(fs afero.Fs, path string) (*Scenario, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if f := scenario.Input.File; f != "" && !filepath.IsAbs(f) {
		scenario.Input.File = filepath.Join(filepath.Dir(path), f)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	in := s.Input
	inline := in.SpikeTimes != nil || in.SpikeIndices != nil
	if inline && in.File != "" {
		return fmt.Errorf("input has both inline data and a file")
	}
	if !inline && in.File == "" {
		return fmt.Errorf("input requires spkTimes/spkInds or file")
	}

	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}
	if s.Expect != nil {
		switch s.Expect.Error {
		case "", ErrorMalformed, ErrorUnresolvableOrdering:
		default:
			return fmt.Errorf("unknown expected error %q", s.Expect.Error)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertEventCount, AssertPopulationCounts, AssertDistinctCells, AssertSyncMarkers:
		case "":
			return fmt.Errorf("assertion %d: type is required", i)
		default:
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
	}
	return nil
}

// rawInput converts the scenario input to a raster input.
func (in Input) rawInput() raster.RawInput {
	if in.File != "" {
		return raster.FileRef{Path: in.File}
	}
	return raster.Mapping{
		SpikeTimes:       in.SpikeTimes,
		SpikeIndices:     in.SpikeIndices,
		PopulationSizes:  in.PopulationSizes,
		PopulationLabels: in.PopulationLabels,
	}
}
