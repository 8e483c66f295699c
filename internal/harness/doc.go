// Package harness runs raster normalization scenarios.
//
// A scenario pairs one raster input with normalization options and
// states what the normalized raster must look like. Scenarios make the
// normalization contract executable: they are run by the test command
// and by this package's own tests.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: bounded-window
//	description: "maxSpikes keeps the earliest events"
//	input:
//	  spkTimes: [5, 1, 3, 3, 9]
//	  spkInds: [0, 1, 2, 0, 1]
//	options:
//	  maxSpikes: 3
//	expect:
//	  indices: [0, 1, 2]
//	  times: [3, 1, 3]
//	  window: {start: 1, stop: 5}
//	assertions:
//	  - type: event_count
//	    count: 3
//
// The input may instead name a file (input.file), resolved relative to
// the scenario and read by a loader. Attribute ordering uses the
// scenario's attributes table, keyed by cell index.
//
// # Assertion Types
//
//   - event_count: number of retained events
//   - population_counts: events per population, in population order
//   - distinct_cells: number of distinct cell indices
//   - sync_markers: number of synchrony markers
//
// # Golden Snapshots
//
// Snapshot renders a result as indented JSON for golden comparison.
// AssertGolden compares it against testdata/golden/<name>.golden.
package harness
