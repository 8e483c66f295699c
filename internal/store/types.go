package store

// Cell kinds.
const (
	KindCell    = "cell"
	KindNetStim = "netstim"
)

// Simulation is the output of one simulation run, ready for import.
type Simulation struct {
	Label    string
	Duration float64 // ms; 0 when unknown

	// Populations lists population labels in declaration order. Labels
	// used by cells but missing here are appended in gid order.
	Populations []string

	Cells  []Cell
	Spikes []Spike
}

// Cell is one spiking unit.
type Cell struct {
	GID  int            `json:"gid"`
	Pop  string         `json:"pop"`
	Kind string         `json:"kind"`
	Tags map[string]any `json:"tags,omitempty"`
}

// Spike is one spike event.
type Spike struct {
	GID  int     `json:"gid"`
	Time float64 `json:"time"`
}

// Dataset summarizes a stored simulation run.
type Dataset struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Duration    float64  `json:"duration"`
	Populations []string `json:"populations"`
	Cells       int      `json:"cells"`
	Spikes      int      `json:"spikes"`
}
