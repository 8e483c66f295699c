package harness

import "github.com/roach88/spikeraster/internal/raster"

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Raster is nil when normalization failed.
	Raster *raster.NormalizedRaster `json:"raster,omitempty"`
	Stats  *raster.Stats            `json:"stats,omitempty"`

	// ErrorKind classifies a normalization failure; Err keeps its text.
	ErrorKind string `json:"errorKind,omitempty"`
	Err       string `json:"error,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError records a failed check and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
