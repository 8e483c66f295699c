// Package phase supplies oscillation phase values at spike times.
//
// Phases come from a precomputed, uniformly sampled series (for example
// the analytic-signal phase of a filtered LFP). This package only looks
// values up; it does no filtering.
package phase

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
)

// ErrOutOfRange is returned for spike times outside the sampled interval.
var ErrOutOfRange = errors.New("time outside phase series")

// Source returns the phase in radians at each of the given spike times
// (ms). The result has one entry per time.
type Source interface {
	Phases(ctx context.Context, times []float64) ([]float64, error)
}

// Series is a uniformly sampled phase signal.
type Series struct {
	// SampleRate in Hz.
	SampleRate float64
	// Start is the time of the first sample in ms.
	Start float64
	// Values in radians.
	Values []float64
}

// At returns the phase of the sample nearest to t (ms), wrapped to
// (-pi, pi].
func (s *Series) At(t float64) (float64, error) {
	if len(s.Values) == 0 || s.SampleRate <= 0 {
		return 0, fmt.Errorf("%w: empty series", ErrOutOfRange)
	}
	pos := math.Round((t - s.Start) / 1000 * s.SampleRate)
	if pos < 0 || pos >= float64(len(s.Values)) {
		return 0, fmt.Errorf("%w: t=%g ms, series covers [%g, %g) ms", ErrOutOfRange, t, s.Start, s.End())
	}
	return Wrap(s.Values[int(pos)]), nil
}

// End returns the time just past the last sample in ms.
func (s *Series) End() float64 {
	if s.SampleRate <= 0 {
		return s.Start
	}
	return s.Start + float64(len(s.Values))*1000/s.SampleRate
}

// Phases implements Source.
func (s *Series) Phases(ctx context.Context, times []float64) ([]float64, error) {
	out := make([]float64, len(times))
	for i, t := range times {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		p, err := s.At(t)
		if err != nil {
			return nil, fmt.Errorf("spike %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

// Wrap maps an angle to (-pi, pi].
func Wrap(rad float64) float64 {
	w := math.Mod(rad+math.Pi, 2*math.Pi)
	if w <= 0 {
		w += 2 * math.Pi
	}
	return w - math.Pi
}

// Load reads a phase series stored as JSON:
//
//	{"fs": 1000, "start": 0, "phase": [0.1, 0.2, ...]}
//
// "start" is optional and defaults to 0.
func Load(fs afero.Fs, path string) (*Series, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read phase series: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("phase series %s: invalid JSON", path)
	}

	doc := gjson.ParseBytes(data)
	rate := doc.Get("fs")
	if rate.Type != gjson.Number || rate.Float() <= 0 {
		return nil, fmt.Errorf("phase series %s: fs must be a positive number", path)
	}
	values := doc.Get("phase")
	if !values.IsArray() {
		return nil, fmt.Errorf("phase series %s: phase must be an array", path)
	}

	s := &Series{
		SampleRate: rate.Float(),
		Start:      doc.Get("start").Float(),
	}
	for i, v := range values.Array() {
		if v.Type != gjson.Number {
			return nil, fmt.Errorf("phase series %s: phase[%d] is not a number", path, i)
		}
		s.Values = append(s.Values, v.Float())
	}
	return s, nil
}
