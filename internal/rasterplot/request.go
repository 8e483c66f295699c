package rasterplot

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/roach88/spikeraster/internal/phase"
	"github.com/roach88/spikeraster/internal/raster"
	"github.com/roach88/spikeraster/internal/render"
)

// Population rate display modes for legend labels and the title.
const (
	PopRatesOff     = "off"     // population names only
	PopRatesMinimal = "minimal" // name and spike count
	PopRatesFull    = "full"    // name, spike count and mean rate; average rate in the title
)

// Defaults applied by DefaultRequest.
const (
	DefaultMaxSpikes  = 100_000_000
	DefaultMarkerSize = 5
	DefaultLineWidth  = 2
	DefaultFilename   = "rasterPlot.png"
	DefaultXLabel     = "Time (ms)"
	DefaultYLabel     = "Cells"
)

// DefaultColorList is the population palette used when a request has no
// ColorList.
var DefaultColorList = []color.Color{
	colorful.Color{R: 0.42, G: 0.67, B: 0.84},
	colorful.Color{R: 0.90, G: 0.76, B: 0.00},
	colorful.Color{R: 0.42, G: 0.83, B: 0.59},
	colorful.Color{R: 0.90, G: 0.32, B: 0.00},
	colorful.Color{R: 0.34, G: 0.67, B: 0.67},
	colorful.Color{R: 0.90, G: 0.59, B: 0.00},
	colorful.Color{R: 0.42, G: 0.82, B: 0.83},
	colorful.Color{R: 1.00, G: 0.85, B: 0.00},
	colorful.Color{R: 0.33, G: 0.67, B: 0.47},
	colorful.Color{R: 1.00, G: 0.38, B: 0.60},
	colorful.Color{R: 0.57, G: 0.67, B: 0.33},
	colorful.Color{R: 0.50, G: 0.20, B: 0.00},
	colorful.Color{R: 0.71, G: 0.82, B: 0.41},
	colorful.Color{R: 0.00, G: 0.20, B: 0.50},
	colorful.Color{R: 0.70, G: 0.32, B: 0.10},
}

// PhaseOptions colors spikes by oscillation phase.
type PhaseOptions struct {
	// Source overrides the Plotter's phase source.
	Source phase.Source
	// PopBackground shades every other population's rows in gray.
	PopBackground bool
}

// Request describes one raster plot.
type Request struct {
	// RasterData is the input; nil or raster.Absent reads from the
	// Normalizer's RasterSource.
	RasterData raster.RawInput
	// Axis draws into an existing axis instead of a new figure's axis.
	Axis render.Axis

	TimeRange *raster.TimeRange
	Include   []string
	MaxSpikes int
	OrderBy   string
	// Lookup resolves attribute ordering keys for concrete inputs.
	Lookup raster.AttributeLookup
	// OrderInverse flips the y axis only.
	OrderInverse bool

	PopRates    string
	PopNumCells []int
	PopLabels   []string
	PopColors   map[string]color.Color
	ColorList   []color.Color

	SyncLines    bool
	ColorByPhase *PhaseOptions

	Legend        bool
	LegendOptions render.LegendOptions

	ReturnPlotter bool

	Title  string
	XLabel string
	YLabel string

	MarkerSize float64
	Marker     string
	LineWidth  float64
	Width      float64
	Height     float64

	ShowFig   bool
	SaveFig   bool
	Filename  string
	Overwrite bool
}

// DefaultRequest returns a request with the documented defaults: legend
// on, full population rates, overwrite on.
func DefaultRequest() Request {
	return Request{
		MaxSpikes:  DefaultMaxSpikes,
		OrderBy:    raster.OrderByGID,
		PopRates:   PopRatesFull,
		Legend:     true,
		XLabel:     DefaultXLabel,
		YLabel:     DefaultYLabel,
		MarkerSize: DefaultMarkerSize,
		Marker:     render.MarkerCircle,
		LineWidth:  DefaultLineWidth,
		Overwrite:  true,
	}
}
