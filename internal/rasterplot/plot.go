// Package rasterplot assembles raster plots: it normalizes raster input,
// derives the presentation (colors, legend, synchrony markers, phase
// coloring) and drives a render.Renderer.
package rasterplot

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"strings"

	"github.com/gosimple/slug"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/plot/palette/moreland"

	"github.com/roach88/spikeraster/internal/phase"
	"github.com/roach88/spikeraster/internal/raster"
	"github.com/roach88/spikeraster/internal/render"
)

// ErrNoPhaseSource is returned when phase coloring is requested without a
// phase source.
var ErrNoPhaseSource = errors.New("phase coloring requested without a phase source")

var (
	syncLineColor  = color.Gray{Y: 128}
	backgroundGray = color.Gray{Y: 230}
)

// Plotter renders raster plots with injected collaborators.
type Plotter struct {
	Renderer   render.Renderer
	Normalizer *raster.Normalizer
	// Phase is the default phase source for phase coloring.
	Phase phase.Source
}

// Handle gives access to a rendered figure for later saving or display.
type Handle struct {
	Renderer render.Renderer
	Figure   render.Figure
	Axis     render.Axis
}

// Save writes the figure.
func (h *Handle) Save(ctx context.Context, path string, overwrite bool) (string, error) {
	return h.Renderer.SaveFigure(ctx, h.Figure, path, overwrite)
}

// Show displays the figure.
func (h *Handle) Show() error {
	return h.Renderer.Show(h.Figure)
}

// Result is the outcome of Render.
type Result struct {
	Figure render.Figure
	// Plotter is set when the request asked for it.
	Plotter   *Handle
	Raster    *raster.NormalizedRaster
	Stats     raster.Stats
	SavedPath string
}

// Render normalizes req.RasterData and draws it.
func (p *Plotter) Render(ctx context.Context, req Request) (*Result, error) {
	if p.Renderer == nil {
		return nil, errors.New("rasterplot: no renderer")
	}
	norm := p.Normalizer
	if norm == nil {
		norm = &raster.Normalizer{}
	}

	in := req.RasterData
	if in == nil {
		in = raster.Absent{}
	}
	r, err := norm.Normalize(ctx, in, raster.Options{
		OrderBy:          req.OrderBy,
		Lookup:           req.Lookup,
		MaxEvents:        req.MaxSpikes,
		PopulationSizes:  req.PopNumCells,
		PopulationLabels: req.PopLabels,
		Include:          req.Include,
		TimeRange:        req.TimeRange,
	})
	if err != nil {
		return nil, err
	}

	fig, err := p.Renderer.CreateFigure(render.FigureOptions{Width: req.Width, Height: req.Height})
	if err != nil {
		return nil, fmt.Errorf("create figure: %w", err)
	}
	ax, err := p.Renderer.Axis(fig, req.Axis)
	if err != nil {
		return nil, fmt.Errorf("get axis: %w", err)
	}
	fig = ax.Figure()

	stats := r.Stats(req.TimeRange)
	popColors := populationColors(r.PopulationLabels, req.PopColors, req.ColorList)

	if req.ColorByPhase != nil && req.ColorByPhase.PopBackground {
		for k, b := range r.Boundaries() {
			if k%2 == 1 || b.End == b.Start {
				continue
			}
			if err := ax.Band(float64(b.Start)-0.5, float64(b.End)-0.5, backgroundGray); err != nil {
				return nil, err
			}
		}
	}

	pointColors, err := p.pointColors(ctx, r, req, popColors)
	if err != nil {
		return nil, err
	}
	rows := rowPositions(r, raster.IsIndexOrdering(req.OrderBy))
	pts := make([]render.Point, r.Len())
	for i := range pts {
		pts[i] = render.Point{X: r.Times[i], Y: rows[i]}
	}
	style := render.MarkerStyle{Shape: req.Marker, Size: req.MarkerSize, LineWidth: req.LineWidth}
	if err := ax.Scatter(pts, style, pointColors); err != nil {
		return nil, fmt.Errorf("scatter: %w", err)
	}

	if req.SyncLines {
		line := render.LineStyle{Width: req.LineWidth, Color: syncLineColor, Dotted: true}
		for _, m := range r.SyncMarkers() {
			if err := ax.VerticalLine(m.X, m.YMin, m.YMax, line); err != nil {
				return nil, fmt.Errorf("sync line: %w", err)
			}
		}
	}

	printer := message.NewPrinter(language.English)
	if req.Legend {
		ax.Legend(legendEntries(printer, stats, popColors, req.PopRates), req.LegendOptions)
	}

	title := req.Title
	if req.PopRates == PopRatesFull {
		title = strings.TrimSpace(title + " " + printer.Sprintf("(%.1f Hz avg)", stats.Rate))
	}
	ax.SetLabels(title, req.XLabel, req.YLabel)

	if req.TimeRange != nil {
		ax.SetXRange(req.TimeRange.Start, req.TimeRange.Stop)
	}
	if total := sum(r.PopulationSizes); total > 0 {
		ax.SetYRange(-1, float64(total))
	}
	if req.OrderInverse {
		ax.InvertY()
	}

	res := &Result{Figure: fig, Raster: r, Stats: stats}

	if req.ShowFig {
		if err := p.Renderer.Show(fig); err != nil {
			return nil, fmt.Errorf("show figure: %w", err)
		}
	}
	if req.SaveFig {
		path := req.Filename
		if path == "" {
			path = DefaultFilenameFor(req.Title)
		}
		saved, err := p.Renderer.SaveFigure(ctx, fig, path, req.Overwrite)
		if err != nil {
			return nil, fmt.Errorf("save figure: %w", err)
		}
		res.SavedPath = saved
	}
	if req.ReturnPlotter {
		res.Plotter = &Handle{Renderer: p.Renderer, Figure: fig, Axis: ax}
	}

	slog.Debug("raster rendered",
		"events", stats.Events,
		"cells", stats.Cells,
		"populations", len(r.PopulationSizes),
		"saved", res.SavedPath,
	)
	return res, nil
}

// DefaultFilenameFor derives a figure filename from a plot title.
func DefaultFilenameFor(title string) string {
	if s := slug.Make(title); s != "" {
		return s + ".png"
	}
	return DefaultFilename
}

// populationColors picks each population's color: an explicit popColors
// entry, else the palette entry at the population's position.
func populationColors(labels []string, explicit map[string]color.Color, palette []color.Color) []color.Color {
	if len(palette) == 0 {
		palette = DefaultColorList
	}
	out := make([]color.Color, len(labels))
	for k, label := range labels {
		if c, ok := explicit[label]; ok {
			out[k] = c
			continue
		}
		out[k] = palette[k%len(palette)]
	}
	return out
}

// pointColors returns one color per event: by phase when requested, else
// by population. Events outside every population are black.
func (p *Plotter) pointColors(ctx context.Context, r *raster.NormalizedRaster, req Request, popColors []color.Color) ([]color.Color, error) {
	colors := make([]color.Color, r.Len())

	if req.ColorByPhase != nil {
		src := req.ColorByPhase.Source
		if src == nil {
			src = p.Phase
		}
		if src == nil {
			return nil, ErrNoPhaseSource
		}
		phases, err := src.Phases(ctx, r.Times)
		if err != nil {
			return nil, fmt.Errorf("phase coloring: %w", err)
		}
		if len(phases) != r.Len() {
			return nil, fmt.Errorf("phase coloring: %d phases for %d spikes", len(phases), r.Len())
		}
		cmap := moreland.SmoothBlueRed()
		cmap.SetMin(-math.Pi)
		cmap.SetMax(math.Pi)
		for i, ph := range phases {
			c, err := cmap.At(phase.Wrap(ph))
			if err != nil {
				return nil, fmt.Errorf("phase coloring: spike %d: %w", i, err)
			}
			colors[i] = c
		}
		return colors, nil
	}

	bounds := r.Boundaries()
	for i, idx := range r.Indices {
		colors[i] = color.Black
		for k, b := range bounds {
			if b.Contains(idx) {
				colors[i] = popColors[k]
				break
			}
		}
	}
	return colors, nil
}

// rowPositions returns the y position of each event. Ordering by index
// plots each cell at its index. Ordering by an attribute plots cells at
// their rank in the ordered raster.
func rowPositions(r *raster.NormalizedRaster, byIndex bool) []float64 {
	rows := make([]float64, r.Len())
	if byIndex {
		for i, idx := range r.Indices {
			rows[i] = float64(idx)
		}
		return rows
	}
	rank := make(map[int]int)
	for i, idx := range r.Indices {
		n, ok := rank[idx]
		if !ok {
			n = len(rank)
			rank[idx] = n
		}
		rows[i] = float64(n)
	}
	return rows
}

func legendEntries(printer *message.Printer, stats raster.Stats, popColors []color.Color, mode string) []render.LegendEntry {
	entries := make([]render.LegendEntry, len(stats.Populations))
	for k, ps := range stats.Populations {
		var label string
		switch mode {
		case PopRatesOff:
			label = ps.Label
		case PopRatesFull:
			label = printer.Sprintf("%s (%d spikes, %.1f Hz)", ps.Label, ps.Count, ps.Rate)
		default:
			label = printer.Sprintf("%s (%d)", ps.Label, ps.Count)
		}
		entries[k] = render.LegendEntry{Label: label, Color: popColors[k]}
	}
	return entries
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
