package cli

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/spikeraster/internal/config"
	"github.com/roach88/spikeraster/internal/phase"
	"github.com/roach88/spikeraster/internal/raster"
	"github.com/roach88/spikeraster/internal/rasterplot"
	"github.com/roach88/spikeraster/internal/render"
)

// selectionFlags are the raster selection flags shared by plot and
// normalize.
type selectionFlags struct {
	DB           string
	Dataset      string
	OrderBy      string
	OrderInverse bool
	MaxSpikes    int
	TimeRange    []float64
	Include      []string
	PopNumCells  []int
	PopLabels    []string
}

func (s *selectionFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.DB, "db", "", "read from a spikeraster database instead of an input file")
	f.StringVar(&s.Dataset, "dataset", "", "dataset ID in --db (default: most recent import)")
	f.StringVar(&s.OrderBy, "order-by", raster.OrderByGID, "order cells by index (gid) or a cell attribute")
	f.BoolVar(&s.OrderInverse, "order-inverse", false, "flip the y axis")
	f.IntVar(&s.MaxSpikes, "max-spikes", rasterplot.DefaultMaxSpikes, "bound the number of spikes (0 = unbounded)")
	f.Float64SliceVar(&s.TimeRange, "time-range", nil, "time window start,stop in ms")
	f.StringSliceVar(&s.Include, "include", nil, "cell selectors for --db (allCells, allNetStims, population labels, gids)")
	f.IntSliceVar(&s.PopNumCells, "pop-num-cells", nil, "population sizes when the input has none")
	f.StringSliceVar(&s.PopLabels, "pop-labels", nil, "population labels when the input has none")
}

func (s *selectionFlags) timeRange() (*raster.TimeRange, error) {
	return timeRangeOf(s.TimeRange)
}

func timeRangeOf(v []float64) (*raster.TimeRange, error) {
	if len(v) == 0 {
		return nil, nil
	}
	if len(v) != 2 || v[0] < 0 || v[0] >= v[1] {
		return nil, fmt.Errorf("time range must be start,stop with 0 <= start < stop, got %v", v)
	}
	return &raster.TimeRange{Start: v[0], Stop: v[1]}, nil
}

// plotFlags are the presentation flags of the plot command.
type plotFlags struct {
	Config        string
	Title         string
	PopRates      string
	SyncLines     bool
	Legend        bool
	Marker        string
	MarkerSize    float64
	LineWidth     float64
	Width         float64
	Height        float64
	Phase         string
	PopBackground bool
	Output        string
	Overwrite     bool
	Show          bool
}

func (p *plotFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&p.Config, "config", "c", "", "plot config file (.yaml, .yml or .cue)")
	f.StringVar(&p.Title, "title", "", "plot title")
	f.StringVar(&p.PopRates, "pop-rates", rasterplot.PopRatesFull, "population rates in the legend (off|minimal|full)")
	f.BoolVar(&p.SyncLines, "sync-lines", false, "draw a vertical line at every spike")
	f.BoolVar(&p.Legend, "legend", true, "draw the population legend")
	f.StringVar(&p.Marker, "marker", render.MarkerCircle, "marker shape")
	f.Float64Var(&p.MarkerSize, "marker-size", rasterplot.DefaultMarkerSize, "marker area in points squared")
	f.Float64Var(&p.LineWidth, "line-width", rasterplot.DefaultLineWidth, "marker and sync line width")
	f.Float64Var(&p.Width, "width", 0, "figure width in inches")
	f.Float64Var(&p.Height, "height", 0, "figure height in inches")
	f.StringVar(&p.Phase, "phase", "", "color spikes by phase from a phase series file")
	f.BoolVar(&p.PopBackground, "pop-background", false, "shade alternate populations when coloring by phase")
	f.StringVarP(&p.Output, "output", "o", "", "figure file (.png, .jpg, .svg, .pdf, .eps, .tif)")
	f.BoolVar(&p.Overwrite, "overwrite", true, "overwrite an existing figure file")
	f.BoolVar(&p.Show, "show", false, "write the figure as PNG to stdout")
}

// applyConfig copies every set config field onto req.
func applyConfig(fs afero.Fs, req *rasterplot.Request, cfg *config.PlotConfig) error {
	if cfg.Title != "" {
		req.Title = cfg.Title
	}
	if cfg.XLabel != "" {
		req.XLabel = cfg.XLabel
	}
	if cfg.YLabel != "" {
		req.YLabel = cfg.YLabel
	}
	if cfg.OrderBy != "" {
		req.OrderBy = cfg.OrderBy
	}
	req.OrderInverse = req.OrderInverse || cfg.OrderInverse
	if cfg.MaxSpikes > 0 {
		req.MaxSpikes = cfg.MaxSpikes
	}
	if len(cfg.TimeRange) > 0 {
		tr, err := timeRangeOf(cfg.TimeRange)
		if err != nil {
			return err
		}
		req.TimeRange = tr
	}
	if len(cfg.Include) > 0 {
		req.Include = cfg.Include
	}

	if cfg.PopRates != "" {
		req.PopRates = cfg.PopRates
	}
	if cfg.PopNumCells != nil {
		req.PopNumCells = cfg.PopNumCells
	}
	if cfg.PopLabels != nil {
		req.PopLabels = cfg.PopLabels
	}
	popColors, err := cfg.PopulationColors()
	if err != nil {
		return err
	}
	if popColors != nil {
		req.PopColors = popColors
	}
	palette, err := cfg.Palette()
	if err != nil {
		return err
	}
	if palette != nil {
		req.ColorList = palette
	}

	req.SyncLines = req.SyncLines || cfg.SyncLines
	if cfg.Legend != nil {
		req.Legend = *cfg.Legend
	}
	if lo := cfg.LegendOptions; lo != nil {
		req.LegendOptions = render.LegendOptions{Position: lo.Position, OffsetX: lo.OffsetX, OffsetY: lo.OffsetY}
	}
	if cp := cfg.ColorByPhase; cp != nil {
		series, err := phase.Load(fs, cp.Source)
		if err != nil {
			return err
		}
		req.ColorByPhase = &rasterplot.PhaseOptions{Source: series, PopBackground: cp.PopBackground}
	}

	if cfg.MarkerSize > 0 {
		req.MarkerSize = cfg.MarkerSize
	}
	if cfg.Marker != "" {
		req.Marker = cfg.Marker
	}
	if cfg.LineWidth > 0 {
		req.LineWidth = cfg.LineWidth
	}
	if cfg.Width > 0 {
		req.Width = cfg.Width
	}
	if cfg.Height > 0 {
		req.Height = cfg.Height
	}

	req.SaveFig = req.SaveFig || cfg.SaveFig
	if cfg.Filename != "" {
		req.Filename = cfg.Filename
	}
	if cfg.Overwrite != nil {
		req.Overwrite = *cfg.Overwrite
	}
	req.ShowFig = req.ShowFig || cfg.ShowFig
	return nil
}

// applyFlags copies every flag the user set onto req. Flags win over
// config values.
func applyFlags(cmd *cobra.Command, fs afero.Fs, req *rasterplot.Request, sel *selectionFlags, pf *plotFlags) error {
	changed := cmd.Flags().Changed

	if changed("order-by") {
		req.OrderBy = sel.OrderBy
	}
	if changed("order-inverse") {
		req.OrderInverse = sel.OrderInverse
	}
	if changed("max-spikes") {
		req.MaxSpikes = sel.MaxSpikes
	}
	if changed("time-range") {
		tr, err := sel.timeRange()
		if err != nil {
			return err
		}
		req.TimeRange = tr
	}
	if changed("include") {
		req.Include = sel.Include
	}
	if changed("pop-num-cells") {
		req.PopNumCells = sel.PopNumCells
	}
	if changed("pop-labels") {
		req.PopLabels = sel.PopLabels
	}

	if changed("title") {
		req.Title = pf.Title
	}
	if changed("pop-rates") {
		switch pf.PopRates {
		case rasterplot.PopRatesOff, rasterplot.PopRatesMinimal, rasterplot.PopRatesFull:
		default:
			return fmt.Errorf("--pop-rates must be one of off, minimal, full; got %q", pf.PopRates)
		}
		req.PopRates = pf.PopRates
	}
	if changed("sync-lines") {
		req.SyncLines = pf.SyncLines
	}
	if changed("legend") {
		req.Legend = pf.Legend
	}
	if changed("marker") {
		req.Marker = pf.Marker
	}
	if changed("marker-size") {
		req.MarkerSize = pf.MarkerSize
	}
	if changed("line-width") {
		req.LineWidth = pf.LineWidth
	}
	if changed("width") {
		req.Width = pf.Width
	}
	if changed("height") {
		req.Height = pf.Height
	}
	if changed("phase") {
		series, err := phase.Load(fs, pf.Phase)
		if err != nil {
			return err
		}
		req.ColorByPhase = &rasterplot.PhaseOptions{Source: series}
	}
	if changed("pop-background") && req.ColorByPhase != nil {
		req.ColorByPhase.PopBackground = pf.PopBackground
	}
	if changed("output") {
		req.Filename = pf.Output
		req.SaveFig = true
	}
	if changed("overwrite") {
		req.Overwrite = pf.Overwrite
	}
	if changed("show") {
		req.ShowFig = pf.Show
	}

	// A plot that is neither shown nor saved is saved.
	if !req.ShowFig {
		req.SaveFig = true
	}
	return nil
}
