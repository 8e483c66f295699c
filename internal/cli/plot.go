package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/spikeraster/internal/config"
	"github.com/roach88/spikeraster/internal/raster"
	"github.com/roach88/spikeraster/internal/rasterplot"
	"github.com/roach88/spikeraster/internal/render"
)

// PlotResult is the plot command's output.
type PlotResult struct {
	Path   string            `json:"path,omitempty"`
	Window *raster.TimeRange `json:"window,omitempty"`
	Stats  raster.Stats      `json:"stats"`
}

func (r PlotResult) String() string {
	s := fmt.Sprintf("%d spikes from %d cells", r.Stats.Events, r.Stats.Cells)
	if r.Window != nil {
		s += fmt.Sprintf(", bounded to %s", r.Window)
	}
	if r.Path != "" {
		s += fmt.Sprintf("\nsaved %s", r.Path)
	}
	return s
}

// NewPlotCommand creates the plot command.
func NewPlotCommand(rootOpts *RootOptions) *cobra.Command {
	sel := &selectionFlags{}
	pf := &plotFlags{}

	cmd := &cobra.Command{
		Use:   "plot [input]",
		Short: "Draw a raster plot",
		Long: `Draw a raster plot of spike times against cell index.

The input is a raster file, simulation output or database file. With
--db the most recent (or --dataset) imported dataset is plotted and
cells can be ordered by any cell attribute.

Options come from --config, then flags. A plot that is not shown is
saved, to --output or a name derived from the title.

Examples:
  spikeraster plot spikes.json
  spikeraster plot spikes.csv --pop-num-cells 80,20 --pop-labels E,I
  spikeraster plot --db sim.db --order-by y --order-inverse -o raster.pdf
  spikeraster plot sim.json --config plot.cue --show > raster.png`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlot(rootOpts, sel, pf, args, cmd)
		},
	}
	sel.register(cmd)
	pf.register(cmd)
	return cmd
}

func runPlot(opts *RootOptions, sel *selectionFlags, pf *plotFlags, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	req := rasterplot.DefaultRequest()
	if pf.Config != "" {
		cfg, err := config.Load(opts.Fs, pf.Config)
		if err != nil {
			_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
			return WrapExitError(ExitCommandError, "load config", err)
		}
		if err := applyConfig(opts.Fs, &req, cfg); err != nil {
			_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
			return WrapExitError(ExitCommandError, "apply config", err)
		}
		formatter.VerboseLog("Loaded config %s", pf.Config)
	}
	if err := applyFlags(cmd, opts.Fs, &req, sel, pf); err != nil {
		return formatter.Fail("invalid flags", err)
	}

	norm, in, closeInput, err := resolveInput(opts.Fs, args, sel)
	defer closeInput()
	if err != nil {
		return formatter.Fail("resolve input", err)
	}
	req.RasterData = in

	// The figure goes to stdout; the summary moves to stderr.
	var display io.Writer
	if req.ShowFig {
		display = cmd.OutOrStdout()
		formatter.Writer = cmd.ErrOrStderr()
	}
	p := &rasterplot.Plotter{
		Renderer:   render.NewGonum(opts.Fs, display),
		Normalizer: norm,
	}

	res, err := p.Render(cmd.Context(), req)
	if err != nil {
		return formatter.Fail("plot", err)
	}
	return formatter.Success(PlotResult{
		Path:   res.SavedPath,
		Window: res.Raster.Window,
		Stats:  res.Stats,
	})
}
