package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/spikeraster/internal/raster"
)

// NormalizeResult is the normalize command's output.
type NormalizeResult struct {
	Raster *raster.NormalizedRaster `json:"raster"`
	Stats  raster.Stats             `json:"stats"`
}

// String renders a per-population summary table.
func (r NormalizeResult) String() string {
	p := message.NewPrinter(language.English)
	var b strings.Builder
	p.Fprintf(&b, "%d spikes from %d cells over %.1f ms (%.2f Hz)\n", r.Stats.Events, r.Stats.Cells, r.Stats.Span, r.Stats.Rate)
	if w := r.Raster.Window; w != nil {
		fmt.Fprintf(&b, "bounded to %s\n", w)
	}
	for _, ps := range r.Stats.Populations {
		p.Fprintf(&b, "  %-12s %6d cells %8d spikes %8.2f Hz\n", ps.Label, ps.Size, ps.Count, ps.Rate)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	sel := &selectionFlags{}

	cmd := &cobra.Command{
		Use:   "normalize [input]",
		Short: "Normalize raster data without plotting",
		Long: `Normalize raster data and print the result.

Events are ordered by cell (or --order-by attribute), bounded by
--max-spikes and given population sizes and labels. Use --format json
for the full normalized raster.

Examples:
  spikeraster normalize spikes.json --format json
  spikeraster normalize --db sim.db --include E,I --max-spikes 10000`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(rootOpts, sel, args, cmd)
		},
	}
	sel.register(cmd)
	return cmd
}

func runNormalize(opts *RootOptions, sel *selectionFlags, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	tr, err := sel.timeRange()
	if err != nil {
		return formatter.Fail("invalid flags", err)
	}

	norm, in, closeInput, err := resolveInput(opts.Fs, args, sel)
	defer closeInput()
	if err != nil {
		return formatter.Fail("resolve input", err)
	}

	r, err := norm.Normalize(cmd.Context(), in, raster.Options{
		OrderBy:          sel.OrderBy,
		MaxEvents:        sel.MaxSpikes,
		PopulationSizes:  sel.PopNumCells,
		PopulationLabels: sel.PopLabels,
		Include:          sel.Include,
		TimeRange:        tr,
	})
	if err != nil {
		return formatter.Fail("normalize", err)
	}

	return formatter.Success(NormalizeResult{Raster: r, Stats: r.Stats(tr)})
}
