package render

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Default figure size in inches.
const (
	DefaultWidth  = 10.0
	DefaultHeight = 8.0
)

// Gonum renders figures with gonum/plot and writes them through an afero
// filesystem.
type Gonum struct {
	fs      afero.Fs
	display io.Writer
}

// NewGonum creates a renderer. display receives PNG bytes on Show and may
// be nil, in which case Show fails with ErrNoDisplay.
func NewGonum(fs afero.Fs, display io.Writer) *Gonum {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Gonum{fs: fs, display: display}
}

type gonumFigure struct {
	width, height float64
	axis          *gonumAxis
}

func (f *gonumFigure) Size() (float64, float64) {
	return f.width, f.height
}

// CreateFigure creates a figure with one axis.
func (g *Gonum) CreateFigure(opts FigureOptions) (Figure, error) {
	if opts.Width < 0 || opts.Height < 0 {
		return nil, fmt.Errorf("figure size must not be negative, got %gx%g", opts.Width, opts.Height)
	}
	f := &gonumFigure{width: opts.Width, height: opts.Height}
	if f.width == 0 {
		f.width = DefaultWidth
	}
	if f.height == 0 {
		f.height = DefaultHeight
	}
	f.axis = &gonumAxis{fig: f}
	return f, nil
}

// Axis implements Renderer.
func (g *Gonum) Axis(fig Figure, existing Axis) (Axis, error) {
	if existing != nil {
		ax, ok := existing.(*gonumAxis)
		if !ok {
			return nil, fmt.Errorf("axis %T was not created by this renderer", existing)
		}
		return ax, nil
	}
	f, ok := fig.(*gonumFigure)
	if !ok {
		return nil, fmt.Errorf("figure %T was not created by this renderer", fig)
	}
	return f.axis, nil
}

// SaveFigure implements Renderer. The image format follows the file
// extension: png, jpg, jpeg, tif, tiff, svg, pdf or eps.
func (g *Gonum) SaveFigure(ctx context.Context, fig Figure, path string, overwrite bool) (string, error) {
	f, ok := fig.(*gonumFigure)
	if !ok {
		return "", fmt.Errorf("figure %T was not created by this renderer", fig)
	}
	format, err := formatOf(path)
	if err != nil {
		return "", err
	}

	if !overwrite {
		if path, err = AvailablePath(g.fs, path); err != nil {
			return "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	wt, err := f.writerTo(format)
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := g.fs.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create figure directory: %w", err)
		}
	}
	out, err := g.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("create figure file: %w", err)
	}
	if _, err := wt.WriteTo(out); err != nil {
		out.Close()
		return "", fmt.Errorf("write figure: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close figure file: %w", err)
	}

	slog.Debug("figure saved", "path", path, "format", format)
	return path, nil
}

// Show writes the figure as PNG to the display writer.
func (g *Gonum) Show(fig Figure) error {
	if g.display == nil {
		return ErrNoDisplay
	}
	f, ok := fig.(*gonumFigure)
	if !ok {
		return fmt.Errorf("figure %T was not created by this renderer", fig)
	}
	wt, err := f.writerTo("png")
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(g.display); err != nil {
		return fmt.Errorf("show figure: %w", err)
	}
	return nil
}

func (f *gonumFigure) writerTo(format string) (io.WriterTo, error) {
	p, err := f.axis.build()
	if err != nil {
		return nil, err
	}
	wt, err := p.WriterTo(vg.Length(f.width)*vg.Inch, vg.Length(f.height)*vg.Inch, format)
	if err != nil {
		return nil, fmt.Errorf("encode figure as %s: %w", format, err)
	}
	return wt, nil
}

func formatOf(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "png", "jpg", "jpeg", "tif", "tiff", "svg", "pdf", "eps":
		return ext, nil
	default:
		return "", fmt.Errorf("unsupported figure format %q", filepath.Ext(path))
	}
}

// AvailablePath returns path if nothing exists there, else the first free
// name of the form <base>_<n><ext> for n = 1, 2, ...
func AvailablePath(fs afero.Fs, path string) (string, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return "", fmt.Errorf("check %s: %w", path, err)
	}
	if !exists {
		return path, nil
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		exists, err := afero.Exists(fs, candidate)
		if err != nil {
			return "", fmt.Errorf("check %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}
}

type band struct {
	ymin, ymax float64
	fill       color.Color
}

// gonumAxis records drawing calls; the plot is built when the figure is
// encoded so bands can span the final x range and sit behind the data.
type gonumAxis struct {
	fig *gonumFigure

	title, xlabel, ylabel string
	xRange, yRange        *[2]float64
	invertY               bool

	bands    []band
	plotters []plot.Plotter

	legend     []LegendEntry
	legendOpts LegendOptions
}

func (a *gonumAxis) Figure() Figure {
	return a.fig
}

func (a *gonumAxis) Scatter(pts []Point, style MarkerStyle, colors []color.Color) error {
	if colors != nil && len(colors) != len(pts) {
		return fmt.Errorf("scatter: %d colors for %d points", len(colors), len(pts))
	}
	if len(pts) == 0 {
		return nil
	}

	xys := make(plotter.XYs, len(pts))
	for i, p := range pts {
		xys[i] = plotter.XY{X: p.X, Y: p.Y}
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("scatter: %w", err)
	}

	base := draw.GlyphStyle{
		Color:  colorOr(style.Color, color.Black),
		Radius: markerRadius(style.Size),
		Shape:  glyphFor(style.Shape),
	}
	s.GlyphStyle = base
	if colors != nil {
		s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			gs := base
			gs.Color = colors[i]
			return gs
		}
	}
	a.plotters = append(a.plotters, s)
	return nil
}

func (a *gonumAxis) VerticalLine(x, ymin, ymax float64, style LineStyle) error {
	l, err := plotter.NewLine(plotter.XYs{{X: x, Y: ymin}, {X: x, Y: ymax}})
	if err != nil {
		return fmt.Errorf("vertical line: %w", err)
	}
	l.LineStyle = draw.LineStyle{
		Color: colorOr(style.Color, color.Gray{Y: 128}),
		Width: vg.Points(style.Width),
	}
	if style.Dotted {
		l.LineStyle.Dashes = []vg.Length{vg.Points(1), vg.Points(2)}
	}
	a.plotters = append(a.plotters, l)
	return nil
}

func (a *gonumAxis) Band(ymin, ymax float64, fill color.Color) error {
	if math.IsNaN(ymin) || math.IsNaN(ymax) || ymax < ymin {
		return fmt.Errorf("band: invalid range [%g, %g)", ymin, ymax)
	}
	a.bands = append(a.bands, band{ymin: ymin, ymax: ymax, fill: fill})
	return nil
}

func (a *gonumAxis) Legend(entries []LegendEntry, opts LegendOptions) {
	a.legend = append([]LegendEntry(nil), entries...)
	a.legendOpts = opts
}

func (a *gonumAxis) InvertY() {
	a.invertY = true
}

func (a *gonumAxis) SetXRange(min, max float64) {
	a.xRange = &[2]float64{min, max}
}

func (a *gonumAxis) SetYRange(min, max float64) {
	a.yRange = &[2]float64{min, max}
}

func (a *gonumAxis) SetLabels(title, xlabel, ylabel string) {
	a.title, a.xlabel, a.ylabel = title, xlabel, ylabel
}

// xExtent returns the x range bands should cover.
func (a *gonumAxis) xExtent() (float64, float64) {
	if a.xRange != nil {
		return a.xRange[0], a.xRange[1]
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range a.plotters {
		if dr, ok := p.(plot.DataRanger); ok {
			xmin, xmax, _, _ := dr.DataRange()
			lo, hi = math.Min(lo, xmin), math.Max(hi, xmax)
		}
	}
	if lo > hi {
		return 0, 1
	}
	return lo, hi
}

func (a *gonumAxis) build() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = a.title
	p.X.Label.Text = a.xlabel
	p.Y.Label.Text = a.ylabel

	xmin, xmax := a.xExtent()
	for _, b := range a.bands {
		poly, err := plotter.NewPolygon(plotter.XYs{
			{X: xmin, Y: b.ymin}, {X: xmax, Y: b.ymin},
			{X: xmax, Y: b.ymax}, {X: xmin, Y: b.ymax},
		})
		if err != nil {
			return nil, fmt.Errorf("band: %w", err)
		}
		poly.Color = b.fill
		poly.LineStyle.Width = 0
		p.Add(poly)
	}
	p.Add(a.plotters...)

	for _, e := range a.legend {
		p.Legend.Add(e.Label, swatch{color: colorOr(e.Color, color.Black)})
	}
	placeLegend(&p.Legend, a.legendOpts)

	if a.xRange != nil {
		p.X.Min, p.X.Max = a.xRange[0], a.xRange[1]
	}
	if a.yRange != nil {
		p.Y.Min, p.Y.Max = a.yRange[0], a.yRange[1]
	}
	if a.invertY {
		p.Y.Scale = plot.InvertedScale{Normalizer: p.Y.Scale}
	}
	return p, nil
}

// swatch is a filled legend thumbnail.
type swatch struct {
	color color.Color
}

func (s swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(s.color, c.ClipPolygonY(pts))
}

// markerRadius converts a marker area in points squared to a glyph radius.
func markerRadius(area float64) vg.Length {
	if area <= 0 {
		return vg.Points(1)
	}
	return vg.Points(math.Sqrt(area) / 2)
}

func glyphFor(shape string) draw.GlyphDrawer {
	switch shape {
	case MarkerRing:
		return draw.RingGlyph{}
	case MarkerSquare:
		return draw.SquareGlyph{}
	case MarkerBox:
		return draw.BoxGlyph{}
	case MarkerTriangle:
		return draw.TriangleGlyph{}
	case MarkerPyramid:
		return draw.PyramidGlyph{}
	case MarkerCross:
		return draw.CrossGlyph{}
	case MarkerPlus:
		return draw.PlusGlyph{}
	default:
		return draw.CircleGlyph{}
	}
}

func colorOr(c, fallback color.Color) color.Color {
	if c == nil {
		return fallback
	}
	return c
}

// placeLegend anchors the legend in a corner of the data area. Gonum has
// no centered anchor, so top shares the top-right corner with right and
// bottom sits bottom-right.
func placeLegend(l *plot.Legend, opts LegendOptions) {
	switch opts.Position {
	case LegendLeft:
		l.Top, l.Left = true, true
	case LegendBottom:
		l.Top, l.Left = false, false
	default: // right, top
		l.Top, l.Left = true, false
	}
	l.XOffs = vg.Points(opts.OffsetX)
	l.YOffs = vg.Points(opts.OffsetY)
}
