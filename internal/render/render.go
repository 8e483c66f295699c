// Package render defines the drawing surface used by raster plots and a
// gonum/plot implementation of it.
package render

import (
	"context"
	"errors"
	"image/color"
)

// ErrNoDisplay is returned by Show when the renderer has no output stream.
var ErrNoDisplay = errors.New("renderer has no display output")

// Point is one data-space coordinate.
type Point struct {
	X, Y float64
}

// Marker shapes.
const (
	MarkerCircle   = "circle"
	MarkerRing     = "ring"
	MarkerSquare   = "square"
	MarkerBox      = "box"
	MarkerTriangle = "triangle"
	MarkerPyramid  = "pyramid"
	MarkerCross    = "cross"
	MarkerPlus     = "plus"
)

// MarkerStyle styles scatter markers.
type MarkerStyle struct {
	Shape string
	// Size is the marker area in points squared.
	Size      float64
	LineWidth float64
	Color     color.Color
}

// LineStyle styles lines. Dotted lines are drawn with short dashes.
type LineStyle struct {
	Width  float64
	Color  color.Color
	Dotted bool
}

// LegendEntry is one labeled color swatch.
type LegendEntry struct {
	Label string
	Color color.Color
}

// Legend positions.
const (
	LegendRight  = "right"
	LegendLeft   = "left"
	LegendTop    = "top"
	LegendBottom = "bottom"
)

// LegendOptions places the legend. Offsets are in points.
type LegendOptions struct {
	Position string
	OffsetX  float64
	OffsetY  float64
}

// FigureOptions sizes a new figure in inches.
type FigureOptions struct {
	Width  float64
	Height float64
}

// Figure is an opaque handle to a figure created by a Renderer.
type Figure interface {
	// Size returns width and height in inches.
	Size() (width, height float64)
}

// Axis is a drawing surface within a figure.
type Axis interface {
	// Figure returns the figure the axis belongs to.
	Figure() Figure
	// Scatter draws one marker per point. colors, when non-nil, has one
	// entry per point and overrides style.Color.
	Scatter(pts []Point, style MarkerStyle, colors []color.Color) error
	VerticalLine(x, ymin, ymax float64, style LineStyle) error
	// Band fills the horizontal strip [ymin, ymax) across the x range.
	Band(ymin, ymax float64, fill color.Color) error
	Legend(entries []LegendEntry, opts LegendOptions)
	InvertY()
	SetXRange(min, max float64)
	SetYRange(min, max float64)
	SetLabels(title, xlabel, ylabel string)
}

// Renderer creates, saves and shows figures.
type Renderer interface {
	CreateFigure(opts FigureOptions) (Figure, error)
	// Axis returns existing when non-nil, else fig's main axis.
	Axis(fig Figure, existing Axis) (Axis, error)
	// SaveFigure writes fig to path and returns the path written. When
	// overwrite is false and path exists, a numbered sibling is used.
	SaveFigure(ctx context.Context, fig Figure, path string, overwrite bool) (string, error)
	Show(fig Figure) error
}
