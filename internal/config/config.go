// Package config loads raster plot settings from YAML or CUE files.
//
// YAML files are decoded strictly: unknown keys are errors. CUE files are
// unified with the embedded #PlotConfig schema, which is closed, so
// unknown keys are errors there too. Both paths finish with struct tag
// validation.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"reflect"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// PlotConfig holds every raster plot option that can live in a file.
// Pointer fields distinguish "unset" from the zero value. PopRates takes
// the rasterplot.PopRates* modes and LegendOptions.Position the
// render.Legend* positions.
type PlotConfig struct {
	Title        string `yaml:"title" json:"title,omitempty"`
	XLabel       string `yaml:"xlabel" json:"xlabel,omitempty"`
	YLabel       string `yaml:"ylabel" json:"ylabel,omitempty"`
	OrderBy      string `yaml:"orderBy" json:"orderBy,omitempty"`
	OrderInverse bool   `yaml:"orderInverse" json:"orderInverse,omitempty"`

	MaxSpikes int       `yaml:"maxSpikes" json:"maxSpikes,omitempty" validate:"gte=0"`
	TimeRange []float64 `yaml:"timeRange" json:"timeRange,omitempty" validate:"omitempty,timerange"`
	Include   []string  `yaml:"include" json:"include,omitempty" validate:"omitempty,dive,required"`

	PopRates    string            `yaml:"popRates" json:"popRates,omitempty" validate:"omitempty,oneof=off minimal full"`
	PopNumCells []int             `yaml:"popNumCells" json:"popNumCells,omitempty" validate:"omitempty,dive,gte=0"`
	PopLabels   []string          `yaml:"popLabels" json:"popLabels,omitempty"`
	PopColors   map[string]string `yaml:"popColors" json:"popColors,omitempty" validate:"omitempty,dive,keys,required,endkeys,color"`
	ColorList   []string          `yaml:"colorList" json:"colorList,omitempty" validate:"omitempty,dive,color"`

	SyncLines     bool           `yaml:"syncLines" json:"syncLines,omitempty"`
	Legend        *bool          `yaml:"legend" json:"legend,omitempty"`
	LegendOptions *LegendOptions `yaml:"legendOptions" json:"legendOptions,omitempty"`
	ColorByPhase  *PhaseConfig   `yaml:"colorByPhase" json:"colorByPhase,omitempty"`

	MarkerSize float64 `yaml:"markerSize" json:"markerSize,omitempty" validate:"gte=0"`
	Marker     string  `yaml:"marker" json:"marker,omitempty" validate:"omitempty,oneof=circle ring square box triangle pyramid cross plus"`
	LineWidth  float64 `yaml:"lineWidth" json:"lineWidth,omitempty" validate:"gte=0"`
	Width      float64 `yaml:"width" json:"width,omitempty" validate:"gte=0"`
	Height     float64 `yaml:"height" json:"height,omitempty" validate:"gte=0"`

	SaveFig   bool   `yaml:"saveFig" json:"saveFig,omitempty"`
	Filename  string `yaml:"filename" json:"filename,omitempty"`
	Overwrite *bool  `yaml:"overwrite" json:"overwrite,omitempty"`
	ShowFig   bool   `yaml:"showFig" json:"showFig,omitempty"`
}

// LegendOptions places the legend.
type LegendOptions struct {
	Position string  `yaml:"position" json:"position,omitempty" validate:"omitempty,oneof=right left top bottom"`
	OffsetX  float64 `yaml:"offsetX" json:"offsetX,omitempty"`
	OffsetY  float64 `yaml:"offsetY" json:"offsetY,omitempty"`
}

// PhaseConfig enables phase coloring.
type PhaseConfig struct {
	// Source is the path of a phase series file.
	Source        string `yaml:"source" json:"source" validate:"required"`
	PopBackground bool   `yaml:"popBackground" json:"popBackground,omitempty"`
}

// Load reads a config file. The format is chosen by extension:
// .yaml/.yml or .cue.
func Load(fs afero.Fs, path string) (*PlotConfig, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg *PlotConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = decodeYAML(data)
	case ".cue":
		cfg, err = decodeCUE(path, data)
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .cue)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decodeYAML(data []byte) (*PlotConfig, error) {
	var cfg PlotConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

func decodeCUE(path string, data []byte) (*PlotConfig, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#PlotConfig")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("config does not match schema: %w", err)
	}

	var cfg PlotConfig
	if err := unified.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode CUE config: %w", err)
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("color", func(fl validator.FieldLevel) bool {
		_, err := ParseColor(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("timerange", func(fl validator.FieldLevel) bool {
		tr, ok := fl.Field().Interface().([]float64)
		return ok && len(tr) == 2 && tr[0] >= 0 && tr[0] < tr[1]
	})
	return v
}

// Validate checks struct tag constraints.
func Validate(cfg *PlotConfig) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "PlotConfig.")
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "color":
		return fmt.Sprintf("%s: %q is not a #rrggbb color", field, fe.Value())
	case "timerange":
		return fmt.Sprintf("%s must be [start, stop] with 0 <= start < stop", field)
	case "required":
		return fmt.Sprintf("%s is required", field)
	default:
		return fmt.Sprintf("%s failed %q", field, fe.Tag())
	}
}

// ParseColor parses a #rrggbb hex color.
func ParseColor(s string) (colorful.Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return c, nil
}

// Palette returns ColorList as colors, nil when unset.
func (c *PlotConfig) Palette() ([]color.Color, error) {
	if len(c.ColorList) == 0 {
		return nil, nil
	}
	out := make([]color.Color, len(c.ColorList))
	for i, s := range c.ColorList {
		col, err := ParseColor(s)
		if err != nil {
			return nil, err
		}
		out[i] = col
	}
	return out, nil
}

// PopulationColors returns PopColors as colors keyed by population label.
func (c *PlotConfig) PopulationColors() (map[string]color.Color, error) {
	if len(c.PopColors) == 0 {
		return nil, nil
	}
	out := make(map[string]color.Color, len(c.PopColors))
	for label, s := range c.PopColors {
		col, err := ParseColor(s)
		if err != nil {
			return nil, fmt.Errorf("popColors[%s]: %w", label, err)
		}
		out[label] = col
	}
	return out, nil
}
