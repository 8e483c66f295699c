package cli

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/roach88/spikeraster/internal/config"
	"github.com/roach88/spikeraster/internal/raster"
)

// schemaTargets maps schema names to the types they describe.
var schemaTargets = map[string]any{
	"input":  &raster.Mapping{},
	"config": &config.PlotConfig{},
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "schema <input|config>",
		Short:     "Print a JSON Schema",
		Long:      `Print the JSON Schema of the raster input mapping or of plot config files.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"input", "config"},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schemaFor(args[0])
			if err != nil {
				_ = rootOpts.formatter(cmd).Error(ErrCodeGeneric, err.Error(), nil)
				return WrapExitError(ExitCommandError, "schema", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func schemaFor(name string) ([]byte, error) {
	target, ok := schemaTargets[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q: want input or config", name)
	}
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	s := r.Reflect(target)
	return json.MarshalIndent(s, "", "  ")
}
