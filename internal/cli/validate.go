package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/spikeraster/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Path  string `json:"path"`
	Valid bool   `json:"valid"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a plot config file",
		Long: `Validate a plot config (.yaml, .yml or .cue) without plotting.

CUE configs are unified with the config schema; every config is then
checked for value constraints (colors, time range, enumerations).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := config.Load(opts.Fs, path); err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Path: path, Valid: true})
	}
	fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", path)
	return nil
}
