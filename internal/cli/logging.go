package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// setupLogging installs a charm logger as the default slog handler.
// --verbose raises the level to debug.
func setupLogging(w io.Writer, opts *RootOptions) error {
	level, err := log.ParseLevel(opts.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", opts.LogLevel, err)
	}
	if opts.Verbose {
		level = log.DebugLevel
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Prefix:          "spikeraster",
	})
	if opts.LogJSON {
		logger.SetFormatter(log.JSONFormatter)
	}
	slog.SetDefault(slog.New(logger))
	return nil
}
