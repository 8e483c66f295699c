package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/spikeraster/internal/loader"
	"github.com/roach88/spikeraster/internal/store"
)

// DatasetList is the datasets command's output.
type DatasetList []store.Dataset

func (l DatasetList) String() string {
	if len(l) == 0 {
		return "No datasets."
	}
	var b strings.Builder
	for _, ds := range l {
		fmt.Fprintf(&b, "%s  %-20s %7d cells %9d spikes  %s\n",
			ds.ID, ds.Label, ds.Cells, ds.Spikes, strings.Join(ds.Populations, ","))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// ImportResult is the import command's output.
type ImportResult struct {
	DB      string        `json:"db"`
	Dataset store.Dataset `json:"dataset"`
}

func (r ImportResult) String() string {
	return fmt.Sprintf("imported %s (%s): %d cells, %d spikes into %s",
		r.Dataset.ID, r.Dataset.Label, r.Dataset.Cells, r.Dataset.Spikes, r.DB)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var db, label string

	cmd := &cobra.Command{
		Use:   "import <simulation.json>",
		Short: "Import simulation output into a database",
		Long: `Import simulation output (cells with tags, populations and spikes)
into a spikeraster database. The database is created when missing.

Examples:
  spikeraster import sim_output.json --db sim.db
  spikeraster import sim_output.json --db sim.db --label baseline`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], db, label, cmd)
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "database file (required)")
	cmd.Flags().StringVar(&label, "label", "", "dataset label (default: simLabel or file name)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func runImport(opts *RootOptions, path, db, label string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	sim, err := loader.New(opts.Fs).LoadSimulation(cmd.Context(), path)
	if err != nil {
		return formatter.Fail("load simulation", err)
	}
	if label != "" {
		sim.Label = label
	}
	formatter.VerboseLog("Loaded %d cells and %d spikes from %s", len(sim.Cells), len(sim.Spikes), path)

	st, err := store.Open(db)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	ds, err := st.ImportSimulation(cmd.Context(), sim)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "import", err)
	}
	return formatter.Success(ImportResult{DB: db, Dataset: *ds})
}

// NewDatasetsCommand creates the datasets command.
func NewDatasetsCommand(rootOpts *RootOptions) *cobra.Command {
	var db string

	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List imported datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			st, err := openStore(db)
			if err != nil {
				return formatter.Fail("open database", err)
			}
			defer st.Close()

			list, err := st.ListDatasets(cmd.Context())
			if err != nil {
				_ = formatter.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, "list datasets", err)
			}
			return formatter.Success(DatasetList(list))
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "database file (required)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}
