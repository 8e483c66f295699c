package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

// ImportSimulation writes a simulation run as a new dataset and returns its
// summary. The whole import runs in one transaction: either every cell and
// spike is stored or nothing is.
//
// Cells must have unique gids and every spike must reference a known gid.
// Cells without a kind are stored as KindCell.
func (s *Store) ImportSimulation(ctx context.Context, sim *Simulation) (*Dataset, error) {
	pops, err := validateSimulation(sim)
	if err != nil {
		return nil, fmt.Errorf("import simulation: %w", err)
	}

	ds := &Dataset{
		ID:          uuid.NewString(),
		Label:       sim.Label,
		Duration:    sim.Duration,
		Populations: pops,
		Cells:       len(sim.Cells),
		Spikes:      len(sim.Spikes),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("import simulation: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO datasets (id, label, duration) VALUES (?, ?, ?)
	`, ds.ID, ds.Label, ds.Duration); err != nil {
		return nil, fmt.Errorf("import simulation: insert dataset: %w", err)
	}

	for ord, label := range pops {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO populations (dataset_id, ord, label) VALUES (?, ?, ?)
		`, ds.ID, ord, label); err != nil {
			return nil, fmt.Errorf("import simulation: insert population %q: %w", label, err)
		}
	}

	cellStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cells (dataset_id, gid, pop, kind, tags) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("import simulation: prepare cells: %w", err)
	}
	defer cellStmt.Close()

	for _, c := range sim.Cells {
		tagsJSON, err := marshalTags(c.Tags)
		if err != nil {
			return nil, fmt.Errorf("import simulation: cell %d: %w", c.GID, err)
		}
		if _, err := cellStmt.ExecContext(ctx, ds.ID, c.GID, c.Pop, kindOrDefault(c.Kind), tagsJSON); err != nil {
			return nil, fmt.Errorf("import simulation: insert cell %d: %w", c.GID, err)
		}
	}

	spikeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO spikes (dataset_id, gid, time) VALUES (?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("import simulation: prepare spikes: %w", err)
	}
	defer spikeStmt.Close()

	for _, sp := range sim.Spikes {
		if _, err := spikeStmt.ExecContext(ctx, ds.ID, sp.GID, sp.Time); err != nil {
			return nil, fmt.Errorf("import simulation: insert spike (gid %d, t %g): %w", sp.GID, sp.Time, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("import simulation: commit: %w", err)
	}

	slog.Info("dataset imported",
		"dataset", ds.ID,
		"label", ds.Label,
		"cells", ds.Cells,
		"spikes", ds.Spikes,
	)
	return ds, nil
}

// validateSimulation checks gid uniqueness and spike references and
// returns the population order to store.
func validateSimulation(sim *Simulation) ([]string, error) {
	if sim == nil {
		return nil, fmt.Errorf("nil simulation")
	}

	gids := make(map[int]struct{}, len(sim.Cells))
	for _, c := range sim.Cells {
		if _, dup := gids[c.GID]; dup {
			return nil, fmt.Errorf("duplicate cell gid %d", c.GID)
		}
		if c.Pop == "" {
			return nil, fmt.Errorf("cell %d has no population", c.GID)
		}
		switch kindOrDefault(c.Kind) {
		case KindCell, KindNetStim:
		default:
			return nil, fmt.Errorf("cell %d has unknown kind %q", c.GID, c.Kind)
		}
		gids[c.GID] = struct{}{}
	}

	for i, sp := range sim.Spikes {
		if _, ok := gids[sp.GID]; !ok {
			return nil, fmt.Errorf("spike %d references unknown gid %d", i, sp.GID)
		}
	}

	return populationOrder(sim), nil
}

// populationOrder returns declared populations followed by any other
// population seen on cells, in gid order.
func populationOrder(sim *Simulation) []string {
	seen := make(map[string]struct{})
	var order []string
	add := func(label string) {
		if _, ok := seen[label]; ok {
			return
		}
		seen[label] = struct{}{}
		order = append(order, label)
	}

	for _, label := range sim.Populations {
		add(label)
	}

	cells := make([]Cell, len(sim.Cells))
	copy(cells, sim.Cells)
	sort.Slice(cells, func(i, j int) bool { return cells[i].GID < cells[j].GID })
	for _, c := range cells {
		add(c.Pop)
	}
	return order
}

func kindOrDefault(kind string) string {
	if kind == "" {
		return KindCell
	}
	return kind
}
