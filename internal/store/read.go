package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/spikeraster/internal/raster"
)

// ErrDatasetNotFound is returned when a dataset id does not exist or the
// store holds no datasets.
var ErrDatasetNotFound = errors.New("dataset not found")

// ListDatasets returns every dataset in import order.
// Returns an empty slice (not nil) for an empty store.
func (s *Store) ListDatasets(ctx context.Context) ([]Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM datasets ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}
	rows.Close()

	datasets := make([]Dataset, 0, len(ids))
	for _, id := range ids {
		ds, err := s.ReadDataset(ctx, id)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, *ds)
	}
	return datasets, nil
}

// ReadDataset returns the summary of one dataset.
// Returns ErrDatasetNotFound if it does not exist.
func (s *Store) ReadDataset(ctx context.Context, id string) (*Dataset, error) {
	ds := &Dataset{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT label, duration,
			(SELECT COUNT(*) FROM cells WHERE dataset_id = d.id),
			(SELECT COUNT(*) FROM spikes WHERE dataset_id = d.id)
		FROM datasets d
		WHERE d.id = ?
	`, id).Scan(&ds.Label, &ds.Duration, &ds.Cells, &ds.Spikes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", id, err)
	}

	pops, err := s.readPopulations(ctx, id)
	if err != nil {
		return nil, err
	}
	ds.Populations = pops
	return ds, nil
}

// LatestDatasetID returns the most recently imported dataset.
// Returns ErrDatasetNotFound for an empty store.
func (s *Store) LatestDatasetID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM datasets ORDER BY rowid DESC LIMIT 1
	`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: store is empty", ErrDatasetNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("latest dataset: %w", err)
	}
	return id, nil
}

func (s *Store) readPopulations(ctx context.Context, datasetID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label FROM populations WHERE dataset_id = ? ORDER BY ord ASC
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("query populations: %w", err)
	}
	defer rows.Close()

	pops := []string{}
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("scan population: %w", err)
		}
		pops = append(pops, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate populations: %w", err)
	}
	return pops, nil
}

// ReadCells returns the cells selected by include, ordered by population
// declaration order then gid. The position of a cell in the result is its
// raster index.
func (s *Store) ReadCells(ctx context.Context, datasetID string, include []string) ([]Cell, error) {
	sels, err := parseInclude(include)
	if err != nil {
		return nil, err
	}
	return s.selectCells(ctx, datasetID, includePredicate(datasetID, sels))
}

func (s *Store) selectCells(ctx context.Context, datasetID string, pred sq.Sqlizer) ([]Cell, error) {
	query, args, err := sq.
		Select("c.gid", "c.pop", "c.kind", "c.tags").
		From("cells c").
		Join("populations p ON p.dataset_id = c.dataset_id AND p.label = c.pop").
		Where(sq.Eq{"c.dataset_id": datasetID}).
		Where(pred).
		OrderBy("p.ord ASC", "c.gid ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cells query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cells: %w", err)
	}
	defer rows.Close()

	cells := []Cell{}
	for rows.Next() {
		var c Cell
		var tagsJSON string
		if err := rows.Scan(&c.GID, &c.Pop, &c.Kind, &tagsJSON); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		if c.Tags, err = unmarshalTags(tagsJSON); err != nil {
			return nil, fmt.Errorf("cell %d: %w", c.GID, err)
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cells: %w", err)
	}
	return cells, nil
}

// spikeQuery returns the base spike selection for a dataset restricted to
// the cells matching pred and, when tr is set, to times in [Start, Stop).
func spikeQuery(datasetID string, pred sq.Sqlizer, tr *raster.TimeRange, columns ...string) sq.SelectBuilder {
	q := sq.
		Select(columns...).
		From("spikes s").
		Join("cells c ON c.dataset_id = s.dataset_id AND c.gid = s.gid").
		Where(sq.Eq{"s.dataset_id": datasetID}).
		Where(pred)
	if tr != nil {
		q = q.Where(sq.GtOrEq{"s.time": tr.Start}).Where(sq.Lt{"s.time": tr.Stop})
	}
	return q
}

// spikeCutoff returns the time of the (maxSpikes+1)-th earliest selected
// spike. ok is false when no more than maxSpikes spikes are selected.
func (s *Store) spikeCutoff(ctx context.Context, datasetID string, pred sq.Sqlizer, tr *raster.TimeRange, maxSpikes int) (cutoff float64, ok bool, err error) {
	query, args, err := spikeQuery(datasetID, pred, tr, "s.time").
		OrderBy("s.time ASC").
		Limit(1).
		Offset(uint64(maxSpikes)).
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build cutoff query: %w", err)
	}

	err = s.db.QueryRowContext(ctx, query, args...).Scan(&cutoff)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query spike cutoff: %w", err)
	}
	return cutoff, true, nil
}

// readSpikes returns selected spikes in (time, id) order.
func (s *Store) readSpikes(ctx context.Context, datasetID string, pred sq.Sqlizer, tr *raster.TimeRange, before *float64) ([]Spike, error) {
	q := spikeQuery(datasetID, pred, tr, "s.gid", "s.time")
	if before != nil {
		q = q.Where(sq.Lt{"s.time": *before})
	}
	query, args, err := q.OrderBy("s.time ASC", "s.id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build spikes query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query spikes: %w", err)
	}
	defer rows.Close()

	spikes := []Spike{}
	for rows.Next() {
		var sp Spike
		if err := rows.Scan(&sp.GID, &sp.Time); err != nil {
			return nil, fmt.Errorf("scan spike: %w", err)
		}
		spikes = append(spikes, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spikes: %w", err)
	}
	return spikes, nil
}
