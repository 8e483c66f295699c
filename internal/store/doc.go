// Package store provides SQLite-backed storage for simulation spike output.
//
// A database holds any number of datasets (one per simulation run), each
// with:
//   - Populations: labels in declaration order
//   - Cells: gid, population, kind (cell or netstim) and a JSON tag map
//   - Spikes: (gid, time) events
//
// A Source binds one dataset and serves it as a raster.RasterSource: it
// selects cells by include selector, re-indexes them to dense positions
// ordered by population then gid, and exposes their tags as a
// raster.AttributeLookup for attribute ordering.
//
// # Deterministic Query Results
//
// Every query that returns rows carries an explicit ORDER BY. Spikes are
// read in (time, id) order, cells in (population order, gid) order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
