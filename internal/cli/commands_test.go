package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/spikeraster/internal/testutil"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

const rasterJSON = `{
  "spkTimes": [1, 2.5, 5],
  "spkInds": [1, 0, 1],
  "popNumCells": [1, 1],
  "popLabels": ["E", "I"]
}`

func rasterFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "raster.json", []byte(rasterJSON), 0o644))
	return fs
}

func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	if data != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, data))
	}
	return resp
}

func TestNormalize_JSONGolden(t *testing.T) {
	out, _, err := execute(t, rasterFs(t), "normalize", "raster.json", "--format", "json")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "normalize-json", []byte(out))
}

func TestNormalize_Text(t *testing.T) {
	out, _, err := execute(t, rasterFs(t), "normalize", "raster.json", "--max-spikes", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "2 spikes from 2 cells over 4.0 ms")
	assert.Contains(t, out, "bounded to [1, 5)")
	assert.Contains(t, out, "E ")
}

func TestNormalize_Errors(t *testing.T) {
	fs := rasterFs(t)
	require.NoError(t, afero.WriteFile(fs, "bad.json", []byte(`{"spkTimes": [1, 2], "spkInds": [0]}`), 0o644))

	out, _, err := execute(t, fs, "normalize", "bad.json", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeResponse(t, out, nil)
	assert.Equal(t, ErrCodeMalformed, resp.Error.Code)

	out, _, err = execute(t, fs, "normalize", "missing.json", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "E101", decodeResponse(t, out, nil).Error.Code)

	_, _, err = execute(t, fs, "normalize")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, fs, "normalize", "raster.json", "--order-by", "y")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, _, err = execute(t, fs, "normalize", "raster.json", "--db", "x.db")
	assert.ErrorIs(t, err, errInputAndDB)

	_, _, err = execute(t, fs, "normalize", "raster.json", "--time-range", "5,1")
	assert.ErrorContains(t, err, "time range")
}

func TestPlot_SavesFigure(t *testing.T) {
	fs := rasterFs(t)
	out, _, err := execute(t, fs, "plot", "raster.json", "-o", "figs/raster.png", "--format", "json")
	require.NoError(t, err)

	var res PlotResult
	resp := decodeResponse(t, out, &res)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "figs/raster.png", res.Path)
	assert.Equal(t, 3, res.Stats.Events)

	data, err := afero.ReadFile(fs, "figs/raster.png")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestPlot_DefaultFilenameFromTitle(t *testing.T) {
	fs := rasterFs(t)
	out, _, err := execute(t, fs, "plot", "raster.json", "--title", "Network Activity")
	require.NoError(t, err)
	assert.Contains(t, out, "saved network-activity.png")

	_, _, err = execute(t, fs, "plot", "raster.json", "--title", "Network Activity", "--overwrite=false")
	require.NoError(t, err)
	ok, err := afero.Exists(fs, "network-activity_1.png")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPlot_ConfigAndFlags(t *testing.T) {
	fs := rasterFs(t)
	cfg := `
title: From Config
popRates: minimal
popColors:
  E: "#ff0000"
syncLines: true
filename: config.svg
colorByPhase:
  source: phase.json
  popBackground: true
`
	require.NoError(t, afero.WriteFile(fs, "plot.yaml", []byte(cfg), 0o644))
	require.NoError(t, afero.WriteFile(fs, "phase.json", []byte(`{"fs": 1000, "phase": [0, 0.5, 1, 1.5, 2, 2.5, 3]}`), 0o644))

	out, _, err := execute(t, fs, "plot", "raster.json", "--config", "plot.yaml", "--format", "json")
	require.NoError(t, err)
	var res PlotResult
	decodeResponse(t, out, &res)
	assert.Equal(t, "config.svg", res.Path)

	out, _, err = execute(t, fs, "plot", "raster.json", "-c", "plot.yaml", "-o", "flag.pdf", "--format", "json")
	require.NoError(t, err)
	decodeResponse(t, out, &res)
	assert.Equal(t, "flag.pdf", res.Path, "flags win over config")
}

func TestPlot_InvalidConfig(t *testing.T) {
	fs := rasterFs(t)
	require.NoError(t, afero.WriteFile(fs, "plot.yaml", []byte("popRates: loud\n"), 0o644))

	out, _, err := execute(t, fs, "plot", "raster.json", "-c", "plot.yaml", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfig, decodeResponse(t, out, nil).Error.Code)
}

func TestPlot_ShowWritesPNGToStdout(t *testing.T) {
	out, errOut, err := execute(t, rasterFs(t), "plot", "raster.json", "--show")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix([]byte(out), pngMagic))
	assert.Contains(t, errOut, "3 spikes from 2 cells")
}

func TestPlot_InvalidPopRates(t *testing.T) {
	_, _, err := execute(t, rasterFs(t), "plot", "raster.json", "--pop-rates", "loud")
	assert.ErrorContains(t, err, "--pop-rates")
}

func testSimulation() *testutil.SimOutput {
	return testutil.NewSimOutput(100).
		Pop("E", 2, func(i int) map[string]any { return map[string]any{"y": float64(10 - i)} }).
		Pop("I", 1, func(int) map[string]any { return map[string]any{"y": 20.0} }).
		Stim("bkg", 1).
		Spike(0, 5).
		Spike(1, 2).
		Spike(2, 7).
		Spike(3, 1)
}

func TestImportAndPlotFromDatabase(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "sim.json", testSimulation().JSON(), 0o644))
	db := filepath.Join(t.TempDir(), "sim.db")

	out, _, err := execute(t, fs, "import", "sim.json", "--db", db, "--label", "baseline", "--format", "json")
	require.NoError(t, err)
	var imported ImportResult
	decodeResponse(t, out, &imported)
	assert.Equal(t, "baseline", imported.Dataset.Label)
	assert.Equal(t, 4, imported.Dataset.Cells)
	assert.Equal(t, 4, imported.Dataset.Spikes)
	assert.Equal(t, []string{"E", "I", "bkg"}, imported.Dataset.Populations)

	out, _, err = execute(t, fs, "datasets", "--db", db, "--format", "json")
	require.NoError(t, err)
	var list DatasetList
	decodeResponse(t, out, &list)
	require.Len(t, list, 1)
	assert.Equal(t, imported.Dataset.ID, list[0].ID)

	out, _, err = execute(t, fs, "normalize", "--db", db, "--order-by", "y", "--format", "json")
	require.NoError(t, err)
	var norm NormalizeResult
	decodeResponse(t, out, &norm)
	assert.Equal(t, []int{1, 0, 2}, norm.Raster.Indices, "cell 1 has the smaller y")
	assert.Equal(t, []int{2, 1}, norm.Raster.PopulationSizes)

	out, _, err = execute(t, fs, "plot", "--db", db, "--dataset", imported.Dataset.ID, "-o", "db.png", "--format", "json")
	require.NoError(t, err)
	var res PlotResult
	decodeResponse(t, out, &res)
	assert.Equal(t, 3, res.Stats.Events)

	_, _, err = execute(t, fs, "plot", "--db", db, "--dataset", "nope")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDatasets_MissingDatabase(t *testing.T) {
	out, _, err := execute(t, afero.NewMemMapFs(), "datasets", "--db", filepath.Join(t.TempDir(), "none.db"), "--format", "json")
	require.Error(t, err)
	assert.Equal(t, "E101", decodeResponse(t, out, nil).Error.Code)
}

func TestValidate(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "good.cue", []byte(`title: "ok"
popRates: "off"
`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "bad.yaml", []byte("colorList: [red]\n"), 0o644))

	out, _, err := execute(t, fs, "validate", "good.cue")
	require.NoError(t, err)
	assert.Contains(t, out, "good.cue is valid")

	out, _, err = execute(t, fs, "validate", "bad.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E201]")
}

func TestSchema(t *testing.T) {
	out, _, err := execute(t, afero.NewMemMapFs(), "schema", "input")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "spkTimes")
	assert.Contains(t, props, "popLabels")

	out, _, err = execute(t, afero.NewMemMapFs(), "schema", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "colorByPhase")

	_, _, err = execute(t, afero.NewMemMapFs(), "schema", "other")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	pass := `name: ok
description: "index order"
input: {spkTimes: [2, 1], spkInds: [1, 0]}
expect: {indices: [0, 1]}
`
	fail := `name: wrong
description: "wrong expectation"
input: {spkTimes: [2, 1], spkInds: [1, 0]}
expect: {indices: [1, 0]}
`
	require.NoError(t, afero.WriteFile(fs, "scenarios/ok.yaml", []byte(pass), 0o644))

	out, _, err := execute(t, fs, "test", "scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ok")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	_, _, err = execute(t, fs, "test", "scenarios", "--update")
	require.NoError(t, err)
	ok, err := afero.Exists(fs, "scenarios/golden/ok.golden")
	require.NoError(t, err)
	assert.True(t, ok)

	out, _, err = execute(t, fs, "test", "scenarios")
	require.NoError(t, err, out)

	require.NoError(t, afero.WriteFile(fs, "scenarios/golden/ok.golden", []byte("{}\n"), 0o644))
	out, _, err = execute(t, fs, "test", "scenarios")
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")

	require.NoError(t, afero.WriteFile(fs, "scenarios/wrong.yaml", []byte(fail), 0o644))
	out, _, err = execute(t, fs, "test", "scenarios", "--filter", "wr*", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	var res TestResult
	decodeResponse(t, out, &res)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Failed)

	_, _, err = execute(t, fs, "test", "nowhere")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
