package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SimOutput builds netpyne-style simulation output documents for tests.
//
// Cells get sequential gids starting at 0 in the order populations are
// added. Populations are written in insertion order so loaders that
// preserve document order see the declared order.
//
// Not safe for concurrent use.
type SimOutput struct {
	duration float64
	pops     []simPop
	cells    []simCell
	spkt     []float64
	spkid    []float64
}

type simPop struct {
	label     string
	cellModel string
	gids      []int
}

type simCell struct {
	GID  int            `json:"gid"`
	Tags map[string]any `json:"tags"`
}

// NewSimOutput creates an empty document for a run of the given duration in ms.
func NewSimOutput(duration float64) *SimOutput {
	return &SimOutput{duration: duration}
}

// Pop appends a population of n cells. tags, if non-nil, supplies extra
// tags for the i-th cell of the population.
func (b *SimOutput) Pop(label string, n int, tags func(i int) map[string]any) *SimOutput {
	return b.addPop(label, "HH", n, tags)
}

// Stim appends a population of n NetStims.
func (b *SimOutput) Stim(label string, n int) *SimOutput {
	return b.addPop(label, "NetStim", n, nil)
}

func (b *SimOutput) addPop(label, model string, n int, tags func(i int) map[string]any) *SimOutput {
	pop := simPop{label: label, cellModel: model}
	for i := 0; i < n; i++ {
		gid := len(b.cells)
		t := map[string]any{"pop": label, "cellModel": model}
		if tags != nil {
			for k, v := range tags(i) {
				t[k] = v
			}
		}
		b.cells = append(b.cells, simCell{GID: gid, Tags: t})
		pop.gids = append(pop.gids, gid)
	}
	b.pops = append(b.pops, pop)
	return b
}

// Spike records one spike.
func (b *SimOutput) Spike(gid int, t float64) *SimOutput {
	b.spkt = append(b.spkt, t)
	b.spkid = append(b.spkid, float64(gid))
	return b
}

// Regular records n spikes for gid starting at start, every interval ms.
func (b *SimOutput) Regular(gid int, start, interval float64, n int) *SimOutput {
	for i := 0; i < n; i++ {
		b.Spike(gid, start+float64(i)*interval)
	}
	return b
}

// SpikeCount returns the number of recorded spikes.
func (b *SimOutput) SpikeCount() int {
	return len(b.spkt)
}

// JSON renders the document.
func (b *SimOutput) JSON() []byte {
	var pops bytes.Buffer
	pops.WriteByte('{')
	for i, p := range b.pops {
		if i > 0 {
			pops.WriteByte(',')
		}
		gids := p.gids
		if gids == nil {
			gids = []int{}
		}
		entry := map[string]any{
			"tags":     map[string]any{"cellModel": p.cellModel},
			"cellGids": gids,
		}
		fmt.Fprintf(&pops, "%s:%s", mustJSON(p.label), mustJSON(entry))
	}
	pops.WriteByte('}')

	cells := b.cells
	if cells == nil {
		cells = []simCell{}
	}
	spkt, spkid := b.spkt, b.spkid
	if spkt == nil {
		spkt, spkid = []float64{}, []float64{}
	}

	doc := map[string]any{
		"simConfig": map[string]any{"duration": b.duration},
		"net": map[string]any{
			"pops":  json.RawMessage(pops.Bytes()),
			"cells": cells,
		},
		"simData": map[string]any{
			"spkt":  spkt,
			"spkid": spkid,
		},
	}
	return mustJSON(doc)
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal: %v", err))
	}
	return data
}
