package raster

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_OrdersPairsByIndex(t *testing.T) {
	out, err := Normalize(Mapping{
		SpikeTimes:   []float64{0.1, 0.3, 0.2},
		SpikeIndices: []int{2, 0, 1},
	}, Options{OrderBy: OrderByIndex})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, out.Indices)
	assert.Equal(t, []float64{0.3, 0.2, 0.1}, out.Times)
}

func TestNormalize_GIDIsIndexAlias(t *testing.T) {
	in := Mapping{SpikeTimes: []float64{5, 1}, SpikeIndices: []int{1, 0}}

	byIndex, err := Normalize(in, Options{OrderBy: "index"})
	require.NoError(t, err)
	byGID, err := Normalize(in, Options{OrderBy: "gid"})
	require.NoError(t, err)
	byDefault, err := Normalize(in, Options{})
	require.NoError(t, err)

	assert.Equal(t, byIndex, byGID)
	assert.Equal(t, byIndex, byDefault)
}

func TestNormalize_StableWithinSameIndex(t *testing.T) {
	out, err := Normalize(Mapping{
		SpikeTimes:   []float64{9, 1, 5, 3},
		SpikeIndices: []int{1, 0, 1, 0},
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0, 1, 1}, out.Indices)
	assert.Equal(t, []float64{1, 3, 9, 5}, out.Times, "ties keep original event order")
}

func TestNormalize_PopulationDefault(t *testing.T) {
	out, err := Normalize(Mapping{
		SpikeTimes:   []float64{1, 2, 3, 4, 5},
		SpikeIndices: []int{0, 1, 2, 2, 1},
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []int{3}, out.PopulationSizes)
	assert.Equal(t, []string{"Population"}, out.PopulationLabels)
}

func TestNormalize_InferredSizeCoversMaxIndex(t *testing.T) {
	out, err := Normalize(Mapping{
		SpikeTimes:   []float64{1, 2},
		SpikeIndices: []int{5, 7},
	}, Options{})
	require.NoError(t, err)

	require.Len(t, out.PopulationSizes, 1)
	assert.GreaterOrEqual(t, out.PopulationSizes[0], 8)
}

func TestNormalize_EmptyRaster(t *testing.T) {
	out, err := Normalize(Mapping{SpikeTimes: []float64{}, SpikeIndices: []int{}}, Options{})
	require.NoError(t, err)

	assert.Empty(t, out.Times)
	assert.Empty(t, out.Indices)
	assert.Equal(t, []int{0}, out.PopulationSizes)
	assert.Equal(t, []string{"Population"}, out.PopulationLabels)
}

func TestNormalize_PopulationPrecedence(t *testing.T) {
	opts := Options{
		PopulationSizes:  []int{1, 1},
		PopulationLabels: []string{"optA", "optB"},
	}

	t.Run("input metadata wins", func(t *testing.T) {
		out, err := Normalize(Mapping{
			SpikeTimes:       []float64{1, 2},
			SpikeIndices:     []int{0, 1},
			PopulationSizes:  []int{2},
			PopulationLabels: []string{"E"},
		}, opts)
		require.NoError(t, err)
		assert.Equal(t, []int{2}, out.PopulationSizes)
		assert.Equal(t, []string{"E"}, out.PopulationLabels)
	})

	t.Run("options fill absent metadata", func(t *testing.T) {
		out, err := Normalize(Mapping{
			SpikeTimes:   []float64{1, 2},
			SpikeIndices: []int{0, 1},
		}, opts)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 1}, out.PopulationSizes)
		assert.Equal(t, []string{"optA", "optB"}, out.PopulationLabels)
	})

	t.Run("default label covers one size", func(t *testing.T) {
		out, err := Normalize(NewTuple([]float64{1}, []int{0}, []int{3}), Options{})
		require.NoError(t, err)
		assert.Equal(t, []int{3}, out.PopulationSizes)
		assert.Equal(t, []string{DefaultPopulationLabel}, out.PopulationLabels)
	})

	t.Run("several sizes without labels", func(t *testing.T) {
		_, err := Normalize(Mapping{
			SpikeTimes:      []float64{1, 2, 3},
			SpikeIndices:    []int{0, 1, 2},
			PopulationSizes: []int{2, 1},
		}, Options{})
		require.Error(t, err)
		assert.True(t, IsMalformed(err))

		var me *MalformedInputError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, "populationLabels", me.Field)
	})
}

func TestNormalize_LabelsAreNFC(t *testing.T) {
	out, err := Normalize(Mapping{
		SpikeTimes:       []float64{1},
		SpikeIndices:     []int{0},
		PopulationSizes:  []int{1},
		PopulationLabels: []string{"Pyramide\u0301"},
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Pyramid\u00e9", out.PopulationLabels[0])
}

func TestNormalize_MalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		in    RawInput
		opts  Options
		field string
	}{
		{
			name:  "length mismatch",
			in:    Mapping{SpikeTimes: []float64{1, 2, 3}, SpikeIndices: []int{0, 1}},
			field: "spikeIndices",
		},
		{
			name:  "missing times",
			in:    Mapping{SpikeIndices: []int{0}},
			field: "spikeTimes",
		},
		{
			name:  "missing indices",
			in:    Mapping{SpikeTimes: []float64{1}},
			field: "spikeIndices",
		},
		{
			name:  "sizes and labels disagree",
			in:    Mapping{SpikeTimes: []float64{1}, SpikeIndices: []int{0}, PopulationSizes: []int{1, 1}, PopulationLabels: []string{"E"}},
			field: "populationLabels",
		},
		{
			name:  "negative index",
			in:    Mapping{SpikeTimes: []float64{1}, SpikeIndices: []int{-1}},
			field: "spikeIndices",
		},
		{
			name:  "NaN time",
			in:    Mapping{SpikeTimes: []float64{math.NaN()}, SpikeIndices: []int{0}},
			field: "spikeTimes",
		},
		{
			name:  "negative population size",
			in:    Mapping{SpikeTimes: []float64{1}, SpikeIndices: []int{0}, PopulationSizes: []int{-2}},
			field: "populationSizes",
		},
		{
			name:  "tuple too short",
			in:    NewTuple([]float64{1}),
			field: "input",
		},
		{
			name:  "tuple too long",
			in:    NewTuple([]float64{1}, []int{0}, []int{1}, []string{"E"}, "extra"),
			field: "input",
		},
		{
			name:  "tuple with non-integer index",
			in:    NewTuple([]any{1.0}, []any{0.5}),
			field: "spikeIndices",
		},
		{
			name:  "tuple with string times",
			in:    NewTuple("1,2", []int{0}),
			field: "spikeTimes",
		},
		{
			name:  "unresolved file reference",
			in:    FileRef{Path: "spikes.json"},
			field: "input",
		},
		{
			name:  "absent without source",
			in:    Absent{},
			field: "input",
		},
		{
			name:  "negative max events",
			in:    Mapping{SpikeTimes: []float64{1}, SpikeIndices: []int{0}},
			opts:  Options{MaxEvents: -1},
			field: "maxEvents",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.in, tt.opts)
			require.Error(t, err)
			require.True(t, IsMalformed(err), "expected MalformedInputError, got %v", err)

			var me *MalformedInputError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.field, me.Field)
		})
	}
}

func TestNormalize_TupleShapes(t *testing.T) {
	tests := []struct {
		name   string
		in     Tuple
		sizes  []int
		labels []string
	}{
		{
			name:   "pair",
			in:     NewTuple([]float64{2, 1}, []int{1, 0}),
			sizes:  []int{2},
			labels: []string{"Population"},
		},
		{
			name:   "triple",
			in:     NewTuple([]float64{2, 1}, []int{1, 0}, []int{2}),
			sizes:  []int{2},
			labels: []string{"Population"},
		},
		{
			name:   "quadruple",
			in:     NewTuple([]float64{2, 1}, []int{1, 0}, []int{1, 1}, []string{"E", "I"}),
			sizes:  []int{1, 1},
			labels: []string{"E", "I"},
		},
		{
			name:   "generic decoded values",
			in:     NewTuple([]any{2.0, 1}, []any{1.0, int64(0)}, []any{1.0, 1.0}, []any{"E", "I"}),
			sizes:  []int{1, 1},
			labels: []string{"E", "I"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Normalize(tt.in, Options{})
			require.NoError(t, err)
			assert.Equal(t, []int{0, 1}, out.Indices)
			assert.Equal(t, []float64{1, 2}, out.Times)
			assert.Equal(t, tt.sizes, out.PopulationSizes)
			assert.Equal(t, tt.labels, out.PopulationLabels)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	first, err := Normalize(Mapping{
		SpikeTimes:       []float64{4, 0.5, 3, 2.5, 1, 7},
		SpikeIndices:     []int{3, 1, 0, 2, 1, 0},
		PopulationSizes:  []int{2, 2},
		PopulationLabels: []string{"E", "I"},
	}, Options{OrderBy: OrderByIndex})
	require.NoError(t, err)

	second, err := Normalize(first.AsTuple(), Options{OrderBy: OrderByIndex})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNormalize_PreservesPairs(t *testing.T) {
	times := []float64{12.5, 3.25, 7, 3.25, 0.5, 9, 1.75}
	indices := []int{4, 0, 2, 3, 2, 1, 4}

	out, err := Normalize(Mapping{SpikeTimes: times, SpikeIndices: indices}, Options{})
	require.NoError(t, err)
	require.Equal(t, len(out.Times), len(out.Indices))

	assert.ElementsMatch(t, pairsOf(times, indices), pairsOf(out.Times, out.Indices))
	assert.True(t, sort.IntsAreSorted(out.Indices), "indices must be non-decreasing")
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	times := []float64{3, 2, 1}
	indices := []int{2, 1, 0}
	sizes := []int{3}

	out, err := Normalize(Mapping{SpikeTimes: times, SpikeIndices: indices, PopulationSizes: sizes}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []float64{3, 2, 1}, times)
	assert.Equal(t, []int{2, 1, 0}, indices)

	out.PopulationSizes[0] = 99
	assert.Equal(t, 3, sizes[0])
}

func TestNormalize_EventBounding(t *testing.T) {
	times := []float64{9, 1, 8, 2, 7, 3, 6, 4, 5, 0}
	indices := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	out, err := Normalize(Mapping{SpikeTimes: times, SpikeIndices: indices}, Options{MaxEvents: 5})
	require.NoError(t, err)

	require.LessOrEqual(t, out.Len(), 5)
	assert.ElementsMatch(t, []float64{0, 1, 2, 3, 4}, out.Times)
	require.NotNil(t, out.Window)
	assert.Equal(t, TimeRange{Start: 0, Stop: 5}, *out.Window)

	// Every retained event is earlier than every dropped one.
	for _, kept := range out.Times {
		assert.Less(t, kept, out.Window.Stop)
	}
}

func TestNormalize_EventBoundingDropsTiesTogether(t *testing.T) {
	out, err := Normalize(Mapping{
		SpikeTimes:   []float64{1, 2, 2, 2, 3},
		SpikeIndices: []int{0, 1, 2, 3, 4},
	}, Options{MaxEvents: 3})
	require.NoError(t, err)

	assert.Equal(t, []float64{1}, out.Times)
	assert.Equal(t, []int{0}, out.Indices)
}

func TestNormalize_EventBoundingCrowdedFirstTime(t *testing.T) {
	times := make([]float64, 10)
	indices := make([]int, 10)
	for i := range times {
		times[i] = 5
		indices[i] = i
	}
	times = append(times, 6)
	indices = append(indices, 0)

	out, err := Normalize(Mapping{SpikeTimes: times, SpikeIndices: indices}, Options{MaxEvents: 5})
	require.NoError(t, err)

	assert.Equal(t, 0, out.Len())
	require.NotNil(t, out.Window)
	assert.Equal(t, TimeRange{Start: 5, Stop: 5}, *out.Window)
}

func TestNormalize_EventBoundingNoop(t *testing.T) {
	out, err := Normalize(Mapping{
		SpikeTimes:   []float64{1, 2, 3},
		SpikeIndices: []int{0, 1, 2},
	}, Options{MaxEvents: 3})
	require.NoError(t, err)

	assert.Equal(t, 3, out.Len())
	assert.Nil(t, out.Window)
}

func TestNormalize_OrderByAttribute(t *testing.T) {
	ynorm := map[int]float64{0: 0.9, 1: 0.1, 2: 0.5}
	lookup := LookupFunc(func(idx int, attr string) (OrderKey, error) {
		require.Equal(t, "ynorm", attr)
		return NumberKey(ynorm[idx]), nil
	})

	out, err := Normalize(Mapping{
		SpikeTimes:   []float64{10, 20, 30, 40},
		SpikeIndices: []int{0, 1, 2, 1},
	}, Options{OrderBy: "ynorm", Lookup: lookup})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1, 2, 0}, out.Indices)
	assert.Equal(t, []float64{20, 40, 30, 10}, out.Times)
}

func TestNormalize_OrderByAttributeLooksUpOncePerCell(t *testing.T) {
	calls := map[int]int{}
	lookup := LookupFunc(func(idx int, _ string) (OrderKey, error) {
		calls[idx]++
		return StringKey("same"), nil
	})

	out, err := Normalize(Mapping{
		SpikeTimes:   []float64{3, 2, 1, 0},
		SpikeIndices: []int{1, 0, 1, 0},
	}, Options{OrderBy: "pop", Lookup: lookup})
	require.NoError(t, err)

	assert.Equal(t, map[int]int{0: 1, 1: 1}, calls)
	assert.Equal(t, []int{1, 0, 1, 0}, out.Indices, "equal keys keep original order")
}

func TestNormalize_UnresolvableOrderingKey(t *testing.T) {
	cause := errors.New("cell 7 has no tag ynorm")
	lookup := LookupFunc(func(idx int, _ string) (OrderKey, error) {
		if idx == 7 {
			return OrderKey{}, cause
		}
		return NumberKey(float64(idx)), nil
	})

	_, err := Normalize(Mapping{
		SpikeTimes:   []float64{1, 2},
		SpikeIndices: []int{3, 7},
	}, Options{OrderBy: "ynorm", Lookup: lookup})
	require.Error(t, err)
	assert.True(t, IsUnresolvableOrderingKey(err))
	assert.ErrorIs(t, err, cause)

	var ue *UnresolvableOrderingKeyError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 7, ue.CellIndex)
	assert.Equal(t, "ynorm", ue.Attribute)
}

func TestNormalize_AttributeOrderingWithoutLookup(t *testing.T) {
	_, err := Normalize(Mapping{SpikeTimes: []float64{1}, SpikeIndices: []int{0}}, Options{OrderBy: "pop"})
	require.Error(t, err)
	assert.True(t, IsUnresolvableOrderingKey(err))
	assert.ErrorIs(t, err, ErrNoLookup)
}

type stubLoader struct {
	input RawInput
	err   error
	paths []string
}

func (l *stubLoader) Load(_ context.Context, path string) (RawInput, error) {
	l.paths = append(l.paths, path)
	return l.input, l.err
}

// stubPreparedLoader serves a file together with its cell registry.
type stubPreparedLoader struct {
	stubLoader
	lookup AttributeLookup
}

func (l *stubPreparedLoader) LoadPrepared(ctx context.Context, path string) (*Prepared, error) {
	in, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Prepared{Input: in, Lookup: l.lookup}, nil
}

type stubSource struct {
	prepared *Prepared
	err      error
	req      SourceRequest
}

func (s *stubSource) PrepareRaster(_ context.Context, req SourceRequest) (*Prepared, error) {
	s.req = req
	return s.prepared, s.err
}

func TestNormalizer_ResolvesFileRef(t *testing.T) {
	loader := &stubLoader{input: NewTuple([]float64{2, 1}, []int{1, 0})}
	n := &Normalizer{Loader: loader}

	out, err := n.Normalize(context.Background(), FileRef{Path: "run.json"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"run.json"}, loader.paths)
	assert.Equal(t, []int{0, 1}, out.Indices)
}

func TestNormalizer_FileLookupOrdersByAttribute(t *testing.T) {
	y := map[int]float64{0: 30, 1: 10, 2: 20}
	loader := &stubPreparedLoader{
		stubLoader: stubLoader{input: NewTuple([]float64{1, 2, 3}, []int{0, 1, 2})},
		lookup: LookupFunc(func(idx int, _ string) (OrderKey, error) {
			return NumberKey(y[idx]), nil
		}),
	}
	n := &Normalizer{Loader: loader}

	out, err := n.Normalize(context.Background(), FileRef{Path: "sim.json"}, Options{OrderBy: "y"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0}, out.Indices)

	// An explicit lookup wins over the file's.
	override := LookupFunc(func(idx int, _ string) (OrderKey, error) {
		return NumberKey(float64(-idx)), nil
	})
	out, err = n.Normalize(context.Background(), FileRef{Path: "sim.json"}, Options{OrderBy: "y", Lookup: override})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0}, out.Indices)
}

func TestNormalizer_LoaderErrorPropagates(t *testing.T) {
	cause := errors.New("disk on fire")
	n := &Normalizer{Loader: &stubLoader{err: cause}}

	_, err := n.Normalize(context.Background(), FileRef{Path: "x.json"}, Options{})
	assert.ErrorIs(t, err, cause)
}

func TestNormalizer_LoaderMustReturnConcreteInput(t *testing.T) {
	n := &Normalizer{Loader: &stubLoader{input: FileRef{Path: "again.json"}}}

	_, err := n.Normalize(context.Background(), FileRef{Path: "x.json"}, Options{})
	assert.True(t, IsMalformed(err))
}

func TestNormalizer_MissingCollaborators(t *testing.T) {
	n := &Normalizer{}

	_, err := n.Normalize(context.Background(), FileRef{Path: "x.json"}, Options{})
	assert.ErrorIs(t, err, ErrNoLoader)

	_, err = n.Normalize(context.Background(), nil, Options{})
	assert.ErrorIs(t, err, ErrNoSource)

	_, err = n.Normalize(context.Background(), Absent{}, Options{})
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestNormalizer_UsesSourceAndItsLookup(t *testing.T) {
	pops := map[int]string{0: "I", 1: "E"}
	src := &stubSource{prepared: &Prepared{
		Input: Mapping{SpikeTimes: []float64{1, 2}, SpikeIndices: []int{0, 1}},
		Lookup: LookupFunc(func(idx int, _ string) (OrderKey, error) {
			return StringKey(pops[idx]), nil
		}),
	}}
	n := &Normalizer{Source: src}

	tr := &TimeRange{Start: 0, Stop: 100}
	out, err := n.Normalize(context.Background(), Absent{}, Options{OrderBy: "pop", MaxEvents: 50, TimeRange: tr})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 0}, out.Indices, "E sorts before I")
	assert.Equal(t, DefaultInclude, src.req.Include)
	assert.Equal(t, 50, src.req.MaxSpikes)
	assert.Equal(t, "pop", src.req.OrderBy)
	assert.Same(t, tr, src.req.TimeRange)
}

func TestNormalizer_ExplicitLookupOverridesSource(t *testing.T) {
	src := &stubSource{prepared: &Prepared{
		Input: Mapping{SpikeTimes: []float64{1, 2}, SpikeIndices: []int{0, 1}},
		Lookup: LookupFunc(func(int, string) (OrderKey, error) {
			return OrderKey{}, errors.New("source lookup must not be used")
		}),
	}}
	n := &Normalizer{Source: src}

	out, err := n.Normalize(context.Background(), nil, Options{
		OrderBy: "x",
		Lookup: LookupFunc(func(idx int, _ string) (OrderKey, error) {
			return NumberKey(float64(-idx)), nil
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, out.Indices)
}

type pair struct {
	t   float64
	idx int
}

func pairsOf(times []float64, indices []int) []pair {
	out := make([]pair, len(times))
	for i := range times {
		out[i] = pair{t: times[i], idx: indices[i]}
	}
	return out
}
