package store

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestImportSimulation_Summary(t *testing.T) {
	s := createTestStore(t)
	ds := importTestSimulation(t, s)

	if ds.ID == "" {
		t.Error("dataset id is empty")
	}
	if ds.Cells != 6 || ds.Spikes != 7 {
		t.Errorf("counts = (%d cells, %d spikes), want (6, 7)", ds.Cells, ds.Spikes)
	}
	want := []string{"E", "I", "stim"}
	if strings.Join(ds.Populations, ",") != strings.Join(want, ",") {
		t.Errorf("populations = %v, want %v", ds.Populations, want)
	}
}

func TestImportSimulation_ReadBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	imported := importTestSimulation(t, s)

	ds, err := s.ReadDataset(ctx, imported.ID)
	if err != nil {
		t.Fatalf("ReadDataset() failed: %v", err)
	}
	if ds.Label != "two-pop" || ds.Duration != 10 {
		t.Errorf("dataset = %+v", ds)
	}
	if ds.Cells != 6 || ds.Spikes != 7 {
		t.Errorf("counts = (%d, %d), want (6, 7)", ds.Cells, ds.Spikes)
	}
	if strings.Join(ds.Populations, ",") != "E,I,stim" {
		t.Errorf("populations = %v", ds.Populations)
	}
}

func TestImportSimulation_Rejects(t *testing.T) {
	tests := []struct {
		name string
		sim  *Simulation
		want string
	}{
		{
			name: "nil",
			sim:  nil,
			want: "nil simulation",
		},
		{
			name: "duplicate gid",
			sim: &Simulation{Cells: []Cell{
				{GID: 1, Pop: "E"},
				{GID: 1, Pop: "I"},
			}},
			want: "duplicate cell gid 1",
		},
		{
			name: "missing population",
			sim:  &Simulation{Cells: []Cell{{GID: 1}}},
			want: "has no population",
		},
		{
			name: "unknown kind",
			sim:  &Simulation{Cells: []Cell{{GID: 1, Pop: "E", Kind: "artificial"}}},
			want: `unknown kind "artificial"`,
		},
		{
			name: "spike for unknown gid",
			sim: &Simulation{
				Cells:  []Cell{{GID: 1, Pop: "E"}},
				Spikes: []Spike{{GID: 2, Time: 1}},
			},
			want: "unknown gid 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestStore(t)
			_, err := s.ImportSimulation(context.Background(), tt.sim)
			if err == nil {
				t.Fatal("ImportSimulation() succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}

			datasets, err := s.ListDatasets(context.Background())
			if err != nil {
				t.Fatalf("ListDatasets() failed: %v", err)
			}
			if len(datasets) != 0 {
				t.Errorf("rejected import left %d datasets", len(datasets))
			}
		})
	}
}

func TestImportSimulation_Empty(t *testing.T) {
	s := createTestStore(t)
	ds, err := s.ImportSimulation(context.Background(), &Simulation{Label: "empty"})
	if err != nil {
		t.Fatalf("ImportSimulation() failed: %v", err)
	}
	if ds.Cells != 0 || ds.Spikes != 0 || len(ds.Populations) != 0 {
		t.Errorf("dataset = %+v", ds)
	}
}

func TestListDatasets_ImportOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	datasets, err := s.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("ListDatasets() failed: %v", err)
	}
	if datasets == nil || len(datasets) != 0 {
		t.Fatalf("empty store: got %v, want empty non-nil slice", datasets)
	}

	first := importTestSimulation(t, s)
	second := importTestSimulation(t, s)

	datasets, err = s.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("ListDatasets() failed: %v", err)
	}
	if len(datasets) != 2 {
		t.Fatalf("got %d datasets, want 2", len(datasets))
	}
	if datasets[0].ID != first.ID || datasets[1].ID != second.ID {
		t.Errorf("order = [%s %s], want [%s %s]", datasets[0].ID, datasets[1].ID, first.ID, second.ID)
	}

	latest, err := s.LatestDatasetID(ctx)
	if err != nil {
		t.Fatalf("LatestDatasetID() failed: %v", err)
	}
	if latest != second.ID {
		t.Errorf("latest = %s, want %s", latest, second.ID)
	}
}

func TestReadDataset_NotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.ReadDataset(ctx, "missing")
	if !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("ReadDataset() error = %v, want ErrDatasetNotFound", err)
	}

	_, err = s.LatestDatasetID(ctx)
	if !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("LatestDatasetID() error = %v, want ErrDatasetNotFound", err)
	}
}

func TestMarshalTags(t *testing.T) {
	got, err := marshalTags(map[string]any{"z": 1, "a": "<b>"})
	if err != nil {
		t.Fatalf("marshalTags() failed: %v", err)
	}
	if got != `{"a":"<b>","z":1}` {
		t.Errorf("marshalTags() = %s", got)
	}

	empty, err := marshalTags(nil)
	if err != nil || empty != "{}" {
		t.Errorf("marshalTags(nil) = %q, %v", empty, err)
	}

	back, err := unmarshalTags(got)
	if err != nil {
		t.Fatalf("unmarshalTags() failed: %v", err)
	}
	if back["z"] != 1.0 || back["a"] != "<b>" {
		t.Errorf("unmarshalTags() = %v", back)
	}
}
