package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harvard-visionlab/block-towers/internal/dataset"
	"github.com/harvard-visionlab/block-towers/internal/engine"
	"github.com/harvard-visionlab/block-towers/internal/staircase"
	"github.com/harvard-visionlab/block-towers/internal/tower"
	"github.com/harvard-visionlab/block-towers/internal/trajectory"
)

func testSimulation() *trajectory.Simulation {
	return &trajectory.Simulation{
		Params:         trajectory.DefaultParams(),
		StartPositions: tower.Tower{tower.NewBlock(0, 0, 0.2, 0.4, 0.4, 0.4), tower.NewBlock(0.1, 0, 0.6, 0.4, 0.4, 0.4)},
		FinalPositions: []trajectory.Position{{X: 0, Y: 0, Z: 0.2}, {X: 0.1, Y: 0, Z: 0.6}},
		Trajectory: []trajectory.Frame{
			{PhysicsStep: 0, T: 0, VideoFrame: 0, VideoT: 0, Data: []engine.Pose{{Name: "box0", XYZ: [3]float64{0, 0, 0.2}}}},
		},
	}
}

func TestStoreSaveLoadSimulation(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.SaveSimulation(RunMetadata{Seed: 42, Backend: "kinematic"}, testSimulation())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasPrefix(runID, KindSimulation+"_") {
		t.Errorf("unexpected run id %q", runID)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Kind != KindSimulation || meta.Seed != 42 || meta.NumBlocks != 2 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Params["framerate"] != 60 {
		t.Errorf("expected framerate 60, got %v", meta.Params["framerate"])
	}

	sim, err := st.LoadSimulation(runID)
	if err != nil {
		t.Fatalf("load simulation failed: %v", err)
	}
	if len(sim.Trajectory) != 1 || sim.Trajectory[0].Data[0].Name != "box0" {
		t.Errorf("unexpected trajectory %+v", sim.Trajectory)
	}
	if sim.StartPositions[1].X != 0.1 {
		t.Errorf("expected start x 0.1, got %v", sim.StartPositions[1].X)
	}
}

func TestStoreCalibration(t *testing.T) {
	st := New(t.TempDir())
	res := &staircase.Result{
		StdHistory:    []float64{0.29, 0.30, 0.29},
		ProbHistory:   []float64{0.4, 0.6, 0.45},
		ReversalFlags: []bool{false, false, true},
		Estimate:      0.29,
		Iterations:    3,
	}

	runID, err := st.SaveCalibration(RunMetadata{NumBlocks: 4}, res)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := st.LoadCalibration(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Estimate != 0.29 || len(loaded.ReversalFlags) != 3 {
		t.Errorf("unexpected result %+v", loaded)
	}

	data, err := os.ReadFile(filepath.Join(st.Dir(runID), calibrationCSV))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got %d lines", len(lines))
	}
	if lines[0] != "iteration,std,p_fall,reversal" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[3] != "3,0.290000,0.450000,true" {
		t.Errorf("unexpected row %q", lines[3])
	}
}

func TestStoreDataset(t *testing.T) {
	st := New(t.TempDir())
	ds := &dataset.Dataset{Preset: "natural", Splits: map[string]*dataset.Split{
		dataset.Key(2, false): {Train: []dataset.Example{{Tower: testSimulation().StartPositions, NumBlocks: 2}}},
	}}

	runID, err := st.SaveDataset(RunMetadata{}, ds)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := st.LoadDataset(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Preset != "natural" || loaded.Size() != 1 {
		t.Errorf("unexpected dataset %+v", loaded)
	}
}

func TestStoreWrongKind(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.SaveSimulation(RunMetadata{}, testSimulation())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := st.LoadCalibration(runID); !errors.Is(err, ErrWrongKind) {
		t.Errorf("expected ErrWrongKind, got %v", err)
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := st.SaveSimulation(RunMetadata{}, testSimulation()); err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(st.baseDir, "junk"), 0755); err != nil {
		t.Fatal(err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("expected 3 runs, got %d", len(runs))
	}
}

func TestStoreListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "absent"))
	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}
}
