// Package storage keeps simulation, calibration and dataset runs on disk.
// Each run is a directory holding metadata.json plus its payload files.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/harvard-visionlab/block-towers/internal/dataset"
	"github.com/harvard-visionlab/block-towers/internal/staircase"
	"github.com/harvard-visionlab/block-towers/internal/trajectory"
)

// Run kinds.
const (
	KindSimulation  = "simulation"
	KindCalibration = "calibration"
	KindDataset     = "dataset"
)

const (
	metadataFile    = "metadata.json"
	simulationFile  = "simulation.json"
	calibrationFile = "calibration.json"
	calibrationCSV  = "calibration.csv"
	datasetFile     = "dataset.json"
)

// ErrWrongKind is returned when a run is loaded as a kind it is not.
var ErrWrongKind = errors.New("storage: run has a different kind")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Dir is the directory of one run.
func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	Label     string             `json:"label,omitempty"`
	NumBlocks int                `json:"num_blocks,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      uint64             `json:"seed"`
	Backend   string             `json:"backend,omitempty"`
	Params    map[string]float64 `json:"params,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// create makes a fresh run directory and writes its metadata.
func (s *Store) create(meta RunMetadata) (string, string, error) {
	meta.ID = meta.Kind + "_" + uuid.NewString()
	meta.Timestamp = time.Now()

	runDir := s.Dir(meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", "", err
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", "", err
	}
	return meta.ID, runDir, nil
}

// SaveSimulation stores a recorded trajectory as simulation.json.
func (s *Store) SaveSimulation(meta RunMetadata, sim *trajectory.Simulation) (string, error) {
	meta.Kind = KindSimulation
	meta.NumBlocks = len(sim.StartPositions)
	if meta.Params == nil {
		meta.Params = map[string]float64{}
	}
	meta.Params["duration"] = sim.Params.Duration
	meta.Params["framerate"] = sim.Params.Framerate
	meta.Params["timestep"] = sim.Params.Timestep
	meta.Params["scale_factor"] = sim.Params.ScaleFactor

	runID, runDir, err := s.create(meta)
	if err != nil {
		return "", err
	}
	return runID, writeJSON(filepath.Join(runDir, simulationFile), sim)
}

// SaveCalibration stores a staircase result as calibration.json and a
// per-iteration calibration.csv.
func (s *Store) SaveCalibration(meta RunMetadata, res *staircase.Result) (string, error) {
	meta.Kind = KindCalibration
	if meta.Metrics == nil {
		meta.Metrics = map[string]float64{}
	}
	meta.Metrics["estimate"] = res.Estimate
	meta.Metrics["iterations"] = float64(res.Iterations)

	runID, runDir, err := s.create(meta)
	if err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, calibrationFile), res); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, calibrationCSV))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write([]string{"iteration", "std", "p_fall", "reversal"}); err != nil {
		return "", err
	}
	for i := range res.StdHistory {
		row := []string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(res.StdHistory[i], 'f', 6, 64),
			strconv.FormatFloat(res.ProbHistory[i], 'f', 6, 64),
			strconv.FormatBool(res.ReversalFlags[i]),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return runID, w.Error()
}

// SaveDataset stores a built dataset as dataset.json.
func (s *Store) SaveDataset(meta RunMetadata, ds *dataset.Dataset) (string, error) {
	meta.Kind = KindDataset
	meta.Label = ds.Preset
	if meta.Metrics == nil {
		meta.Metrics = map[string]float64{}
	}
	meta.Metrics["examples"] = float64(ds.Size())

	runID, runDir, err := s.create(meta)
	if err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(runDir, datasetFile))
	if err != nil {
		return "", err
	}
	defer f.Close()
	return runID, ds.WriteJSON(f)
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	var meta RunMetadata
	if err := readJSON(filepath.Join(s.Dir(runID), metadataFile), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadSimulation(runID string) (*trajectory.Simulation, error) {
	if err := s.expectKind(runID, KindSimulation); err != nil {
		return nil, err
	}
	var sim trajectory.Simulation
	if err := readJSON(filepath.Join(s.Dir(runID), simulationFile), &sim); err != nil {
		return nil, err
	}
	return &sim, nil
}

func (s *Store) LoadCalibration(runID string) (*staircase.Result, error) {
	if err := s.expectKind(runID, KindCalibration); err != nil {
		return nil, err
	}
	var res staircase.Result
	if err := readJSON(filepath.Join(s.Dir(runID), calibrationFile), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Store) LoadDataset(runID string) (*dataset.Dataset, error) {
	if err := s.expectKind(runID, KindDataset); err != nil {
		return nil, err
	}
	var ds dataset.Dataset
	if err := readJSON(filepath.Join(s.Dir(runID), datasetFile), &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

func (s *Store) expectKind(runID, kind string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	if meta.Kind != kind {
		return fmt.Errorf("%w: %s is %q, want %q", ErrWrongKind, runID, meta.Kind, kind)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
