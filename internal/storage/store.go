// Package storage persists integration runs as a directory of run
// folders, each holding metadata (json) and the sampled solution (csv).
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/avereen/kinsim/internal/dae"
)

// Store saves and loads runs under a base directory.
type Store struct {
	baseDir string
}

// New returns a store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Init creates the base directory.
func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes one stored run.
type RunMetadata struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
	Rtol      float64   `json:"rtol"`
	Atol      float64   `json:"atol"`
	T0        float64   `json:"t0"`
	Tf        float64   `json:"tf"`
	Stats     dae.Stats `json:"stats"`
}

// Run is a stored trajectory: sample times and the solution at each.
type Run struct {
	Meta   RunMetadata
	Times  []float64
	States [][]float64
}

// Save writes a run directory and returns its id.
func (s *Store) Save(meta RunMetadata, times []float64, states [][]float64) (string, error) {
	if len(times) != len(states) {
		return "", fmt.Errorf("storage: %d times for %d states", len(times), len(states))
	}
	runID := fmt.Sprintf("%s_%d", meta.Model, time.Now().UnixNano())
	meta.ID = runID
	meta.Timestamp = time.Now()

	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, "meta.json"), metaData, 0644); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(runDir, "solution.csv"))
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"t"}
	if len(states) > 0 {
		for i := range states[0] {
			header = append(header, fmt.Sprintf("y%d", i))
		}
	}
	if err := w.Write(header); err != nil {
		return "", err
	}
	row := make([]string, 0, len(header))
	for i, t := range times {
		row = row[:0]
		row = append(row, strconv.FormatFloat(t, 'g', 17, 64))
		for _, v := range states[i] {
			row = append(row, strconv.FormatFloat(v, 'g', 17, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return runID, nil
}

// List returns the metadata of every stored run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var metas []RunMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, e.Name(), "meta.json"))
		if err != nil {
			continue // not a run directory
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].Timestamp.After(metas[j].Timestamp)
	})
	return metas, nil
}

// Load reads a stored run by id.
func (s *Store) Load(runID string) (*Run, error) {
	runDir := filepath.Join(s.baseDir, runID)

	data, err := os.ReadFile(filepath.Join(runDir, "meta.json"))
	if err != nil {
		return nil, fmt.Errorf("storage: run %q: %w", runID, err)
	}
	run := &Run{}
	if err := json.Unmarshal(data, &run.Meta); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(runDir, "solution.csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("storage: run %q has an empty solution file", runID)
	}
	for _, rec := range records[1:] {
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, err
		}
		state := make([]float64, len(rec)-1)
		for i, cell := range rec[1:] {
			if state[i], err = strconv.ParseFloat(cell, 64); err != nil {
				return nil, err
			}
		}
		run.Times = append(run.Times, t)
		run.States = append(run.States, state)
	}
	return run, nil
}

// ExportJSON writes a stored run as a single json document.
func (s *Store) ExportJSON(runID string, path string) error {
	run, err := s.Load(runID)
	if err != nil {
		return err
	}
	out := struct {
		Meta   RunMetadata `json:"meta"`
		Times  []float64   `json:"times"`
		States [][]float64 `json:"states"`
	}{run.Meta, run.Times, run.States}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
