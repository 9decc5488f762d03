// Package storage persists runs on disk, one directory per run holding
// metadata.json and states.csv, and converts trajectories to and from the
// JSON and CSV interchange formats.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/odelab/internal/config"
	"github.com/san-kum/odelab/internal/dynamo"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
)

// Run status values.
const (
	StatusComplete = "complete"
	StatusPartial  = "partial"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID        string             `json:"id"`
	Model     string             `json:"model"`
	Method    string             `json:"method"`
	Timestamp time.Time          `json:"timestamp"`
	TEnd      float64            `json:"t_end"`
	StepSize  float64            `json:"step_size,omitempty"`
	Y0        []float64          `json:"y0"`
	Pars      []float64          `json:"pars"`
	Options   *dynamo.Options    `json:"options,omitempty"`
	Protocol  []config.Segment   `json:"protocol,omitempty"`
	Samples   int                `json:"samples"`
	Stats     dynamo.Stats       `json:"stats"`
	Warnings  []dynamo.Warning   `json:"warnings,omitempty"`
	Metrics   map[string]float64 `json:"metrics"`
	ElapsedMS float64            `json:"elapsed_ms"`
	Status    string             `json:"status"`
	Error     string             `json:"error,omitempty"`
}

// NewMetadata describes a finished run. A non-nil runErr marks the run
// partial. Non-finite metric values are left out since JSON cannot carry them.
func NewMetadata(cfg *config.Config, adaptive bool, y0 dynamo.State, pars dynamo.Params, res *dynamo.Result, ms map[string]float64, elapsed time.Duration, runErr error) RunMetadata {
	meta := RunMetadata{
		Model:     cfg.Model,
		Method:    cfg.Method,
		Timestamp: time.Now().UTC(),
		TEnd:      cfg.FinalTime(),
		Y0:        append([]float64(nil), y0...),
		Pars:      append([]float64(nil), pars...),
		Protocol:  cfg.Protocol,
		Metrics:   make(map[string]float64, len(ms)),
		ElapsedMS: float64(elapsed.Microseconds()) / 1000,
		Status:    StatusComplete,
	}
	if adaptive {
		opts := cfg.Options
		meta.Options = &opts
	} else {
		meta.StepSize = cfg.StepSize
	}
	if res != nil {
		meta.Samples = res.Len()
		meta.Stats = res.Stats
		meta.Warnings = res.Warnings
	}
	for k, v := range ms {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			meta.Metrics[k] = v
		}
	}
	if runErr != nil {
		meta.Status = StatusPartial
		meta.Error = runErr.Error()
	}
	return meta
}

// Save writes meta and the trajectory under a fresh run ID and returns it.
// On failure the run directory is removed.
func (s *Store) Save(meta RunMetadata, tr *dynamo.Trajectory, labels []string) (id string, err error) {
	runID := fmt.Sprintf("%s_%s", meta.Model, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(runDir)
		}
	}()

	meta.ID = runID
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}

	err = writeFile(filepath.Join(runDir, metadataFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	err = writeFile(filepath.Join(runDir, statesFile), func(w io.Writer) error {
		return WriteCSV(w, tr, labels)
	})
	if err != nil {
		return "", err
	}

	return runID, nil
}

// writeFile creates path, fills it with write and reports the first of the
// write and close errors.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0, len(entries))
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

	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadStates reads back the trajectory and its column labels.
func (s *Store) LoadStates(runID string) (*dynamo.Trajectory, []string, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	tr, labels, err := ReadCSV(f)
	if err != nil {
		return nil, nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return tr, labels, nil
}
