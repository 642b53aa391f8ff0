// Package storage records driver sessions to disk and reads them back.
//
// Each session is a directory under the store root holding metadata.json
// and trace.csv. The trace has one row per recorded step: time, then the
// joint positions q0..qN, then the controls u0..uM.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	metadataFile = "metadata.json"
	traceFile    = "trace.csv"

	signalTimeColumn = "signal_time"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Dir() string { return s.baseDir }

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type SignalMetadata struct {
	Amplitude float64 `json:"amplitude"`
	Omega     float64 `json:"omega"`
	PhaseStep float64 `json:"phase_step"`
}

type SessionMetadata struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	ModelPath  string             `json:"model_path"`
	Started    time.Time          `json:"started"`
	Ended      time.Time          `json:"ended,omitempty"`
	RateHz     float64            `json:"rate_hz"`
	Timestep   float64            `json:"timestep"`
	Integrator string             `json:"integrator"`
	Controller string             `json:"controller"`
	Signal     SignalMetadata     `json:"signal"`
	TimeBase   string             `json:"time_base"`
	Joints     []string           `json:"joints"`
	Actuators  []string           `json:"actuators"`
	Every      int                `json:"record_every"`
	Steps      int                `json:"steps"`
	Samples    int                `json:"samples"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// sessionID derives a directory name from the model name and start time.
func sessionID(model string, started time.Time) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '_'
	}, model)
	if name == "" {
		name = "model"
	}
	return fmt.Sprintf("%s_%s", name, started.UTC().Format("20060102T150405.000"))
}

// List returns the metadata of every readable session, oldest first.
// A missing store directory yields an empty list.
func (s *Store) List() ([]SessionMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionMetadata{}, nil
		}
		return nil, err
	}

	sessions := make([]SessionMetadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		sessions = append(sessions, *meta)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Started.Before(sessions[j].Started)
	})
	return sessions, nil
}

func (s *Store) Load(id string) (*SessionMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, metadataFile))
	if err != nil {
		return nil, errors.Wrapf(err, "session %s", id)
	}
	var meta SessionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "session %s metadata", id)
	}
	return &meta, nil
}

func writeMetadata(dir string, meta *SessionMetadata) error {
	f, err := os.Create(filepath.Join(dir, metadataFile))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
