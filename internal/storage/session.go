package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Session streams one driver run to disk. It is not safe for concurrent
// use.
type Session struct {
	meta   SessionMetadata
	dir    string
	file   *os.File
	w      *csv.Writer
	nq, nu int
	row    []string
	closed bool
}

// Begin creates the session directory and writes the trace header. nq and
// nu fix the number of position and control columns. meta.Every <= 0
// records every step.
func (s *Store) Begin(meta SessionMetadata, nq, nu int) (*Session, error) {
	if meta.Started.IsZero() {
		meta.Started = time.Now()
	}
	if meta.Every <= 0 {
		meta.Every = 1
	}
	if meta.ID == "" {
		meta.ID = sessionID(meta.Model, meta.Started)
	}
	dir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating session directory")
	}
	if err := writeMetadata(dir, &meta); err != nil {
		return nil, errors.Wrap(err, "writing session metadata")
	}

	f, err := os.Create(filepath.Join(dir, traceFile))
	if err != nil {
		return nil, errors.Wrap(err, "creating trace")
	}
	sess := &Session{
		meta: meta,
		dir:  dir,
		file: f,
		w:    csv.NewWriter(f),
		nq:   nq,
		nu:   nu,
		row:  make([]string, 2+nq+nu),
	}

	header := make([]string, 0, 2+nq+nu)
	header = append(header, "time", signalTimeColumn)
	for i := 0; i < nq; i++ {
		header = append(header, fmt.Sprintf("q%d", i))
	}
	for i := 0; i < nu; i++ {
		header = append(header, fmt.Sprintf("u%d", i))
	}
	if err := sess.w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	return sess, nil
}

func (s *Session) ID() string  { return s.meta.ID }
func (s *Session) Dir() string { return s.dir }

// Sample is one recorded row. SignalTime is the time the controller was
// evaluated at, which follows the configured time base rather than the
// simulation clock.
type Sample struct {
	Time       float64
	SignalTime float64
	Qpos       []float64
	Ctrl       []float64
}

// Record appends a row when step is a multiple of the recording interval.
// Missing values are written as zero and extra values are dropped.
func (s *Session) Record(step int, smp Sample) error {
	if s.closed {
		return errors.New("session closed")
	}
	if step%s.meta.Every != 0 {
		return nil
	}
	s.row[0] = strconv.FormatFloat(smp.Time, 'f', 6, 64)
	s.row[1] = strconv.FormatFloat(smp.SignalTime, 'f', 6, 64)
	for i := 0; i < s.nq; i++ {
		s.row[2+i] = formatAt(smp.Qpos, i)
	}
	for i := 0; i < s.nu; i++ {
		s.row[2+s.nq+i] = formatAt(smp.Ctrl, i)
	}
	if err := s.w.Write(s.row); err != nil {
		return err
	}
	s.meta.Samples++
	return nil
}

func formatAt(v []float64, i int) string {
	if i >= len(v) {
		return "0"
	}
	return strconv.FormatFloat(v[i], 'f', 6, 64)
}

// Close flushes the trace and rewrites the metadata with the final step
// count and metrics.
func (s *Session) Close(steps int, metrics map[string]float64) error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.meta.Steps = steps
	s.meta.Ended = time.Now()
	s.meta.Metrics = metrics

	s.w.Flush()
	err := s.w.Error()
	err = multierr.Append(err, s.file.Close())
	err = multierr.Append(err, writeMetadata(s.dir, &s.meta))
	return err
}
