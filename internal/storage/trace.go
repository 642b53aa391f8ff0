package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Trace is a recorded session loaded into memory.
type Trace struct {
	Times       []float64
	SignalTimes []float64
	Qpos        [][]float64
	Ctrl        [][]float64
}

// Channel returns the time series of control i.
func (t *Trace) Channel(i int) []float64 {
	out := make([]float64, 0, len(t.Ctrl))
	for _, row := range t.Ctrl {
		if i < len(row) {
			out = append(out, row[i])
		}
	}
	return out
}

func (t *Trace) NumChannels() int {
	if len(t.Ctrl) == 0 {
		return 0
	}
	return len(t.Ctrl[0])
}

// SampleRate estimates samples per second of simulation time.
func (t *Trace) SampleRate() float64 { return rate(t.Times) }

// SignalRate estimates samples per second of the controller's time axis.
// Frequencies of the control channels are measured against it. Traces
// without a signal time column fall back to simulation time.
func (t *Trace) SignalRate() float64 {
	if len(t.SignalTimes) == 0 {
		return t.SampleRate()
	}
	return rate(t.SignalTimes)
}

func rate(times []float64) float64 {
	n := len(times)
	if n < 2 {
		return 0
	}
	span := times[n-1] - times[0]
	if span <= 0 {
		return 0
	}
	return float64(n-1) / span
}

func (s *Store) LoadTrace(id string) (*Trace, error) {
	f, err := os.Open(filepath.Join(s.baseDir, id, traceFile))
	if err != nil {
		return nil, errors.Wrapf(err, "session %s", id)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "session %s trace", id)
	}
	tr := &Trace{}
	if len(records) == 0 {
		return tr, nil
	}

	var qcols, ucols []int
	scol := -1
	for i, name := range records[0] {
		switch {
		case name == signalTimeColumn:
			scol = i
		case strings.HasPrefix(name, "q"):
			qcols = append(qcols, i)
		case strings.HasPrefix(name, "u"):
			ucols = append(ucols, i)
		}
	}

	for n, rec := range records[1:] {
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "trace row %d", n+1)
		}
		q, err := parseColumns(rec, qcols)
		if err != nil {
			return nil, errors.Wrapf(err, "trace row %d", n+1)
		}
		u, err := parseColumns(rec, ucols)
		if err != nil {
			return nil, errors.Wrapf(err, "trace row %d", n+1)
		}
		tr.Times = append(tr.Times, t)
		if scol >= 0 {
			st, err := strconv.ParseFloat(rec[scol], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "trace row %d", n+1)
			}
			tr.SignalTimes = append(tr.SignalTimes, st)
		}
		tr.Qpos = append(tr.Qpos, q)
		tr.Ctrl = append(tr.Ctrl, u)
	}
	return tr, nil
}

func parseColumns(rec []string, cols []int) ([]float64, error) {
	out := make([]float64, len(cols))
	for i, c := range cols {
		v, err := strconv.ParseFloat(rec[c], 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
