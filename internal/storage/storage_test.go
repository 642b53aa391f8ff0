package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSessionRoundTrip(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}

	sess, err := st.Begin(SessionMetadata{
		Model:  "arm robot",
		RateHz: 30,
		Every:  2,
	}, 2, 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for step := 1; step <= 5; step++ {
		q := []float64{float64(step), -float64(step)}
		smp := Sample{Time: float64(step) * 0.1, SignalTime: 100 + float64(step), Qpos: q, Ctrl: []float64{0.5}}
		if err := sess.Record(step, smp); err != nil {
			t.Fatalf("record %d: %v", step, err)
		}
	}
	if err := sess.Close(5, map[string]float64{"peak_control": 0.5}); err != nil {
		t.Fatalf("close: %v", err)
	}

	meta, err := st.Load(sess.ID())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if meta.Model != "arm robot" || meta.Steps != 5 || meta.Samples != 2 {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.Metrics["peak_control"] != 0.5 {
		t.Errorf("metrics = %v", meta.Metrics)
	}
	if meta.Ended.Before(meta.Started) {
		t.Error("ended before started")
	}

	tr, err := st.LoadTrace(sess.ID())
	if err != nil {
		t.Fatalf("load trace: %v", err)
	}
	want := &Trace{
		Times:       []float64{0.2, 0.4},
		SignalTimes: []float64{102, 104},
		Qpos:        [][]float64{{2, -2}, {4, -4}},
		Ctrl:        [][]float64{{0.5}, {0.5}},
	}
	if diff := cmp.Diff(want, tr); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	if tr.NumChannels() != 1 {
		t.Errorf("channels = %d", tr.NumChannels())
	}
	if got := tr.SampleRate(); got != 5 {
		t.Errorf("sample rate = %f, want 5", got)
	}
	if got := tr.SignalRate(); got != 0.5 {
		t.Errorf("signal rate = %f, want 0.5", got)
	}
}

func TestSessionPadsShortRows(t *testing.T) {
	st := New(t.TempDir())
	sess, err := st.Begin(SessionMetadata{Model: "m"}, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Record(1, Sample{Ctrl: []float64{1}}); err != nil {
		t.Fatal(err)
	}
	if err := sess.Close(1, nil); err != nil {
		t.Fatal(err)
	}
	if err := sess.Record(2, Sample{}); err == nil {
		t.Error("Record after Close should fail")
	}
	if err := sess.Close(1, nil); err != nil {
		t.Errorf("second Close = %v", err)
	}

	tr, err := st.LoadTrace(sess.ID())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([][]float64{{1, 0}}, tr.Ctrl); diff != "" {
		t.Errorf("ctrl (-want +got):\n%s", diff)
	}
}

func TestListOrdersByStart(t *testing.T) {
	st := New(t.TempDir())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, off := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		sess, err := st.Begin(SessionMetadata{Model: "m", Started: base.Add(off)}, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		if err := sess.Close(0, nil); err != nil {
			t.Fatal(err)
		}
	}
	// stray entries are skipped
	if err := os.WriteFile(filepath.Join(st.Dir(), "notes.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(st.Dir(), "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	sessions, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 3 {
		t.Fatalf("got %d sessions, want 3", len(sessions))
	}
	for i := 1; i < len(sessions); i++ {
		if sessions[i].Started.Before(sessions[i-1].Started) {
			t.Errorf("sessions out of order at %d", i)
		}
	}
}

func TestListMissingDir(t *testing.T) {
	sessions, err := New(filepath.Join(t.TempDir(), "absent")).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Errorf("got %d sessions", len(sessions))
	}
}

func TestLoadUnknownSession(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.Load("nope"); err == nil {
		t.Error("expected error for unknown session")
	}
	if _, err := st.LoadTrace("nope"); err == nil {
		t.Error("expected error for unknown trace")
	}
}

func TestSessionID(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	if got := sessionID("my robot/v2", at); got != "my_robot_v2_20240506T070809.000" {
		t.Errorf("sessionID = %q", got)
	}
	if got := sessionID("", at); got != "model_20240506T070809.000" {
		t.Errorf("sessionID = %q", got)
	}
}

func TestSignalRateFallsBackToSimulationTime(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	if err := os.MkdirAll(filepath.Join(dir, "old"), 0755); err != nil {
		t.Fatal(err)
	}
	trace := "time,q0,u0\n0.1,0,0\n0.2,0,1\n0.3,0,0\n"
	if err := os.WriteFile(filepath.Join(dir, "old", traceFile), []byte(trace), 0644); err != nil {
		t.Fatal(err)
	}

	tr, err := st.LoadTrace("old")
	if err != nil {
		t.Fatal(err)
	}
	if tr.SignalTimes != nil {
		t.Errorf("signal times = %v, want none", tr.SignalTimes)
	}
	if got, want := tr.SignalRate(), tr.SampleRate(); got != want || got < 9.99 || got > 10.01 {
		t.Errorf("signal rate = %f, sample rate = %f", got, want)
	}
}
