package observ

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestTimerPhases(t *testing.T) {
	tm := NewTimer()
	idx := tm.Begin("parse")
	tm.End(idx, "3 nodes")
	tm.End(42, "ignored")
	if err := tm.Measure("compile", func() error { return errors.New("boom") }); err == nil {
		t.Fatalf("Measure should return fn's error")
	}

	r := tm.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("phases = %+v", r.Phases)
	}
	if r.Phases[0].Name != "parse" || r.Phases[0].Note != "3 nodes" {
		t.Errorf("first phase = %+v", r.Phases[0])
	}
	if p, ok := r.Lookup("compile"); !ok || p.Note != "failed" {
		t.Errorf("compile phase = %+v, %v", p, ok)
	}
	if _, ok := r.Lookup("format"); ok {
		t.Errorf("format was never timed")
	}
	s := tm.Summary()
	if !strings.HasPrefix(s, "timings:\n") || !strings.Contains(s, "// 3 nodes") || !strings.Contains(s, "total") {
		t.Errorf("summary:\n%s", s)
	}
}

func TestEmptyReport(t *testing.T) {
	r := NewTimer().Report()
	if r.TotalMS != 0 || r.Phases != nil {
		t.Errorf("empty timer report = %+v", r)
	}
}

func TestSum(t *testing.T) {
	a := Report{TotalMS: 3, Phases: []PhaseReport{{Name: "load", DurationMS: 1}, {Name: "compile", DurationMS: 2, Note: "x"}}}
	b := Report{TotalMS: 1.5, Phases: []PhaseReport{{Name: "format", DurationMS: 1}, {Name: "load", DurationMS: 0.5}}}
	got := Sum(a, b)
	want := []PhaseReport{{Name: "load", DurationMS: 1.5}, {Name: "compile", DurationMS: 2}, {Name: "format", DurationMS: 1}}
	if len(got.Phases) != len(want) {
		t.Fatalf("Sum phases = %+v", got.Phases)
	}
	for i := range want {
		if got.Phases[i] != want[i] {
			t.Errorf("phase %d = %+v, want %+v", i, got.Phases[i], want[i])
		}
	}
	if got.TotalMS != 4.5 {
		t.Errorf("TotalMS = %v", got.TotalMS)
	}
}

func TestTimerConcurrentUse(t *testing.T) {
	tm := NewTimer()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tm.End(tm.Begin("phase"), "")
		}()
	}
	wg.Wait()
	if n := len(tm.Report().Phases); n != 8 {
		t.Fatalf("recorded %d phases, want 8", n)
	}
}
