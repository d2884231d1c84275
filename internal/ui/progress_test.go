package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"viewc/internal/driver"
)

func TestApplyEventTracksViews(t *testing.T) {
	files := []string{"views/a.yaml", "views/b.yaml"}
	m := NewProgressModel("compile", files, nil).(*progressModel)

	steps := []struct {
		ev     driver.Event
		index  int
		status string
	}{
		{driver.Event{File: "views/a.yaml", Stage: driver.StageCompile, Status: driver.StatusWorking}, 0, "compiling"},
		{driver.Event{File: "views/a.yaml", Stage: driver.StageFormat, Status: driver.StatusDone}, 0, "done"},
		{driver.Event{File: "views/b.yaml", Stage: driver.StageLoad, Status: driver.StatusCached}, 1, "cached"},
		{driver.Event{File: "views/a.yaml", Stage: driver.StageWrite, Status: driver.StatusDone}, 0, "written"},
		{driver.Event{File: "views/b.yaml", Stage: driver.StageWrite, Status: driver.StatusError}, 1, "error"},
	}
	for _, s := range steps {
		m.applyEvent(s.ev)
		if got := m.items[s.index].status; got != s.status {
			t.Fatalf("after %+v status = %q, want %q", s.ev, got, s.status)
		}
	}
	if p := m.percent(); p != 1.0 {
		t.Fatalf("percent = %v, want 1", p)
	}

	m.applyEvent(driver.Event{File: "views/unknown.yaml", Stage: driver.StageLoad, Status: driver.StatusWorking})
	m.applyEvent(driver.Event{Stage: driver.StageWrite, Status: driver.StatusWorking})
	if m.stageLabel != "writing" {
		t.Fatalf("stage label = %q", m.stageLabel)
	}
}

func TestPercentFollowsStages(t *testing.T) {
	m := NewProgressModel("compile", []string{"a", "b"}, nil).(*progressModel)
	m.applyEvent(driver.Event{File: "a", Stage: driver.StageCompile, Status: driver.StatusWorking})
	if got, want := m.percent(), 0.25; got != want {
		t.Fatalf("percent = %v, want %v", got, want)
	}
}

func TestViewRendersItems(t *testing.T) {
	events := make(chan driver.Event)
	close(events)
	m := NewProgressModel("compile", []string{"views/very/long/path/to/a/view.yaml"}, events)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 40})
	m, _ = m.Update(doneMsg{})
	out := m.View()
	if !strings.Contains(out, "done: compile") {
		t.Errorf("view lacks the finished header:\n%s", out)
	}
	if !strings.Contains(out, "queued") || !strings.Contains(out, "...") {
		t.Errorf("view should list the truncated item:\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 6, "abc..."},
		{"abcdef", 3, "abc"},
		{"abc", 0, "abc"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.width); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}

func TestElapsedIsShown(t *testing.T) {
	m := NewProgressModel("compile", []string{"views/a.yaml", "views/b.yaml"}, nil).(*progressModel)
	m.applyEvent(driver.Event{File: "views/a.yaml", Stage: driver.StageFormat, Status: driver.StatusDone, Elapsed: 1500 * time.Microsecond})
	out := m.View()
	if !strings.Contains(out, "1.5ms") {
		t.Errorf("view lacks the elapsed time:\n%s", out)
	}
	if !strings.Contains(out, "compile 1/2") {
		t.Errorf("view lacks the finished count:\n%s", out)
	}
	if got := formatElapsed(250 * time.Microsecond); got != "250µs" {
		t.Errorf("formatElapsed = %q", got)
	}
}
