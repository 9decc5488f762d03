package viz

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/odelab/internal/dynamo"
)

func TestCanvasSetAndLine(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(4, 0)
	if c.Grid[0][0] != brailleBase+0x1 || c.Grid[0][1] != brailleBase+0x80 {
		t.Errorf("unexpected cells %U %U", c.Grid[0][0], c.Grid[0][1])
	}

	c.Clear()
	c.DrawLine(0, 0, 3, 0)
	// Top row of both cells: dots 1 and 4.
	if c.String() != string([]rune{brailleBase + 0x9, brailleBase + 0x9})+"\n" {
		t.Errorf("unexpected line %q", c.String())
	}
}

func TestCanvasDrawPathCorners(t *testing.T) {
	c := NewCanvas(3, 2)
	c.DrawPath([]float64{0, math.NaN(), 1}, []float64{0, 5, 1})
	// (0,0) maps to the bottom-left sub-pixel, (1,1) to the top-right.
	if c.Grid[1][0]&0x40 == 0 {
		t.Errorf("bottom-left dot missing: %q", c.String())
	}
	if c.Grid[0][2]&0x8 == 0 {
		t.Errorf("top-right dot missing: %q", c.String())
	}
	// NaN breaks the path, so nothing is drawn in between.
	if c.Grid[0][1] != brailleBase || c.Grid[1][1] != brailleBase {
		t.Errorf("path should be broken: %q", c.String())
	}
}

func TestChartsAndPhase(t *testing.T) {
	tr := &dynamo.Trajectory{
		Time:   []float64{0, 1, 2},
		Values: []dynamo.State{{1, 0}, {0, 1}, {-1, math.Inf(1)}},
	}
	charts := Charts(tr, []string{"prey"}, 20, 5)
	if len(charts) != 2 {
		t.Fatalf("expected 2 charts, got %d", len(charts))
	}
	if !strings.Contains(charts[0], "prey vs time") || !strings.Contains(charts[1], "y1 vs time") {
		t.Errorf("captions missing:\n%s\n%s", charts[0], charts[1])
	}

	if _, err := PhasePortrait(tr, 0, 2, 10, 5); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	out, err := PhasePortrait(tr, 0, 1, 10, 5)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(out, "\n") != 5 {
		t.Errorf("expected 5 rows, got %q", out)
	}
}

func TestSparklineAndProgress(t *testing.T) {
	if got := Sparkline([]float64{0, 1, 2, 3, 4, 5, 6, 7}, 8); got != "▁▂▃▄▅▆▇█" {
		t.Errorf("sparkline = %q", got)
	}
	if got := Sparkline(nil, 3); got != "───" {
		t.Errorf("empty sparkline = %q", got)
	}
	if got := Sparkline([]float64{9, 1, 1}, 2); got != "▁▁" {
		t.Errorf("sparkline should keep the latest values, got %q", got)
	}
	if bar := ProgressBar(1.5, 4); !strings.Contains(bar, "████") {
		t.Errorf("overfull bar = %q", bar)
	}
}

func TestForwarderThrottles(t *testing.T) {
	var sent []ProgressMsg
	f := NewForwarder(func(m tea.Msg) { sent = append(sent, m.(ProgressMsg)) }, 10)
	clock := time.Unix(0, 0)
	f.now = func() time.Time { return clock }

	y := dynamo.State{1, 2}
	f.OnStep(dynamo.StepEvent{Time: 0.1, H: 0.1, Err: 0.5, Accepted: true, Converged: true, State: y})
	f.OnStep(dynamo.StepEvent{Time: 0.1, H: 0.2, Err: 3, Converged: true})
	f.OnStep(dynamo.StepEvent{Time: 0.1, H: 0.1, Err: math.Inf(1)})
	y[0] = 99
	clock = clock.Add(50 * time.Millisecond)
	f.OnStep(dynamo.StepEvent{Time: 0.2, H: 0.1, Err: 0.9, Accepted: true, State: dynamo.State{3, 4}})

	if len(sent) != 1 {
		t.Fatalf("expected 1 message within the interval, got %d", len(sent))
	}
	if sent[0].Accepted != 1 || sent[0].State[0] != 1 {
		t.Errorf("first snapshot %+v", sent[0])
	}

	f.Flush()
	f.Flush()
	if len(sent) != 2 {
		t.Fatalf("flush should send exactly once, got %d messages", len(sent))
	}
	last := sent[1]
	if last.Accepted != 2 || last.Rejected != 2 || last.NonConverged != 1 || last.Time != 0.2 {
		t.Errorf("final snapshot %+v", last)
	}
}

func TestLiveModelUpdate(t *testing.T) {
	canceled := false
	m := NewLiveModel("lotka-volterra", []string{"prey", "predator"}, 10, func() { canceled = true })

	var model tea.Model = m
	model, _ = model.Update(ProgressMsg{Time: 2.5, H: 0.1, Accepted: 3, State: dynamo.State{10, 5}})
	model, _ = model.Update(ProgressMsg{Time: 5, H: 0.2, Accepted: 6, NonConverged: 1, State: dynamo.State{8, 6}})

	view := model.View()
	for _, want := range []string{"LOTKA-VOLTERRA", "50.0%", "predator vs prey", "log10 step size", "q: cancel"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	model, cmd := model.Update(DoneMsg{Samples: 7})
	if cmd == nil {
		t.Error("done should quit")
	}
	if !strings.Contains(model.View(), "done: 7 samples") {
		t.Errorf("done view:\n%s", model.View())
	}
	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if canceled {
		t.Error("quitting after completion must not cancel")
	}

	m = NewLiveModel("decay", nil, 1, func() { canceled = true })
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); cmd == nil || !canceled {
		t.Error("ctrl+c should cancel and quit")
	}
}
