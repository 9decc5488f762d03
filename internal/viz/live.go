package viz

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/odelab/internal/dynamo"
)

const (
	historyCapacity = 400
	canvasWidth     = 40
	canvasHeight    = 12
	barWidth        = 40
)

// ProgressMsg is a snapshot of a running integration.
type ProgressMsg struct {
	Time         float64
	H            float64
	Err          float64
	Accepted     int
	Rejected     int
	NonConverged int
	State        dynamo.State
}

// DoneMsg ends the live view.
type DoneMsg struct {
	Samples int
	Stats   dynamo.Stats
	Err     error
}

// Forwarder is a dynamo.Observer that counts every event but forwards at
// most one ProgressMsg per interval. Flush sends the latest snapshot.
type Forwarder struct {
	send     func(tea.Msg)
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	last     time.Time
	snapshot ProgressMsg
	pending  bool
}

func NewForwarder(send func(tea.Msg), fps int) *Forwarder {
	if fps <= 0 {
		fps = 30
	}
	return &Forwarder{send: send, interval: time.Second / time.Duration(fps), now: time.Now}
}

func (f *Forwarder) OnStep(ev dynamo.StepEvent) {
	f.mu.Lock()
	s := &f.snapshot
	if ev.Accepted {
		s.Accepted++
		s.Time = ev.Time
		s.H = ev.H
		s.State = ev.State.Clone()
	} else {
		s.Rejected++
	}
	if !ev.Converged && !math.IsInf(ev.Err, 1) {
		s.NonConverged++
	}
	s.Err = ev.Err
	f.pending = true

	now := f.now()
	if now.Sub(f.last) < f.interval {
		f.mu.Unlock()
		return
	}
	f.last = now
	msg := f.take()
	f.mu.Unlock()
	f.send(msg)
}

// Flush forwards the latest snapshot if it has not been sent yet.
func (f *Forwarder) Flush() {
	f.mu.Lock()
	if !f.pending {
		f.mu.Unlock()
		return
	}
	msg := f.take()
	f.mu.Unlock()
	f.send(msg)
}

func (f *Forwarder) take() ProgressMsg {
	f.pending = false
	msg := f.snapshot
	msg.State = msg.State.Clone()
	return msg
}

// LiveModel is the Bubble Tea model of the live view.
type LiveModel struct {
	title    string
	labels   []string
	tEnd     float64
	cancel   func()
	progress ProgressMsg
	steps    []float64
	xs, ys   []float64
	done     *DoneMsg
}

// NewLiveModel shows a run towards tEnd. cancel is invoked when the user
// quits before the run finishes.
func NewLiveModel(title string, labels []string, tEnd float64, cancel func()) LiveModel {
	return LiveModel{
		title:  title,
		labels: labels,
		tEnd:   tEnd,
		cancel: cancel,
		steps:  make([]float64, 0, historyCapacity),
	}
}

func (m LiveModel) Init() tea.Cmd { return nil }

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.done == nil && m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case ProgressMsg:
		m.progress = msg
		if msg.H > 0 {
			m.steps = appendBounded(m.steps, math.Log10(msg.H))
		}
		if len(msg.State) > 0 {
			x, y := msg.Time, msg.State[0]
			if len(msg.State) > 1 {
				x, y = msg.State[0], msg.State[1]
			}
			m.xs = appendBounded(m.xs, x)
			m.ys = appendBounded(m.ys, y)
		}
	case DoneMsg:
		m.done = &msg
		return m, tea.Quit
	}
	return m, nil
}

func appendBounded(s []float64, v float64) []float64 {
	if len(s) == historyCapacity {
		copy(s, s[1:])
		s = s[:len(s)-1]
	}
	return append(s, v)
}

func (m LiveModel) label(i int) string {
	if i < len(m.labels) {
		return m.labels[i]
	}
	return fmt.Sprintf("y%d", i)
}

func (m LiveModel) View() string {
	var s strings.Builder
	p := m.progress

	s.WriteString(headerStyle.Render(strings.ToUpper(m.title)) + "\n\n")

	frac := 1.0
	if m.tEnd > 0 {
		frac = p.Time / m.tEnd
	}
	fmt.Fprintf(&s, "%s %5.1f%%\n\n", ProgressBar(frac, barWidth), 100*math.Min(frac, 1))

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("t", fmt.Sprintf("%.6g / %.6g", p.Time, m.tEnd))
	row("step", fmt.Sprintf("%.3g", p.H))
	row("error norm", fmt.Sprintf("%.3g", p.Err))
	row("accepted", fmt.Sprint(p.Accepted))
	row("rejected", fmt.Sprint(p.Rejected))
	if p.NonConverged > 0 {
		s.WriteString(labelStyle.Render("nonconverged") + warnStyle.Render(fmt.Sprint(p.NonConverged)) + "\n")
	}
	for i, v := range p.State {
		if i == 4 {
			break
		}
		row(m.label(i), fmt.Sprintf("%.6g", v))
	}

	if len(m.xs) > 1 {
		c := NewCanvas(canvasWidth, canvasHeight)
		c.DrawPath(m.xs, m.ys)
		caption := m.label(0) + " vs t"
		if len(p.State) > 1 {
			caption = m.label(1) + " vs " + m.label(0)
		}
		s.WriteString("\n" + panelStyle.Render(caption+"\n"+c.String()) + "\n")
	}
	if len(m.steps) > 1 {
		chart := asciigraph.Plot(m.steps, asciigraph.Height(4), asciigraph.Width(barWidth), asciigraph.Caption("log10 step size"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	switch {
	case m.done == nil:
		s.WriteString(helpStyle.Render("q: cancel"))
	case m.done.Err != nil:
		s.WriteString("\n" + errorStyle.Render("stopped: "+m.done.Err.Error()))
	default:
		s.WriteString("\n" + okStyle.Render(fmt.Sprintf("done: %d samples", m.done.Samples)))
	}
	return s.String() + "\n"
}
