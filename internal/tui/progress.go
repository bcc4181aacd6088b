package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/harvard-visionlab/block-towers/internal/collector"
	"github.com/harvard-visionlab/block-towers/internal/staircase"
)

// Event is one progress report from a running job.
type Event struct {
	Stage string
	Done  int
	Total int
	// Value is appended to the sparkline when HasValue is set.
	Value    float64
	HasValue bool
	Status   string
}

// Report delivers events to a progress view.
type Report func(Event)

// Job is a long-running task observed by a progress view.
type Job func(ctx context.Context, report Report) error

type eventMsg Event

type doneMsg struct{ err error }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

const historyLen = 60

// Progress shows the state of one job: a bar, a status line and a sparkline
// of the reported values.
type Progress struct {
	title   string
	st      styles
	cancel  context.CancelFunc
	started time.Time

	last     Event
	history  []float64
	frame    int
	done     bool
	canceled bool
	err      error
	width    int
}

func NewProgress(title string, theme Theme, cancel context.CancelFunc) *Progress {
	return &Progress{
		title:   title,
		st:      newStyles(theme),
		cancel:  cancel,
		started: time.Now(),
		history: make([]float64, 0, historyLen),
		width:   80,
	}
}

// Err is the job's result once the view has finished.
func (m *Progress) Err() error { return m.err }

func (m *Progress) Init() tea.Cmd { return tick() }

func (m *Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.canceled && m.cancel != nil {
				m.cancel()
			}
			m.canceled = true
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case eventMsg:
		m.last = Event(msg)
		if msg.HasValue {
			m.history = append(m.history, msg.Value)
			if len(m.history) > historyLen {
				m.history = m.history[1:]
			}
		}
		return m, nil
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, tick()
	}
	return m, nil
}

func (m *Progress) View() string {
	var b strings.Builder

	head := spinner(m.frame)
	switch {
	case m.done && m.err != nil:
		head = m.st.err.Render("✗")
	case m.done:
		head = m.st.ok.Render("✓")
	case m.canceled:
		head = m.st.warn.Render("…")
	}
	fmt.Fprintf(&b, "%s %s", head, m.st.title.Render(m.title))
	if m.last.Stage != "" {
		fmt.Fprintf(&b, " %s", m.st.accent.Render(m.last.Stage))
	}
	b.WriteString("\n\n")

	barWidth := min(40, max(m.width-30, 10))
	frac := 0.0
	if m.last.Total > 0 {
		frac = float64(m.last.Done) / float64(m.last.Total)
	}
	fmt.Fprintf(&b, "%s %s %s\n",
		ProgressBar(frac, barWidth, m.st.ok),
		m.st.value.Render(fmt.Sprintf("%d/%d", m.last.Done, m.last.Total)),
		m.st.muted.Render(time.Since(m.started).Truncate(time.Second).String()),
	)

	if m.last.Status != "" {
		fmt.Fprintf(&b, "%s\n", m.st.label.Render(m.last.Status))
	}
	if len(m.history) > 0 {
		fmt.Fprintf(&b, "%s\n", m.st.accent.Render(Sparkline(m.history, barWidth, 0, 1)))
	}

	switch {
	case m.done && m.err != nil:
		fmt.Fprintf(&b, "\n%s\n", m.st.err.Render(m.err.Error()))
	case m.canceled && !m.done:
		fmt.Fprintf(&b, "\n%s\n", m.st.warn.Render("canceling..."))
	case !m.done:
		fmt.Fprintf(&b, "\n%s\n", m.st.hint.Render("q cancel"))
	}
	return b.String()
}

// Run executes job while showing its progress on out. The job's context is
// canceled when the user quits the view.
func Run(ctx context.Context, out io.Writer, title string, theme Theme, job Job) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewProgress(title, theme, cancel)
	p := tea.NewProgram(m, tea.WithOutput(out))

	go func() {
		err := job(ctx, func(e Event) { p.Send(eventMsg(e)) })
		p.Send(doneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		return err
	}
	return m.Err()
}

// CollectObserver reports every kept candidate of a balanced collection.
func CollectObserver(stage string, report Report) collector.Observer {
	return collector.ObserverFunc(func(p collector.Progress) {
		if !p.Kept {
			return
		}
		kept := p.Stable + p.Unstable
		report(Event{
			Stage:    stage,
			Done:     kept,
			Total:    p.StableQuota + p.UnstableQuota,
			Value:    float64(kept) / float64(p.Attempts),
			HasValue: true,
			Status:   fmt.Sprintf("stable %d/%d  unstable %d/%d  attempts %d", p.Stable, p.StableQuota, p.Unstable, p.UnstableQuota, p.Attempts),
		})
	})
}

// CalibrateObserver reports every staircase iteration. Progress counts
// reversals; the sparkline tracks the measured fall probability.
func CalibrateObserver(stage string, totalReversals int, report Report) staircase.Observer {
	return staircase.ObserverFunc(func(it staircase.Iteration) {
		report(Event{
			Stage:    stage,
			Done:     it.Reversals,
			Total:    totalReversals,
			Value:    it.P,
			HasValue: true,
			Status:   fmt.Sprintf("iter %d  std %.4f  p_fall %.3f  n %d", it.Index, it.Std, it.P, it.Samples),
		})
	})
}
