package tui

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/harvard-visionlab/block-towers/internal/scene"
	"github.com/harvard-visionlab/block-towers/internal/trajectory"
	"github.com/harvard-visionlab/block-towers/internal/viz"
)

type frameMsg struct{ gen int }

// Player plays a recorded trajectory in the terminal.
type Player struct {
	sim     *trajectory.Simulation
	st      styles
	frames  []string
	heights []float64

	idx    int
	paused bool
	speed  float64
	gen    int
}

// NewPlayer pre-renders every frame of sim on a cols x rows braille canvas.
func NewPlayer(sim *trajectory.Simulation, theme Theme, cols, rows int) (*Player, error) {
	if len(sim.Trajectory) == 0 {
		return nil, errors.New("simulation has no frames")
	}
	scn, err := scene.Build(sim.StartPositions)
	if err != nil {
		return nil, err
	}

	sizes := make([][3]float64, len(sim.StartPositions))
	for i, b := range sim.StartPositions {
		sizes[i] = [3]float64{b.LX, b.LY, b.LZ}
	}

	p := &Player{sim: sim, st: newStyles(theme), speed: 1}
	p.frames = make([]string, len(sim.Trajectory))
	p.heights = make([]float64, len(sim.Trajectory))
	for i, f := range sim.Trajectory {
		p.frames[i] = viz.SceneView(sizes, f.Data, scn.Camera, cols, rows).String()
		if n := len(f.Data); n > 0 {
			p.heights[i] = f.Data[n-1].XYZ[2]
		}
	}
	return p, nil
}

// Frame is the index of the frame on screen.
func (p *Player) Frame() int { return p.idx }

func (p *Player) interval() time.Duration {
	fps := p.sim.Params.Framerate
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(float64(time.Second) / (fps * p.speed))
}

func (p *Player) next() tea.Cmd {
	gen := p.gen
	return tea.Tick(p.interval(), func(time.Time) tea.Msg { return frameMsg{gen: gen} })
}

func (p *Player) Init() tea.Cmd { return p.next() }

func (p *Player) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return p, tea.Quit
		case " ", "p":
			p.paused = !p.paused
			if !p.paused {
				p.gen++
				return p, p.next()
			}
		case "left", "h":
			p.paused = true
			p.idx = max(p.idx-1, 0)
		case "right", "l":
			p.paused = true
			p.idx = min(p.idx+1, len(p.frames)-1)
		case "r":
			p.idx = 0
		case "+", "=":
			p.speed = math.Min(p.speed*2, 8)
		case "-", "_":
			p.speed = math.Max(p.speed/2, 0.125)
		}
		return p, nil
	case frameMsg:
		// Ticks from before a pause or restart are stale.
		if msg.gen != p.gen || p.paused {
			return p, nil
		}
		if p.idx < len(p.frames)-1 {
			p.idx++
		} else {
			p.paused = true
			return p, nil
		}
		return p, p.next()
	}
	return p, nil
}

func (p *Player) View() string {
	f := p.sim.Trajectory[p.idx]
	var b strings.Builder

	state := p.st.ok.Render("▶")
	if p.paused {
		state = p.st.warn.Render("‖")
	}
	fmt.Fprintf(&b, "%s %s  %s\n", state, p.st.title.Render("replay"),
		p.st.muted.Render(fmt.Sprintf("%d blocks  %gx", len(p.sim.StartPositions), p.speed)))
	b.WriteString(p.st.panel.Render(strings.TrimRight(p.frames[p.idx], "\n")))
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s %s  %s %s  %s %s\n",
		p.st.label.Render("frame"), p.st.value.Render(fmt.Sprintf("%d/%d", f.VideoFrame+1, len(p.frames))),
		p.st.label.Render("t"), p.st.value.Render(fmt.Sprintf("%.3fs", f.VideoT)),
		p.st.label.Render("step"), p.st.value.Render(fmt.Sprint(f.PhysicsStep)),
	)
	frac := float64(p.idx) / float64(max(len(p.frames)-1, 1))
	fmt.Fprintf(&b, "%s\n", ProgressBar(frac, 40, p.st.ok))

	top := p.heights[:p.idx+1]
	fmt.Fprintf(&b, "%s %s\n", p.st.label.Render("top z"), p.st.accent.Render(Sparkline(top, 40, 0, maxOf(p.heights))))
	b.WriteString(p.st.hint.Render("space pause  ←/→ step  r restart  +/- speed  q quit"))
	b.WriteString("\n")
	return b.String()
}

func maxOf(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		m = math.Max(m, x)
	}
	return m
}

// Play runs the player until the user quits.
func Play(out io.Writer, p *Player) error {
	_, err := tea.NewProgram(p, tea.WithOutput(out), tea.WithAltScreen()).Run()
	return err
}
