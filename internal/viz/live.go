package viz

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/herdsim/internal/agent"
	"github.com/san-kum/herdsim/internal/experiment"
	"github.com/san-kum/herdsim/internal/logging"
	"github.com/san-kum/herdsim/internal/storage"
)

const (
	width           = 60
	height          = 24
	historyCapacity = 600
	trailCapacity   = 40
)

var activeParamStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// LiveConfig controls a live session.
type LiveConfig struct {
	Dt      float64
	MaxTime float64
	// HalfExtent is the drawn playfield half-width.
	HalfExtent float64
	// Store, when set, receives one CSV per finished trial.
	Store *storage.Store
	Log   *slog.Logger
}

type param struct {
	name string
	get  func() float64
	set  func(float64)
}

// Live runs a Simulation in the terminal. Space begins and ends trials; gains
// tuned while running are loaded by the herders on their next reset.
type Live struct {
	sim       *experiment.Simulation
	cfg       LiveConfig
	log       *slog.Logger
	indicator *Indicator
	canvas    *Canvas
	field     Field

	elapsed  float64
	samples  int
	trials   int
	paused   bool
	showHelp bool
	status   string
	err      error

	spread []float64
	trails map[agent.ID][][2]int

	params   []param
	selected int

	// trial holds the parameters the controllers loaded on the last reset.
	trial storage.Params
	buf   *storage.Buffer
	files []string
}

// NewLive wires ind into the simulation's task before the first trial.
func NewLive(sim *experiment.Simulation, ind *Indicator, cfg LiveConfig) *Live {
	if ind == nil {
		ind = NewIndicator()
	}
	sim.Task.Monitor().SetIndicator(ind)
	c := NewCanvas(width, height)
	m := &Live{
		sim:       sim,
		cfg:       cfg,
		log:       logging.OrDiscard(cfg.Log),
		indicator: ind,
		canvas:    c,
		field:     NewField(c, cfg.HalfExtent),
		status:    "READY",
		spread:    make([]float64, 0, historyCapacity),
		trails:    make(map[agent.ID][][2]int),
		buf:       storage.NewBuffer(sim.Names()),
	}
	m.params = []param{
		{"stiffness", func() float64 { return sim.Gains.Stiffness }, func(v float64) { sim.Gains.Stiffness = v }},
		{"damping", func() float64 { return sim.Gains.Damping }, func(v float64) { sim.Gains.Damping = v }},
		{"offset", func() float64 { return sim.Gains.Offset }, func(v float64) { sim.Gains.Offset = v }},
		{"max speed", func() float64 { return sim.Limits.MaxVelocity }, func(v float64) { sim.Limits.MaxVelocity = v }},
	}
	sim.Task.OnEnd(m.onEnd)
	return m
}

func (m *Live) Init() tea.Cmd { return tick() }

// Update handles input events and steps the simulation.
func (m *Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.sim.Task.Active() {
				m.sim.Task.End()
			}
			return m, tea.Quit
		case " ", "enter":
			m.toggle()
		case "r":
			m.sim.Task.Reset()
			m.clearTrails()
			if m.sim.Task.Active() {
				m.restart()
			}
		case "p":
			m.paused = !m.paused
		case "tab":
			m.selected = (m.selected + 1) % len(m.params)
		case "up", "k":
			m.adjust(1.05)
		case "down", "j":
			m.adjust(0.95)
		case "t":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.sim.Task.Active() && !m.paused {
			m.step()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Live) toggle() {
	if m.sim.Task.Active() {
		m.sim.Task.End()
		return
	}
	m.trials++
	m.status = "RUNNING"
	m.log.Info("trial starting", "trial", m.trials)
	m.sim.Task.Begin()
	m.restart()
}

// restart rewinds the running trial after its agents were reset. Rows
// recorded before the reset are dropped.
func (m *Live) restart() {
	m.elapsed = 0
	m.samples = 0
	m.spread = m.spread[:0]
	m.clearTrails()
	m.buf.Clear()
	m.trial = m.snapshot()
}

// snapshot captures the shared gains and limits as the controllers see them
// right after a reset. Later tuning applies from the next reset.
func (m *Live) snapshot() storage.Params {
	g := m.sim.Gains
	return storage.Params{
		TrialNum:        m.trials,
		TrialMaxTime:    m.cfg.MaxTime,
		TrialMaxSamples: int(float64(int(m.cfg.MaxTime)) / m.cfg.Dt),
		TargetMaxSpeed:  m.sim.Limits.MaxVelocity,
		Stiffness:       g.Stiffness,
		DampingRatio:    dampingRatio(g.Damping, g.Stiffness),
		Damping:         g.Damping,
		Offset:          g.Offset,
	}
}

func (m *Live) adjust(factor float64) {
	p := m.params[m.selected]
	p.set(p.get() * factor)
}

// step advances one tick, recording a sample first so the CSV row at Time t
// holds the state the herders saw.
func (m *Live) step() {
	if early, reason := m.sim.Task.EndEarly(); early || m.elapsed >= m.cfg.MaxTime {
		if early {
			m.status = "ENDED: " + reason
		} else {
			m.status = "TIME UP"
		}
		m.sim.Task.End()
		return
	}

	m.record()
	if err := m.sim.Tick(m.cfg.Dt); err != nil {
		m.err = err
		m.status = "ERROR"
		m.log.Error("simulation failed", "error", err)
		m.sim.Task.End()
		return
	}
	m.elapsed += m.cfg.Dt

	m.spread = append(m.spread, m.sim.Task.Monitor().Spread())
	if len(m.spread) > historyCapacity {
		m.spread = m.spread[1:]
	}
	m.trace()
}

func (m *Live) trace() {
	for _, a := range m.sim.Agents.Ordered() {
		p := m.sim.World.Position(a.Body)
		x, y := m.field.Project(p.X, p.Z)
		tr := append(m.trails[a.ID], [2]int{x, y})
		if len(tr) > trailCapacity {
			tr = tr[1:]
		}
		m.trails[a.ID] = tr
	}
}

func (m *Live) record() {
	if m.cfg.Store == nil {
		return
	}
	m.buf.Append(storage.Record{
		Params:    m.trial,
		Time:      float64(m.samples) * m.cfg.Dt,
		Contained: m.sim.Task.Monitor().Contained(),
		Positions: m.sim.Snapshot(),
	})
	m.samples++
}

// dampingRatio inverts damping = ratio·2·√stiffness.
func dampingRatio(damping, stiffness float64) float64 {
	if stiffness <= 0 {
		return 0
	}
	return damping / (2 * math.Sqrt(stiffness))
}

func (m *Live) onEnd() {
	if m.cfg.Store == nil || m.buf.Len() == 0 {
		return
	}
	name, err := m.cfg.Store.Flush(m.buf)
	if err != nil {
		m.err = err
		m.log.Error("flush failed", "error", err)
		return
	}
	m.files = append(m.files, name)
	m.log.Info("trial saved", "file", name)
}

// Files are the CSVs written during the session.
func (m *Live) Files() []string { return m.files }

// Err is the last simulation or storage error.
func (m *Live) Err() error { return m.err }

func (m *Live) clearTrails() { clear(m.trails) }

func (m *Live) draw() {
	m.canvas.Clear()
	m.field.DrawBounds(m.canvas)

	theme := CurrentTheme
	herder := lipgloss.NewStyle().Foreground(theme.Herder).Bold(true)
	target := lipgloss.NewStyle().Foreground(theme.Target)
	center := lipgloss.NewStyle().Foreground(m.indicator.Color()).Bold(true)

	mon := m.sim.Task.Monitor()
	if mon.Running() {
		c := mon.Centroid()
		cx, cy := m.field.Project(c.X, c.Z)
		r := int(mon.Threshold() * m.field.Scale())
		m.canvas.DrawCircle(cx, cy, r)
		m.canvas.Mark(cx, cy, '+', center)
	}

	for _, a := range m.sim.Agents.Ordered() {
		p := m.sim.World.Position(a.Body)
		x, y := m.field.Project(p.X, p.Z)
		for _, pt := range m.trails[a.ID] {
			m.canvas.Set(pt[0], pt[1])
		}
		if a.Role == agent.RoleHerder {
			m.canvas.Mark(x, y, 'H', herder)
		} else {
			m.canvas.Mark(x, y, 'o', target)
		}
	}
}

// View renders the TUI interface.
func (m *Live) View() string {
	m.draw()
	canvasView := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(headerStyle.Render("HERDING") + "\n")
	status := m.status
	if m.paused {
		status = "PAUSED"
	}
	s.WriteString(fmt.Sprintf("%s  %s\n\n", m.indicator.Badge(), status))

	if len(m.spread) > 1 {
		chart := asciigraph.Plot(m.spread, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Spread"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	mon := m.sim.Task.Monitor()
	s.WriteString(labelStyle.Render("Trial") + valueStyle.Render(fmt.Sprintf("%d", m.trials)) + "\n")
	s.WriteString(labelStyle.Render("Time") + valueStyle.Render(fmt.Sprintf("%.2fs / %.0fs", m.elapsed, m.cfg.MaxTime)) + "\n")
	s.WriteString(labelStyle.Render("Progress") + ProgressBar(m.elapsed/m.cfg.MaxTime, 20) + "\n")
	s.WriteString(labelStyle.Render("Spread") + valueStyle.Render(fmt.Sprintf("%.3f (r=%.2f)", mon.Spread(), mon.Threshold())) + "\n")
	s.WriteString(labelStyle.Render("Saved") + valueStyle.Render(fmt.Sprintf("%d", len(m.files))) + "\n")

	s.WriteString("\nGAINS\n")
	for i, p := range m.params {
		line := fmt.Sprintf("%-10s %.3f", p.name, p.get())
		if i == m.selected {
			s.WriteString(activeParamStyle.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + labelStyle.Render(line) + "\n")
		}
	}
	if m.err != nil {
		s.WriteString("\n" + SparkLow.Render(m.err.Error()) + "\n")
	}
	s.WriteString(helpStyle.Render("\n─────────────────────\nSP:Trial R:Reset P:Pause\nT:Theme  Q:Quit   ?:Help\nTab ↑↓:Tune gains"))
	statsView := statsStyle.Render(s.String())
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Begin/End trial          ║
║  R        - Reset agents             ║
║  P        - Pause/Resume             ║
║  Tab      - Cycle gains              ║
║  Up/K     - Increase gain (+5%)      ║
║  Down/J   - Decrease gain (-5%)      ║
║  T        - Cycle themes             ║
║  Q        - Quit                     ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}

// RunLive runs a live session until the user quits.
func RunLive(sim *experiment.Simulation, cfg LiveConfig) (*Live, error) {
	m := NewLive(sim, nil, cfg)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return m, err
}
