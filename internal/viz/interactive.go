package viz

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/herdsim/internal/config"
	"github.com/san-kum/herdsim/internal/experiment"
	"github.com/san-kum/herdsim/internal/logging"
	"github.com/san-kum/herdsim/internal/storage"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00cccc")).Bold(true)
	subStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff")).Bold(true)
	pickedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff")).Bold(true)
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#444455"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00aaaa")).Bold(true)
)

var presetInfo = map[string]string{
	"current": "loaded configuration",
	"paper":   "full published sweep",
	"quick":   "small smoke grid",
	"single":  "one combination",
}

const (
	stateMenu = iota
	stateConfig
	stateSim
)

// setting is one editable row: either a choice among names or a number.
type setting struct {
	name    string
	choices []string
	choice  *string
	num     *float64
	step    float64
}

func (s setting) value() string {
	if s.choice != nil {
		return *s.choice
	}
	return strconv.FormatFloat(*s.num, 'f', 3, 64)
}

func (s setting) cycle(dir int) {
	if s.choice != nil {
		i := 0
		for j, c := range s.choices {
			if c == *s.choice {
				i = j
			}
		}
		*s.choice = s.choices[(i+dir+len(s.choices))%len(s.choices)]
		return
	}
	*s.num += float64(dir) * s.step
}

// Setup picks a preset, tunes it and then hands over to a Live session.
type Setup struct {
	state, cursor int
	presets       []string
	base          *config.Config
	cfg           *config.Config
	settings      []setting
	settingCursor int
	editing       bool
	editBuf       string
	err           error

	reg   *experiment.Registry
	store *storage.Store
	log   *slog.Logger
	live  *Live
}

// NewSetup offers base as "current" next to the built-in presets.
func NewSetup(base *config.Config, store *storage.Store, log *slog.Logger) *Setup {
	presets := config.ListPresets()
	if base != nil {
		presets = append([]string{"current"}, presets...)
	}
	return &Setup{
		state:   stateMenu,
		presets: presets,
		base:    base,
		reg:     experiment.NewRegistry(),
		store:   store,
		log:     logging.OrDiscard(log),
	}
}

func (m *Setup) Init() tea.Cmd { return nil }

func (m *Setup) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.state == stateSim {
		_, cmd := m.live.Update(msg)
		return m, cmd
	}
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch m.state {
		case stateMenu:
			return m.menuKey(msg)
		case stateConfig:
			return m.configKey(msg)
		}
	}
	return m, nil
}

func (m *Setup) menuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.choose(m.presets[m.cursor])
	}
	return m, nil
}

func (m *Setup) choose(name string) {
	if name == "current" {
		c := *m.base
		c.Scene = append([]config.AgentConfig(nil), m.base.Scene...)
		m.cfg = &c
	} else {
		m.cfg = config.GetPreset(name)
	}
	m.state, m.settingCursor, m.err = stateConfig, 0, nil
	m.settings = []setting{
		{name: "herder", choices: m.reg.ListHerders(), choice: &m.cfg.Herder},
		{name: "target", choices: m.reg.ListTargets(), choice: &m.cfg.Target},
		{name: "integrator", choices: m.reg.ListIntegrators(), choice: &m.cfg.Integrator},
		{name: "stiffness", num: &m.cfg.Gains.Stiffness, step: 1},
		{name: "damping", num: &m.cfg.Gains.Damping, step: 0.5},
		{name: "offset", num: &m.cfg.Gains.Offset, step: 0.05},
		{name: "max speed", num: &m.cfg.MaxVelocity, step: 0.01},
		{name: "threshold", num: &m.cfg.Threshold, step: 0.02},
		{name: "dt", num: &m.cfg.Dt, step: 0.005},
		{name: "max time", num: &m.cfg.MaxTime, step: 10},
	}
}

func (m *Setup) configKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cur := m.settings[m.settingCursor]
	if m.editing {
		switch msg.String() {
		case "enter":
			if v, err := strconv.ParseFloat(m.editBuf, 64); err == nil {
				*cur.num = v
			}
			m.editing, m.editBuf = false, ""
		case "esc":
			m.editing, m.editBuf = false, ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if len(msg.String()) == 1 {
				c := msg.String()[0]
				if (c >= '0' && c <= '9') || c == '.' || c == '-' {
					m.editBuf += string(c)
				}
			}
		}
		return m, nil
	}
	switch msg.String() {
	case "q", "esc":
		m.state = stateMenu
	case "up", "k":
		if m.settingCursor > 0 {
			m.settingCursor--
		}
	case "down", "j":
		if m.settingCursor < len(m.settings)-1 {
			m.settingCursor++
		}
	case "enter", " ":
		if cur.num != nil {
			m.editing, m.editBuf = true, cur.value()
		} else {
			cur.cycle(1)
		}
	case "left", "h":
		cur.cycle(-1)
	case "right", "l":
		cur.cycle(1)
	case "s":
		return m, m.start()
	}
	return m, nil
}

func (m *Setup) start() tea.Cmd {
	if err := m.cfg.Validate(); err != nil {
		m.err = err
		return nil
	}
	sim, err := experiment.Build(m.cfg, experiment.Options{Log: m.log, Registry: m.reg})
	if err != nil {
		m.err = err
		return nil
	}
	m.live = NewLive(sim, nil, LiveConfig{
		Dt:         m.cfg.Dt,
		MaxTime:    m.cfg.MaxTime,
		HalfExtent: m.cfg.World.HalfExtent,
		Store:      m.store,
		Log:        m.log,
	})
	m.state = stateSim
	return m.live.Init()
}

// Live is the running session, nil until setup finishes.
func (m *Setup) Live() *Live { return m.live }

func (m *Setup) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateConfig:
		return m.viewConfig()
	case stateSim:
		return m.live.View()
	}
	return ""
}

func (m *Setup) viewMenu() string {
	var b strings.Builder
	b.WriteString("\n\n    " + titleStyle.Render("HERDSIM") + "\n    " + subStyle.Render("herding experiments") + "\n    " + subStyle.Render("─────────────────────────") + "\n\n")
	for i, name := range m.presets {
		desc := presetInfo[name]
		if i == m.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", cursorStyle.Render("▸"), pickedStyle.Render(fmt.Sprintf("%-10s", name)), accentStyle.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("    %s  %s\n", idleStyle.Render(fmt.Sprintf("  %-10s", name)), faintStyle.Render(desc)))
		}
	}
	b.WriteString("\n    " + keyStyle.Render("j/k") + idleStyle.Render(" navigate  ") + keyStyle.Render("enter") + idleStyle.Render(" select  ") + keyStyle.Render("q") + idleStyle.Render(" quit") + "\n")
	return b.String()
}

func (m *Setup) viewConfig() string {
	var b strings.Builder
	b.WriteString("\n\n    " + titleStyle.Render("SETUP") + "\n    " + subStyle.Render(fmt.Sprintf("%d agents", len(m.cfg.Scene))) + "\n    " + subStyle.Render("─────────────────────────") + "\n\n")
	for i, s := range m.settings {
		val := fmt.Sprintf("%10s", s.value())
		if m.editing && i == m.settingCursor {
			val = fmt.Sprintf("%10s", m.editBuf+"_")
		}
		if i == m.settingCursor {
			b.WriteString(fmt.Sprintf("    %s %s %s\n", cursorStyle.Render("▸"), pickedStyle.Render(fmt.Sprintf("%-10s", s.name)), accentStyle.Render(val)))
		} else {
			b.WriteString(fmt.Sprintf("    %s %s\n", idleStyle.Render(fmt.Sprintf("  %-10s", s.name)), faintStyle.Render(val)))
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + SparkLow.Render(strings.ReplaceAll(m.err.Error(), "\n", "\n    ")) + "\n")
	}
	b.WriteString("\n    " + keyStyle.Render("j/k") + idleStyle.Render(" select  ") + keyStyle.Render("h/l") + idleStyle.Render(" adjust  ") + keyStyle.Render("s") + idleStyle.Render(" start  ") + keyStyle.Render("esc") + idleStyle.Render(" back") + "\n")
	return b.String()
}

// RunInteractive shows the setup menu and then the live view.
func RunInteractive(base *config.Config, store *storage.Store, log *slog.Logger) error {
	m := NewSetup(base, store, log)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if m.live != nil {
		return m.live.Err()
	}
	return nil
}
