package viz

import (
	"bytes"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/herdsim/internal/config"
	"github.com/san-kum/herdsim/internal/experiment"
	"github.com/san-kum/herdsim/internal/storage"
	"github.com/san-kum/herdsim/internal/task"
)

var _ task.Indicator = (*Indicator)(nil)

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestCanvasSetAndBounds(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(4, 0)
	c.Set(0, 4)

	assert.Equal(t, rune(blank|0x1), c.Grid[0][0])
	assert.Equal(t, rune(blank|0x80), c.Grid[0][1])

	c.Unset(0, 0)
	assert.Equal(t, rune(blank), c.Grid[0][0])

	c.Clear()
	assert.Equal(t, string([]rune{blank, blank})+"\n", c.String())
}

func TestCanvasDrawLineHitsEndpoints(t *testing.T) {
	c := NewCanvas(10, 5)
	c.DrawLine(1, 1, 18, 17)
	assert.NotEqual(t, rune(blank), c.Grid[0][0])
	assert.NotEqual(t, rune(blank), c.Grid[4][9])
}

func TestCanvasMarkOverridesCell(t *testing.T) {
	c := NewCanvas(3, 1)
	c.Set(2, 0)
	c.Mark(2, 0, 'H', lipgloss.NewStyle())
	assert.Contains(t, c.String(), "H")
}

func TestFieldProjection(t *testing.T) {
	c := NewCanvas(60, 24)
	f := NewField(c, 2.5)

	x, y := f.Project(0, 0)
	assert.Equal(t, 60, x)
	assert.Equal(t, 48, y)

	// +z is up the screen
	_, up := f.Project(0, 1)
	assert.Less(t, up, y)

	x, _ = f.Project(2.5, 0)
	assert.LessOrEqual(t, x, f.W)
}

func TestThemes(t *testing.T) {
	defer SetTheme("classic")

	assert.Equal(t, ThemeOcean, GetTheme("ocean"))
	assert.Equal(t, ThemeClassic, GetTheme("missing"))
	assert.Equal(t, []string{"classic", "ocean", "minimal"}, ThemeNames())

	SetTheme("classic")
	NextTheme()
	assert.Equal(t, "ocean", CurrentTheme.Name)
	NextTheme()
	NextTheme()
	assert.Equal(t, "classic", CurrentTheme.Name)
}

func TestIndicator(t *testing.T) {
	ind := NewIndicator()
	assert.Equal(t, UncontainedColor, ind.Color())
	assert.Contains(t, ind.Badge(), "UNCONTAINED")

	ind.SetContained(true)
	ind.SetContained(true)
	assert.Equal(t, ContainedColor, ind.Color())
	assert.Equal(t, 1, ind.Changes())

	ind.SetContained(false)
	assert.Equal(t, 2, ind.Changes())
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "───", Sparkline(nil, 3))
	assert.Equal(t, "▁█", Sparkline([]float64{5, 0, 1}, 2))
	assert.Equal(t, 3, len([]rune(Sparkline([]float64{1, 1, 1}, 5))))
}

func newLive(t *testing.T, maxTime float64) (*Live, *storage.Store) {
	t.Helper()
	cfg := config.DefaultConfig()
	sim, err := experiment.Build(cfg, experiment.Options{})
	require.NoError(t, err)
	t.Cleanup(sim.Close)

	store := storage.New(t.TempDir())
	m := NewLive(sim, nil, LiveConfig{Dt: 0.02, MaxTime: maxTime, HalfExtent: 2.5, Store: store})
	return m, store
}

func TestLiveTrialLifecycle(t *testing.T) {
	m, store := newLive(t, 10)
	assert.Contains(t, m.View(), "READY")

	m.Update(key(" "))
	require.True(t, m.sim.Task.Active())
	for i := 0; i < 25; i++ {
		m.Update(TickMsg{})
	}
	assert.InDelta(t, 0.5, m.elapsed, 1e-9)
	assert.Len(t, m.spread, 25)
	assert.Contains(t, m.View(), "HERDING")

	m.Update(key(" "))
	assert.False(t, m.sim.Task.Active())
	require.Len(t, m.Files(), 1)

	tr, err := storage.ReadTrial(store.Path(m.Files()[0]))
	require.NoError(t, err)
	assert.Len(t, tr.Records, 25)
	assert.Equal(t, 1, tr.Records[0].TrialNum)
	assert.Equal(t, 500, tr.Records[0].TrialMaxSamples)
	assert.InDelta(t, 0.625, tr.Records[0].DampingRatio, 1e-9)
	assert.Equal(t, m.sim.Names(), tr.Names)
}

func TestLiveEndsAtMaxTime(t *testing.T) {
	m, _ := newLive(t, 0.1)
	m.Update(key(" "))
	for i := 0; i < 20; i++ {
		m.Update(TickMsg{})
	}
	assert.False(t, m.sim.Task.Active())
	assert.Equal(t, "TIME UP", m.status)
	assert.Len(t, m.Files(), 1)
}

func TestLivePauseAndTune(t *testing.T) {
	m, _ := newLive(t, 10)
	m.Update(key(" "))
	m.Update(key("p"))
	m.Update(TickMsg{})
	assert.Zero(t, m.elapsed)
	assert.Contains(t, m.View(), "PAUSED")

	before := m.sim.Gains.Stiffness
	m.Update(key("up"))
	assert.InDelta(t, before*1.05, m.sim.Gains.Stiffness, 1e-9)

	m.Update(key("tab"))
	m.Update(key("tab"))
	m.Update(key("up"))
	assert.InDelta(t, config.DefaultOffset*1.05, m.sim.Gains.Offset, 1e-9)

	_, cmd := m.Update(key("q"))
	assert.NotNil(t, cmd)
	assert.False(t, m.sim.Task.Active())
}

func TestLiveRecordsGainsInEffect(t *testing.T) {
	m, store := newLive(t, 10)
	loaded := *m.sim.Gains
	speed := m.sim.Limits.MaxVelocity

	m.Update(key(" "))
	m.Update(TickMsg{})
	m.Update(key("up"))
	m.Update(key("tab"))
	m.Update(key("tab"))
	m.Update(key("tab"))
	m.Update(key("up"))
	for i := 0; i < 3; i++ {
		m.Update(TickMsg{})
	}
	m.Update(key(" "))
	require.Len(t, m.Files(), 1)

	tr, err := storage.ReadTrial(store.Path(m.Files()[0]))
	require.NoError(t, err)
	require.Len(t, tr.Records, 4)
	for i, r := range tr.Records {
		assert.InDelta(t, loaded.Stiffness, r.Stiffness, 1e-4, "row %d", i)
		assert.InDelta(t, loaded.Damping, r.Damping, 1e-4, "row %d", i)
		assert.InDelta(t, speed, r.TargetMaxSpeed, 1e-2, "row %d", i)
	}

	// the tuned gains apply from the next trial
	m.Update(key(" "))
	m.Update(TickMsg{})
	m.Update(key(" "))
	require.Len(t, m.Files(), 2)
	tr, err = storage.ReadTrial(store.Path(m.Files()[1]))
	require.NoError(t, err)
	assert.InDelta(t, loaded.Stiffness*1.05, tr.Records[0].Stiffness, 1e-4)
	assert.InDelta(t, speed*1.05, tr.Records[0].TargetMaxSpeed, 1e-2)
}

func TestLiveResetRestartsRecording(t *testing.T) {
	m, store := newLive(t, 10)
	m.Update(key(" "))
	for i := 0; i < 5; i++ {
		m.Update(TickMsg{})
	}
	m.Update(key("up"))
	m.Update(key("r"))
	assert.True(t, m.sim.Task.Active())
	assert.Zero(t, m.elapsed)

	for i := 0; i < 2; i++ {
		m.Update(TickMsg{})
	}
	m.Update(key(" "))
	require.Len(t, m.Files(), 1)

	tr, err := storage.ReadTrial(store.Path(m.Files()[0]))
	require.NoError(t, err)
	require.Len(t, tr.Records, 2)
	assert.Zero(t, tr.Records[0].Time)
	assert.InDelta(t, m.sim.Gains.Stiffness, tr.Records[1].Stiffness, 1e-4)
}

func TestSetupLaunchesLive(t *testing.T) {
	base := config.DefaultConfig()
	m := NewSetup(base, nil, nil)
	assert.Equal(t, "current", m.presets[0])
	assert.Contains(t, m.View(), "HERDSIM")

	m.Update(key("enter"))
	require.Equal(t, stateConfig, m.state)

	// cycle the herder choice away from the default and back
	m.Update(key("l"))
	assert.NotEqual(t, base.Herder, m.cfg.Herder)
	m.Update(key("h"))
	assert.Equal(t, base.Herder, m.cfg.Herder)

	m.Update(key("s"))
	require.NotNil(t, m.Live())
	assert.Equal(t, stateSim, m.state)
	assert.Equal(t, base.Gains.Stiffness, m.Live().sim.Gains.Stiffness)
}

func TestSetupRejectsInvalidConfig(t *testing.T) {
	m := NewSetup(nil, nil, nil)
	m.Update(key("enter"))
	*m.settings[len(m.settings)-2].num = 0 // dt

	m.Update(key("s"))
	assert.Nil(t, m.Live())
	assert.Error(t, m.err)
	assert.Equal(t, stateConfig, m.state)
}

func sampleTrial() *storage.Trial {
	tr := &storage.Trial{Names: []string{"HA0", "TA0"}}
	for i := 0; i < 20; i++ {
		f := float64(i) / 10
		tr.Records = append(tr.Records, storage.Record{
			Params:    storage.Params{TrialNum: 2, Stiffness: 64, DampingRatio: 0.625},
			Time:      f,
			Contained: i > 10,
			Positions: []storage.Point{{X: f, Z: -f}, {X: 1 - f, Z: f}},
		})
	}
	return tr
}

func TestPlotTrial(t *testing.T) {
	out, err := PlotTrial(sampleTrial(), PlotOptions{Axis: "z", Height: 5, Width: 40})
	require.NoError(t, err)
	assert.Contains(t, out, "z position, trial 2")
	assert.Contains(t, out, "HA0")
	assert.Contains(t, out, "contained")

	_, err = PlotTrial(sampleTrial(), PlotOptions{Axis: "y"})
	assert.Error(t, err)

	_, err = PlotTrial(sampleTrial(), PlotOptions{Agents: []string{"nobody"}})
	assert.Error(t, err)

	_, err = PlotTrial(&storage.Trial{}, PlotOptions{})
	assert.Error(t, err)
}

func TestPlotSummaries(t *testing.T) {
	out, err := PlotSummaries([]storage.Summary{{ContainedFraction: 0.2}, {ContainedFraction: 0.9}}, 4, 20)
	require.NoError(t, err)
	assert.Contains(t, out, "over 2 trials")

	_, err = PlotSummaries(nil, 0, 0)
	assert.Error(t, err)
}

func TestWritePNG(t *testing.T) {
	p, err := TrajectoryPlot(sampleTrial(), 2.5)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, p, 3, 3))
	assert.True(t, strings.HasPrefix(buf.String(), "\x89PNG"))

	_, err = TrajectoryPlot(&storage.Trial{}, 2.5)
	assert.Error(t, err)

	cp, err := ContainmentPlot([]storage.Summary{{Params: storage.Params{Stiffness: 36}, ContainedFraction: 0.5}})
	require.NoError(t, err)
	assert.Equal(t, "Containment by stiffness", cp.Title.Text)
}
