// Package viz renders integration runs in the terminal: a live monitor
// driving the solver step by step, and a plotter for stored trajectories.
package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/avereen/kinsim/internal/dae"
)

const (
	graphWidth      = 64
	graphHeight     = 10
	historyCapacity = 2000
	stepsPerTick    = 25
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type tickMsg time.Time

// Monitor is a bubbletea model advancing a solver toward tout and showing
// its progress.
type Monitor struct {
	solver  *dae.Solver
	model   string
	tout    float64
	series  [][]float64 // per-component history of the solution
	times   []float64
	running bool
	failed  error
	done    bool
}

// NewMonitor wraps an initialized solver for live display. The solver
// must not be used elsewhere while the monitor runs.
func NewMonitor(solver *dae.Solver, model string, tout float64) *Monitor {
	n := len(solver.SolutionVector())
	series := make([][]float64, n)
	return &Monitor{
		solver:  solver,
		model:   model,
		tout:    tout,
		series:  series,
		running: true,
	}
}

func (m *Monitor) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		}
	case tickMsg:
		if m.running && !m.done {
			m.advance()
		}
		if m.done {
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

// advance takes a burst of steps so the display keeps up with fast
// integrations without redrawing on every step.
func (m *Monitor) advance() {
	for i := 0; i < stepsPerTick; i++ {
		if m.solver.Time() >= m.tout {
			m.done = true
			return
		}
		if err := m.solver.Step(context.Background()); err != nil {
			m.failed = err
			m.done = true
			return
		}
		m.record()
	}
}

func (m *Monitor) record() {
	y := m.solver.SolutionVector()
	for i, v := range y {
		m.series[i] = append(m.series[i], v)
		if len(m.series[i]) > historyCapacity {
			m.series[i] = m.series[i][1:]
		}
	}
	m.times = append(m.times, m.solver.Time())
	if len(m.times) > historyCapacity {
		m.times = m.times[1:]
	}
}

func (m *Monitor) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("kinsim live — %s", m.model)))
	b.WriteByte('\n')

	stats := m.solver.Stats()
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteByte('\n')
	}
	row("t", fmt.Sprintf("%.6g / %.6g", m.solver.Time(), m.tout))
	row("h", fmt.Sprintf("%.3g", m.solver.StepSize()))
	row("order", fmt.Sprintf("%d", m.solver.Order()))
	row("state", m.solver.State().String())
	row("steps", fmt.Sprintf("%d", stats.Steps))
	row("newton iters", fmt.Sprintf("%d", stats.NewtonIters))
	row("jacobians", fmt.Sprintf("%d", stats.JacEvals))
	row("conv fails", fmt.Sprintf("%d", stats.ConvFails))

	if len(m.series) > 0 && len(m.series[0]) > 1 {
		b.WriteString(graphStyle.Render(asciigraph.Plot(m.series[0],
			asciigraph.Width(graphWidth),
			asciigraph.Height(graphHeight),
			asciigraph.Caption("y0(t)"))))
		b.WriteByte('\n')
	}

	if m.failed != nil {
		b.WriteString(failStyle.Render(fmt.Sprintf("integration failed: %v", m.failed)))
		b.WriteByte('\n')
	} else if m.done {
		b.WriteString(headerStyle.Render("integration complete"))
		b.WriteByte('\n')
	}

	b.WriteString(helpStyle.Render("space pause · q quit"))
	b.WriteByte('\n')
	return b.String()
}

// Run starts the live monitor and blocks until it exits.
func (m *Monitor) Run() error {
	_, err := tea.NewProgram(m).Run()
	if err != nil {
		return err
	}
	return m.failed
}

// Plot renders one solution component of a stored trajectory as an ascii
// graph.
func Plot(times []float64, states [][]float64, component int, caption string) (string, error) {
	if len(states) == 0 {
		return "", fmt.Errorf("viz: empty trajectory")
	}
	if component < 0 || component >= len(states[0]) {
		return "", fmt.Errorf("viz: component %d out of range (system has %d)", component, len(states[0]))
	}
	series := make([]float64, len(states))
	for i, s := range states {
		series[i] = s[component]
	}
	return asciigraph.Plot(series,
		asciigraph.Width(graphWidth),
		asciigraph.Height(graphHeight+4),
		asciigraph.Caption(caption),
	), nil
}
