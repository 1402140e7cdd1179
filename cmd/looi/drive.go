package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/looidrive/pkg/ble"
	"github.com/gwillem/looidrive/pkg/robot"
	"github.com/gwillem/looidrive/pkg/teleop"
)

type DriveCommand struct {
	Name           string        `long:"name" description:"Advertised name substring (overrides config)"`
	Address        string        `long:"address" description:"Device address, skips discovery (overrides config)"`
	ConnectTimeout time.Duration `long:"connect-timeout" description:"Connection timeout (overrides config)"`
	Subscribe      []string      `long:"subscribe" description:"Keep-alive notify attribute, repeatable (overrides config)"`
}

const (
	chartWidth  = 40
	chartHeight = 6
	maxLogs     = 5 // number of log messages to show

	batterySeries = "battery"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	motionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	stopStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	keyStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
)

type driveModel struct {
	ctrl      *teleop.Controller
	keys      *teleop.KeyQueue
	cancel    context.CancelFunc
	chart     *streamlinechart.Model
	state     teleop.State
	batteryAt time.Time
	width     int
	logs      []string
	released  bool // input mode restored, keys no longer forwarded
	done      bool
	err       error
}

func (m *driveModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg teleop.State
type logMsg string
type restoreMsg struct{}
type doneMsg struct{ err error }

func waitForState(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

func initialDriveModel(ctrl *teleop.Controller, keys *teleop.KeyQueue, cancel context.CancelFunc) driveModel {
	chart := streamlinechart.New(chartWidth, chartHeight,
		streamlinechart.WithYRange(0, 100),
	)
	chart.SetDataSetStyles(batterySeries, runes.ThinLineStyle, lipgloss.NewStyle().Foreground(lipgloss.Color("46")))

	return driveModel{
		ctrl:   ctrl,
		keys:   keys,
		cancel: cancel,
		chart:  &chart,
		state:  teleop.State{Battery: -1, Head: robot.HeadCenter},
	}
}

func (m driveModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m driveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			// Interrupt: same teardown path as quit.
			m.cancel()
			return m, nil
		}
		if m.released || msg.Type != tea.KeyRunes || len(msg.Runes) != 1 {
			return m, nil
		}
		key := msg.Runes[0]
		if !m.ctrl.Running() {
			// The dispatcher is not polling yet; quit aborts the bring-up.
			if action, _, _ := m.ctrl.Keys().Lookup(key); action == robot.ActionQuit {
				m.cancel()
			}
			return m, nil
		}
		m.keys.Push(key)
		return m, nil

	case stateMsg:
		m.state = teleop.State(msg)
		if m.state.Battery >= 0 && m.state.BatteryAt.After(m.batteryAt) {
			m.chart.PushDataSet(batterySeries, float64(m.state.Battery))
			m.chart.DrawAll()
			m.batteryAt = m.state.BatteryAt
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)

	case restoreMsg:
		m.released = true
		return m, nil

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m driveModel) View() string {
	if m.done {
		return ""
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("LOOI Drive"))
	sb.WriteString(fmt.Sprintf(" - %d Hz", m.ctrl.Hz()))
	if m.state.Device.Address != "" {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  %s [%s]", m.state.Device.Name, m.state.Device.Address)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(m.renderStatus())
	sb.WriteString("\n\n")

	// Battery history
	sb.WriteString(statusStyle.Render("Battery"))
	sb.WriteString("\n")
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend(m.ctrl.Keys()))
	sb.WriteString("\n")

	// Log box
	width := m.width - 4
	if width < chartWidth {
		width = chartWidth
	}
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(width)

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render(fmt.Sprintf("Press '%s' to quit", m.ctrl.Keys().Quit))
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m driveModel) renderStatus() string {
	s := m.state

	var motion string
	if s.Motion.IsNeutral() {
		motion = stopStyle.Render(s.Motion.Glyph())
	} else {
		motion = motionStyle.Render(s.Motion.Glyph())
	}

	battery := "--"
	if s.Battery >= 0 {
		battery = fmt.Sprintf("%d%%", s.Battery)
	}

	return fmt.Sprintf("%s  %s   Head: %d   Battery: %s",
		statusStyle.Render(fmt.Sprintf("[%s]", s.Phase)), motion, s.Head, battery)
}

func renderLegend(k robot.Keymap) string {
	items := []struct{ key, label string }{
		{k.Forward, "forward"},
		{k.Backward, "backward"},
		{k.Left, "left spin"},
		{k.Right, "right spin"},
		{k.HeadUp, "head up"},
		{k.HeadDown, "head down"},
		{k.Quit, "quit"},
	}
	var parts []string
	for _, it := range items {
		parts = append(parts, keyStyle.Render(strings.ToUpper(it.key))+" "+it.label)
	}
	return strings.Join(parts, "  ") + statusStyle.Render("  (release to stop)")
}

func (c *DriveCommand) apply(cfg *robot.Config) {
	if c.Name != "" {
		cfg.NameContains = c.Name
	}
	if c.Address != "" {
		cfg.Address = c.Address
	}
	if c.ConnectTimeout > 0 {
		cfg.ConnectTimeout = c.ConnectTimeout
	}
	if len(c.Subscribe) > 0 {
		cfg.Subscribe = cfg.Subscribe[:0]
		for _, s := range c.Subscribe {
			cfg.Subscribe = append(cfg.Subscribe, robot.Attribute(s))
		}
	}
}

func (c *DriveCommand) Execute(args []string) error {
	cfg, logger, logFile, err := setup()
	if err != nil {
		return err
	}
	defer logFile.Close()
	c.apply(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var p *tea.Program
	ctrl, err := teleop.NewController(teleop.Config{
		Transport: ble.NewTransport(cfg.Endpoints, logger),
		Robot:     cfg,
		Logger:    logger,
		Restore: func() {
			if p != nil {
				p.Send(restoreMsg{})
			}
		},
	})
	if err != nil {
		return err
	}

	keys := teleop.NewKeyQueue(16)
	p = tea.NewProgram(initialDriveModel(ctrl, keys, cancel))

	// Run the session in background
	runDone := make(chan error, 1)
	go func() {
		err := ctrl.Run(ctx, keys)
		runDone <- err
		p.Send(doneMsg{err: err})
	}()

	final, err := p.Run()
	// Teardown must complete before the process exits.
	cancel()
	runErr := <-runDone

	if err != nil {
		return fmt.Errorf("run program: %w", err)
	}
	if dm, ok := final.(driveModel); ok && dm.err != nil {
		runErr = dm.err
	}

	fmt.Println("Disconnected.")
	if runErr != nil {
		logger.Error("session ended", "err", runErr)
		return describe(runErr)
	}
	return nil
}

// describe turns a fatal session error into an operator-facing message.
func describe(err error) error {
	if !robot.IsFatal(err) {
		return err
	}
	switch {
	case errors.Is(err, robot.ErrDiscovery):
		return fmt.Errorf("robot not found, is it powered on? (%w)", err)
	case errors.Is(err, robot.ErrConnection):
		return fmt.Errorf("could not connect (%w)", err)
	case errors.Is(err, robot.ErrServiceDiscoveryTimeout):
		return fmt.Errorf("bluetooth services failure (%w)", err)
	case errors.Is(err, robot.ErrHandshakeWrite):
		return fmt.Errorf("robot rejected activation (%w)", err)
	}
	return err
}
