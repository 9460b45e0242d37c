package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/sysid/internal/experiment"
	"github.com/san-kum/sysid/internal/sysid"
)

const historyCapacity = 300

type ProgressMsg experiment.Progress

type DoneMsg struct {
	Result *experiment.Result
	Err    error
}

// LiveModel shows the state of a running experiment. It only reacts to
// messages; the experiment runs elsewhere and reports through Send.
type LiveModel struct {
	mechanism string
	timeout   time.Duration
	stop      func()

	last       experiment.Progress
	phaseStart time.Duration
	voltages   []float64
	velocities []float64
	windows    int

	done   bool
	result *experiment.Result
	err    error
}

// NewLiveModel returns a view for mechanism. stop is called when the user
// quits and must end the experiment.
func NewLiveModel(mechanism string, timeout time.Duration, stop func()) LiveModel {
	return LiveModel{
		mechanism:  mechanism,
		timeout:    timeout,
		stop:       stop,
		voltages:   make([]float64, 0, historyCapacity),
		velocities: make([]float64, 0, historyCapacity),
	}
}

func (m LiveModel) Init() tea.Cmd { return nil }

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.stop != nil {
				m.stop()
			}
			return m, tea.Quit
		}
	case ProgressMsg:
		p := experiment.Progress(msg)
		if p.Phase != m.last.Phase {
			m.phaseStart = p.Time
			if p.Phase != sysid.None {
				m.windows++
			}
		}
		m.last = p
		m.voltages = push(m.voltages, p.Voltage.Volts())
		m.velocities = push(m.velocities, p.Velocity)
	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func push(buf []float64, v float64) []float64 {
	buf = append(buf, v)
	if len(buf) > historyCapacity {
		buf = buf[1:]
	}
	return buf
}

func (m LiveModel) View() string {
	var s strings.Builder
	s.WriteString(Header.Render("SYSID "+strings.ToUpper(m.mechanism)) + "\n\n")

	switch {
	case m.err != nil:
		s.WriteString(StatusError.Render("STOPPED: "+m.err.Error()) + "\n\n")
	case m.done:
		s.WriteString(StatusIdle.Render("DONE") + "\n\n")
	case m.last.Phase == sysid.None:
		s.WriteString(StatusIdle.Render("IDLE") + "\n\n")
	default:
		s.WriteString(StatusRunning.Render(strings.ToUpper(m.last.Phase.String())) + "\n\n")
	}

	s.WriteString(Metric("Time", fmt.Sprintf("%.2fs", m.last.Time.Seconds())) + "\n")
	s.WriteString(Metric("Voltage", m.last.Voltage.String()) + "\n")
	s.WriteString(Metric("Position", fmt.Sprintf("%.3f rot", m.last.Position)) + "\n")
	s.WriteString(Metric("Velocity", fmt.Sprintf("%.3f rot/s", m.last.Velocity)) + "\n")
	s.WriteString(Metric("Tests", fmt.Sprintf("%d", m.windows)) + "\n\n")

	if m.last.Phase != sysid.None && m.timeout > 0 {
		frac := (m.last.Time - m.phaseStart).Seconds() / m.timeout.Seconds()
		s.WriteString(MetricLabel.Render("Timeout") + ProgressBar(frac, 30) + "\n\n")
	}

	s.WriteString(MetricLabel.Render("Voltage") + Sparkline(m.voltages, 40) + "\n")
	if len(m.velocities) > 1 {
		chart := asciigraph.Plot(m.velocities,
			asciigraph.Height(6),
			asciigraph.Width(40),
			asciigraph.Caption("velocity (rot/s)"))
		s.WriteString("\n" + chart + "\n")
	}

	if m.result != nil {
		s.WriteString("\n" + Metric("Entries", fmt.Sprintf("%d", len(m.result.Entries))) + "\n")
	}

	s.WriteString("\n" + KeyHint.Render("q: stop and quit"))
	return lipgloss.JoinVertical(lipgloss.Left, Panel.Render(s.String()))
}

// Result returns the outcome once a DoneMsg has been received.
func (m LiveModel) Result() (*experiment.Result, error) { return m.result, m.err }
