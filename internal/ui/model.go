// ABOUTME: Bubbletea model for the receiver TUI
// ABOUTME: Defines display state, status handling and key bindings
package ui

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/teamclouday/androidmic-host/internal/metrics"
	"github.com/teamclouday/androidmic-host/internal/pipeline"
	"github.com/teamclouday/androidmic-host/internal/transport"
)

const innerWidth = 66

var transportCycle = []string{"tcp", "udp", "adb", "usb"}

// Model represents the TUI state
type Model struct {
	// Connection
	state     string
	transport string
	port      uint16
	lastError string

	// Stream
	format  string
	denoise bool
	preview []float32

	// Stats
	stats     metrics.Snapshot
	underruns uint64

	controls *Controls

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg.Status)
	case StatsMsg:
		m.stats = msg.Snapshot
		m.underruns = msg.Underruns
	case ConfigMsg:
		m.applyConfig(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderStream()
	s += m.renderStats()
	s += m.renderHelp()

	return s
}

func line(content string) string {
	return fmt.Sprintf("│ %-*s │\n", innerWidth, truncate(content, innerWidth))
}

func rule(left, right string) string {
	return left + strings.Repeat("─", innerWidth+2) + right + "\n"
}

// renderHeader renders transport and connection state
func (m Model) renderHeader() string {
	status := m.state
	switch m.state {
	case "listening":
		status = fmt.Sprintf("Listening on port %d", m.port)
	case "connected":
		status = "Connected"
	case "error":
		status = "Error: " + m.lastError
	case "":
		status = "Idle"
	}

	s := "┌─ AndroidMic " + strings.Repeat("─", innerWidth-11) + "┐\n"
	s += line("Transport: " + m.transport)
	s += line("Status:    " + status)
	s += rule("├", "┤")
	return s
}

// renderStream renders the output format and waveform preview
func (m Model) renderStream() string {
	denoise := "off"
	if m.denoise {
		denoise = "on"
	}

	s := line(fmt.Sprintf("Output: %s   Denoise: %s", m.format, denoise))
	if m.state == "connected" && len(m.preview) > 0 {
		s += line(sparkline(m.preview))
	} else {
		s += line("(no audio)")
	}
	return s
}

// renderStats renders stream statistics
func (m Model) renderStats() string {
	s := rule("├", "┤")
	s += line(fmt.Sprintf("Packets: %d  Moved: %s  Lost: %s  Underruns: %d",
		m.stats.Packets, formatBytes(m.stats.BytesMoved), formatBytes(m.stats.BytesLost), m.underruns))
	if m.stats.Regressions > 0 {
		s += line(fmt.Sprintf("Out of order packets: %d", m.stats.Regressions))
	}
	return s
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return line("c:Connect  s:Stop  t:Transport  n:Denoise  f:Format  q:Quit") + rule("└", "┘")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.send(Action{Kind: ActionQuit})
		return m, tea.Quit
	case "c":
		m.controls.send(Action{Kind: ActionConnect, Transport: m.transport})
	case "s":
		m.controls.send(Action{Kind: ActionStop})
	case "n":
		m.denoise = !m.denoise
		m.controls.send(Action{Kind: ActionSetDenoise, Denoise: m.denoise})
	case "f":
		m.controls.send(Action{Kind: ActionCycleFormat})
	case "t":
		if m.state == "" || m.state == "idle" || m.state == "error" {
			m.transport = nextTransport(m.transport)
		}
	}

	return m, nil
}

// applyStatus updates model from a transport status
func (m *Model) applyStatus(st transport.Status) {
	switch st.Kind {
	case transport.StatusListening:
		m.state = "listening"
		m.port = st.Port
		m.preview = nil
	case transport.StatusConnected:
		m.state = "connected"
	case transport.StatusError:
		m.state = "error"
		m.lastError = st.Message
		m.preview = nil
	case transport.StatusPreviewSample:
		m.preview = pipeline.DecodePreview(st.Sample)
	}
}

func (m *Model) applyConfig(msg ConfigMsg) {
	if msg.Transport != "" {
		m.transport = msg.Transport
	}
	if msg.Format != "" {
		m.format = msg.Format
	}
	m.denoise = msg.Denoise
	if msg.Stopped {
		m.state = "idle"
		m.preview = nil
	}
}

// StatusMsg forwards a driver status to the TUI
type StatusMsg struct {
	Status transport.Status
}

// StatsMsg carries periodic counters
type StatsMsg struct {
	Snapshot  metrics.Snapshot
	Underruns uint64
}

// ConfigMsg reports the active stream settings
type ConfigMsg struct {
	Transport string
	Format    string
	Denoise   bool
	// Stopped marks an explicit stop, which emits no status
	Stopped bool
}

// Utility functions
var levels = []rune("▁▂▃▄▅▆▇█")

func sparkline(points []float32) string {
	var b strings.Builder
	for _, p := range points {
		v := math.Min(math.Abs(float64(p)), 1)
		b.WriteRune(levels[int(v*float64(len(levels)-1)+0.5)])
	}
	return b.String()
}

func nextTransport(current string) string {
	for i, t := range transportCycle {
		if t == current {
			return transportCycle[(i+1)%len(transportCycle)]
		}
	}
	return transportCycle[0]
}

func formatBytes(n uint64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

func truncate(s string, length int) string {
	if len([]rune(s)) <= length {
		return s
	}
	r := []rune(s)
	return string(r[:length-3]) + "..."
}
