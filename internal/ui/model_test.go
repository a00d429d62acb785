// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling and rendering helpers
package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamclouday/androidmic-host/internal/metrics"
	"github.com/teamclouday/androidmic-host/internal/pipeline"
	"github.com/teamclouday/androidmic-host/internal/transport"
)

func newTestModel(ctrl *Controls) Model {
	return NewModel(ctrl, ConfigMsg{Transport: "tcp", Format: "i16 48000Hz 1ch"})
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel(t *testing.T) {
	model := newTestModel(nil)

	assert.Equal(t, "idle", model.state)
	assert.Equal(t, "tcp", model.transport)
	assert.False(t, model.denoise)
}

func TestStatusTransitions(t *testing.T) {
	model := newTestModel(nil)

	model.applyStatus(*transport.Listening(55555))
	assert.Equal(t, "listening", model.state)
	assert.Equal(t, uint16(55555), model.port)

	model.applyStatus(*transport.Connected())
	assert.Equal(t, "connected", model.state)

	model.applyStatus(transport.Status{Kind: transport.StatusError, Message: "disconnected"})
	assert.Equal(t, "error", model.state)
	assert.Equal(t, "disconnected", model.lastError)
}

func TestPreviewSample(t *testing.T) {
	model := newTestModel(nil)
	model.applyStatus(*transport.Connected())

	mono := []float32{0, 0.5, -1, 0.25}
	model.applyStatus(*transport.PreviewSample(pipeline.PreviewBytes(mono)))
	require.NotEmpty(t, model.preview)

	model.width = 80
	assert.Contains(t, model.View(), "█")
}

func TestStatsMsg(t *testing.T) {
	model := newTestModel(nil)

	updated, _ := model.Update(StatsMsg{Snapshot: metrics.Snapshot{Packets: 10, BytesMoved: 2048, BytesLost: 12}, Underruns: 3})
	m := updated.(Model)
	m.width = 80

	view := m.View()
	assert.Contains(t, view, "Packets: 10")
	assert.Contains(t, view, "2.0KiB")
	assert.Contains(t, view, "Lost: 12B")
	assert.Contains(t, view, "Underruns: 3")
}

func TestKeysSendActions(t *testing.T) {
	ctrl := NewControls()
	model := newTestModel(ctrl)

	updated, _ := model.Update(key("t"))
	model = updated.(Model)
	assert.Equal(t, "udp", model.transport)

	updated, _ = model.Update(key("c"))
	model = updated.(Model)
	assert.Equal(t, Action{Kind: ActionConnect, Transport: "udp"}, <-ctrl.Actions)

	updated, _ = model.Update(key("n"))
	model = updated.(Model)
	assert.True(t, model.denoise)
	assert.Equal(t, Action{Kind: ActionSetDenoise, Denoise: true}, <-ctrl.Actions)

	_, _ = model.Update(key("f"))
	assert.Equal(t, ActionCycleFormat, (<-ctrl.Actions).Kind)

	_, _ = model.Update(key("s"))
	assert.Equal(t, ActionStop, (<-ctrl.Actions).Kind)

	_, cmd := model.Update(key("q"))
	assert.Equal(t, ActionQuit, (<-ctrl.Actions).Kind)
	require.NotNil(t, cmd)
}

func TestTransportLockedWhileActive(t *testing.T) {
	model := newTestModel(nil)
	model.applyStatus(*transport.Connected())

	updated, _ := model.Update(key("t"))
	assert.Equal(t, "tcp", updated.(Model).transport)
}

func TestStopClearsState(t *testing.T) {
	model := newTestModel(nil)
	model.applyStatus(*transport.Connected())
	model.applyConfig(ConfigMsg{Stopped: true})
	assert.Equal(t, "idle", model.state)
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "▁█▁█", sparkline([]float32{0, 1, 0, -2}))
}

func TestNextTransport(t *testing.T) {
	assert.Equal(t, "udp", nextTransport("tcp"))
	assert.Equal(t, "tcp", nextTransport("usb"))
	assert.Equal(t, "tcp", nextTransport("bogus"))
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"this is longer than allowed", 10, "this is..."},
		{"", 10, ""},
		{"abcde", 4, "a..."},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, truncate(tt.input, tt.maxLen))
	}
}
