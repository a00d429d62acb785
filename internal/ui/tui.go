// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channel back to the app
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// ActionKind is a user request from the TUI
type ActionKind int

const (
	ActionConnect ActionKind = iota
	ActionStop
	ActionSetDenoise
	ActionCycleFormat
	ActionSetOutput
	ActionQuit
)

// Action is sent to the app when a key is pressed
type Action struct {
	Kind      ActionKind
	Transport string
	Denoise   bool

	// Output changes for ActionSetOutput; zero values keep the current setting
	Format     string
	Channels   int
	SampleRate int
	Device     string
}

// Controls holds the channel for user actions
type Controls struct {
	Actions chan Action
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Actions: make(chan Action, 10),
	}
}

// send never blocks the UI loop; a full channel drops the action
func (c *Controls) send(a Action) {
	if c == nil {
		return
	}
	select {
	case c.Actions <- a:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Controls, initial ConfigMsg) Model {
	m := Model{
		state:    "idle",
		controls: ctrl,
	}
	m.applyConfig(initial)
	return m
}

// Run creates the TUI program
func Run(ctrl *Controls, initial ConfigMsg) *tea.Program {
	return tea.NewProgram(NewModel(ctrl, initial), tea.WithAltScreen())
}
