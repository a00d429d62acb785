// ABOUTME: Commands accepted by the stream supervisor
// ABOUTME: Connect, Reconfigure, Stop and GetSample
package supervisor

import (
	"github.com/teamclouday/androidmic-host/internal/pipeline"
	"github.com/teamclouday/androidmic-host/internal/transport"
)

// CommandKind tags a Command
type CommandKind int

const (
	CommandConnect CommandKind = iota
	CommandReconfigure
	CommandStop
	CommandGetSample
)

func (k CommandKind) String() string {
	switch k {
	case CommandConnect:
		return "connect"
	case CommandReconfigure:
		return "reconfigure"
	case CommandStop:
		return "stop"
	case CommandGetSample:
		return "get_sample"
	default:
		return "unknown"
	}
}

// Command is sent by the UI to the supervisor
type Command struct {
	Kind   CommandKind
	Choice transport.Choice
	Config pipeline.StreamConfig
}

// Connect replaces the active driver with a new one for choice
func Connect(choice transport.Choice, cfg pipeline.StreamConfig) Command {
	return Command{Kind: CommandConnect, Choice: choice, Config: cfg}
}

// Reconfigure swaps the stream config of the active driver
func Reconfigure(cfg pipeline.StreamConfig) Command {
	return Command{Kind: CommandReconfigure, Config: cfg}
}

// Stop replaces the active driver with the idle one
func Stop() Command {
	return Command{Kind: CommandStop}
}

// GetSample requests one preview sample
func GetSample() Command {
	return Command{Kind: CommandGetSample}
}
