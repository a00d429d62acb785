// ABOUTME: Driver interface and constructor for every transport variant
// ABOUTME: Begin starts a driver for a Choice with shared dependencies
package transport

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/internal/adb"
	"github.com/teamclouday/androidmic-host/internal/metrics"
	"github.com/teamclouday/androidmic-host/internal/pipeline"
)

const (
	// MaxWaitTime bounds one Poll step
	MaxWaitTime = 1500 * time.Millisecond
	// IOBufferSize is the size of a single stream read
	IOBufferSize = 1024
	// DisconnectLoopThreshold is the number of consecutive empty reads that
	// counts as a dead connection
	DisconnectLoopThreshold = 1000
)

// Driver is one transport variant. Poll is called from a single goroutine;
// Reconfigure, RequestSample and Close may be called concurrently with it.
type Driver interface {
	Kind() Kind

	// Poll performs one bounded receive step. It returns a status to
	// report, or nil when nothing changed. An *pipeline.OverflowError may
	// accompany a non-nil status; any other error is fatal to the driver.
	Poll(ctx context.Context) (*Status, error)

	// Reconfigure replaces the stream config used for later packets
	Reconfigure(cfg pipeline.StreamConfig)

	// Status returns the current state as a status
	Status() *Status

	// RequestSample asks for a PreviewSample on the next decoded packet
	RequestSample()

	// Close releases sockets and tunnels
	Close() error
}

// Deps are the collaborators drivers share
type Deps struct {
	Logger   *zap.Logger
	Pipeline *pipeline.Pipeline
	Bridge   *adb.Bridge
	Stats    *metrics.Stats
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Pipeline == nil {
		d.Pipeline = pipeline.New(d.Logger)
	}
	if d.Bridge == nil {
		d.Bridge = adb.NewBridge("adb", nil, d.Logger)
	}
	return d
}

// Begin starts the driver for choice
func Begin(ctx context.Context, choice Choice, cfg pipeline.StreamConfig, deps Deps) (Driver, error) {
	deps = deps.withDefaults()

	switch choice.Kind {
	case KindIdle:
		return NewIdle(), nil
	case KindTCP:
		return ListenTCP(choice.IP, cfg, deps)
	case KindUDP:
		return ListenUDP(choice.IP, cfg, deps)
	case KindADB, KindUSB:
		return StartADB(ctx, choice.Kind, cfg, deps)
	default:
		return nil, fmt.Errorf("unsupported transport: %s", choice.Kind)
	}
}
