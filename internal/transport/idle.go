// ABOUTME: Driver used when nothing is connected
// ABOUTME: Poll blocks until its context ends and never reports anything
package transport

import (
	"context"

	"github.com/teamclouday/androidmic-host/internal/pipeline"
)

// Idle is the placeholder driver
type Idle struct{}

// NewIdle creates an idle driver
func NewIdle() *Idle {
	return &Idle{}
}

func (*Idle) Kind() Kind { return KindIdle }

// Poll waits for ctx to end
func (*Idle) Poll(ctx context.Context) (*Status, error) {
	<-ctx.Done()
	return nil, nil
}

func (*Idle) Reconfigure(pipeline.StreamConfig) {}
func (*Idle) Status() *Status                   { return nil }
func (*Idle) RequestSample()                    {}
func (*Idle) Close() error                      { return nil }
