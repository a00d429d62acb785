// ABOUTME: Packet handling shared by the TCP and UDP drivers
// ABOUTME: Holds the swappable stream config and the pending preview request
package transport

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/internal/metrics"
	"github.com/teamclouday/androidmic-host/internal/pipeline"
	"github.com/teamclouday/androidmic-host/pkg/protocol"
)

type stream struct {
	kind     Kind
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	stats    *metrics.Stats

	config       atomic.Pointer[pipeline.StreamConfig]
	sampleWanted atomic.Bool
}

func (s *stream) init(kind Kind, cfg pipeline.StreamConfig, deps Deps) {
	s.kind = kind
	s.logger = deps.Logger.With(zap.String("transport", kind.String()))
	s.pipeline = deps.Pipeline
	s.stats = deps.Stats
	s.config.Store(&cfg)
}

func (s *stream) Kind() Kind {
	return s.kind
}

func (s *stream) Reconfigure(cfg pipeline.StreamConfig) {
	s.config.Store(&cfg)
}

func (s *stream) RequestSample() {
	s.sampleWanted.Store(true)
}

// batch collects the outcome of the packets handled in one Poll
type batch struct {
	status  *Status
	written int
	lost    int
}

func (b *batch) err() error {
	if b.lost > 0 {
		return &pipeline.OverflowError{Written: b.written, Lost: b.lost}
	}
	return nil
}

// handle runs one packet through the pipeline. Overflow is accumulated in
// b; other errors are returned.
func (s *stream) handle(pkt protocol.AudioPacket, b *batch, allowSample bool) error {
	res, err := s.pipeline.Process(pkt, *s.config.Load())
	s.stats.PacketReceived(s.kind.String())
	s.stats.BytesEnqueued(res.Written, res.Lost)

	var overflow *pipeline.OverflowError
	if err != nil && !errors.As(err, &overflow) {
		return err
	}
	b.written += res.Written
	b.lost += res.Lost

	if allowSample && s.sampleWanted.CompareAndSwap(true, false) {
		b.status = PreviewSample(pipeline.PreviewBytes(res.Mono))
	}
	return nil
}
