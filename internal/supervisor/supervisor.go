// ABOUTME: Owns the active transport driver and runs its receive loop
// ABOUTME: Selects between UI commands and the single in-flight Poll
package supervisor

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/internal/metrics"
	"github.com/teamclouday/androidmic-host/internal/pipeline"
	"github.com/teamclouday/androidmic-host/internal/transport"
)

// BeginFunc starts a driver
type BeginFunc func(ctx context.Context, choice transport.Choice, cfg pipeline.StreamConfig, deps transport.Deps) (transport.Driver, error)

// Config holds supervisor settings
type Config struct {
	Deps transport.Deps
	// Begin defaults to transport.Begin
	Begin BeginFunc
	// StatusBuffer is the capacity of the status channel
	StatusBuffer int
}

// Supervisor drives one transport at a time
type Supervisor struct {
	logger   *zap.Logger
	deps     transport.Deps
	begin    BeginFunc
	stats    *metrics.Stats
	commands chan Command
	statuses chan transport.Status

	driver transport.Driver
}

type pollResult struct {
	status *transport.Status
	err    error
}

// New creates a supervisor with an idle driver
func New(config Config) *Supervisor {
	deps := config.Deps
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Pipeline == nil {
		deps.Pipeline = pipeline.New(deps.Logger)
	}
	begin := config.Begin
	if begin == nil {
		begin = transport.Begin
	}
	buffer := config.StatusBuffer
	if buffer <= 0 {
		buffer = 16
	}

	return &Supervisor{
		logger:   deps.Logger.Named("supervisor"),
		deps:     deps,
		begin:    begin,
		stats:    deps.Stats,
		commands: make(chan Command, 100),
		statuses: make(chan transport.Status, buffer),
		driver:   transport.NewIdle(),
	}
}

// Send queues a command
func (s *Supervisor) Send(ctx context.Context, cmd Command) error {
	select {
	case s.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Statuses returns the status stream. It is closed when Run returns.
func (s *Supervisor) Statuses() <-chan transport.Status {
	return s.statuses
}

// Run processes commands and driver events until ctx ends
func (s *Supervisor) Run(ctx context.Context) error {
	defer close(s.statuses)

	for {
		pollCtx, cancel := context.WithCancel(ctx)
		results := make(chan pollResult, 1)
		driver := s.driver

		go func() {
			st, err := driver.Poll(pollCtx)
			results <- pollResult{status: st, err: err}
		}()

		if done := s.wait(ctx, cancel, results); done {
			return nil
		}
	}
}

// wait handles events until the in-flight poll has finished. It reports
// whether ctx ended.
func (s *Supervisor) wait(ctx context.Context, cancel context.CancelFunc, results chan pollResult) bool {
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			s.teardown(cancel, results)
			s.driver = transport.NewIdle()
			return true

		case cmd := <-s.commands:
			switch cmd.Kind {
			case CommandReconfigure:
				s.driver.Reconfigure(cmd.Config)
			case CommandGetSample:
				s.driver.RequestSample()
			case CommandStop:
				s.logger.Info("stopping stream", zap.Stringer("transport", s.driver.Kind()))
				s.teardown(cancel, results)
				s.driver = transport.NewIdle()
				s.stats.SetConnected(false)
				return false
			case CommandConnect:
				s.teardown(cancel, results)
				s.driver = transport.NewIdle()
				s.stats.SetConnected(false)
				s.connect(ctx, cmd)
				return false
			}

		case res := <-results:
			s.handle(ctx, res)
			return false
		}
	}
}

// teardown stops the in-flight poll and closes the active driver. The
// poll result is discarded.
func (s *Supervisor) teardown(cancel context.CancelFunc, results chan pollResult) {
	cancel()
	if err := s.driver.Close(); err != nil {
		s.logger.Debug("closing driver", zap.Error(err))
	}
	<-results
}

func (s *Supervisor) connect(ctx context.Context, cmd Command) {
	attempt := uuid.NewString()
	log := s.logger.With(zap.String("attempt", attempt), zap.Stringer("choice", cmd.Choice))
	log.Info("connecting")

	s.deps.Pipeline.Reset()

	driver, err := s.begin(ctx, cmd.Choice, cmd.Config, s.deps)
	if err != nil {
		log.Error("connect failed", zap.Error(err))
		s.stats.ConnectAttempt(cmd.Choice.Kind.String(), false)
		s.emit(ctx, *transport.Failed(err))
		return
	}

	s.stats.ConnectAttempt(cmd.Choice.Kind.String(), true)
	s.driver = driver
	if st := driver.Status(); st != nil {
		s.emit(ctx, *st)
	}
}

func (s *Supervisor) handle(ctx context.Context, res pollResult) {
	if res.err != nil {
		var overflow *pipeline.OverflowError
		if errors.As(res.err, &overflow) {
			s.logger.Warn("buffer overfilled",
				zap.Int("moved", overflow.Written),
				zap.Int("lost", overflow.Lost))
		} else {
			s.logger.Error("stream failed",
				zap.Stringer("transport", s.driver.Kind()),
				zap.Error(res.err))
			if err := s.driver.Close(); err != nil {
				s.logger.Debug("closing driver", zap.Error(err))
			}
			s.driver = transport.NewIdle()
			s.stats.StreamError()
			s.stats.SetConnected(false)
			s.emit(ctx, *transport.Failed(res.err))
			return
		}
	}

	if res.status != nil {
		if res.status.Kind == transport.StatusConnected {
			s.stats.SetConnected(true)
		}
		s.emit(ctx, *res.status)
	}
}

func (s *Supervisor) emit(ctx context.Context, st transport.Status) {
	select {
	case s.statuses <- st:
	case <-ctx.Done():
	}
}
