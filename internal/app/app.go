// ABOUTME: Host application orchestration
// ABOUTME: Wires queue, output, supervisor, discovery, status feed and TUI
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teamclouday/androidmic-host/internal/adb"
	"github.com/teamclouday/androidmic-host/internal/config"
	"github.com/teamclouday/androidmic-host/internal/discovery"
	"github.com/teamclouday/androidmic-host/internal/metrics"
	"github.com/teamclouday/androidmic-host/internal/pipeline"
	"github.com/teamclouday/androidmic-host/internal/statusfeed"
	"github.com/teamclouday/androidmic-host/internal/supervisor"
	"github.com/teamclouday/androidmic-host/internal/transport"
	"github.com/teamclouday/androidmic-host/internal/ui"
	"github.com/teamclouday/androidmic-host/pkg/audio"
	"github.com/teamclouday/androidmic-host/pkg/audio/output"
	"github.com/teamclouday/androidmic-host/pkg/audio/queue"
)

// Options overrides collaborators, mainly for tests
type Options struct {
	// Output is used for every device instead of the configured backend
	Output output.Output
	// Begin defaults to transport.Begin
	Begin supervisor.BeginFunc
}

// App represents the host application
type App struct {
	cfg    config.Config
	logger *zap.Logger
	stats  *metrics.Stats

	format    audio.Format
	consumer  *queue.Consumer
	output    output.Output
	device    string
	newOutput func(device string) (output.Output, error)

	super     *supervisor.Supervisor
	feed      *statusfeed.Feed
	discovery *discovery.Manager
	controls  *ui.Controls
	tuiProg   *tea.Program

	// owned by the event loop
	choice    transport.Choice
	stream    pipeline.StreamConfig
	wanted    bool
	connected bool
	reconnect <-chan time.Time
}

// New creates the application from cfg
func New(cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	choice, err := cfg.Choice()
	if err != nil {
		return nil, err
	}
	format, err := cfg.TargetFormat()
	if err != nil {
		return nil, err
	}

	newOutput := func(device string) (output.Output, error) {
		return output.New(cfg.Output.Backend, device, logger)
	}
	if opts.Output != nil {
		newOutput = func(string) (output.Output, error) { return opts.Output, nil }
	}

	out, err := newOutput(cfg.Output.Device)
	if err != nil {
		return nil, err
	}

	stats := metrics.New()
	producer, consumer := queue.New(cfg.Output.BufferBytes)

	a := &App{
		cfg:      cfg,
		logger:   logger,
		stats:    stats,
		format:    format,
		consumer:  consumer,
		output:    out,
		device:    cfg.Output.Device,
		newOutput: newOutput,
		choice:    choice,
		stream: pipeline.StreamConfig{
			Target:  format,
			Denoise: cfg.Audio.Denoise,
			Sink:    producer,
		},
	}

	a.super = supervisor.New(supervisor.Config{
		Deps: transport.Deps{
			Logger:   logger,
			Pipeline: pipeline.New(logger),
			Bridge:   adb.NewBridge(cfg.ADB.Path, adb.ExecRunner{}, logger),
			Stats:    stats,
		},
		Begin: opts.Begin,
	})

	if cfg.Status.Addr != "" {
		a.feed = statusfeed.New(statusfeed.Config{
			Addr:    cfg.Status.Addr,
			Metrics: stats.Handler(),
			Logger:  logger,
		})
	}

	if cfg.MDNS.Enabled {
		a.discovery = discovery.NewManager(discovery.Config{
			InstanceName: instanceName(cfg.MDNS.Name),
			ID:           uuid.New().String(),
		}, logger)
	}

	a.controls = ui.NewControls()
	if cfg.UI.Enabled {
		a.tuiProg = ui.Run(a.controls, ui.ConfigMsg{
			Transport: choice.Kind.String(),
			Format:    format.String(),
			Denoise:   cfg.Audio.Denoise,
		})
	}

	return a, nil
}

// Stats returns the application counters
func (a *App) Stats() *metrics.Stats {
	return a.stats
}

// Run plays audio until ctx ends or the user quits
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.output.Open(a.format, a.consumer); err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}
	// the loop may swap the output, so close whichever is current
	defer func() { _ = a.output.Close() }()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.super.Run(gctx)
	})

	if a.feed != nil {
		g.Go(func() error {
			return a.feed.Run(gctx)
		})
	}

	if a.tuiProg != nil {
		g.Go(func() error {
			_, err := a.tuiProg.Run()
			cancel()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("tui: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			a.tuiProg.Quit()
			return nil
		})
	}

	g.Go(func() error {
		return a.loop(gctx)
	})

	a.logger.Info("androidmic host started",
		zap.Stringer("transport", a.choice),
		zap.Stringer("format", a.format))

	return g.Wait()
}

func (a *App) loop(ctx context.Context) error {
	defer a.withdraw()

	preview := time.NewTicker(a.previewInterval())
	defer preview.Stop()
	statsTicker := time.NewTicker(time.Second)
	defer statsTicker.Stop()

	actions := a.controls.Actions
	var requests <-chan statusfeed.Request
	if a.feed != nil {
		requests = a.feed.Requests()
	}

	if a.cfg.AutoConnect {
		a.connect(ctx, a.choice)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case st, ok := <-a.super.Statuses():
			if !ok {
				return nil
			}
			a.onStatus(st)

		case act := <-actions:
			a.onAction(ctx, act)

		case req := <-requests:
			a.onRequest(ctx, req)

		case <-a.reconnect:
			a.reconnect = nil
			if a.wanted {
				a.logger.Info("reconnecting", zap.Stringer("transport", a.choice))
				a.connect(ctx, a.choice)
			}

		case <-preview.C:
			if a.connected && (a.tuiProg != nil || a.feed != nil) {
				a.send(ctx, supervisor.GetSample())
			}

		case <-statsTicker.C:
			a.updateTUI(ui.StatsMsg{Snapshot: a.stats.Snapshot(), Underruns: a.underruns()})
		}
	}
}

func (a *App) onStatus(st transport.Status) {
	switch st.Kind {
	case transport.StatusListening:
		a.connected = false
		a.advertise(st.Port)
	case transport.StatusConnected:
		a.connected = true
		a.withdraw()
	case transport.StatusError:
		a.connected = false
		a.withdraw()
		if a.wanted && a.cfg.AutoReconnect {
			a.logger.Info("scheduling reconnect", zap.Duration("delay", a.cfg.ReconnectDelay))
			a.reconnect = time.After(a.cfg.ReconnectDelay)
		}
	}

	a.updateTUI(ui.StatusMsg{Status: st})
	if a.feed != nil {
		a.feed.Publish(st)
	}
}

func (a *App) onAction(ctx context.Context, act ui.Action) {
	switch act.Kind {
	case ui.ActionConnect:
		choice := a.choice
		if act.Transport != "" {
			kind, err := transport.ParseKind(act.Transport)
			if err != nil {
				a.logger.Warn("ignoring connect", zap.Error(err))
				return
			}
			choice.Kind = kind
		}
		a.connect(ctx, choice)
	case ui.ActionStop:
		a.stop(ctx)
	case ui.ActionSetDenoise:
		a.setDenoise(ctx, act.Denoise)
	case ui.ActionCycleFormat:
		a.setOutput(ctx, ui.Action{Format: nextSampleFormat(a.format.SampleFormat).String()})
	case ui.ActionSetOutput:
		a.setOutput(ctx, act)
	}
}

func (a *App) onRequest(ctx context.Context, req statusfeed.Request) {
	a.logger.Info("remote request",
		zap.String("client", req.ClientID),
		zap.String("command", req.Command))

	switch req.Command {
	case "connect":
		a.onAction(ctx, ui.Action{Kind: ui.ActionConnect, Transport: req.Transport})
	case "stop":
		a.stop(ctx)
	case "denoise_on":
		a.setDenoise(ctx, true)
	case "denoise_off":
		a.setDenoise(ctx, false)
	case "output":
		a.setOutput(ctx, ui.Action{
			Format:     req.Format,
			Channels:   req.Channels,
			SampleRate: req.SampleRate,
			Device:     req.Device,
		})
	default:
		a.logger.Warn("unknown remote command", zap.String("command", req.Command))
		return
	}

	a.updateTUI(a.configMsg(req.Command == "stop"))
}

func (a *App) connect(ctx context.Context, choice transport.Choice) {
	a.choice = choice
	a.wanted = true
	a.reconnect = nil
	a.send(ctx, supervisor.Connect(choice, a.stream))
}

func (a *App) stop(ctx context.Context) {
	a.wanted = false
	a.connected = false
	a.reconnect = nil
	a.withdraw()
	a.send(ctx, supervisor.Stop())
	a.updateTUI(a.configMsg(true))
}

func (a *App) setDenoise(ctx context.Context, on bool) {
	a.stream.Denoise = on
	a.send(ctx, supervisor.Reconfigure(a.stream))
}

// setOutput changes the playback format or device. The output is reopened
// on a fresh queue and the pipeline is pointed at the new producer.
func (a *App) setOutput(ctx context.Context, act ui.Action) {
	cfg := a.cfg
	if act.Format != "" {
		cfg.Audio.Format = act.Format
	}
	if act.Channels > 0 {
		cfg.Audio.Channels = act.Channels
	}
	if act.SampleRate > 0 {
		cfg.Audio.SampleRate = act.SampleRate
	}
	switch act.Device {
	case "":
	case "default":
		cfg.Output.Device = ""
	default:
		cfg.Output.Device = act.Device
	}

	if err := cfg.Validate(); err != nil {
		a.logger.Warn("ignoring output change", zap.Error(err))
		return
	}
	format, err := cfg.TargetFormat()
	if err != nil {
		a.logger.Warn("ignoring output change", zap.Error(err))
		return
	}

	if err := a.reopen(ctx, cfg, format); err != nil {
		a.logger.Error("failed to reopen audio output", zap.Stringer("format", format), zap.Error(err))
		if err := a.reopen(ctx, a.cfg, a.format); err != nil {
			a.logger.Error("failed to restore audio output", zap.Error(err))
		}
		return
	}

	a.cfg = cfg
	a.logger.Info("audio output changed",
		zap.Stringer("format", format),
		zap.String("device", cfg.Output.Device),
		zap.Int("buffer_bytes", a.stream.Sink.Capacity()))
	a.updateTUI(a.configMsg(false))
}

func (a *App) reopen(ctx context.Context, cfg config.Config, format audio.Format) error {
	if err := a.output.Close(); err != nil {
		a.logger.Warn("audio output close error", zap.Error(err))
	}

	if cfg.Output.Device != a.device {
		out, err := a.newOutput(cfg.Output.Device)
		if err != nil {
			return err
		}
		a.output = out
		a.device = cfg.Output.Device
	}

	producer, consumer := queue.New(cfg.Output.BufferBytes)
	if err := a.output.Open(format, consumer); err != nil {
		return err
	}

	a.format = format
	a.consumer = consumer
	a.stream.Target = format
	a.stream.Sink = producer
	a.send(ctx, supervisor.Reconfigure(a.stream))
	return nil
}

func (a *App) send(ctx context.Context, cmd supervisor.Command) {
	if err := a.super.Send(ctx, cmd); err != nil && ctx.Err() == nil {
		a.logger.Warn("failed to send command", zap.Stringer("command", cmd.Kind), zap.Error(err))
	}
}

func (a *App) advertise(port uint16) {
	if a.discovery == nil {
		return
	}
	service := serviceFor(a.choice.Kind)
	if service == "" {
		return
	}
	if err := a.discovery.Advertise(service, int(port)); err != nil {
		a.logger.Warn("mdns advertise failed", zap.Error(err))
	}
}

func (a *App) withdraw() {
	if a.discovery != nil {
		a.discovery.Withdraw()
	}
}

func (a *App) updateTUI(msg tea.Msg) {
	if a.tuiProg != nil {
		a.tuiProg.Send(msg)
	}
}

func (a *App) configMsg(stopped bool) ui.ConfigMsg {
	return ui.ConfigMsg{
		Transport: a.choice.Kind.String(),
		Format:    a.format.String(),
		Denoise:   a.stream.Denoise,
		Stopped:   stopped,
	}
}

func (a *App) underruns() uint64 {
	if m, ok := a.output.(interface{ Underruns() uint64 }); ok {
		return m.Underruns()
	}
	return 0
}

func (a *App) previewInterval() time.Duration {
	if a.cfg.UI.PreviewInterval <= 0 {
		return 100 * time.Millisecond
	}
	return a.cfg.UI.PreviewInterval
}

var formatCycle = []audio.SampleFormat{audio.I16, audio.I24, audio.I32, audio.F32, audio.U8}

func nextSampleFormat(f audio.SampleFormat) audio.SampleFormat {
	for i, c := range formatCycle {
		if c == f {
			return formatCycle[(i+1)%len(formatCycle)]
		}
	}
	return formatCycle[0]
}

// serviceFor returns the mDNS service for transports the phone reaches over the LAN
func serviceFor(kind transport.Kind) string {
	switch kind {
	case transport.KindTCP:
		return discovery.ServiceTCP
	case transport.KindUDP:
		return discovery.ServiceUDP
	}
	return ""
}

func instanceName(name string) string {
	if name != "" {
		return name
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return hostname + "-androidmic"
}
