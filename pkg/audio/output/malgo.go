// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Plays queued PCM through miniaudio in any wire sample format
package output

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/pkg/audio"
	"github.com/teamclouday/androidmic-host/pkg/audio/queue"
)

// Device is a playback device reported by the system
type Device struct {
	Name    string
	Default bool
}

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	logger     *zap.Logger
	deviceName string

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	format   audio.Format
	source   *queue.Consumer

	underruns atomic.Uint64
}

// NewMalgo creates a new Malgo output
func NewMalgo(deviceName string, logger *zap.Logger) *Malgo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Malgo{
		logger:     logger,
		deviceName: deviceName,
	}
}

// Open initializes the output device with specified format
func (m *Malgo) Open(format audio.Format, source *queue.Consumer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If already initialized with same format and source, reuse
	if m.device != nil && m.format == format && m.source == source {
		m.logger.Debug("audio output already initialized with same format, reusing device")
		return nil
	}

	if m.device != nil {
		m.logger.Info("format change detected, reinitializing device",
			zap.Stringer("from", m.format),
			zap.Stringer("to", format))
		m.closeDevice()
	}

	malgoFormat, err := malgoFormat(format.SampleFormat)
	if err != nil {
		return err
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgoFormat
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if m.deviceName != "" {
		info, err := m.findDevice(m.deviceName)
		if err != nil {
			return err
		}
		deviceConfig.Playback.DeviceID = info.ID.Pointer()
	}

	// The callback runs on the audio thread and must not block or allocate
	frameSize := format.FrameSize()
	silence := format.SampleFormat.Silence()
	onSamples := func(pOutput, _ []byte, _ uint32) {
		if pull(source, pOutput, frameSize, silence) {
			m.underruns.Add(1)
		}
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.format = format
	m.source = source

	m.logger.Info("audio output initialized",
		zap.Stringer("format", format),
		zap.String("backend", "malgo/"+formatName(malgoFormat)))

	return nil
}

// Underruns returns how many callbacks found the queue short
func (m *Malgo) Underruns() uint64 {
	return m.underruns.Load()
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			m.logger.Warn("malgo context uninit error", zap.Error(err))
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device == nil {
		return
	}
	if err := m.device.Stop(); err != nil {
		m.logger.Warn("device stop error", zap.Error(err))
	}
	m.device.Uninit()
	m.device = nil
	m.source = nil
}

func (m *Malgo) findDevice(name string) (malgo.DeviceInfo, error) {
	devices, err := m.malgoCtx.Devices(malgo.Playback)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("list playback devices: %w", err)
	}
	for _, dev := range devices {
		if dev.Name() == name {
			return dev, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("playback device not found: %q", name)
}

// ListDevices lists the playback devices miniaudio can open
func ListDevices(logger *zap.Logger) ([]Device, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
	}()

	devices, err := malgoCtx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("list playback devices: %w", err)
	}

	res := make([]Device, 0, len(devices))
	seen := make(map[string]struct{}, len(devices))
	for _, dev := range devices {
		full, err := malgoCtx.DeviceInfo(malgo.Playback, dev.ID, malgo.Shared)
		if err != nil {
			logger.Warn("unable to get audio device info", zap.Error(err))
			continue
		}
		name := full.Name()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		res = append(res, Device{Name: name, Default: full.IsDefault == 1})
	}
	return res, nil
}

func malgoFormat(f audio.SampleFormat) (malgo.FormatType, error) {
	switch f {
	case audio.U8:
		return malgo.FormatU8, nil
	case audio.I16:
		return malgo.FormatS16, nil
	case audio.I24:
		return malgo.FormatS24, nil
	case audio.I32:
		return malgo.FormatS32, nil
	case audio.F32:
		return malgo.FormatF32, nil
	}
	return malgo.FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatU8:
		return "U8"
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	case malgo.FormatF32:
		return "F32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
