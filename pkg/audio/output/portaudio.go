//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform audio output using PortAudio with typed callbacks
package output

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/pkg/audio"
	"github.com/teamclouday/androidmic-host/pkg/audio/queue"
)

// framesPerBuffer fixes the callback size so scratch space is allocated once
const framesPerBuffer = 480

// PortAudio output implementation
type PortAudio struct {
	logger     *zap.Logger
	deviceName string
	stream     *portaudio.Stream
	scratch    []byte
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(deviceName string, logger *zap.Logger) *PortAudio {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortAudio{logger: logger, deviceName: deviceName}
}

// Open initializes PortAudio
func (p *PortAudio) Open(format audio.Format, source *queue.Consumer) error {
	if p.stream != nil {
		if err := p.Close(); err != nil {
			return err
		}
	}

	frameSize := format.FrameSize()
	p.scratch = make([]byte, framesPerBuffer*frameSize)

	cb, err := p.callback(format.SampleFormat, source, frameSize)
	if err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	stream, err := p.openStream(format, cb)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	p.stream = stream
	p.logger.Info("audio output initialized", zap.Stringer("format", format), zap.String("backend", "portaudio"))
	return nil
}

func (p *PortAudio) openStream(format audio.Format, cb interface{}) (*portaudio.Stream, error) {
	if p.deviceName == "" {
		return portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), framesPerBuffer, cb)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == p.deviceName && dev.MaxOutputChannels > 0 {
			params := portaudio.LowLatencyParameters(nil, dev)
			params.Output.Channels = format.Channels
			params.SampleRate = float64(format.SampleRate)
			params.FramesPerBuffer = framesPerBuffer
			return portaudio.OpenStream(params, cb)
		}
	}
	return nil, fmt.Errorf("playback device not found: %q", p.deviceName)
}

// callback builds a typed callback that decodes queue bytes into the
// buffer PortAudio hands us
func (p *PortAudio) callback(f audio.SampleFormat, src *queue.Consumer, frameSize int) (interface{}, error) {
	switch f {
	case audio.U8:
		return func(out []uint8) {
			pull(src, out, frameSize, 0x80)
		}, nil
	case audio.I16:
		return func(out []int16) {
			buf := p.bytes(len(out) * 2)
			pull(src, buf, frameSize, 0)
			for i := range out {
				out[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
			}
		}, nil
	case audio.I32:
		return func(out []int32) {
			buf := p.bytes(len(out) * 4)
			pull(src, buf, frameSize, 0)
			for i := range out {
				out[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
			}
		}, nil
	case audio.F32:
		return func(out []float32) {
			buf := p.bytes(len(out) * 4)
			pull(src, buf, frameSize, 0)
			for i := range out {
				out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
			}
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
}

func (p *PortAudio) bytes(n int) []byte {
	if n > len(p.scratch) {
		p.scratch = make([]byte, n)
	}
	return p.scratch[:n]
}

// Close releases resources
func (p *PortAudio) Close() error {
	if p.stream == nil {
		return nil
	}
	if err := p.stream.Stop(); err != nil {
		p.logger.Warn("portaudio stop error", zap.Error(err))
	}
	if err := p.stream.Close(); err != nil {
		p.logger.Warn("portaudio close error", zap.Error(err))
	}
	p.stream = nil
	return portaudio.Terminate()
}
