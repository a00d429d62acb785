// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for playback backends fed from the shared queue
package output

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/pkg/audio"
	"github.com/teamclouday/androidmic-host/pkg/audio/queue"
)

// Backend names accepted by New
const (
	BackendMalgo     = "malgo"
	BackendOto       = "oto"
	BackendPortAudio = "portaudio"
)

// ErrUnsupportedFormat is returned when a backend cannot play a sample format
var ErrUnsupportedFormat = errors.New("sample format not supported by backend")

// Output represents an audio output device. Once opened, the device pulls
// bytes from source on its own thread until Close.
type Output interface {
	// Open starts playback of format from source
	Open(format audio.Format, source *queue.Consumer) error

	// Close stops playback and releases the device
	Close() error
}

// New returns the named backend. device selects a playback device by name;
// empty uses the system default.
func New(backend, device string, logger *zap.Logger) (Output, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("output")

	switch backend {
	case BackendMalgo, "":
		return NewMalgo(device, logger), nil
	case BackendOto:
		return NewOto(logger), nil
	case BackendPortAudio:
		return NewPortAudio(device, logger), nil
	default:
		return nil, fmt.Errorf("unknown output backend: %q", backend)
	}
}

// pull fills out with whole frames from src and pads with silence.
// It reports whether the queue ran short.
func pull(src *queue.Consumer, out []byte, frameSize int, silence byte) bool {
	return src.ReadFrames(out, frameSize, silence) < len(out)
}
