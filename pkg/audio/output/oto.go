// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams queued PCM into a persistent oto player
package output

import (
	"fmt"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/pkg/audio"
	"github.com/teamclouday/androidmic-host/pkg/audio/queue"
)

// Oto output implementation using oto library
type Oto struct {
	logger *zap.Logger
	otoCtx *oto.Context
	player *oto.Player
	format audio.Format
}

// NewOto creates a new Oto output
func NewOto(logger *zap.Logger) *Oto {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oto{logger: logger}
}

// Open initializes the output device
func (o *Oto) Open(format audio.Format, source *queue.Consumer) error {
	otoFormat, err := otoFormat(format.SampleFormat)
	if err != nil {
		return err
	}

	// oto allows one context per process, so the format is fixed once chosen
	if o.otoCtx != nil && o.format != format {
		return fmt.Errorf("oto cannot switch format from %s to %s without a restart", o.format, format)
	}

	if o.otoCtx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       otoFormat,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return fmt.Errorf("failed to create oto context: %w", err)
		}
		<-readyChan

		o.otoCtx = ctx
		o.format = format
	} else if err := o.otoCtx.Resume(); err != nil {
		return fmt.Errorf("failed to resume oto context: %w", err)
	}

	if o.player != nil {
		o.player.Close()
	}

	o.player = o.otoCtx.NewPlayer(&queueReader{
		source:    source,
		frameSize: format.FrameSize(),
		silence:   format.SampleFormat.Silence(),
	})
	o.player.Play()

	o.logger.Info("audio output initialized", zap.Stringer("format", format), zap.String("backend", "oto"))
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			o.logger.Warn("oto suspend error", zap.Error(err))
		}
	}
	return nil
}

// queueReader adapts the queue to io.Reader. It never reports EOF so the
// player keeps running through gaps, which play as silence.
type queueReader struct {
	source    *queue.Consumer
	frameSize int
	silence   byte
}

func (r *queueReader) Read(p []byte) (int, error) {
	n := len(p) - len(p)%r.frameSize
	if n == 0 {
		return 0, nil
	}
	pull(r.source, p[:n], r.frameSize, r.silence)
	return n, nil
}

func otoFormat(f audio.SampleFormat) (oto.Format, error) {
	switch f {
	case audio.U8:
		return oto.FormatUnsignedInt8, nil
	case audio.I16:
		return oto.FormatSignedInt16LE, nil
	case audio.F32:
		return oto.FormatFloat32LE, nil
	}
	return 0, fmt.Errorf("%w: oto plays u8, i16 or f32, not %s", ErrUnsupportedFormat, f)
}
