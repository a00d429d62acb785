// ABOUTME: Converts received audio packets into the output format and enqueues them
// ABOUTME: Decode, mono preview, optional 48 kHz denoise, resample, interleave, encode
package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/pkg/audio"
	"github.com/teamclouday/androidmic-host/pkg/audio/denoise"
	"github.com/teamclouday/androidmic-host/pkg/audio/queue"
	"github.com/teamclouday/androidmic-host/pkg/audio/resample"
	"github.com/teamclouday/androidmic-host/pkg/protocol"
)

// StreamConfig is the output side of a stream
type StreamConfig struct {
	Target  audio.Format
	Denoise bool
	Sink    *queue.Producer
}

// OverflowError reports bytes dropped because the queue was full
type OverflowError struct {
	Written int
	Lost    int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("buffer overfilled: moved %d bytes, lost %d bytes", e.Written, e.Lost)
}

// Result describes one processed packet
type Result struct {
	// Mono is the source signal averaged over its channels, before any
	// resampling or denoising
	Mono    []float32
	Written int
	Lost    int
}

// Pipeline holds the stateful stages. It is not safe for concurrent use.
type Pipeline struct {
	logger    *zap.Logger
	denoiser  *denoise.Denoiser
	toDenoise *resample.Resampler
	toTarget  *resample.Resampler
	out       []byte
}

// New creates an empty pipeline
func New(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		logger:   logger,
		denoiser: denoise.New(),
	}
}

// Reset drops all resampler and denoiser state
func (p *Pipeline) Reset() {
	p.denoiser.Reset()
	p.toDenoise = nil
	p.toTarget = nil
}

// Process converts pkt for cfg and writes whole frames into cfg.Sink.
// When frames do not fit, the Result is still returned along with an
// *OverflowError.
func (p *Pipeline) Process(pkt protocol.AudioPacket, cfg StreamConfig) (Result, error) {
	if err := pkt.Validate(); err != nil {
		return Result{}, err
	}

	channels := Deinterleave(pkt)
	res := Result{Mono: Downmix(channels)}

	target := cfg.Target
	if target.Channels <= 0 || !target.SampleFormat.Valid() || target.SampleRate <= 0 {
		return res, fmt.Errorf("invalid target format: %s", target)
	}

	signal := channels
	if target.Channels == 1 && len(channels) > 1 {
		signal = [][]float32{res.Mono}
	}

	rate := int(pkt.SampleRate)
	if cfg.Denoise {
		if rate != denoise.SampleRate {
			signal = p.resampler(&p.toDenoise, rate, denoise.SampleRate, len(signal)).Process(signal)
			rate = denoise.SampleRate
		}
		signal = p.denoiser.Process(signal)
	}

	if rate != target.SampleRate {
		signal = p.resampler(&p.toTarget, rate, target.SampleRate, len(signal)).Process(signal)
	}

	if cfg.Sink == nil || len(signal) == 0 {
		return res, nil
	}

	frameSize := target.FrameSize()
	frames := len(signal[0])
	total := frames * frameSize

	fit := min(frames, cfg.Sink.Free()/frameSize)
	buf := p.interleave(signal, target, fit)

	written, lost := cfg.Sink.Write(buf)
	lost += total - fit*frameSize
	res.Written = written
	res.Lost = lost

	if lost > 0 {
		return res, &OverflowError{Written: written, Lost: lost}
	}
	return res, nil
}

func (p *Pipeline) resampler(slot **resample.Resampler, from, to, channels int) *resample.Resampler {
	if *slot == nil || !(*slot).Matches(from, to, channels) {
		p.logger.Debug("creating resampler",
			zap.Int("from", from),
			zap.Int("to", to),
			zap.Int("channels", channels))
		*slot = resample.New(from, to, channels)
	}
	return *slot
}

// interleave encodes frames of signal into target. Target channels beyond
// the source reuse the last source channel; missing samples are silent.
func (p *Pipeline) interleave(signal [][]float32, target audio.Format, frames int) []byte {
	sampleSize := target.SampleFormat.SampleSize()
	n := frames * target.FrameSize()
	if cap(p.out) < n {
		p.out = make([]byte, n)
	}
	buf := p.out[:n]

	off := 0
	for f := 0; f < frames; f++ {
		for c := 0; c < target.Channels; c++ {
			src := signal[min(c, len(signal)-1)]
			var v float32
			if f < len(src) {
				v = src[f]
			}
			audio.EncodeSample(target.SampleFormat, v, buf[off:off+sampleSize])
			off += sampleSize
		}
	}
	return buf
}

// Deinterleave decodes pkt into one float32 slice per channel.
// Trailing bytes that do not form a whole frame are ignored.
func Deinterleave(pkt protocol.AudioPacket) [][]float32 {
	ch := int(pkt.Channels)
	size := pkt.Format.SampleSize()
	frames := pkt.Frames()

	out := make([][]float32, ch)
	for c := range out {
		out[c] = make([]float32, frames)
	}

	off := 0
	for f := 0; f < frames; f++ {
		for c := 0; c < ch; c++ {
			out[c][f] = audio.DecodeSample(pkt.Format, pkt.Buffer[off:off+size])
			off += size
		}
	}
	return out
}

// Downmix averages channels into one signal
func Downmix(channels [][]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	if len(channels) == 1 {
		return channels[0]
	}

	mono := make([]float32, len(channels[0]))
	for _, ch := range channels {
		for i := range mono {
			mono[i] += ch[i]
		}
	}
	scale := 1 / float32(len(channels))
	for i := range mono {
		mono[i] *= scale
	}
	return mono
}
