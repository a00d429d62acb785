// ABOUTME: Stateful planar resampler wrapping github.com/oov/audio/resampler
// ABOUTME: Used by the pipeline for the denoise rate and the output rate conversions
package resample

import (
	"github.com/oov/audio/resampler"
)

// DefaultQuality is the speex quality level (0-10)
const DefaultQuality = 10

// Resampler converts planar float32 audio between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	r          *resampler.Resampler
	scratch    []float32
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		r:          resampler.New(channels, inputRate, outputRate, DefaultQuality),
		scratch:    make([]float32, 1024),
	}
}

// Matches reports whether r was built for these parameters
func (r *Resampler) Matches(inputRate, outputRate, channels int) bool {
	return r.inputRate == inputRate && r.outputRate == outputRate && r.channels == channels
}

// Process resamples each channel of input. len(input) must equal the
// channel count r was built for.
func (r *Resampler) Process(input [][]float32) [][]float32 {
	out := make([][]float32, len(input))
	for ch, samples := range input {
		out[ch] = r.processChannel(ch, samples)
	}
	return out
}

func (r *Resampler) processChannel(ch int, in []float32) []float32 {
	out := make([]float32, 0, r.OutputSamplesNeeded(len(in))+16)
	for len(in) > 0 {
		read, written := r.r.ProcessFloat32(ch, in, r.scratch)
		out = append(out, r.scratch[:written]...)
		if read == 0 && written == 0 {
			break
		}
		in = in[read:]
	}
	return out
}

// OutputSamplesNeeded estimates how many output samples per channel are produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	return int(int64(inputSamples) * int64(r.outputRate) / int64(r.inputRate))
}
