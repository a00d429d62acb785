// ABOUTME: Single-channel spectral gate noise suppressor
// ABOUTME: Tracks a per-bin noise floor and applies smoothed gains with overlap-add
package denoise

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

const (
	// SampleRate is the only rate the suppressor is tuned for
	SampleRate = 48000
	// FrameSize is the hop size in samples (10 ms at 48 kHz)
	FrameSize = 480

	windowSize = 2 * FrameSize

	noiseFall    = 0.9
	noiseRise    = 0.999
	overSubtract = 3.0
	gainFloor    = 0.1
	gainSmooth   = 0.5
	epsilon      = 1e-9
)

// Suppressor denoises one channel. Output lags input by FrameSize samples.
type Suppressor struct {
	window  []float64
	history []float64
	frame   []float64
	overlap []float64
	noise   []float64
	gain    []float64
	primed  bool
}

// NewSuppressor creates a suppressor with empty history
func NewSuppressor() *Suppressor {
	s := &Suppressor{
		window:  make([]float64, windowSize),
		history: make([]float64, FrameSize),
		frame:   make([]float64, windowSize),
		overlap: make([]float64, FrameSize),
		noise:   make([]float64, windowSize/2+1),
		gain:    make([]float64, windowSize/2+1),
	}
	// sqrt-Hann for analysis and synthesis sums to unity at 50% overlap
	for i := range s.window {
		s.window[i] = math.Sqrt(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/windowSize)))
	}
	for i := range s.gain {
		s.gain[i] = 1
	}
	return s
}

// ProcessFrame denoises FrameSize samples from in into out
func (s *Suppressor) ProcessFrame(out, in []float32) {
	for i := 0; i < FrameSize; i++ {
		s.frame[i] = s.history[i] * s.window[i]
		s.frame[FrameSize+i] = float64(in[i]) * s.window[FrameSize+i]
		s.history[i] = float64(in[i])
	}

	spec := fft.FFTReal(s.frame)
	half := windowSize / 2

	for k := 0; k <= half; k++ {
		mag := cmplx.Abs(spec[k])
		s.trackNoise(k, mag)

		g := 1 - overSubtract*s.noise[k]/(mag+epsilon)
		if g < gainFloor {
			g = gainFloor
		}
		s.gain[k] = gainSmooth*s.gain[k] + (1-gainSmooth)*g

		c := complex(s.gain[k], 0)
		spec[k] *= c
		if k > 0 && k < half {
			spec[windowSize-k] *= c
		}
	}
	s.primed = true

	y := fft.IFFT(spec)
	for i := 0; i < FrameSize; i++ {
		out[i] = float32(s.overlap[i] + real(y[i])*s.window[i])
		s.overlap[i] = real(y[FrameSize+i]) * s.window[FrameSize+i]
	}
}

func (s *Suppressor) trackNoise(k int, mag float64) {
	if !s.primed {
		s.noise[k] = mag
		return
	}
	if mag < s.noise[k] {
		s.noise[k] = noiseFall*s.noise[k] + (1-noiseFall)*mag
	} else {
		s.noise[k] = noiseRise*s.noise[k] + (1-noiseRise)*mag
	}
}
