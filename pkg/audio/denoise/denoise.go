// ABOUTME: Multi-channel frame accumulator around Suppressor
// ABOUTME: Scales to the int16 domain, runs whole frames and keeps the remainder
package denoise

const int16Scale = 32767

// Denoiser holds per-channel suppressors and pending samples
type Denoiser struct {
	pending     [][]float32
	suppressors []*Suppressor
	frameOut    []float32
}

// New creates a denoiser. Channel state is created on the first Process call.
func New() *Denoiser {
	return &Denoiser{frameOut: make([]float32, FrameSize)}
}

// Channels returns the channel count of the current state
func (d *Denoiser) Channels() int {
	return len(d.suppressors)
}

// Buffered returns the samples per channel waiting for a full frame
func (d *Denoiser) Buffered() int {
	if len(d.pending) == 0 {
		return 0
	}
	return len(d.pending[0])
}

// Reset drops all channel state
func (d *Denoiser) Reset() {
	d.pending = nil
	d.suppressors = nil
}

// Process appends data to the per-channel buffers and returns every complete
// frame, denoised. A change in channel count resets all state first.
func (d *Denoiser) Process(data [][]float32) [][]float32 {
	if len(data) != len(d.suppressors) {
		d.pending = make([][]float32, len(data))
		d.suppressors = make([]*Suppressor, len(data))
		for ch := range data {
			d.pending[ch] = make([]float32, 0, 2*FrameSize)
			d.suppressors[ch] = NewSuppressor()
		}
	}

	out := make([][]float32, len(data))
	if len(data) == 0 {
		return out
	}

	for ch, samples := range data {
		for _, v := range samples {
			d.pending[ch] = append(d.pending[ch], v*int16Scale)
		}
	}

	ready := len(d.pending[0])
	for _, p := range d.pending[1:] {
		ready = min(ready, len(p))
	}
	frames := ready / FrameSize

	for ch := range out {
		out[ch] = make([]float32, 0, frames*FrameSize)
	}

	for f := 0; f < frames; f++ {
		for ch, s := range d.suppressors {
			s.ProcessFrame(d.frameOut, d.pending[ch][f*FrameSize:(f+1)*FrameSize])
			for _, v := range d.frameOut {
				out[ch] = append(out[ch], v/int16Scale)
			}
		}
	}

	consumed := frames * FrameSize
	for ch, p := range d.pending {
		n := copy(p, p[consumed:])
		d.pending[ch] = p[:n]
	}

	return out
}
