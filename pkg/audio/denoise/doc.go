// ABOUTME: Noise suppression package for 48 kHz speech
// ABOUTME: Accumulates fixed-size frames per channel and runs a spectral gate on each
// Package denoise removes stationary background noise from microphone audio.
//
// Input must be 48 kHz planar float32. Samples are buffered per channel until
// a whole frame of FrameSize samples is available, so Process returns a
// multiple of FrameSize samples per channel and keeps the remainder for the
// next call.
//
// Example:
//
//	d := denoise.New()
//	clean := d.Process(planar)
package denoise
