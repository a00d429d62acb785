// ABOUTME: Audio resampling package built on the speex resampler port
// ABOUTME: Converts planar float32 audio between sample rates
// Package resample provides audio sample rate conversion.
//
// A Resampler keeps filter state per channel, so one instance must be used
// for one continuous stream. Create a new one when the rates or channel
// count change.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	out := r.Process(planar)
package resample
