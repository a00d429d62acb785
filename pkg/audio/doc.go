// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines SampleFormat, Format and sample conversion functions
// Package audio provides the PCM types shared by the receiver.
//
// This package defines:
//   - SampleFormat: the wire encoding of one sample (u8, i16, i24, i32, f32)
//   - Format: an interleaved stream description (sample format, channels, rate)
//
// Samples are always little-endian. DecodeSample and EncodeSample convert
// between wire bytes and normalized float32 in [-1, 1).
//
// Example:
//
//	format := audio.Format{
//	    SampleFormat: audio.I24,
//	    SampleRate:   48000,
//	    Channels:     2,
//	}
//
//	v := audio.DecodeSample(format.SampleFormat, buf[0:3])
package audio
