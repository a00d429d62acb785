// ABOUTME: Audio type definitions
// ABOUTME: Defines wire sample formats, stream formats and sample conversions
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// SampleFormat is the encoding of a single PCM sample, numbered as on the wire
type SampleFormat uint32

const (
	U8 SampleFormat = iota
	I16
	I24
	I32
	F32
)

// Valid reports whether f is one of the known formats
func (f SampleFormat) Valid() bool {
	return f <= F32
}

// SampleSize returns the number of bytes one sample occupies
func (f SampleFormat) SampleSize() int {
	switch f {
	case U8:
		return 1
	case I16:
		return 2
	case I24:
		return 3
	case I32, F32:
		return 4
	default:
		return 0
	}
}

// Silence returns the byte value that encodes a zero amplitude sample
func (f SampleFormat) Silence() byte {
	if f == U8 {
		return 0x80
	}
	return 0
}

func (f SampleFormat) String() string {
	switch f {
	case U8:
		return "u8"
	case I16:
		return "i16"
	case I24:
		return "i24"
	case I32:
		return "i32"
	case F32:
		return "f32"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(f))
	}
}

// ParseSampleFormat parses names like "i16" or "F32"
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "u8":
		return U8, nil
	case "i16", "s16":
		return I16, nil
	case "i24", "s24":
		return I24, nil
	case "i32", "s32":
		return I32, nil
	case "f32":
		return F32, nil
	}
	return 0, fmt.Errorf("unknown sample format: %q", s)
}

// Format describes an interleaved PCM stream
type Format struct {
	SampleFormat SampleFormat
	Channels     int
	SampleRate   int
}

// FrameSize returns the bytes used by one interleaved frame
func (f Format) FrameSize() int {
	return f.Channels * f.SampleFormat.SampleSize()
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch", f.SampleFormat, f.SampleRate, f.Channels)
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	// Take lower 24 bits, pack little-endian
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

// DecodeSample reads one little-endian sample from b and returns it in [-1, 1)
func DecodeSample(f SampleFormat, b []byte) float32 {
	switch f {
	case U8:
		return (float32(b[0]) - 128) / 128
	case I16:
		return float32(int16(binary.LittleEndian.Uint16(b))) / 32768
	case I24:
		return float32(SampleFrom24Bit([3]byte{b[0], b[1], b[2]})) / 8388608
	case I32:
		return float32(float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648)
	case F32:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	}
	return 0
}

// EncodeSample writes v as one little-endian sample of format f into dst.
// Integer formats clip to their range.
func EncodeSample(f SampleFormat, v float32, dst []byte) {
	switch f {
	case U8:
		dst[0] = byte(quantize(v, 128, -128, 127) + 128)
	case I16:
		binary.LittleEndian.PutUint16(dst, uint16(int16(quantize(v, 32768, math.MinInt16, math.MaxInt16))))
	case I24:
		b := SampleTo24Bit(int32(quantize(v, 8388608, Min24Bit, Max24Bit)))
		copy(dst, b[:])
	case I32:
		binary.LittleEndian.PutUint32(dst, uint32(int32(quantize(v, 2147483648, math.MinInt32, math.MaxInt32))))
	case F32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
	}
}

func quantize(v float32, scale, lo, hi float64) int64 {
	s := math.Round(float64(v) * scale)
	if s < lo {
		s = lo
	} else if s > hi {
		s = hi
	}
	return int64(s)
}
