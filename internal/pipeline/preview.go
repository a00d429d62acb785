// ABOUTME: Reduces a mono signal to a short peak envelope for level displays
// ABOUTME: Encodes and decodes the envelope as little-endian float32 bytes
package pipeline

import (
	"encoding/binary"
	"math"
)

// PreviewPoints is the maximum number of values in a preview
const PreviewPoints = 64

// PreviewBytes returns up to PreviewPoints absolute peak values of mono
func PreviewBytes(mono []float32) []byte {
	points := min(PreviewPoints, len(mono))
	out := make([]byte, 0, points*4)

	for i := 0; i < points; i++ {
		start := i * len(mono) / points
		end := (i + 1) * len(mono) / points
		var peak float32
		for _, v := range mono[start:end] {
			if v < 0 {
				v = -v
			}
			peak = max(peak, v)
		}
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(peak))
	}
	return out
}

// DecodePreview parses bytes produced by PreviewBytes
func DecodePreview(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
