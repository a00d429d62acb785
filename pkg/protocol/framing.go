// ABOUTME: Length-delimited framing for protocol messages
// ABOUTME: Splits byte streams and datagrams into 4-byte big-endian length prefixed frames
package protocol

import (
	"encoding/binary"
	"fmt"
)

const (
	// LengthPrefixSize is the size of the big-endian frame header
	LengthPrefixSize = 4
	// MaxFrameLength bounds a single frame payload
	MaxFrameLength = 8 * 1024 * 1024
)

// AppendFrame appends payload with its length prefix to dst
func AppendFrame(dst, payload []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// FrameDecoder reassembles frames from a byte stream
type FrameDecoder struct {
	buf []byte
	off int
}

// Feed appends received bytes to the decoder
func (d *FrameDecoder) Feed(p []byte) {
	if d.off > 0 && d.off == len(d.buf) {
		d.buf = d.buf[:0]
		d.off = 0
	} else if d.off > len(d.buf)/2 {
		n := copy(d.buf, d.buf[d.off:])
		d.buf = d.buf[:n]
		d.off = 0
	}
	d.buf = append(d.buf, p...)
}

// Next returns the next complete frame. The frame is only valid until the
// following Feed call. ok is false when more bytes are needed.
func (d *FrameDecoder) Next() (frame []byte, ok bool, err error) {
	pending := d.buf[d.off:]
	if len(pending) < LengthPrefixSize {
		return nil, false, nil
	}

	length := binary.BigEndian.Uint32(pending)
	if length > MaxFrameLength {
		return nil, false, fmt.Errorf("%w: frame length %d exceeds %d", ErrMalformedFrame, length, MaxFrameLength)
	}

	end := LengthPrefixSize + int(length)
	if len(pending) < end {
		return nil, false, nil
	}

	d.off += end
	return pending[LengthPrefixSize:end], true, nil
}

// Buffered returns the number of bytes waiting for a complete frame
func (d *FrameDecoder) Buffered() int {
	return len(d.buf) - d.off
}

// SplitFrames splits one datagram into its frames. Trailing bytes that do
// not form a whole frame are an error.
func SplitFrames(datagram []byte) ([][]byte, error) {
	var frames [][]byte
	for len(datagram) > 0 {
		if len(datagram) < LengthPrefixSize {
			return frames, fmt.Errorf("%w: truncated length prefix", ErrMalformedFrame)
		}
		length := binary.BigEndian.Uint32(datagram)
		if length > MaxFrameLength {
			return frames, fmt.Errorf("%w: frame length %d exceeds %d", ErrMalformedFrame, length, MaxFrameLength)
		}
		end := LengthPrefixSize + int(length)
		if len(datagram) < end {
			return frames, fmt.Errorf("%w: frame length %d exceeds datagram", ErrMalformedFrame, length)
		}
		frames = append(frames, datagram[LengthPrefixSize:end])
		datagram = datagram[end:]
	}
	return frames, nil
}
