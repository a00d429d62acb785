// ABOUTME: AndroidMic protocol message definitions
// ABOUTME: Encodes and decodes audio packets with protowire
package protocol

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/teamclouday/androidmic-host/pkg/audio"
)

const (
	// CheckToken is sent by the phone right after the TCP connection opens
	CheckToken = "AndroidMic1"
	// AckToken is the host's reply to a valid CheckToken
	AckToken = "AndroidMic2"

	// DefaultPort is the first port tried when binding
	DefaultPort = 55555
	// MaxPort is the last port tried before falling back to an ephemeral one
	MaxPort = 60000
	// DevicePort is the port the phone connects to through an adb reverse tunnel
	DevicePort = 55555
)

// Sample rates outside this range are rejected as malformed
const (
	MinSampleRate = 1000
	MaxSampleRate = 768000
)

// ErrMalformedFrame is returned for frames that cannot be decoded
var ErrMalformedFrame = errors.New("malformed frame")

// Field numbers of AudioPacketMessage
const (
	fieldBuffer       protowire.Number = 1
	fieldSampleRate   protowire.Number = 2
	fieldChannelCount protowire.Number = 3
	fieldAudioFormat  protowire.Number = 4
)

// Field numbers of AudioPacketMessageOrdered
const (
	fieldSequenceNumber protowire.Number = 1
	fieldAudioPacket    protowire.Number = 2
)

// AudioPacket is one chunk of interleaved PCM captured on the phone
type AudioPacket struct {
	Buffer     []byte
	SampleRate uint32
	Channels   uint32
	Format     audio.SampleFormat
}

// OrderedAudioPacket wraps an AudioPacket with a sender-side sequence number
type OrderedAudioPacket struct {
	Sequence uint32
	Packet   AudioPacket
}

// SourceFormat returns the stream format the packet is encoded in
func (p AudioPacket) SourceFormat() audio.Format {
	return audio.Format{
		SampleFormat: p.Format,
		Channels:     int(p.Channels),
		SampleRate:   int(p.SampleRate),
	}
}

// Frames returns the number of whole frames in Buffer
func (p AudioPacket) Frames() int {
	size := p.SourceFormat().FrameSize()
	if size == 0 {
		return 0
	}
	return len(p.Buffer) / size
}

// Validate checks the packet header fields
func (p AudioPacket) Validate() error {
	if !p.Format.Valid() {
		return fmt.Errorf("%w: unknown audio format %d", ErrMalformedFrame, uint32(p.Format))
	}
	if p.Channels == 0 {
		return fmt.Errorf("%w: zero channel count", ErrMalformedFrame)
	}
	// channel_count is a u8 on the wire
	if p.Channels > math.MaxUint8 {
		return fmt.Errorf("%w: channel count %d", ErrMalformedFrame, p.Channels)
	}
	if p.SampleRate == 0 {
		return fmt.Errorf("%w: zero sample rate", ErrMalformedFrame)
	}
	if p.SampleRate < MinSampleRate || p.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: sample rate %d", ErrMalformedFrame, p.SampleRate)
	}
	return nil
}

// AppendAudioPacket appends the protobuf encoding of p to b
func AppendAudioPacket(b []byte, p AudioPacket) []byte {
	if len(p.Buffer) > 0 {
		b = protowire.AppendTag(b, fieldBuffer, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Buffer)
	}
	if p.SampleRate != 0 {
		b = protowire.AppendTag(b, fieldSampleRate, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.SampleRate))
	}
	if p.Channels != 0 {
		b = protowire.AppendTag(b, fieldChannelCount, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.Channels))
	}
	if p.Format != 0 {
		b = protowire.AppendTag(b, fieldAudioFormat, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.Format))
	}
	return b
}

// Marshal returns the protobuf encoding of p
func (p AudioPacket) Marshal() []byte {
	return AppendAudioPacket(nil, p)
}

// Marshal returns the protobuf encoding of p
func (p OrderedAudioPacket) Marshal() []byte {
	var b []byte
	if p.Sequence != 0 {
		b = protowire.AppendTag(b, fieldSequenceNumber, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.Sequence))
	}
	b = protowire.AppendTag(b, fieldAudioPacket, protowire.BytesType)
	b = protowire.AppendBytes(b, p.Packet.Marshal())
	return b
}

// UnmarshalAudioPacket decodes and validates an AudioPacketMessage.
// The returned Buffer aliases b.
func UnmarshalAudioPacket(b []byte) (AudioPacket, error) {
	var p AudioPacket
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return p, malformed(n)
		}
		b = b[n:]

		switch {
		case num == fieldBuffer && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return p, malformed(n)
			}
			p.Buffer = v
			b = b[n:]
		case num == fieldSampleRate && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return p, malformed(n)
			}
			p.SampleRate = uint32(v)
			b = b[n:]
		case num == fieldChannelCount && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return p, malformed(n)
			}
			p.Channels = uint32(v)
			b = b[n:]
		case num == fieldAudioFormat && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return p, malformed(n)
			}
			p.Format = audio.SampleFormat(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return p, malformed(n)
			}
			b = b[n:]
		}
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// UnmarshalOrderedAudioPacket decodes an AudioPacketMessageOrdered
func UnmarshalOrderedAudioPacket(b []byte) (OrderedAudioPacket, error) {
	var op OrderedAudioPacket
	var inner []byte
	seen := false

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return op, malformed(n)
		}
		b = b[n:]

		switch {
		case num == fieldSequenceNumber && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return op, malformed(n)
			}
			op.Sequence = uint32(v)
			b = b[n:]
		case num == fieldAudioPacket && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return op, malformed(n)
			}
			inner = v
			seen = true
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return op, malformed(n)
			}
			b = b[n:]
		}
	}

	if !seen {
		return op, fmt.Errorf("%w: missing audio packet", ErrMalformedFrame)
	}
	pkt, err := UnmarshalAudioPacket(inner)
	if err != nil {
		return op, err
	}
	op.Packet = pkt
	return op, nil
}

func malformed(n int) error {
	return fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
}
