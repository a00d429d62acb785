// ABOUTME: Tests for the audio pipeline
// ABOUTME: Covers downmix, channel mapping, overflow accounting and denoise buffering
package pipeline

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/pkg/audio"
	"github.com/teamclouday/androidmic-host/pkg/audio/queue"
	"github.com/teamclouday/androidmic-host/pkg/protocol"
)

func i16Packet(rate, channels int, samples ...int16) protocol.AudioPacket {
	buf := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(s))
	}
	return protocol.AudioPacket{
		Buffer:     buf,
		SampleRate: uint32(rate),
		Channels:   uint32(channels),
		Format:     audio.I16,
	}
}

func mono16(rate int) audio.Format {
	return audio.Format{SampleFormat: audio.I16, Channels: 1, SampleRate: rate}
}

func TestDownmix(t *testing.T) {
	mono := Downmix([][]float32{{1.0, 0.6}, {-1.0, 0.2}})

	require.Len(t, mono, 2)
	assert.InDelta(t, 0.0, mono[0], 1e-6)
	assert.InDelta(t, 0.4, mono[1], 1e-6)
}

func TestDeinterleaveIgnoresPartialFrame(t *testing.T) {
	pkt := i16Packet(48000, 2, 100, 200, 300)

	channels := Deinterleave(pkt)

	require.Len(t, channels, 2)
	assert.Len(t, channels[0], 1)
	assert.Len(t, channels[1], 1)
}

func TestProcessPassthrough(t *testing.T) {
	sink, source := queue.New(64)
	p := New(zap.NewNop())
	pkt := i16Packet(48000, 1, 1, -2, 3, -4)

	res, err := p.Process(pkt, StreamConfig{Target: mono16(48000), Sink: sink})
	require.NoError(t, err)
	assert.Equal(t, 8, res.Written)
	assert.Equal(t, 0, res.Lost)

	got := make([]byte, 8)
	source.Read(got)
	assert.Equal(t, pkt.Buffer, got)
}

func TestProcessStereoToMono(t *testing.T) {
	sink, source := queue.New(64)
	p := New(zap.NewNop())

	_, err := p.Process(i16Packet(48000, 2, 16384, 0, -16384, -16384),
		StreamConfig{Target: mono16(48000), Sink: sink})
	require.NoError(t, err)

	got := make([]byte, 4)
	require.Equal(t, 4, source.Read(got))
	assert.Equal(t, int16(8192), int16(binary.LittleEndian.Uint16(got[0:])))
	assert.Equal(t, int16(-16384), int16(binary.LittleEndian.Uint16(got[2:])))
}

func TestProcessMonoToStereoDuplicates(t *testing.T) {
	sink, source := queue.New(64)
	p := New(zap.NewNop())
	target := audio.Format{SampleFormat: audio.I16, Channels: 2, SampleRate: 48000}

	_, err := p.Process(i16Packet(48000, 1, 1000, 2000), StreamConfig{Target: target, Sink: sink})
	require.NoError(t, err)

	got := make([]byte, 8)
	require.Equal(t, 8, source.Read(got))
	assert.Equal(t, i16Packet(48000, 2, 1000, 1000, 2000, 2000).Buffer, got)
}

func TestProcessOverflowWritesWholeFrames(t *testing.T) {
	sink, source := queue.New(10)
	p := New(zap.NewNop())
	target := audio.Format{SampleFormat: audio.I16, Channels: 2, SampleRate: 48000}

	res, err := p.Process(i16Packet(48000, 2, 1, 2, 3, 4, 5, 6), StreamConfig{Target: target, Sink: sink})

	var overflow *OverflowError
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, 8, overflow.Written)
	assert.Equal(t, 4, overflow.Lost)
	assert.Equal(t, 8, res.Written)
	assert.Equal(t, 8, source.Available())
}

func TestProcessDenoiseBuffersUntilFrame(t *testing.T) {
	sink, _ := queue.New(queue.DefaultCapacity)
	p := New(zap.NewNop())
	cfg := StreamConfig{Target: mono16(48000), Denoise: true, Sink: sink}

	res, err := p.Process(i16Packet(48000, 1, make([]int16, 300)...), cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Written)
	assert.Len(t, res.Mono, 300)

	res, err = p.Process(i16Packet(48000, 1, make([]int16, 300)...), cfg)
	require.NoError(t, err)
	assert.Equal(t, 480*2, res.Written)
}

func TestProcessResamplesToTarget(t *testing.T) {
	sink, _ := queue.New(1 << 16)
	p := New(zap.NewNop())
	cfg := StreamConfig{Target: mono16(16000), Sink: sink}

	total := 0
	for i := 0; i < 10; i++ {
		res, err := p.Process(i16Packet(48000, 1, make([]int16, 480)...), cfg)
		require.NoError(t, err)
		total += res.Written
	}
	assert.InDelta(t, 1600*2, total, 160)
}

func TestProcessWithoutSink(t *testing.T) {
	p := New(zap.NewNop())

	res, err := p.Process(i16Packet(48000, 1, 10, 20), StreamConfig{Target: mono16(48000)})
	require.NoError(t, err)
	assert.Len(t, res.Mono, 2)
}

func TestProcessRejectsInvalidTarget(t *testing.T) {
	p := New(zap.NewNop())

	_, err := p.Process(i16Packet(48000, 1, 10), StreamConfig{})
	assert.Error(t, err)
}

func TestProcessRejectsOversizedChannelCount(t *testing.T) {
	p := New(zap.NewNop())

	for _, channels := range []int{256, 1 << 24} {
		_, err := p.Process(i16Packet(48000, channels, 1, 2), StreamConfig{Target: mono16(48000)})
		assert.ErrorIs(t, err, protocol.ErrMalformedFrame, "channels %d", channels)
	}
}

func TestPreviewBytes(t *testing.T) {
	mono := make([]float32, 640)
	mono[5] = -0.75
	mono[639] = 0.5

	preview := DecodePreview(PreviewBytes(mono))

	require.Len(t, preview, PreviewPoints)
	assert.Equal(t, float32(0.75), preview[0])
	assert.Equal(t, float32(0.5), preview[PreviewPoints-1])
	assert.Equal(t, float32(0), preview[1])
}

func TestPreviewShortSignal(t *testing.T) {
	assert.Len(t, PreviewBytes([]float32{0.1, 0.2}), 8)
	assert.Empty(t, PreviewBytes(nil))
}
