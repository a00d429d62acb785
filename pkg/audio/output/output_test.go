// ABOUTME: Audio output tests
// ABOUTME: Covers backend selection, format mapping and the queue reader
package output

import (
	"errors"
	"testing"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamclouday/androidmic-host/pkg/audio"
	"github.com/teamclouday/androidmic-host/pkg/audio/queue"
)

func TestBackendsImplementOutput(t *testing.T) {
	var _ Output = (*Malgo)(nil)
	var _ Output = (*Oto)(nil)
	var _ Output = (*PortAudio)(nil)
}

func TestNew(t *testing.T) {
	out, err := New("", "", nil)
	require.NoError(t, err)
	assert.IsType(t, &Malgo{}, out)

	out, err = New(BackendOto, "", nil)
	require.NoError(t, err)
	assert.IsType(t, &Oto{}, out)

	out, err = New(BackendPortAudio, "", nil)
	require.NoError(t, err)
	assert.IsType(t, &PortAudio{}, out)

	_, err = New("alsa", "", nil)
	assert.Error(t, err)
}

func TestMalgoFormat(t *testing.T) {
	tests := []struct {
		in       audio.SampleFormat
		expected malgo.FormatType
	}{
		{audio.U8, malgo.FormatU8},
		{audio.I16, malgo.FormatS16},
		{audio.I24, malgo.FormatS24},
		{audio.I32, malgo.FormatS32},
		{audio.F32, malgo.FormatF32},
	}
	for _, tt := range tests {
		got, err := malgoFormat(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, got)
	}

	_, err := malgoFormat(audio.SampleFormat(7))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestOtoFormat(t *testing.T) {
	f, err := otoFormat(audio.F32)
	require.NoError(t, err)
	assert.Equal(t, oto.FormatFloat32LE, f)

	_, err = otoFormat(audio.I24)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestPullReportsUnderrun(t *testing.T) {
	prod, cons := queue.New(64)
	prod.Write([]byte{1, 2, 3, 4, 5})

	out := make([]byte, 6)
	assert.True(t, pull(cons, out, 2, 0x80))
	assert.Equal(t, []byte{1, 2, 3, 4, 0x80, 0x80}, out)
	assert.Equal(t, 1, cons.Available())

	prod.Write([]byte{6, 7, 8, 9, 10})
	assert.False(t, pull(cons, out, 2, 0))
	assert.Equal(t, []byte{5, 6, 7, 8, 9, 10}, out)
}

func TestQueueReaderKeepsFrameAlignment(t *testing.T) {
	prod, cons := queue.New(64)
	prod.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})

	r := &queueReader{source: cons, frameSize: 4}

	buf := make([]byte, 6)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf[:n])

	n, err = r.Read(buf[:3])
	require.NoError(t, err)
	assert.Zero(t, n)

	// An empty queue still yields silence so the player keeps running
	buf = make([]byte, 12)
	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, []byte{5, 6, 7, 8, 0, 0, 0, 0, 0, 0, 0, 0}, buf)
}
