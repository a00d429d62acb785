// ABOUTME: Tests for the SPSC byte queue
// ABOUTME: Covers overflow accounting, wraparound, zero-fill and concurrent use
package queue

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteOverflowReportsLost(t *testing.T) {
	p, c := New(DefaultCapacity)

	written, lost := p.Write(make([]byte, 6000))

	assert.Equal(t, 5120, written)
	assert.Equal(t, 880, lost)
	assert.Equal(t, 0, p.Free())
	assert.Equal(t, 5120, c.Available())
}

func TestReadZeroFills(t *testing.T) {
	p, c := New(16)
	p.Write([]byte{1, 2, 3})

	dst := []byte{9, 9, 9, 9, 9, 9}
	n := c.Read(dst)

	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3, 0, 0, 0}, dst)
	assert.Equal(t, 0, c.Available())
}

func TestReadEmptyQueue(t *testing.T) {
	_, c := New(8)
	dst := []byte{7, 7}

	assert.Equal(t, 0, c.Read(dst))
	assert.Equal(t, []byte{0, 0}, dst)
}

func TestWraparound(t *testing.T) {
	p, c := New(8)

	p.Write([]byte{1, 2, 3, 4, 5, 6})
	c.Read(make([]byte, 4))

	written, lost := p.Write([]byte{7, 8, 9, 10, 11, 12})
	require.Equal(t, 6, written)
	require.Equal(t, 0, lost)

	dst := make([]byte, 8)
	assert.Equal(t, 8, c.Read(dst))
	assert.Equal(t, []byte{5, 6, 7, 8, 9, 10, 11, 12}, dst)
}

func TestReadFramesKeepsPartialFrame(t *testing.T) {
	p, c := New(16)
	p.Write([]byte{1, 2, 3, 4, 5})

	dst := make([]byte, 8)
	n := c.ReadFrames(dst, 2, 0x80)

	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{1, 2, 3, 4, 0x80, 0x80, 0x80, 0x80}, dst)
	assert.Equal(t, 1, c.Available())
}

func TestNewUsesDefaultCapacity(t *testing.T) {
	p, _ := New(0)
	assert.Equal(t, DefaultCapacity, p.Capacity())

	p, _ = New(12)
	assert.Equal(t, 12, p.Capacity())
}

func TestConcurrentProducerConsumer(t *testing.T) {
	p, c := New(64)

	const total = 100000
	src := make([]byte, total)
	for i := range src {
		src[i] = byte(i % 251)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rest := src
		for len(rest) > 0 {
			n := min(len(rest), 17)
			w, _ := p.Write(rest[:n])
			rest = rest[w:]
		}
	}()

	got := make([]byte, 0, total)
	buf := make([]byte, 13)
	for len(got) < total {
		n := c.Read(buf)
		got = append(got, buf[:n]...)
	}
	wg.Wait()

	assert.True(t, bytes.Equal(src, got))
}
