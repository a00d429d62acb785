// ABOUTME: Shared helpers for transport driver tests
// ABOUTME: Builds packets, configs and a scripted net.Conn
package transport

import (
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/teamclouday/androidmic-host/internal/pipeline"
	"github.com/teamclouday/androidmic-host/pkg/audio"
	"github.com/teamclouday/androidmic-host/pkg/audio/queue"
	"github.com/teamclouday/androidmic-host/pkg/protocol"
)

var loopback = net.IPv4(127, 0, 0, 1)

func testConfig(capacity int) (pipeline.StreamConfig, *queue.Consumer) {
	sink, source := queue.New(capacity)
	return pipeline.StreamConfig{
		Target: audio.Format{SampleFormat: audio.I16, Channels: 1, SampleRate: 48000},
		Sink:   sink,
	}, source
}

func testPacket(samples ...int16) protocol.AudioPacket {
	buf := make([]byte, 0, 2*len(samples))
	for _, s := range samples {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(s))
	}
	return protocol.AudioPacket{
		Buffer:     buf,
		SampleRate: 48000,
		Channels:   1,
		Format:     audio.I16,
	}
}

// scriptConn is a net.Conn whose reads come from a fixed script
type scriptConn struct {
	net.Conn
	reads  []func(p []byte) (int, error)
	closed bool
}

func (c *scriptConn) Read(p []byte) (int, error) {
	if len(c.reads) == 0 {
		return 0, io.EOF
	}
	next := c.reads[0]
	c.reads = c.reads[1:]
	return next(p)
}

func (c *scriptConn) SetReadDeadline(time.Time) error { return nil }

func (c *scriptConn) Close() error {
	c.closed = true
	return nil
}

func emptyReads(n int) []func([]byte) (int, error) {
	reads := make([]func([]byte) (int, error), n)
	for i := range reads {
		reads[i] = func([]byte) (int, error) { return 0, nil }
	}
	return reads
}
