// ABOUTME: UDP driver receiving sequence-numbered audio packets
// ABOUTME: Logs sequence regressions but still plays the packet
package transport

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/internal/pipeline"
	"github.com/teamclouday/androidmic-host/pkg/protocol"
)

// maxDatagramSize covers the largest possible UDP payload
const maxDatagramSize = 65535

// UDPDriver receives datagrams from whichever phone sends them
type UDPDriver struct {
	stream

	conn *net.UDPConn
	port uint16
	buf  []byte

	tracked   uint32
	peer      string
	connected atomic.Bool
}

// ListenUDP binds a socket on ip using the default port range
func ListenUDP(ip net.IP, cfg pipeline.StreamConfig, deps Deps) (*UDPDriver, error) {
	return listenUDP(ip, defaultPorts, cfg, deps.withDefaults())
}

func listenUDP(ip net.IP, ports portRange, cfg pipeline.StreamConfig, deps Deps) (*UDPDriver, error) {
	conn, err := bindUDP(ip, ports)
	if err != nil {
		return nil, err
	}
	port, err := localPort(conn.LocalAddr())
	if err != nil {
		conn.Close()
		return nil, err
	}

	d := &UDPDriver{
		conn: conn,
		port: port,
		buf:  make([]byte, maxDatagramSize),
	}
	d.init(KindUDP, cfg, deps)
	d.logger.Info("UDP socket listening", zap.String("addr", conn.LocalAddr().String()))
	return d, nil
}

// Port returns the bound port
func (d *UDPDriver) Port() uint16 {
	return d.port
}

// TrackedSequence returns the last sequence number seen
func (d *UDPDriver) TrackedSequence() uint32 {
	return d.tracked
}

// Status implements Driver
func (d *UDPDriver) Status() *Status {
	if d.connected.Load() {
		return Connected()
	}
	return Listening(d.port)
}

// Poll implements Driver
func (d *UDPDriver) Poll(ctx context.Context) (*Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil
	}
	if err := d.conn.SetReadDeadline(time.Now().Add(MaxWaitTime)); err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}

	n, addr, err := d.conn.ReadFromUDP(d.buf)
	if err != nil {
		if isTransient(err) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("read failed: %w", err)
	}

	frames, err := protocol.SplitFrames(d.buf[:n])
	if err != nil {
		return nil, err
	}

	var b batch
	first := false
	if peer := addr.String(); peer != d.peer {
		d.peer = peer
		first = !d.connected.Swap(true)
		d.logger.Info("receiving from device", zap.String("remote", peer))
	}

	for _, frame := range frames {
		op, err := protocol.UnmarshalOrderedAudioPacket(frame)
		if err != nil {
			return nil, err
		}
		d.track(op.Sequence)
		if err := d.handle(op.Packet, &b, !first); err != nil {
			return nil, err
		}
	}

	if first {
		return Connected(), b.err()
	}
	return b.status, b.err()
}

// track records seq. Older sequence numbers are reported but still
// replace the tracked value.
func (d *UDPDriver) track(seq uint32) {
	if seq < d.tracked {
		d.logger.Warn("packet dropped: sequence regression",
			zap.Uint32("sequence", seq),
			zap.Uint32("tracked", d.tracked))
		d.stats.SequenceRegression()
	}
	d.tracked = seq
}

// Close implements Driver
func (d *UDPDriver) Close() error {
	return d.conn.Close()
}
