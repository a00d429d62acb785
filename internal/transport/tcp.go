// ABOUTME: TCP driver that accepts one phone and streams length-delimited packets
// ABOUTME: Performs the token handshake and detects dead connections
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/internal/pipeline"
	"github.com/teamclouday/androidmic-host/pkg/protocol"
)

type tcpState int

const (
	tcpListening tcpState = iota
	tcpStreaming
)

// TCPDriver listens for a single phone connection
type TCPDriver struct {
	stream

	listener *net.TCPListener
	port     uint16

	mu     sync.Mutex
	state  tcpState
	conn   net.Conn
	closed bool

	scratch    []byte
	frames     protocol.FrameDecoder
	emptyReads int
}

// ListenTCP binds a listener on ip using the default port range
func ListenTCP(ip net.IP, cfg pipeline.StreamConfig, deps Deps) (*TCPDriver, error) {
	return listenTCP(KindTCP, ip, defaultPorts, cfg, deps.withDefaults())
}

func listenTCP(kind Kind, ip net.IP, ports portRange, cfg pipeline.StreamConfig, deps Deps) (*TCPDriver, error) {
	l, err := bindTCP(ip, ports)
	if err != nil {
		return nil, err
	}
	port, err := localPort(l.Addr())
	if err != nil {
		l.Close()
		return nil, err
	}

	d := &TCPDriver{
		listener: l,
		port:     port,
		scratch:  make([]byte, IOBufferSize),
	}
	d.init(kind, cfg, deps)
	d.logger.Info("TCP server listening", zap.String("addr", l.Addr().String()))
	return d, nil
}

// newStreamingTCP wraps an already accepted connection
func newStreamingTCP(conn net.Conn, cfg pipeline.StreamConfig, deps Deps) *TCPDriver {
	d := &TCPDriver{
		state:   tcpStreaming,
		conn:    conn,
		scratch: make([]byte, IOBufferSize),
	}
	d.init(KindTCP, cfg, deps.withDefaults())
	return d
}

// Port returns the bound port
func (d *TCPDriver) Port() uint16 {
	return d.port
}

// Status implements Driver
func (d *TCPDriver) Status() *Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == tcpStreaming {
		return Connected()
	}
	return Listening(d.port)
}

// Streaming reports whether a phone is connected
func (d *TCPDriver) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == tcpStreaming
}

// Poll implements Driver
func (d *TCPDriver) Poll(ctx context.Context) (*Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil
	}

	d.mu.Lock()
	state := d.state
	d.mu.Unlock()

	if state == tcpListening {
		return d.accept(ctx)
	}
	return d.receive()
}

func (d *TCPDriver) accept(ctx context.Context) (*Status, error) {
	d.mu.Lock()
	l := d.listener
	d.mu.Unlock()

	if err := l.SetDeadline(time.Now().Add(MaxWaitTime)); err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot accept connection: %w", err)
	}

	conn, err := l.Accept()
	if err != nil {
		if isTransient(err) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot accept connection: %w", err)
	}

	if err := d.handshake(conn); err != nil {
		conn.Close()
		return nil, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		conn.Close()
		return nil, nil
	}
	d.conn = conn
	d.state = tcpStreaming
	d.listener = nil
	d.mu.Unlock()

	// one phone per driver
	l.Close()

	d.logger.Info("connection accepted", zap.String("remote", conn.RemoteAddr().String()))
	return Connected(), nil
}

func (d *TCPDriver) handshake(conn net.Conn) error {
	if err := conn.SetDeadline(time.Now().Add(MaxWaitTime)); err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}

	token := make([]byte, len(protocol.CheckToken))
	if _, err := io.ReadFull(conn, token); err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}
	if string(token) != protocol.CheckToken {
		return &CheckFailedError{Expected: protocol.CheckToken, Received: string(token)}
	}
	if _, err := conn.Write([]byte(protocol.AckToken)); err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}

	return conn.SetDeadline(time.Time{})
}

func (d *TCPDriver) receive() (*Status, error) {
	if err := d.conn.SetReadDeadline(time.Now().Add(MaxWaitTime)); err != nil {
		return nil, classifyRead(err)
	}

	n, readErr := d.conn.Read(d.scratch)

	var b batch
	if n > 0 {
		d.emptyReads = 0
		d.frames.Feed(d.scratch[:n])
		if err := d.drainFrames(&b); err != nil {
			return nil, err
		}
	}

	if readErr != nil {
		if isTransient(readErr) {
			return b.status, b.err()
		}
		return nil, classifyRead(readErr)
	}

	if n == 0 {
		d.emptyReads++
		if d.emptyReads >= DisconnectLoopThreshold {
			return nil, ErrDisconnectLoop
		}
	}

	return b.status, b.err()
}

func (d *TCPDriver) drainFrames(b *batch) error {
	for {
		frame, ok, err := d.frames.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		pkt, err := protocol.UnmarshalAudioPacket(frame)
		if err != nil {
			return err
		}
		if err := d.handle(pkt, b, true); err != nil {
			return err
		}
	}
}

// Close implements Driver
func (d *TCPDriver) Close() error {
	d.mu.Lock()
	d.closed = true
	l, conn := d.listener, d.conn
	d.mu.Unlock()

	var err error
	if l != nil {
		err = l.Close()
	}
	if conn != nil {
		if cerr := conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
