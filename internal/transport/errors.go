// ABOUTME: Errors returned by transport drivers
// ABOUTME: Connection setup failures and fatal stream conditions
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/teamclouday/androidmic-host/internal/adb"
)

var (
	// ErrBindPort is returned when no port at all can be bound
	ErrBindPort = errors.New("cannot bind port")
	// ErrNoLocalAddress is returned when the bound address cannot be read
	ErrNoLocalAddress = errors.New("cannot read local address")
	// ErrDisconnected is returned when the phone closes the connection
	ErrDisconnected = errors.New("device disconnected")
	// ErrDisconnectLoop is returned after too many consecutive empty reads
	ErrDisconnectLoop = errors.New("device disconnected (empty read loop)")
	// ErrNoAdbDevice is returned when adb reports no usable device
	ErrNoAdbDevice = adb.ErrNoDevice
)

// CheckFailedError is returned when the handshake token does not match
type CheckFailedError struct {
	Expected string
	Received string
}

func (e *CheckFailedError) Error() string {
	return fmt.Sprintf("check failed: expected %q, received %q", e.Expected, e.Received)
}

// isTransient reports errors that mean "nothing arrived yet"
func isTransient(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EWOULDBLOCK) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classifyRead maps a read error to the driver's view of it
func classifyRead(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrDisconnected
	}
	return fmt.Errorf("read failed: %w", err)
}
