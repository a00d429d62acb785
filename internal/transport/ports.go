// ABOUTME: Port selection for TCP and UDP listeners
// ABOUTME: Walks the default range and falls back to an ephemeral port
package transport

import (
	"fmt"
	"net"

	"github.com/teamclouday/androidmic-host/pkg/protocol"
)

type portRange struct {
	first, last int
}

var defaultPorts = portRange{first: protocol.DefaultPort, last: protocol.MaxPort}

// bind tries every port in r, then port 0
func bind[T any](r portRange, listen func(port int) (T, error)) (T, error) {
	for port := r.first; port <= r.last; port++ {
		if l, err := listen(port); err == nil {
			return l, nil
		}
	}
	l, err := listen(0)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrBindPort, err)
	}
	return l, nil
}

func bindTCP(ip net.IP, r portRange) (*net.TCPListener, error) {
	return bind(r, func(port int) (*net.TCPListener, error) {
		return net.ListenTCP("tcp", &net.TCPAddr{IP: ip, Port: port})
	})
}

func bindUDP(ip net.IP, r portRange) (*net.UDPConn, error) {
	return bind(r, func(port int) (*net.UDPConn, error) {
		return net.ListenUDP("udp", &net.UDPAddr{IP: ip, Port: port})
	})
}

func localPort(addr net.Addr) (uint16, error) {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return uint16(a.Port), nil
	case *net.UDPAddr:
		return uint16(a.Port), nil
	}
	return 0, ErrNoLocalAddress
}
