// ABOUTME: Transport kinds and connect choices
// ABOUTME: Parses transport names from configuration
package transport

import (
	"fmt"
	"net"
	"strings"
)

// Kind identifies a driver variant
type Kind int

const (
	KindIdle Kind = iota
	KindTCP
	KindUDP
	KindADB
	KindUSB
)

func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindTCP:
		return "tcp"
	case KindUDP:
		return "udp"
	case KindADB:
		return "adb"
	case KindUSB:
		return "usb"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses a transport name
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tcp", "wifi":
		return KindTCP, nil
	case "udp":
		return KindUDP, nil
	case "adb":
		return KindADB, nil
	case "usb":
		return KindUSB, nil
	case "idle", "none":
		return KindIdle, nil
	}
	return KindIdle, fmt.Errorf("unknown transport: %q", s)
}

// Choice selects which driver to start
type Choice struct {
	Kind Kind
	// IP is the local address for TCP and UDP. Nil binds all interfaces.
	IP net.IP
}

func (c Choice) String() string {
	if (c.Kind == KindTCP || c.Kind == KindUDP) && c.IP != nil {
		return c.Kind.String() + "@" + c.IP.String()
	}
	return c.Kind.String()
}
