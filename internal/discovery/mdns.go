// ABOUTME: mDNS advertisement of the receiver's listening port
// ABOUTME: Lets phones on the LAN find the host, and lists hosts for the discover command
package discovery

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/internal/version"
)

const (
	// ServiceTCP is advertised while the TCP driver listens
	ServiceTCP = "_androidmic._tcp"
	// ServiceUDP is advertised while the UDP driver listens
	ServiceUDP = "_androidmic._udp"
)

// Config holds discovery configuration
type Config struct {
	// InstanceName is the human readable host name shown on the phone
	InstanceName string
	// ID distinguishes this host when several share a name
	ID string
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	logger *zap.Logger

	mu      sync.Mutex
	server  *mdns.Server
	service string
	port    int
}

// HostInfo describes a discovered host
type HostInfo struct {
	Name    string
	Host    string
	Port    int
	Service string
}

// NewManager creates a discovery manager
func NewManager(config Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		config: config,
		logger: logger.Named("mdns"),
	}
}

// Advertise publishes service on port, replacing any previous advertisement
func (m *Manager) Advertise(service string, port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil && m.service == service && m.port == port {
		return nil
	}
	m.shutdownLocked()

	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	txt := []string{"proto=androidmic", "version=" + version.Version}
	if m.config.ID != "" {
		txt = append(txt, "id="+m.config.ID)
	}

	zone, err := mdns.NewMDNSService(
		m.config.InstanceName,
		service,
		"",
		"",
		port,
		ips,
		txt,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.server = server
	m.service = service
	m.port = port

	m.logger.Info("advertising mDNS service",
		zap.String("name", m.config.InstanceName),
		zap.String("service", service),
		zap.Int("port", port))
	return nil
}

// Advertising returns the current service and port, if any
func (m *Manager) Advertising() (service string, port int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.service, m.port, m.server != nil
}

// Withdraw stops advertising
func (m *Manager) Withdraw() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownLocked()
}

func (m *Manager) shutdownLocked() {
	if m.server == nil {
		return
	}
	if err := m.server.Shutdown(); err != nil {
		m.logger.Warn("mdns shutdown failed", zap.Error(err))
	}
	m.logger.Debug("mDNS advertisement withdrawn", zap.String("service", m.service))
	m.server = nil
	m.service = ""
	m.port = 0
}

// Browse queries the LAN for AndroidMic hosts until timeout elapses
func Browse(timeout time.Duration) ([]HostInfo, error) {
	var hosts []HostInfo
	for _, service := range []string{ServiceTCP, ServiceUDP} {
		entries := make(chan *mdns.ServiceEntry, 16)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				host := ""
				if entry.AddrV4 != nil {
					host = entry.AddrV4.String()
				} else if entry.AddrV6 != nil {
					host = entry.AddrV6.String()
				}
				hosts = append(hosts, HostInfo{
					Name:    strings.TrimSuffix(entry.Name, "."+service+".local."),
					Host:    host,
					Port:    entry.Port,
					Service: service,
				})
			}
		}()

		params := mdns.DefaultParams(service)
		params.Entries = entries
		params.Timeout = timeout
		params.DisableIPv6 = true
		err := mdns.Query(params)
		close(entries)
		<-done

		if err != nil {
			return hosts, fmt.Errorf("mdns query %s: %w", service, err)
		}
	}
	return hosts, nil
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
