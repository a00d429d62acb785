// ABOUTME: ADB and USB drivers tunnelling the phone's TCP stream through adb reverse
// ABOUTME: Wraps a loopback TCP driver and removes the tunnels on Close
package transport

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/internal/adb"
	"github.com/teamclouday/androidmic-host/internal/pipeline"
	"github.com/teamclouday/androidmic-host/pkg/protocol"
)

// teardownTimeout bounds the adb calls made by Close
const teardownTimeout = 5 * time.Second

// ADBDriver streams over a reverse tunnel to every matching device
type ADBDriver struct {
	*TCPDriver

	bridge  *adb.Bridge
	devices []adb.Device
}

// StartADB binds a loopback listener and installs the tunnels. KindUSB
// restricts the tunnels to USB attached devices.
func StartADB(ctx context.Context, kind Kind, cfg pipeline.StreamConfig, deps Deps) (*ADBDriver, error) {
	deps = deps.withDefaults()

	tcp, err := listenTCP(kind, net.IPv4(127, 0, 0, 1), defaultPorts, cfg, deps)
	if err != nil {
		return nil, err
	}

	var filter func(adb.Device) bool
	if kind == KindUSB {
		filter = func(d adb.Device) bool { return !d.Network() }
	}

	devices, err := deps.Bridge.Open(ctx, protocol.DevicePort, tcp.Port(), filter)
	if err != nil {
		tcp.Close()
		return nil, err
	}

	return &ADBDriver{
		TCPDriver: tcp,
		bridge:    deps.Bridge,
		devices:   devices,
	}, nil
}

// Devices returns the devices a tunnel was installed on
func (d *ADBDriver) Devices() []adb.Device {
	return d.devices
}

// Status reports the device side port while listening
func (d *ADBDriver) Status() *Status {
	if d.Streaming() {
		return Connected()
	}
	return Listening(protocol.DevicePort)
}

// Close stops the listener and removes the tunnels
func (d *ADBDriver) Close() error {
	err := d.TCPDriver.Close()

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	d.bridge.Close(ctx, protocol.DevicePort)

	d.logger.Debug("adb tunnels removed", zap.Int("devices", len(d.devices)))
	return err
}
