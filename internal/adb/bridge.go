// ABOUTME: Manages adb reverse tunnels from attached phones to the host
// ABOUTME: Lists devices, installs reverse port forwards and removes them on teardown
package adb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrNoDevice is returned when no device is attached
var ErrNoDevice = errors.New("no adb device found")

// Device is one line of `adb devices`
type Device struct {
	Serial string
	State  string
}

// Network reports whether the device is attached over TCP/IP instead of USB
func (d Device) Network() bool {
	return strings.Contains(d.Serial, ":") || strings.Contains(d.Serial, "._adb-tls-")
}

// Bridge drives the adb executable
type Bridge struct {
	path   string
	runner Runner
	logger *zap.Logger
}

// NewBridge creates a bridge using the adb binary at path
func NewBridge(path string, runner Runner, logger *zap.Logger) *Bridge {
	if path == "" {
		path = "adb"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{path: path, runner: runner, logger: logger}
}

// Devices lists attached devices
func (b *Bridge) Devices(ctx context.Context) ([]Device, error) {
	out, err := b.runner.Run(ctx, b.path, "devices")
	if err != nil {
		return nil, err
	}
	return parseDevices(out), nil
}

func parseDevices(out string) []Device {
	lines := strings.Split(out, "\n")

	// Skip everything up to and including the header; daemon startup
	// notices may precede it
	start := 1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "List of devices") {
			start = i + 1
			break
		}
	}
	if start > len(lines) {
		return nil
	}

	var devices []Device
	for _, line := range lines[start:] {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		devices = append(devices, Device{Serial: fields[0], State: fields[1]})
	}
	return devices
}

// Reverse forwards devicePort on the phone to hostPort on this machine
func (b *Bridge) Reverse(ctx context.Context, serial string, devicePort, hostPort uint16) error {
	_, err := b.runner.Run(ctx, b.path, "-s", serial, "reverse",
		fmt.Sprintf("tcp:%d", devicePort), fmt.Sprintf("tcp:%d", hostPort))
	return err
}

// RemoveReverse removes the reverse forward of devicePort on the phone
func (b *Bridge) RemoveReverse(ctx context.Context, serial string, devicePort uint16) error {
	_, err := b.runner.Run(ctx, b.path, "-s", serial, "reverse", "--remove",
		fmt.Sprintf("tcp:%d", devicePort))
	return err
}

// Open installs devicePort -> hostPort on every device accepted by filter
// and returns those devices. A nil filter accepts all devices.
func (b *Bridge) Open(ctx context.Context, devicePort, hostPort uint16, filter func(Device) bool) ([]Device, error) {
	all, err := b.Devices(ctx)
	if err != nil {
		return nil, err
	}

	var devices []Device
	for _, d := range all {
		if filter == nil || filter(d) {
			devices = append(devices, d)
		}
	}
	if len(devices) == 0 {
		return nil, ErrNoDevice
	}

	for _, d := range devices {
		if err := b.RemoveReverse(ctx, d.Serial, devicePort); err != nil {
			b.logger.Warn("cannot remove adb proxy",
				zap.String("device", d.Serial),
				zap.Error(err))
		}
		if err := b.Reverse(ctx, d.Serial, devicePort, hostPort); err != nil {
			return nil, err
		}
		b.logger.Info("adb reverse tunnel installed",
			zap.String("device", d.Serial),
			zap.Uint16("device_port", devicePort),
			zap.Uint16("host_port", hostPort))
	}
	return devices, nil
}

// Close removes the reverse forward of devicePort from every attached
// device. Failures are only logged.
func (b *Bridge) Close(ctx context.Context, devicePort uint16) {
	devices, err := b.Devices(ctx)
	if err != nil {
		b.logger.Warn("cannot list adb devices", zap.Error(err))
		return
	}
	for _, d := range devices {
		if err := b.RemoveReverse(ctx, d.Serial, devicePort); err != nil {
			b.logger.Warn("cannot remove adb proxy",
				zap.String("device", d.Serial),
				zap.Error(err))
		}
	}
}
