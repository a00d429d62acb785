// ABOUTME: Tests for the ADB and USB drivers
// ABOUTME: Drives the adb bridge with a scripted command runner
package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/internal/adb"
	"github.com/teamclouday/androidmic-host/pkg/protocol"
)

type adbScript struct {
	mu      sync.Mutex
	devices string
	calls   []string
}

func (a *adbScript) Run(_ context.Context, name string, args ...string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, strings.Join(append([]string{name}, args...), " "))
	if len(args) == 1 && args[0] == "devices" {
		return a.devices, nil
	}
	return "", nil
}

func (a *adbScript) called(call string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.calls {
		if c == call {
			return true
		}
	}
	return false
}

func TestADBDriverInstallsAndRemovesTunnel(t *testing.T) {
	script := &adbScript{devices: "List of devices attached\nR58M123ABC\tdevice"}
	deps := Deps{Logger: zap.NewNop(), Bridge: adb.NewBridge("adb", script, zap.NewNop())}
	cfg, _ := testConfig(1024)

	drv, err := Begin(context.Background(), Choice{Kind: KindADB}, cfg, deps)
	require.NoError(t, err)
	d := drv.(*ADBDriver)

	assert.Equal(t, KindADB, d.Kind())
	assert.Equal(t, Listening(protocol.DevicePort), d.Status())
	assert.True(t, script.called(fmt.Sprintf("adb -s R58M123ABC reverse tcp:55555 tcp:%d", d.Port())))

	require.NoError(t, d.Close())
	assert.True(t, script.called("adb -s R58M123ABC reverse --remove tcp:55555"))
}

func TestUSBDriverSkipsNetworkDevices(t *testing.T) {
	script := &adbScript{devices: "List of devices attached\n192.168.1.20:5555\tdevice\nR58M123ABC\tdevice"}
	deps := Deps{Bridge: adb.NewBridge("adb", script, nil)}
	cfg, _ := testConfig(1024)

	d, err := StartADB(context.Background(), KindUSB, cfg, deps)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, KindUSB, d.Kind())
	require.Len(t, d.Devices(), 1)
	assert.Equal(t, "R58M123ABC", d.Devices()[0].Serial)
	assert.False(t, script.called(fmt.Sprintf("adb -s 192.168.1.20:5555 reverse tcp:55555 tcp:%d", d.Port())))
}

func TestADBNoDevice(t *testing.T) {
	script := &adbScript{devices: "List of devices attached"}
	deps := Deps{Bridge: adb.NewBridge("adb", script, nil)}
	cfg, _ := testConfig(1024)

	_, err := Begin(context.Background(), Choice{Kind: KindADB}, cfg, deps)
	assert.ErrorIs(t, err, ErrNoAdbDevice)
}

func TestBeginIdle(t *testing.T) {
	cfg, _ := testConfig(1024)
	d, err := Begin(context.Background(), Choice{Kind: KindIdle}, cfg, Deps{})
	require.NoError(t, err)

	assert.Equal(t, KindIdle, d.Kind())
	assert.Nil(t, d.Status())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err := d.Poll(ctx)
	assert.Nil(t, st)
	assert.NoError(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("UDP")
	require.NoError(t, err)
	assert.Equal(t, KindUDP, k)

	_, err = ParseKind("bluetooth")
	assert.Error(t, err)
}

func TestStatusJSON(t *testing.T) {
	b, err := Listening(55555).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"listening","port":55555}`, string(b))

	b, err = Failed(ErrDisconnected).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"error","message":"device disconnected"}`, string(b))
}
