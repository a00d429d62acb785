// ABOUTME: Tests for configuration loading
// ABOUTME: Covers defaults, file values, environment and flag overrides
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamclouday/androidmic-host/internal/transport"
	"github.com/teamclouday/androidmic-host/pkg/audio"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "androidmic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())

	format, err := Default().TargetFormat()
	require.NoError(t, err)
	assert.Equal(t, audio.Format{SampleFormat: audio.I16, Channels: 1, SampleRate: 48000}, format)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
transport: udp
ip: 192.168.1.10
reconnect_delay: 5s
audio:
  format: f32
  channels: 2
  denoise: true
output:
  backend: oto
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "udp", cfg.Transport)
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.True(t, cfg.Audio.Denoise)
	assert.Equal(t, 2, cfg.Audio.Channels)
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.Equal(t, "oto", cfg.Output.Backend)

	choice, err := cfg.Choice()
	require.NoError(t, err)
	assert.Equal(t, transport.KindUDP, choice.Kind)
	assert.Equal(t, "192.168.1.10", choice.IP.String())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "audio:\n  sample_rate: 44100\n")
	t.Setenv("ANDROIDMIC_AUDIO_SAMPLE_RATE", "16000")
	t.Setenv("ANDROIDMIC_TRANSPORT", "adb")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, "adb", cfg.Transport)
}

func TestFlagsOverrideEverything(t *testing.T) {
	path := writeFile(t, "transport: udp\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("transport", "tcp", "")
	flags.Bool("denoise", false, "")
	require.NoError(t, flags.Parse([]string{"--transport", "usb", "--denoise"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "usb", cfg.Transport)
	assert.True(t, cfg.Audio.Denoise)
}

func TestUnchangedFlagKeepsFileValue(t *testing.T) {
	path := writeFile(t, "transport: udp\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("transport", "tcp", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "udp", cfg.Transport)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"transport", func(c *Config) { c.Transport = "bluetooth" }},
		{"ip", func(c *Config) { c.IP = "not-an-ip" }},
		{"format", func(c *Config) { c.Audio.Format = "mp3" }},
		{"channels", func(c *Config) { c.Audio.Channels = 0 }},
		{"rate", func(c *Config) { c.Audio.SampleRate = 100 }},
		{"buffer", func(c *Config) { c.Output.BufferBytes = 1 }},
		{"backend", func(c *Config) { c.Output.Backend = "alsa" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "androidmic.yaml")
	require.NoError(t, WriteDefault(path, false))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	assert.Error(t, WriteDefault(path, false))
	assert.NoError(t, WriteDefault(path, true))
}
