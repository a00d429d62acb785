// ABOUTME: Receiver configuration loaded from file, environment and flags
// ABOUTME: Uses viper with a default for every key and yaml for config init
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/teamclouday/androidmic-host/internal/transport"
	"github.com/teamclouday/androidmic-host/pkg/audio"
	"github.com/teamclouday/androidmic-host/pkg/audio/queue"
)

// EnvPrefix prefixes environment overrides, e.g. ANDROIDMIC_AUDIO_DENOISE
const EnvPrefix = "ANDROIDMIC"

// FileName is the config file looked up when no path is given
const FileName = "androidmic"

// Config holds all receiver configuration
type Config struct {
	Transport      string        `mapstructure:"transport" yaml:"transport"`
	IP             string        `mapstructure:"ip" yaml:"ip"`
	AutoConnect    bool          `mapstructure:"auto_connect" yaml:"auto_connect"`
	AutoReconnect  bool          `mapstructure:"auto_reconnect" yaml:"auto_reconnect"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`

	Audio  AudioConfig  `mapstructure:"audio" yaml:"audio"`
	Output OutputConfig `mapstructure:"output" yaml:"output"`
	ADB    ADBConfig    `mapstructure:"adb" yaml:"adb"`
	MDNS   MDNSConfig   `mapstructure:"mdns" yaml:"mdns"`
	Status StatusConfig `mapstructure:"status" yaml:"status"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	UI     UIConfig     `mapstructure:"ui" yaml:"ui"`
}

// AudioConfig is the format played on this machine
type AudioConfig struct {
	Format     string `mapstructure:"format" yaml:"format"`
	Channels   int    `mapstructure:"channels" yaml:"channels"`
	SampleRate int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Denoise    bool   `mapstructure:"denoise" yaml:"denoise"`
}

// OutputConfig selects the playback backend
type OutputConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Device      string `mapstructure:"device" yaml:"device"`
	BufferBytes int    `mapstructure:"buffer_bytes" yaml:"buffer_bytes"`
}

// ADBConfig locates the adb executable
type ADBConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MDNSConfig controls LAN advertisement
type MDNSConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Name    string `mapstructure:"name" yaml:"name"`
}

// StatusConfig controls the websocket status feed. An empty Addr disables it.
type StatusConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LogConfig controls logging
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// UIConfig controls the terminal UI
type UIConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	PreviewInterval time.Duration `mapstructure:"preview_interval" yaml:"preview_interval"`
}

// Default returns configuration with sensible defaults
func Default() Config {
	return Config{
		Transport:      "tcp",
		IP:             "",
		ReconnectDelay: 2 * time.Second,
		Audio: AudioConfig{
			Format:     "i16",
			Channels:   1,
			SampleRate: 48000,
		},
		Output: OutputConfig{
			Backend:     "malgo",
			BufferBytes: queue.DefaultCapacity,
		},
		ADB:  ADBConfig{Path: "adb"},
		MDNS: MDNSConfig{Enabled: true},
		Log: LogConfig{
			Level: "info",
			File:  "androidmic.log",
		},
		UI: UIConfig{
			Enabled:         true,
			PreviewInterval: 100 * time.Millisecond,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("transport", d.Transport)
	v.SetDefault("ip", d.IP)
	v.SetDefault("auto_connect", d.AutoConnect)
	v.SetDefault("auto_reconnect", d.AutoReconnect)
	v.SetDefault("reconnect_delay", d.ReconnectDelay)
	v.SetDefault("audio.format", d.Audio.Format)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.denoise", d.Audio.Denoise)
	v.SetDefault("output.backend", d.Output.Backend)
	v.SetDefault("output.device", d.Output.Device)
	v.SetDefault("output.buffer_bytes", d.Output.BufferBytes)
	v.SetDefault("adb.path", d.ADB.Path)
	v.SetDefault("mdns.enabled", d.MDNS.Enabled)
	v.SetDefault("mdns.name", d.MDNS.Name)
	v.SetDefault("status.addr", d.Status.Addr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("ui.enabled", d.UI.Enabled)
	v.SetDefault("ui.preview_interval", d.UI.PreviewInterval)
}

// flagKeys maps command line flags to config keys
var flagKeys = map[string]string{
	"transport":    "transport",
	"ip":           "ip",
	"denoise":      "audio.denoise",
	"format":       "audio.format",
	"channels":     "audio.channels",
	"sample-rate":  "audio.sample_rate",
	"output":       "output.backend",
	"device":       "output.device",
	"adb":          "adb.path",
	"status-addr":  "status.addr",
	"log-level":    "log.level",
	"log-file":     "log.file",
	"auto-connect": "auto_connect",
}

// Load reads configuration from path (or the default locations when path
// is empty), the environment and any flags in flags.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that viper cannot type check
func (c Config) Validate() error {
	if _, err := c.Choice(); err != nil {
		return err
	}
	format, err := c.TargetFormat()
	if err != nil {
		return err
	}
	if format.Channels < 1 || format.Channels > 8 {
		return fmt.Errorf("audio.channels must be between 1 and 8, got %d", format.Channels)
	}
	if format.SampleRate < 8000 || format.SampleRate > 384000 {
		return fmt.Errorf("audio.sample_rate out of range: %d", format.SampleRate)
	}
	if c.Output.BufferBytes < format.FrameSize() {
		return fmt.Errorf("output.buffer_bytes must hold at least one frame (%d bytes)", format.FrameSize())
	}
	switch c.Output.Backend {
	case "malgo", "oto", "portaudio":
	default:
		return fmt.Errorf("unknown output backend: %q", c.Output.Backend)
	}
	return nil
}

// Choice returns the configured transport
func (c Config) Choice() (transport.Choice, error) {
	kind, err := transport.ParseKind(c.Transport)
	if err != nil {
		return transport.Choice{}, err
	}
	choice := transport.Choice{Kind: kind}
	if c.IP != "" {
		choice.IP = net.ParseIP(c.IP)
		if choice.IP == nil {
			return transport.Choice{}, fmt.Errorf("invalid ip: %q", c.IP)
		}
	}
	return choice, nil
}

// TargetFormat returns the playback format
func (c Config) TargetFormat() (audio.Format, error) {
	sf, err := audio.ParseSampleFormat(c.Audio.Format)
	if err != nil {
		return audio.Format{}, err
	}
	return audio.Format{
		SampleFormat: sf,
		Channels:     c.Audio.Channels,
		SampleRate:   c.Audio.SampleRate,
	}, nil
}

// Dir returns the per-user config directory
func Dir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "androidmic")
}

// DefaultPath returns where config init writes by default
func DefaultPath() string {
	return filepath.Join(Dir(), FileName+".yaml")
}

// WriteDefault writes the default configuration to path. An existing file
// is left untouched unless force is set.
func WriteDefault(path string, force bool) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
