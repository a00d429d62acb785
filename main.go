// ABOUTME: Entry point for the AndroidMic host receiver
// ABOUTME: Cobra commands for running the receiver and inspecting the system
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/internal/app"
	"github.com/teamclouday/androidmic-host/internal/config"
	"github.com/teamclouday/androidmic-host/internal/discovery"
	"github.com/teamclouday/androidmic-host/internal/logging"
	"github.com/teamclouday/androidmic-host/internal/version"
	"github.com/teamclouday/androidmic-host/pkg/audio/output"
)

var (
	cfgFile         string
	noTUI           bool
	forceInit       bool
	discoverTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "androidmic",
	Short: "Use an Android phone as a microphone",
	Long: `AndroidMic host receives audio streamed from the AndroidMic phone app over
TCP, UDP, ADB or USB and plays it on a local output device.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHost(cmd)
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List playback devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := output.ListDevices(nil)
		if err != nil {
			return err
		}
		for _, dev := range devices {
			marker := " "
			if dev.Default {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, dev.Name)
		}
		return nil
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find AndroidMic hosts advertised on the LAN",
	RunE: func(cmd *cobra.Command, args []string) error {
		hosts, err := discovery.Browse(discoverTimeout)
		if err != nil {
			return err
		}
		if len(hosts) == 0 {
			fmt.Println("No hosts found")
			return nil
		}
		for _, h := range hosts {
			fmt.Printf("%-30s %s:%d (%s)\n", h.Name, h.Host, h.Port, h.Service)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultPath()
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path, forceInit); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.DefaultPath()+")")

	flags := rootCmd.Flags()
	flags.String("transport", "tcp", "Transport: tcp, udp, adb or usb")
	flags.String("ip", "", "Local address for tcp and udp (default all interfaces)")
	flags.Bool("auto-connect", false, "Start listening immediately")
	flags.Bool("denoise", false, "Enable noise suppression")
	flags.String("format", "i16", "Output sample format: u8, i16, i24, i32 or f32")
	flags.Int("channels", 1, "Output channel count")
	flags.Int("sample-rate", 48000, "Output sample rate")
	flags.String("output", output.BackendMalgo, "Output backend: malgo, oto or portaudio")
	flags.String("device", "", "Playback device name (see 'androidmic devices')")
	flags.String("adb", "adb", "Path to the adb executable")
	flags.String("status-addr", "", "Serve the websocket status feed and metrics on this address")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-file", "androidmic.log", "Log file path")
	flags.BoolVar(&noTUI, "no-tui", false, "Disable TUI, stream logs to the console instead")

	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 3*time.Second, "How long to listen for answers")
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runHost(cmd *cobra.Command) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if noTUI {
		cfg.UI.Enabled = false
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.File, !cfg.UI.Enabled)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting",
		zap.String("version", version.Version),
		zap.String("transport", cfg.Transport),
		zap.Bool("tui", cfg.UI.Enabled))

	a, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("host stopped with error", zap.Error(err))
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
