package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	serialadapter "github.com/bft-labs/serialbridge/internal/adapters/serial"
	"github.com/bft-labs/serialbridge/internal/cliconfig"
	"github.com/bft-labs/serialbridge/internal/console"
	"github.com/bft-labs/serialbridge/internal/setup"
	"github.com/bft-labs/serialbridge/pkg/log"
	"github.com/bft-labs/serialbridge/pkg/serialbridge"
	"github.com/bft-labs/serialbridge/plugins/configwatcher"
)

const helpDescription = `
Read measurements from a serial device and serve the latest values over HTTP.

Highlights:
  - Frames the byte stream by size (60 bytes) or idle time (2s).
  - Publishes the current reading and the last reading that changed.
  - Reconnects with backoff when the device goes away; the API stays up.
  - Configure via file, env (SERIALBRIDGE_*), or flags; run "serialbridge init" to create a config file.

Endpoints:
  GET /api/current        most recent reading
  GET /api/last_changed   most recent reading that differed from the previous one
  GET /api/health         service and ingestion status
  GET /api/ports          serial ports present on the host
  GET /metrics            Prometheus metrics
`

var exampleUsage = strings.TrimSpace(`
  serialbridge --port /dev/ttyUSB0 --baud 9600
  serialbridge --port COM3 --pattern '\+\d+[A-Za-z]' --listen 127.0.0.1:5000
  serialbridge ports
  serialbridge init
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "serialbridge:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "serialbridge",
		Short:         "Serve the latest serial device reading over HTTP",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			// Flags are already parsed into cfg; keep a copy so reloads
			// re-apply the file on top of the same command line.
			flagCfg := cfg
			resolved, err := cliconfig.Resolve(flagCfg, cfgFile, changed)
			if err != nil {
				return err
			}
			if err := resolved.Validate(); err != nil {
				return err
			}

			logger, err := log.NewZerolog(os.Stderr, resolved.LogLevel)
			if err != nil {
				return err
			}
			logger.Info("configuration",
				log.String("port", resolved.Port),
				log.Int("baud", resolved.BaudRate),
				log.String("listen", resolved.ListenAddr),
				log.String("pattern", resolved.Pattern),
				log.String("config_file", cfgFile))

			opts := []serialbridge.Option{serialbridge.WithLogger(logger)}
			if !resolved.Quiet {
				opts = append(opts, serialbridge.WithEventHandler(console.NewPrinter(os.Stdout)))
			}
			if resolved.Watch && cfgFile != "" && cliconfig.FileExists(cfgFile) {
				opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.Config{
					Path: cfgFile,
					Load: func() (serialbridge.Config, error) {
						next, err := cliconfig.Resolve(flagCfg, cfgFile, changed)
						if err != nil {
							return serialbridge.Config{}, err
						}
						if err := next.Validate(); err != nil {
							return serialbridge.Config{}, err
						}
						return next.Bridge(), nil
					},
				}))
			}

			b, err := serialbridge.New(resolved.Bridge(), opts...)
			if err != nil {
				return fmt.Errorf("create bridge: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := b.Start(ctx); err != nil {
				return fmt.Errorf("start bridge: %w", err)
			}
			logger.Info("serving", log.String("addr", b.Addr().String()))

			<-ctx.Done()
			fmt.Fprintln(os.Stdout)
			logger.Info("received signal, stopping...")

			if err := b.Stop(); err != nil {
				return fmt.Errorf("stop bridge: %w", err)
			}
			return nil
		},
	}

	// --config is shared with init.
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.serialbridge/config.toml)")

	// Flags
	f := root.Flags()
	f.StringVarP(&cfg.Port, "port", "p", cfg.Port, "serial port name")
	f.IntVarP(&cfg.BaudRate, "baud", "b", cfg.BaudRate, "serial baud rate")
	f.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "flush a frame once this many bytes are pending")
	f.DurationVar(&cfg.FlushTimeout, "flush-timeout", cfg.FlushTimeout, "flush a partial frame after this long")
	f.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "serial read timeout")
	f.DurationVar(&cfg.ReconnectInitial, "reconnect-initial", cfg.ReconnectInitial, "first reconnect delay")
	f.DurationVar(&cfg.ReconnectMax, "reconnect-max", cfg.ReconnectMax, "maximum reconnect delay")
	f.StringVar(&cfg.Pattern, "pattern", cfg.Pattern, "regular expression selecting the value inside each frame")
	f.StringVarP(&cfg.ListenAddr, "listen", "l", cfg.ListenAddr, "HTTP listen address")
	f.StringVar(&cfg.CORSOrigin, "cors-origin", cfg.CORSOrigin, "Access-Control-Allow-Origin value (empty or \"none\" disables CORS)")
	f.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown bound")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	f.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, "do not print readings to the console")
	f.BoolVar(&cfg.Watch, "watch", cfg.Watch, "reload the config file when it changes")

	root.AddCommand(portsCmd(), initCmd(&cfgPath))
	return root
}

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports present on this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := serialadapter.NewOpener().List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "no serial ports found")
				return nil
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("NAME", "DESCRIPTION", "VID:PID", "SERIAL")
			for _, p := range found {
				id := ""
				if p.IsUSB {
					id = p.VID + ":" + p.PID
				}
				t.Row(p.Name, p.Description, id, p.SerialNumber)
			}
			_, err = fmt.Fprintln(out, t.Render())
			return err
		},
	}
}

func initCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a config file interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *cfgPath
			if path == "" {
				path = cliconfig.DefaultConfigPath()
			}
			if path == "" {
				return fmt.Errorf("cannot determine home directory; pass --config")
			}

			base, err := cliconfig.Resolve(cliconfig.DefaultConfig(), path, map[string]bool{})
			if err != nil {
				return err
			}
			cfg, err := setup.Run(serialadapter.NewOpener(), base, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (port %s, %d baud)\n", path, cfg.Port, cfg.BaudRate)
			return nil
		},
	}
}
