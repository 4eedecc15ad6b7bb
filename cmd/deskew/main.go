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

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/ironsheep/image-deskew/internal/config"
	"github.com/ironsheep/image-deskew/internal/deskew"
	"github.com/ironsheep/image-deskew/internal/logging"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const longHelp = `Straighten scanned or photographed pages.

The skew angle is estimated from the minimum-area rectangle around the dark
content (Otsu threshold on inverted luminance), and the image is rotated
about its center by that angle. Output keeps the input size and channel
count; exposed borders replicate the nearest edge pixels. Pages with no
content are written unchanged.

Settings are read from $HOME/.deskew/config.toml, then DESKEW_* environment
variables, then flags.`

var exampleUsage = strings.TrimSpace(`
  deskew correct scan.png -o straight.png
  deskew angle page1.jpg page2.jpg
  deskew batch ./scans --out-dir ./fixed --workers 8
  deskew watch ./inbox
  deskew remote scan.png --endpoint https://abc123.execute-api.us-east-1.amazonaws.com/Prod/deskew
  deskew serve --listen :8080
`)

func getVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// app carries the resolved configuration and logger to every subcommand.
type app struct {
	cfg     config.Config
	cfgPath string
	logger  zerolog.Logger
}

// load layers the config file and environment under the flags that were set
// explicitly, validates the result and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = config.DefaultConfigPath()
	}
	if a.cfgPath != "" && !config.FileExists(a.cfgPath) {
		return fmt.Errorf("config file %s not found", a.cfgPath)
	}
	if config.FileExists(cfgFile) {
		fc, err := config.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := config.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := config.ApplyEnvConfig(&a.cfg, changed); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(a.cfg.LogLevel, a.cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	a.logger = logger
	a.logger.Debug().Interface("config", a.cfg).Str("config_file", cfgFile).Msg("configuration")
	return nil
}

func (a *app) corrector() *deskew.Corrector {
	return deskew.New(deskew.WithLogger(a.logger))
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newRootCommand() *cobra.Command {
	a := &app{cfg: config.DefaultConfig(), logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "deskew",
		Short:         "Detect and correct the rotation of document images",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s (built %s, commit %s)", getVersion(), runtime.GOOS, runtime.GOARCH, BuildTime, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.deskew/config.toml)")
	root.PersistentFlags().StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.cfg.LogFormat, "log-format", a.cfg.LogFormat, "log format (console, json)")

	root.AddCommand(
		newCorrectCommand(a),
		newAngleCommand(a),
		newBatchCommand(a),
		newWatchCommand(a),
		newRemoteCommand(a),
		newServeCommand(a),
		newMCPCommand(a),
		newOverlayCommand(a),
	)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "deskew: %v\n", err)
		os.Exit(1)
	}
}
