package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-undead/internal/config"
	"github.com/l3aro/go-undead/internal/log"
	"github.com/l3aro/go-undead/pkg/dirty"
	"github.com/l3aro/go-undead/pkg/store"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "undead",
	Short: "undead - Incremental dead code detection for configurable C code",
	Long: `undead finds #if blocks that no valid configuration can select.

Commands:
  init        Create a configuration interactively
  extract     Extract changed sources and models and commit a revision
  commit      Commit pre-extracted YAML models as a revision
  analyze     Report dead blocks of the current revision
  watch       Re-extract and re-analyze on every change
  inspect     Show the blocks of a stored file and their relevance
  flags       Show the change flags of the current revision

Use "undead [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Config file path (default: global and project config)")
	RootCmd.PersistentFlags().BoolP("verbose", "V", false, "Verbose logging")
	RootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	RootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON")
	RootCmd.PersistentFlags().String("store", "", "Model store directory (overrides store_dir)")
}

// logLevel is the --log-level value, validated by loadConfig.
var logLevel string

// loadConfig loads the configuration and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if cmd.Flags().Changed("verbose") {
		cfg.Verbose, _ = cmd.Flags().GetBool("verbose")
	}
	if cmd.Flags().Changed("log-json") {
		cfg.LogJSON, _ = cmd.Flags().GetBool("log-json")
	}
	if name, _ := cmd.Flags().GetString("log-level"); name != "" {
		if _, err := log.ParseLevel(name); err != nil {
			return nil, err
		}
		logLevel = name
	}
	if dir, _ := cmd.Flags().GetString("store"); dir != "" {
		cfg.StoreDir = dir
	}
	return cfg, nil
}

// newLogger builds the command logger. Logs go to stderr so that reports
// on stdout stay machine readable.
func newLogger(cfg *config.Config) log.Logger {
	level, _ := log.ParseLevel(logLevel)
	if cfg.Verbose {
		level = log.DebugLevel
	}
	return log.New(log.LoggerConfig{
		Level:      level,
		JSONOutput: cfg.LogJSON,
		Stdout:     os.Stderr,
		Stderr:     os.Stderr,
	})
}

func openStore(cfg *config.Config, logger log.Logger) (*store.Store, error) {
	st, err := store.Open(store.Config{Path: cfg.StoreDir, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", cfg.StoreDir, err)
	}
	return st, nil
}

// openTracker loads the input hashes kept next to the store.
func openTracker(cfg *config.Config) (*dirty.Tracker, error) {
	tracker, err := dirty.Open(filepath.Dir(filepath.Clean(cfg.StoreDir)))
	if err != nil {
		return nil, fmt.Errorf("loading input state: %w", err)
	}
	return tracker, nil
}

// spin shows a spinner on an interactive stderr while fn runs.
func spin(cfg *config.Config, message string, fn func() error) error {
	if cfg.LogJSON || !log.IsTTY() {
		return fn()
	}
	p := log.NewProgressSpinner(os.Stderr, message)
	p.Start()
	defer p.Stop()
	return fn()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
