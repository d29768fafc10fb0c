package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maesker/Master-Thesis/harness"
)

var (
	logLevel   string // Log verbosity level
	configPath string // Harness YAML file
	nodeConfig string // INI node config, overrides node_config
	section    string // INI section holding the dsN keys
)

// rootCmd is the base command for the CLI. A bare numeric argument starts
// that data server locally, the same as `node <id>`.
var rootCmd = &cobra.Command{
	Use:   "netraid-harness [<node-id>]",
	Short: "Start netraid data servers and run fakeClient benchmarks",
	Long: `Start netraid data servers and run fakeClient benchmarks.

Roles are read from an INI node config ([default] ds0 = 192.168.56.101).
Run "netraid-harness <id>" to start the data server for one role locally.`,
	Args:              nodeIDArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		id, _ := strconv.Atoi(args[0])
		return runNode(cmd, id)
	},
}

// exitCodeError carries a specific process exit code up to Execute.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }

func (e *exitCodeError) Unwrap() error { return e.err }

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec *exitCodeError
	if errors.As(err, &ec) && ec.code > 0 {
		return ec.code
	}
	return 1
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(exitCode(err))
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logrus.SetLevel(level)
	return nil
}

// nodeIDArgs accepts no arguments or a single non-negative role id.
func nodeIDArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
		return err
	}
	if len(args) == 1 {
		if _, err := parseNodeID(args[0]); err != nil {
			return fmt.Errorf("unknown command or node id %q", args[0])
		}
	}
	return nil
}

func parseNodeID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: node id %q is not a number", harness.ErrInvalidParameter, s)
	}
	if id < 0 {
		return 0, fmt.Errorf("%w: node id %d is negative", harness.ErrInvalidParameter, id)
	}
	return id, nil
}

// loadConfig applies the persistent flags on top of the harness file.
func loadConfig(cmd *cobra.Command) (*HarnessConfig, error) {
	cfg, err := loadHarnessConfig(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("node-config") {
		cfg.NodeConfig = nodeConfig
	}
	if cmd.Flags().Changed("section") {
		cfg.Section = section
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Harness YAML config (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&nodeConfig, "node-config", "", "INI node config, overrides node_config")
	rootCmd.PersistentFlags().StringVar(&section, "section", "", "INI section holding the dsN keys, overrides section")
}
