package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"wechat/internal/config"
	"wechat/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

type rootOptions struct {
	configPath string
	verbose    bool
	statusAddr string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "wechat",
		Short: "Terminal client for the chat backend",
		Long: `wechat connects to the chat backend as the configured user, shows
conversations as they arrive and sends text, files and voice recordings.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "config.json", "Path to configuration file")
	flags.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging (includes message content)")
	flags.StringVar(&opts.statusAddr, "status-addr", "", "Address of the local status server, e.g. 127.0.0.1:8089 (disabled when empty)")

	root.AddCommand(
		newChatCmd(opts),
		newHistoryCmd(opts),
		newContactsCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVersion(cmd.OutOrStdout(), long)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print detailed version information as JSON")
	return cmd
}

func printVersion(w io.Writer, long bool) error {
	if !long {
		_, err := fmt.Fprintln(w, Version)
		return err
	}
	out, err := json.MarshalIndent(map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// loadConfig reads the configuration and builds the logger it asks for.
func (o *rootOptions) loadConfig(errOut io.Writer) (*models.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Tracing.ServiceVersion == "" {
		cfg.Tracing.ServiceVersion = Version
	}
	return cfg, newLogger(cfg, o.verbose, errOut), nil
}

// newLogger writes JSON logs to out. Debug output requires --verbose; a
// configured level more detailed than info is capped at info.
func newLogger(cfg *models.Config, verbose bool, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(out)

	switch {
	case verbose:
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - message content will be logged")
	case cfg.LogLevel != "":
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			level = logrus.InfoLevel
		}
		if level > logrus.InfoLevel {
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}
