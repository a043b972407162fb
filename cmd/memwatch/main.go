// Command memwatch attaches to a game process, watches the values its
// configuration declares and drives a timer from them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"memwatch/internal/config"
	"memwatch/internal/logging"
)

type options struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "memwatch",
		Short:         "Watch game memory and drive a speedrun timer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log_level (debug, info, warning, error)")

	root.AddCommand(
		newRunCmd(opts),
		newReplayCmd(opts),
		newPathsCmd(opts),
		newCaptureCmd(opts),
	)
	return root
}

// load reads the configuration and builds the logger it asks for.
func (o *options) load() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		if _, err := logging.ParseSeverity(o.logLevel); err != nil {
			return nil, nil, err
		}
		cfg.LogLevel = o.logLevel
	}
	return cfg, logging.NewStdLogger(cfg.Severity()), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "memwatch: %v\n", err)
		os.Exit(1)
	}
}
