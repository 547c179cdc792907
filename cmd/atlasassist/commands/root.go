// Package commands contains the atlasassist CLI. Each subcommand runs
// one of the three processes: the Jira MCP server, the Confluence MCP
// server, or the chat web UI.
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"atlasassist/config"
	"atlasassist/logging"
)

const shutdownTimeout = 10 * time.Second

var (
	cfg     *config.Config
	log     logging.Logger
	verbose bool
)

func Execute() error {
	root := &cobra.Command{
		Use:           "atlasassist",
		Short:         "Jira and Confluence AI assistant with MCP tool servers",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := logrus.New()
			logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
			log = logging.New(logger)

			var err error
			cfg, err = config.Load()
			return err
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(jiraCmd(), confluenceCmd(), chatCmd())

	return root.Execute()
}

// runUntilSignal starts the server and blocks until it fails or the
// process receives SIGINT or SIGTERM, then shuts it down gracefully.
func runUntilSignal(start func() error, shutdown func(context.Context) error) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- start()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case err := <-errChan:
		return err
	case <-sig:
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return shutdown(ctx)
	}
}
