package commands

import (
	"github.com/spf13/cobra"

	"atlasassist/confluenceserver"
)

func confluenceCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "confluence",
		Short: "Run the Confluence MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = cfg.HTTP.ConfluenceListen
			}

			srv, err := confluenceserver.New(cfg.Confluence, cfg.Jira, log)
			if err != nil {
				log.Error("Confluence MCP server could not start", "error", err)
				return err
			}

			return runUntilSignal(func() error { return srv.Start(listen) }, srv.Shutdown)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (defaults to CONFLUENCE_MCP_LISTEN or :8001)")

	return cmd
}
