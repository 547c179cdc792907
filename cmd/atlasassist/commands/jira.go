package commands

import (
	"github.com/spf13/cobra"

	"atlasassist/jiraserver"
)

func jiraCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "jira",
		Short: "Run the Jira MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = cfg.HTTP.JiraListen
			}

			srv, err := jiraserver.New(cfg.Jira, log)
			if err != nil {
				log.Error("Jira MCP server could not start", "error", err)
				return err
			}

			return runUntilSignal(func() error { return srv.Start(listen) }, srv.Shutdown)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (defaults to JIRA_MCP_LISTEN or :8000)")

	return cmd
}
