package commands

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"atlasassist/api"
	"atlasassist/assistant"
	"atlasassist/config"
	"atlasassist/mcp"
	"atlasassist/metrics"
)

const version = "1.0.0"

func chatCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run the chat web UI and assistant API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = cfg.HTTP.ChatListen
			}
			if !cfg.Service.IsValid() {
				return errors.New("LLM service not configured. Please set LLM_SERVICE_TYPE and an API key")
			}

			container := &config.Container{}
			container.Update(cfg)

			metricsService := metrics.NewMetrics(metrics.InstanceInfo{
				Version: version,
			})

			mcpClientManager := mcp.NewClientManager(container.MCP(), log)
			defer mcpClientManager.Close()
			container.RegisterUpdateListener(func() {
				mcpClientManager.ReInit(container.MCP())
			})

			assistantService, err := assistant.New(container, mcpClientManager, metricsService, log)
			if err != nil {
				return err
			}

			apiService := api.New(assistantService, metricsService, log)

			return runUntilSignal(func() error { return apiService.Start(listen) }, func(ctx context.Context) error {
				return apiService.Shutdown(ctx)
			})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (defaults to CHAT_LISTEN or :8080)")

	return cmd
}
