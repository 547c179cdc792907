package confluenceserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andygrunwald/go-jira"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
	goconfluence "github.com/virtomize/confluence-go-api"

	"atlasassist/config"
	"atlasassist/logging"
)

const (
	serverName    = "confluence_server"
	serverVersion = "1.0.0"

	// maxReportIssues caps how many issues a status report includes.
	maxReportIssues = 50
)

// Server wraps a Confluence REST client, plus a Jira client used for
// status reports, in an MCP server served over streamable HTTP.
type Server struct {
	confluence    *goconfluence.API
	jiraClient    *jira.Client
	confluenceURL string
	jiraURL       string
	mcpServer     *server.MCPServer
	httpServer    *server.StreamableHTTPServer
	log           logging.Logger
}

// New validates both API configurations, connects the REST clients, and
// registers the page tools.
func New(confluenceCfg config.ConfluenceConfig, jiraCfg config.JiraConfig, log logging.Logger) (*Server, error) {
	api, err := newConfluenceAPI(confluenceCfg)
	if err != nil {
		return nil, err
	}
	jiraClient, err := newJiraClient(jiraCfg)
	if err != nil {
		return nil, err
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &Server{
		confluence:    api,
		jiraClient:    jiraClient,
		confluenceURL: confluenceCfg.URL,
		jiraURL:       jiraCfg.URL,
		mcpServer:     mcpServer,
		log:           log,
	}
	s.registerTools()
	s.httpServer = server.NewStreamableHTTPServer(mcpServer)

	return s, nil
}

// Start serves the MCP endpoint at http://<addr>/mcp and blocks until the
// server stops.
func (s *Server) Start(addr string) error {
	s.log.Info("Confluence MCP server listening", "addr", addr)
	if err := s.httpServer.Start(addr); err != nil {
		return errors.Wrap(err, "Confluence MCP server error")
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Confluence MCP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerTools() {
	reportTool := mcp.NewTool("create_confluence_report",
		mcp.WithDescription("Creates a new Confluence page with a JIRA project status report."),
		mcp.WithString("page_title",
			mcp.Required(),
			mcp.Description("Title of the report page (e.g., 'PROJECT STATUS REPORT')."),
		),
		mcp.WithString("confluence_space_key",
			mcp.Required(),
			mcp.Description("The key of the Confluence space (e.g., 'SPACE')."),
		),
		mcp.WithString("jira_project_key",
			mcp.Required(),
			mcp.Description("The key of the JIRA project (e.g., 'PROJ')."),
		),
	)
	s.mcpServer.AddTool(reportTool, s.handleCreateReport)

	createTool := mcp.NewTool("create_page",
		mcp.WithDescription("Creates a new Confluence page with the given content."),
		mcp.WithString("space_key",
			mcp.Required(),
			mcp.Description("The key of the Confluence space to create the page in."),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Title of the new page."),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Page body in Confluence storage format (HTML)."),
		),
	)
	s.mcpServer.AddTool(createTool, s.handleCreatePage)

	updateTool := mcp.NewTool("update_page",
		mcp.WithDescription("Replaces the content of an existing Confluence page."),
		mcp.WithString("page_id",
			mcp.Required(),
			mcp.Description("ID of the page to update."),
		),
		mcp.WithString("title",
			mcp.Description("New title for the page. Keeps the current title when omitted."),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("New page body in Confluence storage format (HTML)."),
		),
	)
	s.mcpServer.AddTool(updateTool, s.handleUpdatePage)

	getTool := mcp.NewTool("get_page",
		mcp.WithDescription("Retrieves a Confluence page by ID, including its content."),
		mcp.WithString("page_id",
			mcp.Required(),
			mcp.Description("ID of the page to retrieve."),
		),
	)
	s.mcpServer.AddTool(getTool, s.handleGetPage)
}

func toolResultJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tool result")
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleCreateReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageTitle, err := request.RequireString("page_title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	spaceKey, err := request.RequireString("confluence_space_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	projectKey, err := request.RequireString("jira_project_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	issues, err := fetchProjectIssues(ctx, s.jiraClient, projectKey, maxReportIssues)
	if err != nil {
		s.log.Error("Failed to fetch report data", "project", projectKey, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(issues) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("No issues found for project '%s'.", projectKey)), nil
	}

	created, err := s.confluence.CreateContent(&goconfluence.Content{
		Type:  "page",
		Title: pageTitle,
		Space: &goconfluence.Space{Key: spaceKey},
		Body: goconfluence.Body{
			Storage: goconfluence.Storage{
				Value:          reportHTML(s.jiraURL, projectKey, issues),
				Representation: "storage",
			},
		},
	})
	if err != nil {
		s.log.Error("Failed to create report page", "space", spaceKey, "error", err)
		return mcp.NewToolResultError("Failed to create Confluence page. Check permissions and space key."), nil
	}

	s.log.Info("Created report page", "pageID", created.ID, "space", spaceKey, "project", projectKey)

	return toolResultJSON(map[string]string{
		"page_title": pageTitle,
		"page_url":   pageURL(s.confluenceURL, spaceKey, created.ID),
		"message":    "Confluence page created successfully.",
	})
}

func (s *Server) handleCreatePage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	spaceKey, err := request.RequireString("space_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	created, err := s.confluence.CreateContent(&goconfluence.Content{
		Type:  "page",
		Title: title,
		Space: &goconfluence.Space{Key: spaceKey},
		Body: goconfluence.Body{
			Storage: goconfluence.Storage{
				Value:          content,
				Representation: "storage",
			},
		},
	})
	if err != nil {
		s.log.Error("Failed to create page", "space", spaceKey, "title", title, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create Confluence page: %v", err)), nil
	}

	s.log.Info("Created page", "pageID", created.ID, "space", spaceKey)

	return toolResultJSON(map[string]string{
		"page_id":  created.ID,
		"title":    created.Title,
		"page_url": pageURL(s.confluenceURL, spaceKey, created.ID),
	})
}

func (s *Server) handleUpdatePage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := request.RequireString("page_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// The current version number is needed to issue the update.
	current, err := s.confluence.GetContentByID(pageID, goconfluence.ContentQuery{
		Expand: []string{"version", "space"},
	})
	if err != nil {
		s.log.Error("Failed to fetch page for update", "pageID", pageID, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to retrieve page %s: %v", pageID, err)), nil
	}

	title := request.GetString("title", current.Title)
	version := 1
	if current.Version != nil {
		version = current.Version.Number + 1
	}

	updated, err := s.confluence.UpdateContent(&goconfluence.Content{
		ID:    pageID,
		Type:  "page",
		Title: title,
		Space: current.Space,
		Body: goconfluence.Body{
			Storage: goconfluence.Storage{
				Value:          content,
				Representation: "storage",
			},
		},
		Version: &goconfluence.Version{Number: version},
	})
	if err != nil {
		s.log.Error("Failed to update page", "pageID", pageID, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update page %s: %v", pageID, err)), nil
	}

	s.log.Info("Updated page", "pageID", pageID, "version", version)

	result := map[string]any{
		"page_id": updated.ID,
		"title":   updated.Title,
		"version": version,
	}
	if current.Space != nil {
		result["page_url"] = pageURL(s.confluenceURL, current.Space.Key, updated.ID)
	}
	return toolResultJSON(result)
}

func (s *Server) handleGetPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := request.RequireString("page_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	page, err := s.confluence.GetContentByID(pageID, goconfluence.ContentQuery{
		Expand: []string{"body.storage", "version", "space"},
	})
	if err != nil {
		s.log.Error("Failed to retrieve page", "pageID", pageID, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to retrieve page %s: %v", pageID, err)), nil
	}

	result := map[string]any{
		"page_id": page.ID,
		"title":   page.Title,
		"content": page.Body.Storage.Value,
	}
	if page.Version != nil {
		result["version"] = page.Version.Number
	}
	if page.Space != nil {
		result["space_key"] = page.Space.Key
		result["page_url"] = pageURL(s.confluenceURL, page.Space.Key, page.ID)
	}
	return toolResultJSON(result)
}
